package sfu

import (
	"time"

	"github.com/dkeye/voicerooms/internal/domain"
)

const (
	DefaultSampleRate = 48000
	DefaultChannels   = 1
)

// Format describes the PCM layout a client sends and expects back.
type Format struct {
	SampleRate int `json:"sampleRate"`
	Channels   int `json:"channels"`
}

func (f Format) withDefaults() Format {
	if f.SampleRate <= 0 {
		f.SampleRate = DefaultSampleRate
	}
	if f.Channels <= 0 {
		f.Channels = DefaultChannels
	}
	return f
}

// Relay is the relay state of one connection. It exists only while relay is
// enabled for that connection.
type Relay struct {
	SID     domain.SessionID
	Format  Format
	Since   time.Time
	Packets int64
	Bytes   int64
}

func NewRelay(sid domain.SessionID, format Format, since time.Time) *Relay {
	return &Relay{SID: sid, Format: format.withDefaults(), Since: since}
}

// RelayedAudio is the payload of the relayed-audio event.
type RelayedAudio struct {
	From       domain.SessionID `json:"fromConnectionId"`
	FromName   string           `json:"fromName"`
	Timestamp  int64            `json:"timestamp"`
	SampleRate int              `json:"sampleRate"`
	Channels   int              `json:"channels"`
	Frame      []byte           `json:"frame"`
}
