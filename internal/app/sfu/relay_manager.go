package sfu

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/voicerooms/internal/core"
	"github.com/dkeye/voicerooms/internal/domain"
	"github.com/dkeye/voicerooms/internal/metrics"
)

// Sink delivers an encoded frame to one connection.
type Sink interface {
	SendFrame(sid domain.SessionID, f core.Frame) error
}

type Stats struct {
	BytesRelayed   int64 `json:"bytesRelayed"`
	PacketsRelayed int64 `json:"packetsRelayed"`
	ActiveRelays   int64 `json:"activeRelays"`
}

// Sender identifies the origin of a frame.
type Sender struct {
	ID   domain.SessionID
	Name string
}

type ForwardResult struct {
	Delivered []domain.SessionID
	// Slow lists recipients whose outbound buffer was full.
	Slow []domain.SessionID
}

// RelayManager fans audio frames out to relay-enabled room members.
// Frames are forwarded verbatim; there is no mixing.
type RelayManager struct {
	mu     sync.RWMutex
	relays map[domain.SessionID]*Relay

	bytes   atomic.Int64
	packets atomic.Int64
	active  atomic.Int64
}

func NewRelayManager() *RelayManager {
	return &RelayManager{
		relays: make(map[domain.SessionID]*Relay),
	}
}

// SetRelayEnabled toggles relay for sid and reports whether the state changed.
// Enabling an already enabled relay only updates its format.
func (m *RelayManager) SetRelayEnabled(sid domain.SessionID, enabled bool, format Format, now time.Time) bool {
	logger := log.With().Str("module", "sfu").Str("sid", string(sid)).Logger()

	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.relays[sid]
	switch {
	case enabled && ok:
		r.Format = format.withDefaults()
		return false
	case enabled:
		m.relays[sid] = NewRelay(sid, format, now)
		metrics.SetRelayActive(m.active.Add(1))
		logger.Info().Int("sample_rate", m.relays[sid].Format.SampleRate).Msg("relay enabled")
		return true
	case ok:
		delete(m.relays, sid)
		metrics.SetRelayActive(m.active.Add(-1))
		logger.Info().Int64("packets", r.Packets).Msg("relay disabled")
		return true
	}
	return false
}

// Release frees relay state of a disconnected connection.
func (m *RelayManager) Release(sid domain.SessionID) {
	m.SetRelayEnabled(sid, false, Format{}, time.Time{})
}

func (m *RelayManager) Enabled(sid domain.SessionID) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.relays[sid]
	return ok
}

func (m *RelayManager) Format(sid domain.SessionID) (Format, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.relays[sid]
	if !ok {
		return Format{}, false
	}
	return r.Format, true
}

// Forward sends frame from sender to every relay-enabled recipient other
// than the sender. Counters move once per accepted frame regardless of the
// number of recipients. Frames from a sender without relay are dropped.
func (m *RelayManager) Forward(from Sender, recipients []domain.SessionID, frame []byte, at time.Time, sink Sink) ForwardResult {
	var res ForwardResult

	m.mu.Lock()
	src, ok := m.relays[from.ID]
	if !ok {
		m.mu.Unlock()
		return res
	}
	src.Packets++
	src.Bytes += int64(len(frame))
	format := src.Format
	targets := make([]domain.SessionID, 0, len(recipients))
	for _, sid := range recipients {
		if sid == from.ID {
			continue
		}
		if _, ok := m.relays[sid]; ok {
			targets = append(targets, sid)
		}
	}
	m.mu.Unlock()

	m.packets.Add(1)
	m.bytes.Add(int64(len(frame)))
	metrics.AddRelayed(len(frame))

	if len(targets) == 0 {
		return res
	}
	encoded, err := core.NewEvent(core.EventRelayedAudio, RelayedAudio{
		From:       from.ID,
		FromName:   from.Name,
		Timestamp:  at.UnixMilli(),
		SampleRate: format.SampleRate,
		Channels:   format.Channels,
		Frame:      frame,
	}).Encode()
	if err != nil {
		log.Error().Err(err).Str("module", "sfu").Msg("encode relayed audio")
		return res
	}
	for _, dst := range targets {
		switch err := sink.SendFrame(dst, encoded); {
		case err == nil:
			res.Delivered = append(res.Delivered, dst)
		case errors.Is(err, core.ErrBackpressure):
			res.Slow = append(res.Slow, dst)
		default:
			log.Debug().Err(err).Str("module", "sfu").Str("dst_sid", string(dst)).Msg("relay write failed")
		}
	}
	return res
}

func (m *RelayManager) Stats() Stats {
	return Stats{
		BytesRelayed:   m.bytes.Load(),
		PacketsRelayed: m.packets.Load(),
		ActiveRelays:   m.active.Load(),
	}
}
