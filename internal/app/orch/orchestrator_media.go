package orch

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/voicerooms/internal/app"
	"github.com/dkeye/voicerooms/internal/app/sfu"
	"github.com/dkeye/voicerooms/internal/core"
	"github.com/dkeye/voicerooms/internal/domain"
)

// Signal forwards an opaque WebRTC payload. Unknown targets are dropped
// without an error.
func (o *Orchestrator) Signal(ctx context.Context, kind app.SignalKind, from, to domain.SessionID, payload json.RawMessage) error {
	return o.do(ctx, func() error {
		if _, err := o.session(from); err != nil {
			return err
		}
		o.Signaling.Forward(kind, from, to, payload)
		return nil
	})
}

// RelayState is the payload of audio-relay-state.
type RelayState struct {
	Enabled      bool  `json:"enabled"`
	SampleRate   int   `json:"sampleRate,omitempty"`
	Channels     int   `json:"channels,omitempty"`
	ActiveRelays int64 `json:"activeRelays"`
}

func (o *Orchestrator) SetAudioRelay(ctx context.Context, sid domain.SessionID, enabled bool, format sfu.Format) (RelayState, error) {
	var st RelayState
	err := o.do(ctx, func() error {
		if _, err := o.session(sid); err != nil {
			return err
		}
		o.Relays.SetRelayEnabled(sid, enabled, format, o.clock.Now())
		st = RelayState{Enabled: enabled, ActiveRelays: o.Relays.Stats().ActiveRelays}
		if f, ok := o.Relays.Format(sid); ok {
			st.SampleRate = f.SampleRate
			st.Channels = f.Channels
		}
		_ = o.Registry.Send(sid, core.NewEvent(core.EventRelayState, st))
		return nil
	})
	return st, err
}

// AudioFrame queues an inbound frame for fan-out. Frames are lossy: when
// the loop is saturated the frame is dropped.
func (o *Orchestrator) AudioFrame(sid domain.SessionID, frame []byte) {
	if !o.tryPost(func() { o.relayFrame(sid, frame) }) {
		log.Debug().Str("module", "orch").Str("sid", string(sid)).Msg("audio frame dropped on full queue")
	}
}

func (o *Orchestrator) relayFrame(sid domain.SessionID, frame []byte) {
	roomID, ok := o.Registry.RoomOf(sid)
	if !ok {
		return
	}
	room, ok := o.Rooms.Get(roomID)
	if !ok {
		return
	}
	sess, _ := o.Registry.Get(sid)
	res := o.Relays.Forward(sfu.Sender{ID: sid, Name: sess.DisplayName}, o.Presence.MemberIDs(roomID), frame, o.clock.Now(), o.Registry)
	for _, slow := range res.Slow {
		m, ok := room.Member(slow)
		if !ok {
			continue
		}
		switch o.Policy.OnBackPressure(room, m) {
		case app.KickMember:
			log.Warn().Str("module", "orch").Str("sid", string(slow)).Str("room_id", string(roomID)).Msg("kicking slow consumer")
			o.Registry.Close(slow)
		case app.DropFrame, app.NoAction:
		}
	}
}

// AudioSettingsPatch updates the caller's member record; nil fields stay.
type AudioSettingsPatch struct {
	Muted           *bool                   `json:"muted,omitempty"`
	Volume          *float64                `json:"volume,omitempty"`
	SpatialPosition *domain.SpatialPosition `json:"spatialPosition,omitempty"`
	OutputDevice    *string                 `json:"outputDevice,omitempty"`
}

func (o *Orchestrator) UpdateAudioSettings(ctx context.Context, sid domain.SessionID, patch AudioSettingsPatch) (domain.Member, error) {
	var out domain.Member
	err := o.do(ctx, func() error {
		roomID, ok := o.Registry.RoomOf(sid)
		if !ok {
			return domain.ErrNotInRoom
		}
		room, ok := o.Rooms.Get(roomID)
		if !ok {
			return domain.ErrRoomNotFound
		}
		m, ok := room.Member(sid)
		if !ok {
			return domain.ErrNotInRoom
		}
		if patch.Volume != nil && (*patch.Volume < 0 || *patch.Volume > 2) {
			return domain.ErrBadPayload
		}
		if patch.Muted != nil {
			m.Audio.Muted = *patch.Muted
		}
		if patch.Volume != nil {
			m.Audio.Volume = *patch.Volume
		}
		if patch.SpatialPosition != nil {
			m.Audio.SpatialPosition = *patch.SpatialPosition
		}
		if patch.OutputDevice != nil {
			m.Audio.OutputDevice = *patch.OutputDevice
		}
		out = *m
		o.Presence.ToRoom(roomID, core.NewEvent(core.EventMemberUpdated, memberEvent(roomID, m)), "")
		return nil
	})
	return out, err
}

// RelayStats reads the relay counters without going through the loop.
func (o *Orchestrator) RelayStats() sfu.Stats {
	return o.Relays.Stats()
}
