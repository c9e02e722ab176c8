package signal

import (
	"context"
	"encoding/json"

	"github.com/dkeye/voicerooms/internal/app"
	"github.com/dkeye/voicerooms/internal/app/orch"
	"github.com/dkeye/voicerooms/internal/app/sfu"
	"github.com/dkeye/voicerooms/internal/core"
	"github.com/dkeye/voicerooms/internal/domain"
)

type signalPayload struct {
	Target  domain.SessionID `json:"targetConnectionId"`
	Payload json.RawMessage  `json:"payload"`
}

// forward relays offer, answer and ICE payloads without inspecting them.
func (ctl *SignalWSController) forward(kind app.SignalKind) handlerFunc {
	return func(ctx context.Context, sid domain.SessionID, _ core.SignalConnection, data json.RawMessage) error {
		var p signalPayload
		if err := decode(data, &p); err != nil {
			return err
		}
		if p.Target == "" || len(p.Payload) == 0 {
			return domain.ErrBadPayload
		}
		return ctl.Orch.Signal(ctx, kind, sid, p.Target, p.Payload)
	}
}

type relayPayload struct {
	Enabled    bool `json:"enabled"`
	SampleRate int  `json:"sampleRate,omitempty"`
	Channels   int  `json:"channels,omitempty"`
}

func (ctl *SignalWSController) handleEnableRelay(ctx context.Context, sid domain.SessionID, _ core.SignalConnection, data json.RawMessage) error {
	var p relayPayload
	if err := decode(data, &p); err != nil {
		return err
	}
	_, err := ctl.Orch.SetAudioRelay(ctx, sid, p.Enabled, sfu.Format{SampleRate: p.SampleRate, Channels: p.Channels})
	return err
}

// audio-data carries a base64 frame; []byte decodes it.
func (ctl *SignalWSController) handleAudioData(_ context.Context, sid domain.SessionID, _ core.SignalConnection, data json.RawMessage) error {
	var p struct {
		Frame []byte `json:"frame"`
	}
	if err := decode(data, &p); err != nil {
		return err
	}
	if len(p.Frame) == 0 {
		return nil
	}
	ctl.Orch.AudioFrame(sid, p.Frame)
	return nil
}

func (ctl *SignalWSController) handleAudioSettings(ctx context.Context, sid domain.SessionID, _ core.SignalConnection, data json.RawMessage) error {
	var p orch.AudioSettingsPatch
	if err := decode(data, &p); err != nil {
		return err
	}
	_, err := ctl.Orch.UpdateAudioSettings(ctx, sid, p)
	return err
}
