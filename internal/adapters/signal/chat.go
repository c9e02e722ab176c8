package signal

import (
	"context"
	"encoding/json"

	"github.com/dkeye/voicerooms/internal/app/orch"
	"github.com/dkeye/voicerooms/internal/core"
	"github.com/dkeye/voicerooms/internal/domain"
)

func (ctl *SignalWSController) handleChat(ctx context.Context, sid domain.SessionID, _ core.SignalConnection, data json.RawMessage) error {
	var req orch.ChatRequest
	if err := decode(data, &req); err != nil {
		return err
	}
	_, err := ctl.Orch.ChatMessage(ctx, sid, req)
	return err
}

func (ctl *SignalWSController) handleDirect(ctx context.Context, sid domain.SessionID, _ core.SignalConnection, data json.RawMessage) error {
	var req orch.ChatRequest
	if err := decode(data, &req); err != nil {
		return err
	}
	if req.Target == "" {
		return domain.ErrBadPayload
	}
	_, err := ctl.Orch.DirectMessage(ctx, sid, req)
	return err
}

func (ctl *SignalWSController) handleReaction(ctx context.Context, sid domain.SessionID, _ core.SignalConnection, data json.RawMessage) error {
	var req orch.ReactRequest
	if err := decode(data, &req); err != nil {
		return err
	}
	if req.MessageID == "" {
		return domain.ErrBadPayload
	}
	return ctl.Orch.React(ctx, sid, req)
}

func (ctl *SignalWSController) handleRoomHistory(ctx context.Context, sid domain.SessionID, _ core.SignalConnection, data json.RawMessage) error {
	var req orch.HistoryRequest
	if err := decode(data, &req); err != nil {
		return err
	}
	_, err := ctl.Orch.RoomMessages(ctx, sid, req)
	return err
}

func (ctl *SignalWSController) handleDirectHistory(ctx context.Context, sid domain.SessionID, _ core.SignalConnection, data json.RawMessage) error {
	var req orch.HistoryRequest
	if err := decode(data, &req); err != nil {
		return err
	}
	_, err := ctl.Orch.DirectMessages(ctx, sid, req)
	return err
}
