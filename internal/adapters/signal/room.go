package signal

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/voicerooms/internal/app"
	"github.com/dkeye/voicerooms/internal/app/orch"
	"github.com/dkeye/voicerooms/internal/core"
	"github.com/dkeye/voicerooms/internal/domain"
)

func (ctl *SignalWSController) handleCreateRoom(ctx context.Context, sid domain.SessionID, _ core.SignalConnection, data json.RawMessage) error {
	var req app.CreateRequest
	if err := decode(data, &req); err != nil {
		return err
	}
	view, err := ctl.Orch.CreateRoom(ctx, sid, req)
	if err != nil {
		return err
	}
	log.Info().Str("module", "signal").Str("sid", string(sid)).Str("room_id", string(view.ID)).Msg("room created")
	return nil
}

func (ctl *SignalWSController) handleJoin(ctx context.Context, sid domain.SessionID, _ core.SignalConnection, data json.RawMessage) error {
	var req orch.JoinRequest
	if err := decode(data, &req); err != nil {
		return err
	}
	if req.RoomID == "" {
		return domain.ErrBadPayload
	}
	_, err := ctl.Orch.JoinRoom(ctx, sid, req)
	return err
}

func (ctl *SignalWSController) handleLeave(ctx context.Context, sid domain.SessionID, _ core.SignalConnection, _ json.RawMessage) error {
	return ctl.Orch.LeaveRoom(ctx, sid)
}

type roomRef struct {
	RoomID domain.RoomID `json:"roomId"`
	Reason string        `json:"reason,omitempty"`
}

func decodeRef(data json.RawMessage) (roomRef, error) {
	var ref roomRef
	if err := decode(data, &ref); err != nil {
		return ref, err
	}
	if ref.RoomID == "" {
		return ref, domain.ErrBadPayload
	}
	return ref, nil
}

func (ctl *SignalWSController) handleLock(ctx context.Context, sid domain.SessionID, _ core.SignalConnection, data json.RawMessage) error {
	ref, err := decodeRef(data)
	if err != nil {
		return err
	}
	_, err = ctl.Orch.LockRoom(ctx, sid, ref.RoomID, ref.Reason)
	return err
}

func (ctl *SignalWSController) handleUnlock(ctx context.Context, sid domain.SessionID, _ core.SignalConnection, data json.RawMessage) error {
	ref, err := decodeRef(data)
	if err != nil {
		return err
	}
	_, err = ctl.Orch.UnlockRoom(ctx, sid, ref.RoomID)
	return err
}

func (ctl *SignalWSController) handleDelete(ctx context.Context, sid domain.SessionID, _ core.SignalConnection, data json.RawMessage) error {
	ref, err := decodeRef(data)
	if err != nil {
		return err
	}
	return ctl.Orch.DeleteRoom(ctx, sid, ref.RoomID)
}

type updatePayload struct {
	RoomID      domain.RoomID    `json:"roomId"`
	Name        *string          `json:"name,omitempty"`
	Description *string          `json:"description,omitempty"`
	MaxUsers    *int             `json:"maxUsers,omitempty"`
	AutoLock    *domain.AutoLock `json:"autoLock,omitempty"`
}

func (ctl *SignalWSController) handleUpdate(ctx context.Context, sid domain.SessionID, _ core.SignalConnection, data json.RawMessage) error {
	var p updatePayload
	if err := decode(data, &p); err != nil {
		return err
	}
	if p.RoomID == "" {
		return domain.ErrBadPayload
	}
	_, err := ctl.Orch.UpdateRoom(ctx, sid, p.RoomID, app.RoomPatch{
		Name:        p.Name,
		Description: p.Description,
		MaxUsers:    p.MaxUsers,
		AutoLock:    p.AutoLock,
	})
	return err
}
