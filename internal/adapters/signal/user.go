package signal

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/voicerooms/internal/core"
	"github.com/dkeye/voicerooms/internal/domain"
)

func (ctl *SignalWSController) handleRename(ctx context.Context, sid domain.SessionID, _ core.SignalConnection, data json.RawMessage) error {
	var p struct {
		DisplayName string `json:"displayName"`
	}
	if err := decode(data, &p); err != nil {
		return err
	}
	name, err := ctl.Orch.Rename(ctx, sid, p.DisplayName)
	if err != nil {
		return err
	}
	log.Info().Str("module", "signal").Str("sid", string(sid)).Str("name", name).Msg("rename")
	return nil
}

func (ctl *SignalWSController) handleWhoAmI(ctx context.Context, sid domain.SessionID, _ core.SignalConnection, _ json.RawMessage) error {
	_, err := ctl.Orch.WhoAmI(ctx, sid)
	return err
}
