package signal

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/voicerooms/internal/core"
	"github.com/dkeye/voicerooms/internal/domain"
)

const writeWait = 5 * time.Second

func (ctl *SignalWSController) writePump(ctx context.Context, sid domain.SessionID, c *wsSignalConn) {
	ticker := time.NewTicker(ctl.opts.PingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("writePump ctx done")
			return
		case data, ok := <-c.send:
			if !ok {
				log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("writePump write error")
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				log.Debug().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("writePump ping failed")
				return
			}
		}
	}
}

func (ctl *SignalWSController) readPump(ctx context.Context, sid domain.SessionID, c *wsSignalConn) {
	defer func() {
		log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("readPump closing")
		if err := ctl.Orch.Disconnect(context.Background(), sid, c); err != nil {
			log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("disconnect")
		}
		c.Close()
	}()

	pongWait := ctl.opts.PingPeriod * 10 / 9
	c.conn.SetReadLimit(ctl.opts.ReadLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("readPump ctx done")
			return
		default:
		}
		kind, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Error().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("readPump read error")
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		if kind == websocket.BinaryMessage {
			ctl.Orch.AudioFrame(sid, data)
			continue
		}
		ctl.handleSignal(ctx, sid, c, data)
	}
}

// inbound is the envelope of every client message.
type inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type handlerFunc func(ctx context.Context, sid domain.SessionID, c core.SignalConnection, data json.RawMessage) error

func (ctl *SignalWSController) handleSignal(ctx context.Context, sid domain.SessionID, c core.SignalConnection, raw []byte) {
	var env inbound
	if err := json.Unmarshal(raw, &env); err != nil || env.Type == "" {
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("bad json")
		ctl.sendError(c, "", domain.ErrBadPayload)
		return
	}
	h, ok := ctl.handlers[env.Type]
	if !ok {
		log.Warn().Str("module", "signal").Str("type", env.Type).Msg("unknown signal")
		ctl.sendError(c, env.Type, domain.ErrBadPayload)
		return
	}
	if err := h(ctx, sid, c, env.Data); err != nil {
		log.Debug().Err(err).Str("module", "signal").Str("sid", string(sid)).Str("type", env.Type).Msg("request rejected")
		ctl.sendError(c, env.Type, err)
	}
}

// decode unmarshals an optional payload; an absent payload leaves v zero.
func decode(data json.RawMessage, v any) error {
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return domain.ErrBadPayload
	}
	return nil
}

// ErrorPayload is the data of an error event.
type ErrorPayload struct {
	Kind    domain.ErrorKind `json:"kind"`
	Code    string           `json:"code"`
	Message string           `json:"message"`
	Request string           `json:"request,omitempty"`
}

func (ctl *SignalWSController) sendError(c core.SignalConnection, request string, err error) {
	de := domain.AsError(err)
	ctl.sendJSON(c, core.NewEvent(core.EventError, ErrorPayload{
		Kind:    de.Kind,
		Code:    de.Code,
		Message: de.Message,
		Request: request,
	}))
}

func (ctl *SignalWSController) sendJSON(c core.SignalConnection, ev core.Event) {
	f, err := ev.Encode()
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("sendJSON marshal")
		return
	}
	_ = c.TrySend(f)
}
