package orch

import (
	"context"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/voicerooms/internal/core"
	"github.com/dkeye/voicerooms/internal/domain"
	"github.com/dkeye/voicerooms/internal/metrics"
)

type ConnectRequest struct {
	SID         domain.SessionID
	Identity    *domain.Identity
	DisplayName string
	Conn        core.SignalConnection
}

// Welcome is the first event every connection receives.
type Welcome struct {
	ConnectionID  domain.SessionID   `json:"connectionId"`
	Authenticated bool               `json:"authenticated"`
	Handle        string             `json:"handle,omitempty"`
	DisplayName   string             `json:"displayName"`
	ICEServers    []webrtc.ICEServer `json:"iceServers"`
}

type WhoAmI struct {
	ConnectionID  domain.SessionID `json:"connectionId"`
	DisplayName   string           `json:"displayName"`
	Authenticated bool             `json:"authenticated"`
	Handle        string           `json:"handle,omitempty"`
	RoomID        domain.RoomID    `json:"roomId,omitempty"`
	RoomName      string           `json:"roomName,omitempty"`
}

// Connect binds a new transport and sends welcome followed by the room list.
func (o *Orchestrator) Connect(ctx context.Context, req ConnectRequest) (Welcome, error) {
	var w Welcome
	err := o.do(ctx, func() error {
		name := req.DisplayName
		if req.Identity != nil && req.Identity.DisplayName != "" {
			name = req.Identity.DisplayName
		}
		if n, err := domain.NormalizeDisplayName(name); err == nil {
			name = n
		} else {
			name = domain.DefaultGuestName
		}
		sess, replaced := o.Registry.Bind(&domain.Session{
			ID:          req.SID,
			DisplayName: name,
			Auth:        req.Identity,
			JoinedAt:    o.clock.Now(),
		}, req.Conn)
		if !replaced {
			metrics.IncWSConnections()
		}

		w = Welcome{
			ConnectionID:  sess.ID,
			Authenticated: sess.Authenticated(),
			Handle:        sess.Handle(),
			DisplayName:   sess.DisplayName,
			ICEServers:    o.cfg.ICEServers,
		}
		if w.ICEServers == nil {
			w.ICEServers = []webrtc.ICEServer{}
		}
		_ = o.Registry.Send(sess.ID, core.NewEvent(core.EventWelcome, w))
		o.Presence.SendRoomList(sess.ID)
		return nil
	})
	return w, err
}

// Disconnect releases everything held by sid. It is a no-op when conn is no
// longer the transport bound to sid, so a replaced connection cannot tear
// down its successor.
func (o *Orchestrator) Disconnect(ctx context.Context, sid domain.SessionID, conn core.SignalConnection) error {
	return o.do(ctx, func() error {
		bound, ok := o.Registry.Conn(sid)
		if !ok || (conn != nil && bound != conn) {
			return nil
		}
		o.leaveCurrent(sid)
		o.Relays.Release(sid)
		o.limiter.Forget(sid)
		o.Registry.Unbind(sid)
		metrics.DecWSConnections()
		log.Info().Str("module", "orch").Str("sid", string(sid)).Msg("disconnected")
		return nil
	})
}

func (o *Orchestrator) Rename(ctx context.Context, sid domain.SessionID, name string) (string, error) {
	var out string
	err := o.do(ctx, func() error {
		n, err := o.Registry.Rename(sid, name)
		if err != nil {
			return err
		}
		out = n
		if roomID, ok := o.Registry.RoomOf(sid); ok {
			if room, ok := o.Rooms.Get(roomID); ok {
				if m, ok := room.Member(sid); ok {
					m.DisplayName = n
					o.Presence.ToRoom(roomID, core.NewEvent(core.EventMemberUpdated, memberEvent(roomID, m)), "")
				}
			}
		}
		_ = o.Registry.Send(sid, core.NewEvent(core.EventWhoAmI, o.whoami(sid)))
		return nil
	})
	return out, err
}

func (o *Orchestrator) WhoAmI(ctx context.Context, sid domain.SessionID) (WhoAmI, error) {
	var w WhoAmI
	err := o.do(ctx, func() error {
		if _, ok := o.Registry.Get(sid); !ok {
			return domain.ErrConnectionNotFound
		}
		w = o.whoami(sid)
		_ = o.Registry.Send(sid, core.NewEvent(core.EventWhoAmI, w))
		return nil
	})
	return w, err
}

func (o *Orchestrator) whoami(sid domain.SessionID) WhoAmI {
	sess, ok := o.Registry.Get(sid)
	if !ok {
		return WhoAmI{ConnectionID: sid}
	}
	w := WhoAmI{
		ConnectionID:  sid,
		DisplayName:   sess.DisplayName,
		Authenticated: sess.Authenticated(),
		Handle:        sess.Handle(),
	}
	if room, ok := o.Rooms.Get(sess.RoomID); ok {
		w.RoomID = room.ID
		w.RoomName = room.Name
	}
	return w
}

// Ping answers with pong without touching state.
func (o *Orchestrator) Ping(conn core.SignalConnection) {
	if f, err := core.NewEvent(core.EventPong, nil).Encode(); err == nil {
		_ = conn.TrySend(f)
	}
}
