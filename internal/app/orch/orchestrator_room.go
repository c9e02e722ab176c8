package orch

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/voicerooms/internal/app"
	"github.com/dkeye/voicerooms/internal/core"
	"github.com/dkeye/voicerooms/internal/domain"
	"github.com/dkeye/voicerooms/internal/metrics"
)

type JoinRequest struct {
	RoomID      domain.RoomID `json:"roomId"`
	DisplayName string        `json:"displayName,omitempty"`
	Password    string        `json:"password,omitempty"`
}

// Joined is the payload of room-joined.
type Joined struct {
	Room   domain.RoomView `json:"room"`
	Member domain.Member   `json:"member"`
}

// MemberEvent is the payload of user-joined, user-left and member-updated.
type MemberEvent struct {
	RoomID domain.RoomID `json:"roomId"`
	Member domain.Member `json:"member"`
}

func memberEvent(id domain.RoomID, m *domain.Member) MemberEvent {
	return MemberEvent{RoomID: id, Member: *m}
}

type RoomLeft struct {
	RoomID domain.RoomID `json:"roomId"`
}

func (o *Orchestrator) session(sid domain.SessionID) (*domain.Session, error) {
	sess, ok := o.Registry.Get(sid)
	if !ok {
		return nil, domain.ErrConnectionNotFound
	}
	return sess, nil
}

// CreateRoom applies the caller's creation limits and creates a room. The
// creator is not joined automatically.
func (o *Orchestrator) CreateRoom(ctx context.Context, sid domain.SessionID, req app.CreateRequest) (domain.RoomView, error) {
	var view domain.RoomView
	err := o.do(ctx, func() error {
		sess, err := o.session(sid)
		if err != nil {
			return err
		}
		if !o.limiter.Allow(sid) {
			return domain.ErrRateLimited
		}
		room, err := o.Rooms.Create(o.cfg.Limits.Apply(sess, req))
		if err != nil {
			return err
		}
		view = room.View()
		_ = o.Registry.Send(sid, core.NewEvent(core.EventRoomCreated, view))
		o.notify(core.FederationCreated, room)
		metrics.SetRooms(o.Rooms.Count())
		o.Presence.BroadcastRoomList()
		return nil
	})
	return view, err
}

// CreateKeepRoom creates a room exempt from sweeps, used for configured
// default rooms.
func (o *Orchestrator) CreateKeepRoom(ctx context.Context, spec app.RoomSpec) (domain.RoomView, error) {
	var view domain.RoomView
	err := o.do(ctx, func() error {
		spec.Keep = true
		room, err := o.Rooms.Create(spec)
		if err != nil {
			return err
		}
		view = room.View()
		o.notify(core.FederationCreated, room)
		metrics.SetRooms(o.Rooms.Count())
		return nil
	})
	return view, err
}

// JoinRoom checks lock, password and capacity in that order. Joining the
// room the connection is already in succeeds without changes; joining a
// different room first leaves the current one.
func (o *Orchestrator) JoinRoom(ctx context.Context, sid domain.SessionID, req JoinRequest) (Joined, error) {
	var res Joined
	err := o.do(ctx, func() error {
		sess, err := o.session(sid)
		if err != nil {
			return err
		}
		room, ok := o.Rooms.Get(req.RoomID)
		if !ok {
			return domain.ErrRoomNotFound
		}
		if m, ok := room.Member(sid); ok {
			res = Joined{Room: room.View(), Member: *m}
			_ = o.Registry.Send(sid, core.NewEvent(core.EventRoomJoined, res))
			return nil
		}
		if room.Locked {
			return domain.ErrRoomLocked
		}
		if !o.Rooms.CheckPassword(room, req.Password) {
			return domain.ErrInvalidPassword
		}
		if room.IsFull() {
			return domain.ErrRoomFull
		}
		if req.DisplayName != "" {
			if _, err := o.Registry.Rename(sid, req.DisplayName); err != nil {
				return err
			}
		}

		o.leaveCurrent(sid)

		member := domain.NewMember(sess, o.clock.Now())
		if _, err := o.Rooms.AddMember(room.ID, member); err != nil {
			return err
		}
		o.Registry.SetRoom(sid, room.ID)
		o.Rooms.CheckAutoLock(room.ID)

		res = Joined{Room: room.View(), Member: *member}
		_ = o.Registry.Send(sid, core.NewEvent(core.EventRoomJoined, res))
		o.Presence.ToRoom(room.ID, core.NewEvent(core.EventUserJoined, memberEvent(room.ID, member)), sid)
		metrics.IncRoomEvent("joined")
		o.Presence.BroadcastRoomList()
		log.Info().Str("module", "orch").Str("sid", string(sid)).Str("room_id", string(room.ID)).
			Int("members", room.MemberCount()).Msg("joined room")
		return nil
	})
	return res, err
}

func (o *Orchestrator) LeaveRoom(ctx context.Context, sid domain.SessionID) error {
	return o.do(ctx, func() error {
		if _, err := o.session(sid); err != nil {
			return err
		}
		if _, ok := o.leaveCurrent(sid); !ok {
			return domain.ErrNotInRoom
		}
		return nil
	})
}

// leaveCurrent removes sid from its room, tells the remaining members,
// applies host-leave auto-lock and the empty-room policy. Safe to call for a
// connection that is in no room.
func (o *Orchestrator) leaveCurrent(sid domain.SessionID) (domain.RoomID, bool) {
	roomID, ok := o.Registry.RoomOf(sid)
	if !ok {
		return "", false
	}
	o.Registry.ClearRoom(sid)
	member, ok := o.Rooms.RemoveMember(roomID, sid)
	if !ok {
		return roomID, false
	}
	_ = o.Registry.Send(sid, core.NewEvent(core.EventRoomLeft, RoomLeft{RoomID: roomID}))
	o.Presence.ToRoom(roomID, core.NewEvent(core.EventUserLeft, memberEvent(roomID, member)), "")
	metrics.IncRoomEvent("left")
	log.Info().Str("module", "orch").Str("sid", string(sid)).Str("room_id", string(roomID)).Msg("left room")

	o.Rooms.HandleHostLeave(roomID, member.Handle)
	o.Rooms.CheckAutoLock(roomID)
	o.Rooms.MarkIfEmpty(roomID)
	o.Presence.BroadcastRoomList()
	return roomID, true
}

// requireCreator allows room management only to the authenticated creator.
func (o *Orchestrator) requireCreator(sid domain.SessionID, id domain.RoomID) (*domain.Room, *domain.Session, error) {
	sess, err := o.session(sid)
	if err != nil {
		return nil, nil, err
	}
	room, ok := o.Rooms.Get(id)
	if !ok {
		return nil, nil, domain.ErrRoomNotFound
	}
	if room.CreatorHandle == "" || sess.Handle() != room.CreatorHandle {
		return nil, nil, domain.ErrForbidden
	}
	return room, sess, nil
}

func (o *Orchestrator) LockRoom(ctx context.Context, sid domain.SessionID, id domain.RoomID, reason string) (domain.RoomView, error) {
	var view domain.RoomView
	err := o.do(ctx, func() error {
		_, sess, err := o.requireCreator(sid, id)
		if err != nil {
			return err
		}
		room, err := o.Rooms.Lock(id, sess.Handle(), reason)
		if err != nil {
			return err
		}
		view = room.View()
		return nil
	})
	return view, err
}

func (o *Orchestrator) UnlockRoom(ctx context.Context, sid domain.SessionID, id domain.RoomID) (domain.RoomView, error) {
	var view domain.RoomView
	err := o.do(ctx, func() error {
		_, sess, err := o.requireCreator(sid, id)
		if err != nil {
			return err
		}
		room, err := o.Rooms.Unlock(id, sess.Handle())
		if err != nil {
			return err
		}
		view = room.View()
		return nil
	})
	return view, err
}

func (o *Orchestrator) UpdateRoom(ctx context.Context, sid domain.SessionID, id domain.RoomID, patch app.RoomPatch) (domain.RoomView, error) {
	var view domain.RoomView
	err := o.do(ctx, func() error {
		if _, _, err := o.requireCreator(sid, id); err != nil {
			return err
		}
		room, err := o.Rooms.Update(id, patch)
		if err != nil {
			return err
		}
		o.Rooms.CheckAutoLock(id)
		view = room.View()
		o.Presence.ToRoom(id, core.NewEvent(core.EventRoomUpdated, view), "")
		o.notify(core.FederationUpdated, room)
		o.Presence.BroadcastRoomList()
		return nil
	})
	return view, err
}

func (o *Orchestrator) DeleteRoom(ctx context.Context, sid domain.SessionID, id domain.RoomID) error {
	return o.do(ctx, func() error {
		if _, _, err := o.requireCreator(sid, id); err != nil {
			return err
		}
		o.Rooms.Delete(id, app.DeleteExplicit)
		return nil
	})
}

// AdminLock locks on behalf of an operator.
func (o *Orchestrator) AdminLock(ctx context.Context, id domain.RoomID, by, reason string) (domain.RoomView, error) {
	var view domain.RoomView
	err := o.do(ctx, func() error {
		room, err := o.Rooms.Lock(id, by, reason)
		if err != nil {
			return err
		}
		view = room.View()
		return nil
	})
	return view, err
}

func (o *Orchestrator) AdminUnlock(ctx context.Context, id domain.RoomID, by string) (domain.RoomView, error) {
	var view domain.RoomView
	err := o.do(ctx, func() error {
		room, err := o.Rooms.Unlock(id, by)
		if err != nil {
			return err
		}
		view = room.View()
		return nil
	})
	return view, err
}

func (o *Orchestrator) AdminDelete(ctx context.Context, id domain.RoomID) error {
	return o.do(ctx, func() error {
		if _, ok := o.Rooms.Delete(id, app.DeleteExplicit); !ok {
			return domain.ErrRoomNotFound
		}
		return nil
	})
}

// RoomStatus returns the detailed view of a local room.
func (o *Orchestrator) RoomStatus(ctx context.Context, id domain.RoomID) (domain.RoomView, error) {
	var view domain.RoomView
	err := o.do(ctx, func() error {
		room, ok := o.Rooms.Get(id)
		if !ok {
			return domain.ErrRoomNotFound
		}
		view = room.View()
		return nil
	})
	return view, err
}

// RoomList returns listed local rooms plus cached external rooms.
func (o *Orchestrator) RoomList(ctx context.Context) (app.RoomList, error) {
	var l app.RoomList
	err := o.do(ctx, func() error {
		l = o.Presence.RoomList()
		return nil
	})
	return l, err
}

// ListedRooms returns only local listed rooms, as served to federation peers.
func (o *Orchestrator) ListedRooms(ctx context.Context) ([]domain.RoomSummary, error) {
	var out []domain.RoomSummary
	err := o.do(ctx, func() error {
		out = o.Presence.Listed()
		return nil
	})
	return out, err
}

func (o *Orchestrator) SendRoomList(ctx context.Context, sid domain.SessionID) error {
	return o.do(ctx, func() error {
		if _, err := o.session(sid); err != nil {
			return err
		}
		o.Presence.SendRoomList(sid)
		return nil
	})
}
