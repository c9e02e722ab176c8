package orch

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/voicerooms/internal/domain"
	"github.com/dkeye/voicerooms/internal/metrics"
	"github.com/dkeye/voicerooms/internal/snapshot"
)

// Snapshot copies rooms (without members) and message logs.
func (o *Orchestrator) Snapshot(ctx context.Context) (*snapshot.State, error) {
	var st *snapshot.State
	err := o.do(ctx, func() error {
		st = &snapshot.State{SavedAt: o.clock.Now(), Conversations: o.Messages.Snapshot()}
		for _, r := range o.Rooms.All() {
			c := *r
			c.Members = nil
			if r.AutoLock != nil {
				al := *r.AutoLock
				c.AutoLock = &al
			}
			if len(r.Members) > 0 {
				c.EmptySince = st.SavedAt
			}
			st.Rooms = append(st.Rooms, c)
		}
		return nil
	})
	return st, err
}

// Restore loads a snapshot into empty stores. Rooms already past their
// deadline are dropped by the next sweep.
func (o *Orchestrator) Restore(ctx context.Context, st *snapshot.State) error {
	if st == nil {
		return nil
	}
	return o.do(ctx, func() error {
		for i := range st.Rooms {
			r := st.Rooms[i]
			o.Rooms.Restore(&r)
		}
		o.Messages.Restore(st.Conversations)
		metrics.SetRooms(o.Rooms.Count())
		log.Info().Str("module", "orch").Int("rooms", len(st.Rooms)).
			Int("conversations", len(st.Conversations)).Msg("restored snapshot")
		return nil
	})
}

// Room returns a copy of the room for inspection.
func (o *Orchestrator) Room(ctx context.Context, id domain.RoomID) (domain.Room, bool) {
	var out domain.Room
	var found bool
	_ = o.do(ctx, func() error {
		r, ok := o.Rooms.Get(id)
		if !ok {
			return nil
		}
		out = *r
		out.Members = make([]*domain.Member, 0, len(r.Members))
		for _, m := range r.Members {
			mc := *m
			out.Members = append(out.Members, &mc)
		}
		found = true
		return nil
	})
	return out, found
}
