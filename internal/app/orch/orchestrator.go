// Package orch serializes every state-mutating operation through one loop.
//
// Rooms, sessions and message logs are plain maps owned by the loop; inbound
// socket events, HTTP admin calls and timer fires all become commands
// executed one at a time by Run.
package orch

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/voicerooms/internal/app"
	"github.com/dkeye/voicerooms/internal/app/sfu"
	"github.com/dkeye/voicerooms/internal/core"
	"github.com/dkeye/voicerooms/internal/domain"
	"github.com/dkeye/voicerooms/internal/metrics"
)

type Config struct {
	Rooms    app.RoomConfig
	Messages app.MessageConfig
	Limits   app.CreateLimits

	CreateLimit  int
	CreateWindow time.Duration
	MaxTextLen   int

	RoomSweepInterval  time.Duration
	GuestSweepInterval time.Duration

	ICEServers []webrtc.ICEServer
	QueueSize  int
}

type Orchestrator struct {
	cfg   Config
	clock core.Clock

	Registry   *app.Registry
	Rooms      *app.RoomStore
	Messages   *app.MessageStore
	Presence   *app.Presence
	Signaling  *app.SignalingRelay
	Relays     *sfu.RelayManager
	Policy     app.Policy
	Federation core.FederationGateway

	limiter *app.RateLimiter

	cmds    chan func()
	stopped chan struct{}
	effects []func()
}

// New wires the stores. clock drives every timer; its callbacks are
// delivered through the loop, so Run must be started before timers fire.
func New(cfg Config, clock core.Clock, federation core.FederationGateway, policy app.Policy) *Orchestrator {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1024
	}
	if cfg.MaxTextLen <= 0 {
		cfg.MaxTextLen = 2000
	}
	if policy == nil {
		policy = app.SimplePolicy{Action: app.DropFrame}
	}
	o := &Orchestrator{
		cfg:        cfg,
		Registry:   app.NewRegistry(),
		Messages:   app.NewMessageStore(cfg.Messages),
		Relays:     sfu.NewRelayManager(),
		Policy:     policy,
		Federation: federation,
		cmds:       make(chan func(), cfg.QueueSize),
		stopped:    make(chan struct{}),
	}
	o.clock = loopClock{Clock: clock, o: o}
	o.Rooms = app.NewRoomStore(o.clock, cfg.Rooms, o)
	o.Presence = app.NewPresence(o.Rooms, o.Registry, federation)
	o.Signaling = app.NewSignalingRelay(o.Registry)
	o.limiter = app.NewRateLimiter(clock, cfg.CreateLimit, cfg.CreateWindow)
	return o
}

// loopClock delivers timer callbacks as loop commands.
type loopClock struct {
	core.Clock
	o *Orchestrator
}

func (c loopClock) AfterFunc(d time.Duration, f func()) core.Timer {
	return c.Clock.AfterFunc(d, func() { c.o.post(f) })
}

// Run executes commands until ctx is done. Commands issued afterwards fail
// with ErrShuttingDown.
func (o *Orchestrator) Run(ctx context.Context) {
	log.Info().Str("module", "orch").Msg("orchestrator loop started")
	o.every(o.cfg.RoomSweepInterval, o.sweepRooms)
	o.every(o.cfg.GuestSweepInterval, o.sweepMessages)
	defer close(o.stopped)
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "orch").Msg("orchestrator loop stopped")
			return
		case cmd := <-o.cmds:
			cmd()
		}
	}
}

// do runs fn on the loop and waits for its result.
func (o *Orchestrator) do(ctx context.Context, fn func() error) error {
	var err error
	done := make(chan struct{})
	cmd := func() {
		defer close(done)
		err = o.exec(fn)
	}
	select {
	case o.cmds <- cmd:
	case <-o.stopped:
		return domain.ErrShuttingDown
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return err
	case <-o.stopped:
		return domain.ErrShuttingDown
	}
}

// post enqueues fn without waiting for it.
func (o *Orchestrator) post(fn func()) {
	cmd := func() { _ = o.exec(func() error { fn(); return nil }) }
	select {
	case o.cmds <- cmd:
	case <-o.stopped:
	}
}

// tryPost enqueues fn unless the queue is full.
func (o *Orchestrator) tryPost(fn func()) bool {
	cmd := func() { _ = o.exec(func() error { fn(); return nil }) }
	select {
	case o.cmds <- cmd:
		return true
	default:
		return false
	}
}

// exec runs one command. A panic is contained to that command and the
// queued post-commit effects run only after a clean return.
func (o *Orchestrator) exec(fn func() error) (err error) {
	o.effects = o.effects[:0]
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("module", "orch").Str("panic", fmt.Sprint(r)).
				Str("stack", string(debug.Stack())).Msg("command panicked")
			o.effects = o.effects[:0]
			err = domain.ErrInternal
		}
	}()
	err = fn()
	effects := o.effects
	o.effects = nil
	for _, e := range effects {
		e()
	}
	return err
}

// afterCommit defers f until the current command has finished mutating state.
func (o *Orchestrator) afterCommit(f func()) {
	o.effects = append(o.effects, f)
}

func (o *Orchestrator) notify(event core.FederationEvent, room *domain.Room) {
	metrics.IncRoomEvent(string(event))
	if o.Federation == nil || !room.Listed() {
		return
	}
	summary := room.Summary()
	o.afterCommit(func() { o.Federation.Notify(event, summary) })
}

func (o *Orchestrator) every(d time.Duration, fn func(now time.Time)) {
	if d <= 0 {
		return
	}
	var tick func()
	tick = func() {
		fn(o.clock.Now())
		o.clock.AfterFunc(d, tick)
	}
	o.clock.AfterFunc(d, tick)
}

func (o *Orchestrator) sweepRooms(now time.Time) {
	if ids := o.Rooms.SweepExpired(now); len(ids) > 0 {
		log.Info().Str("module", "orch").Int("rooms", len(ids)).Msg("swept rooms")
	}
	metrics.SetRooms(o.Rooms.Count())
}

func (o *Orchestrator) sweepMessages(now time.Time) {
	o.Messages.SweepGuest(now)
}

// LockEvent is the payload of room-locked and room-unlocked.
type LockEvent struct {
	RoomID   domain.RoomID `json:"roomId"`
	By       string        `json:"by"`
	Reason   string        `json:"reason,omitempty"`
	LockedAt time.Time     `json:"lockedAt,omitzero"`
}

// RoomGone is the payload of room-expired and room-deleted.
type RoomGone struct {
	RoomID domain.RoomID `json:"roomId"`
	Reason string        `json:"reason"`
}

func (o *Orchestrator) RoomLocked(room *domain.Room) {
	o.Presence.ToRoom(room.ID, core.NewEvent(core.EventRoomLocked, LockEvent{
		RoomID:   room.ID,
		By:       room.LockedBy,
		Reason:   room.LockReason,
		LockedAt: room.LockedAt,
	}), "")
	o.notify(core.FederationLocked, room)
	o.Presence.BroadcastRoomList()
}

func (o *Orchestrator) RoomUnlocked(room *domain.Room) {
	o.Presence.ToRoom(room.ID, core.NewEvent(core.EventRoomUnlocked, LockEvent{RoomID: room.ID}), "")
	o.notify(core.FederationUnlocked, room)
	o.Presence.BroadcastRoomList()
}

// RoomDeleted detaches every remaining member and tells all connections once.
func (o *Orchestrator) RoomDeleted(room *domain.Room, reason app.DeleteReason) {
	for _, m := range room.Members {
		o.Registry.ClearRoom(m.SessionID)
	}
	room.Members = nil
	o.Messages.Drop(domain.RoomConversation(room.ID))

	typ := core.EventRoomDeleted
	if reason == app.DeleteExpired {
		typ = core.EventRoomExpired
	}
	o.Registry.BroadcastAll(core.NewEvent(typ, RoomGone{RoomID: room.ID, Reason: string(reason)}))
	o.notify(core.FederationDeleted, room)
	metrics.SetRooms(o.Rooms.Count())
	o.Presence.BroadcastRoomList()
}
