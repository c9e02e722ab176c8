package app

import (
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/dkeye/voicerooms/internal/core"
	"github.com/dkeye/voicerooms/internal/domain"
)

const (
	MaxRoomNameLen        = 64
	MaxRoomDescriptionLen = 256
	defaultRoomName       = "Voice Room"
)

type DeleteReason string

const (
	DeleteExplicit DeleteReason = "deleted"
	DeleteExpired  DeleteReason = "expired"
	DeleteIdle     DeleteReason = "idle"
)

// RoomObserver is told about every lock transition and deletion,
// including the ones triggered by auto-lock rules and timers.
type RoomObserver interface {
	RoomLocked(room *domain.Room)
	RoomUnlocked(room *domain.Room)
	RoomDeleted(room *domain.Room, reason DeleteReason)
}

type RoomConfig struct {
	DefaultMaxUsers int
	MaxUsersCap     int
	EmptyTTL        time.Duration
	BcryptCost      int
}

// RoomSpec is a create request after session-level limits were applied.
type RoomSpec struct {
	ID            domain.RoomID
	Name          string
	Description   string
	Password      string
	MaxUsers      int
	Visibility    domain.Visibility
	AccessType    domain.AccessType
	AutoLock      *domain.AutoLock
	Duration      time.Duration
	CreatorHandle string
	Keep          bool
}

// RoomPatch carries optional updates; nil fields are left untouched.
type RoomPatch struct {
	Name        *string
	Description *string
	MaxUsers    *int
	AutoLock    *domain.AutoLock
}

type roomTimers struct {
	expiry   core.Timer
	autoLock core.Timer
	idle     core.Timer
}

func stopTimer(t *core.Timer) {
	if *t != nil {
		(*t).Stop()
		*t = nil
	}
}

func (t *roomTimers) stopAll() {
	stopTimer(&t.expiry)
	stopTimer(&t.autoLock)
	stopTimer(&t.idle)
}

// RoomStore owns Room entities and their timers.
// It is not safe for concurrent use: the orchestrator loop is its only caller,
// and timer callbacks must be delivered through that loop by the Clock.
type RoomStore struct {
	clock    core.Clock
	cfg      RoomConfig
	observer RoomObserver
	rooms    map[domain.RoomID]*domain.Room
	timers   map[domain.RoomID]*roomTimers
}

func NewRoomStore(clock core.Clock, cfg RoomConfig, observer RoomObserver) *RoomStore {
	if cfg.DefaultMaxUsers < 1 {
		cfg.DefaultMaxUsers = 10
	}
	if cfg.MaxUsersCap < cfg.DefaultMaxUsers {
		cfg.MaxUsersCap = cfg.DefaultMaxUsers
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	return &RoomStore{
		clock:    clock,
		cfg:      cfg,
		observer: observer,
		rooms:    make(map[domain.RoomID]*domain.Room),
		timers:   make(map[domain.RoomID]*roomTimers),
	}
}

func (s *RoomStore) Create(spec RoomSpec) (*domain.Room, error) {
	id := spec.ID
	if id == "" {
		id = domain.RoomID(uuid.NewString())
	}
	if _, exists := s.rooms[id]; exists {
		return nil, domain.ErrRoomExists
	}
	name := strings.TrimSpace(spec.Name)
	if name == "" {
		name = defaultRoomName
	}
	name = truncate(name, MaxRoomNameLen)
	desc := truncate(spec.Description, MaxRoomDescriptionLen)
	vis := spec.Visibility
	if !vis.Valid() {
		vis = domain.VisibilityPublic
	}
	access := spec.AccessType
	if !access.Valid() {
		access = domain.AccessHybrid
	}
	allowEmbed, showInApp := access.Flags()

	now := s.clock.Now()
	room := &domain.Room{
		ID:            id,
		Name:          name,
		Description:   desc,
		MaxUsers:      s.clampMaxUsers(spec.MaxUsers),
		Visibility:    vis,
		AccessType:    access,
		AllowEmbed:    allowEmbed,
		ShowInApp:     showInApp,
		CreatedAt:     now,
		EmptySince:    now,
		CreatorHandle: spec.CreatorHandle,
		Keep:          spec.Keep,
	}
	if spec.AutoLock != nil && *spec.AutoLock != (domain.AutoLock{}) {
		al := *spec.AutoLock
		room.AutoLock = &al
	}
	if spec.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(spec.Password), s.cfg.BcryptCost)
		if err != nil {
			return nil, err
		}
		room.PasswordHash = hash
	}
	if spec.Duration > 0 {
		room.ExpiresAt = now.Add(spec.Duration)
	}

	s.rooms[id] = room
	s.timers[id] = &roomTimers{}
	s.scheduleTimers(room)
	if s.cfg.EmptyTTL > 0 {
		s.scheduleIdle(room)
	}
	log.Info().Str("module", "app.rooms").Str("room_id", string(id)).Str("name", name).
		Int("max_users", room.MaxUsers).Time("expires_at", room.ExpiresAt).Msg("room created")
	return room, nil
}

// Restore re-inserts a previously snapshotted room (without members) and
// reschedules its timers from the absolute deadlines.
func (s *RoomStore) Restore(room *domain.Room) {
	if _, exists := s.rooms[room.ID]; exists {
		return
	}
	room.Members = nil
	if room.EmptySince.IsZero() {
		room.EmptySince = s.clock.Now()
	}
	s.rooms[room.ID] = room
	s.timers[room.ID] = &roomTimers{}
	s.scheduleTimers(room)
	if s.cfg.EmptyTTL > 0 {
		s.scheduleIdle(room)
	}
}

// truncate caps s at n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func (s *RoomStore) clampMaxUsers(n int) int {
	if n < 1 {
		n = s.cfg.DefaultMaxUsers
	}
	if n > s.cfg.MaxUsersCap {
		n = s.cfg.MaxUsersCap
	}
	return n
}

func (s *RoomStore) scheduleTimers(room *domain.Room) {
	t := s.timers[room.ID]
	now := s.clock.Now()
	if room.HasExpiry() {
		stopTimer(&t.expiry)
		t.expiry = s.clock.AfterFunc(room.ExpiresAt.Sub(now), func() { s.onExpiryDue(room) })
	}
	if room.AutoLock != nil && room.AutoLock.AfterMinutes > 0 && !room.Locked {
		stopTimer(&t.autoLock)
		due := room.CreatedAt.Add(time.Duration(room.AutoLock.AfterMinutes) * time.Minute)
		t.autoLock = s.clock.AfterFunc(due.Sub(now), func() { s.onAutoLockDue(room) })
	}
}

// current reports whether room is still the live entity for its id.
// A timer that fires for a deleted room is a no-op.
func (s *RoomStore) current(room *domain.Room) bool {
	r, ok := s.rooms[room.ID]
	return ok && r == room
}

func (s *RoomStore) onExpiryDue(room *domain.Room) {
	if !s.current(room) {
		return
	}
	s.Delete(room.ID, DeleteExpired)
}

func (s *RoomStore) onAutoLockDue(room *domain.Room) {
	if !s.current(room) {
		return
	}
	s.timers[room.ID].autoLock = nil
	if room.Locked || room.AutoLock == nil || room.AutoLock.AfterMinutes == 0 {
		return
	}
	s.lock(room, domain.LockAutoTime, domain.LockAutoTime)
}

func (s *RoomStore) onIdleDue(room *domain.Room) {
	if !s.current(room) {
		return
	}
	s.timers[room.ID].idle = nil
	if room.MemberCount() > 0 {
		return
	}
	s.Delete(room.ID, DeleteIdle)
}

func (s *RoomStore) idleEligible(room *domain.Room) bool {
	return !room.Keep && !room.HasExpiry() && room.MemberCount() == 0
}

func (s *RoomStore) scheduleIdle(room *domain.Room) {
	if !s.idleEligible(room) {
		return
	}
	t := s.timers[room.ID]
	stopTimer(&t.idle)
	wait := room.EmptySince.Add(s.cfg.EmptyTTL).Sub(s.clock.Now())
	t.idle = s.clock.AfterFunc(wait, func() { s.onIdleDue(room) })
}

// MarkIfEmpty applies the empty-room policy after a departure: rooms without
// an expiry deadline are removed once empty for EmptyTTL (0 = immediately).
func (s *RoomStore) MarkIfEmpty(id domain.RoomID) {
	room, ok := s.rooms[id]
	if !ok || !s.idleEligible(room) {
		return
	}
	if s.cfg.EmptyTTL <= 0 {
		s.Delete(id, DeleteIdle)
		return
	}
	s.scheduleIdle(room)
}

func (s *RoomStore) Get(id domain.RoomID) (*domain.Room, bool) {
	r, ok := s.rooms[id]
	return r, ok
}

// All returns rooms ordered by creation time.
func (s *RoomStore) All() []*domain.Room {
	out := make([]*domain.Room, 0, len(s.rooms))
	for _, r := range s.rooms {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func (s *RoomStore) Count() int { return len(s.rooms) }

func (s *RoomStore) CheckPassword(room *domain.Room, password string) bool {
	if !room.HasPassword() {
		return true
	}
	return bcrypt.CompareHashAndPassword(room.PasswordHash, []byte(password)) == nil
}

func (s *RoomStore) AddMember(id domain.RoomID, m *domain.Member) (*domain.Room, error) {
	room, ok := s.rooms[id]
	if !ok {
		return nil, domain.ErrRoomNotFound
	}
	if room.AddMember(m) {
		stopTimer(&s.timers[id].idle)
	}
	return room, nil
}

func (s *RoomStore) RemoveMember(id domain.RoomID, sid domain.SessionID) (*domain.Member, bool) {
	room, ok := s.rooms[id]
	if !ok {
		return nil, false
	}
	return room.RemoveMember(sid, s.clock.Now())
}

// Lock fails if the room is missing or already locked; a second lock never
// overwrites the first one's metadata.
func (s *RoomStore) Lock(id domain.RoomID, by, reason string) (*domain.Room, error) {
	room, ok := s.rooms[id]
	if !ok {
		return nil, domain.ErrRoomNotFound
	}
	if room.Locked {
		return nil, domain.ErrAlreadyLocked
	}
	s.lock(room, by, reason)
	return room, nil
}

func (s *RoomStore) lock(room *domain.Room, by, reason string) {
	room.Lock(by, reason, s.clock.Now())
	stopTimer(&s.timers[room.ID].autoLock)
	log.Info().Str("module", "app.rooms").Str("room_id", string(room.ID)).
		Str("by", by).Str("reason", reason).Msg("room locked")
	if s.observer != nil {
		s.observer.RoomLocked(room)
	}
}

func (s *RoomStore) Unlock(id domain.RoomID, by string) (*domain.Room, error) {
	room, ok := s.rooms[id]
	if !ok {
		return nil, domain.ErrRoomNotFound
	}
	if !room.Locked {
		return nil, domain.ErrNotLocked
	}
	room.Unlock()
	log.Info().Str("module", "app.rooms").Str("room_id", string(id)).Str("by", by).Msg("room unlocked")
	if s.observer != nil {
		s.observer.RoomUnlocked(room)
	}
	return room, nil
}

// CheckAutoLock locks the room once its member count reaches AutoLock.AfterUsers.
// It never unlocks.
func (s *RoomStore) CheckAutoLock(id domain.RoomID) bool {
	room, ok := s.rooms[id]
	if !ok || room.Locked || room.AutoLock == nil || room.AutoLock.AfterUsers <= 0 {
		return false
	}
	if room.MemberCount() < room.AutoLock.AfterUsers {
		return false
	}
	s.lock(room, domain.LockAutoUsers, domain.LockAutoUsers)
	return true
}

// HandleHostLeave locks the room when its authenticated creator departs and
// the room asks for it.
func (s *RoomStore) HandleHostLeave(id domain.RoomID, departingHandle string) bool {
	room, ok := s.rooms[id]
	if !ok || room.Locked || room.AutoLock == nil || !room.AutoLock.OnHostLeave {
		return false
	}
	if departingHandle == "" || departingHandle != room.CreatorHandle {
		return false
	}
	s.lock(room, domain.LockAutoHostLeave, domain.LockAutoHostLeave)
	return true
}

func (s *RoomStore) Update(id domain.RoomID, patch RoomPatch) (*domain.Room, error) {
	room, ok := s.rooms[id]
	if !ok {
		return nil, domain.ErrRoomNotFound
	}
	if patch.MaxUsers != nil {
		n := s.clampMaxUsers(*patch.MaxUsers)
		if n < room.MemberCount() {
			return nil, domain.ErrBelowMembers
		}
		room.MaxUsers = n
	}
	if patch.Name != nil {
		if name := strings.TrimSpace(*patch.Name); name != "" {
			room.Name = truncate(name, MaxRoomNameLen)
		}
	}
	if patch.Description != nil {
		room.Description = truncate(*patch.Description, MaxRoomDescriptionLen)
	}
	if patch.AutoLock != nil {
		stopTimer(&s.timers[id].autoLock)
		if *patch.AutoLock == (domain.AutoLock{}) {
			room.AutoLock = nil
		} else {
			al := *patch.AutoLock
			room.AutoLock = &al
			s.scheduleTimers(room)
		}
	}
	return room, nil
}

// Delete removes the room and cancels all of its timers. Deleting a missing
// room is a no-op, so racing deletions report exactly once.
func (s *RoomStore) Delete(id domain.RoomID, reason DeleteReason) (*domain.Room, bool) {
	room, ok := s.rooms[id]
	if !ok {
		return nil, false
	}
	if t, ok := s.timers[id]; ok {
		t.stopAll()
	}
	delete(s.rooms, id)
	delete(s.timers, id)
	log.Info().Str("module", "app.rooms").Str("room_id", string(id)).Str("reason", string(reason)).Msg("room deleted")
	if s.observer != nil {
		s.observer.RoomDeleted(room, reason)
	}
	return room, true
}

// SweepExpired deletes rooms past their deadline and rooms that stayed empty
// longer than EmptyTTL. Keep rooms are never swept.
func (s *RoomStore) SweepExpired(now time.Time) []domain.RoomID {
	var expired, idle []domain.RoomID
	for id, room := range s.rooms {
		if room.Keep {
			continue
		}
		switch {
		case room.HasExpiry() && room.ExpiresAt.Before(now):
			expired = append(expired, id)
		case s.idleEligible(room) && now.Sub(room.EmptySince) > s.cfg.EmptyTTL:
			idle = append(idle, id)
		}
	}
	for _, id := range expired {
		s.Delete(id, DeleteExpired)
	}
	for _, id := range idle {
		s.Delete(id, DeleteIdle)
	}
	return append(expired, idle...)
}
