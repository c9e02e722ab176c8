package app

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/dkeye/voicerooms/internal/core/coretest"
	"github.com/dkeye/voicerooms/internal/domain"
)

type recordingObserver struct {
	locked   []domain.RoomID
	unlocked []domain.RoomID
	deleted  map[domain.RoomID]DeleteReason
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{deleted: map[domain.RoomID]DeleteReason{}}
}

func (o *recordingObserver) RoomLocked(r *domain.Room)   { o.locked = append(o.locked, r.ID) }
func (o *recordingObserver) RoomUnlocked(r *domain.Room) { o.unlocked = append(o.unlocked, r.ID) }
func (o *recordingObserver) RoomDeleted(r *domain.Room, reason DeleteReason) {
	o.deleted[r.ID] = reason
}

var epoch = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

func newStore(t *testing.T, ttl time.Duration) (*RoomStore, *coretest.FakeClock, *recordingObserver) {
	t.Helper()
	clock := coretest.NewFakeClock(epoch)
	obs := newRecordingObserver()
	s := NewRoomStore(clock, RoomConfig{
		DefaultMaxUsers: 10,
		MaxUsersCap:     50,
		EmptyTTL:        ttl,
		BcryptCost:      bcrypt.MinCost,
	}, obs)
	return s, clock, obs
}

func member(sid string) *domain.Member {
	return &domain.Member{SessionID: domain.SessionID(sid), DisplayName: sid}
}

func TestRoomStoreCreateDefaults(t *testing.T) {
	s, _, _ := newStore(t, 0)

	room, err := s.Create(RoomSpec{Name: "  ", Visibility: "weird", AccessType: "nope"})
	require.NoError(t, err)
	assert.NotEmpty(t, room.ID)
	assert.Equal(t, defaultRoomName, room.Name)
	assert.Equal(t, 10, room.MaxUsers)
	assert.Equal(t, domain.VisibilityPublic, room.Visibility)
	assert.Equal(t, domain.AccessHybrid, room.AccessType)
	assert.True(t, room.AllowEmbed)
	assert.True(t, room.ShowInApp)
	assert.False(t, room.HasExpiry())
	assert.Nil(t, room.AutoLock)

	long, err := s.Create(RoomSpec{Name: strings.Repeat("n", 100), MaxUsers: 500})
	require.NoError(t, err)
	assert.Len(t, long.Name, MaxRoomNameLen)
	assert.Equal(t, 50, long.MaxUsers)
}

func TestRoomStoreCreateDuplicateID(t *testing.T) {
	s, _, _ := newStore(t, 0)
	_, err := s.Create(RoomSpec{ID: "lobby"})
	require.NoError(t, err)
	_, err = s.Create(RoomSpec{ID: "lobby"})
	assert.ErrorIs(t, err, domain.ErrRoomExists)
}

func TestRoomStorePassword(t *testing.T) {
	s, _, _ := newStore(t, 0)
	room, err := s.Create(RoomSpec{Password: "secret"})
	require.NoError(t, err)
	assert.True(t, room.HasPassword())
	assert.NotEqual(t, []byte("secret"), room.PasswordHash)
	assert.True(t, s.CheckPassword(room, "secret"))
	assert.False(t, s.CheckPassword(room, "wrong"))

	open, err := s.Create(RoomSpec{})
	require.NoError(t, err)
	assert.True(t, s.CheckPassword(open, "anything"))
}

func TestRoomStoreExpiryFiresOnce(t *testing.T) {
	s, clock, obs := newStore(t, 0)
	room, err := s.Create(RoomSpec{Duration: 10 * time.Minute})
	require.NoError(t, err)
	assert.Equal(t, epoch.Add(10*time.Minute), room.ExpiresAt)

	clock.Advance(9 * time.Minute)
	_, ok := s.Get(room.ID)
	assert.True(t, ok)

	clock.Advance(time.Minute)
	_, ok = s.Get(room.ID)
	assert.False(t, ok)
	assert.Equal(t, DeleteExpired, obs.deleted[room.ID])

	assert.Empty(t, s.SweepExpired(clock.Now().Add(time.Hour)))
	assert.Len(t, obs.deleted, 1)
}

func TestRoomStoreExpiryIgnoresReplacedRoom(t *testing.T) {
	s, clock, obs := newStore(t, 0)
	room, err := s.Create(RoomSpec{ID: "r", Duration: time.Minute})
	require.NoError(t, err)
	s.Delete(room.ID, DeleteExplicit)

	again, err := s.Create(RoomSpec{ID: "r"})
	require.NoError(t, err)

	clock.Advance(2 * time.Minute)
	got, ok := s.Get("r")
	require.True(t, ok)
	assert.Same(t, again, got)
	assert.Equal(t, DeleteExplicit, obs.deleted["r"])
}

func TestRoomStoreIdleDeletion(t *testing.T) {
	s, clock, obs := newStore(t, 30*time.Second)
	room, err := s.Create(RoomSpec{})
	require.NoError(t, err)

	_, err = s.AddMember(room.ID, member("a"))
	require.NoError(t, err)
	clock.Advance(time.Minute)
	_, ok := s.Get(room.ID)
	assert.True(t, ok, "occupied rooms are not idle")

	s.RemoveMember(room.ID, "a")
	s.MarkIfEmpty(room.ID)
	clock.Advance(29 * time.Second)
	_, ok = s.Get(room.ID)
	assert.True(t, ok)

	clock.Advance(time.Second)
	_, ok = s.Get(room.ID)
	assert.False(t, ok)
	assert.Equal(t, DeleteIdle, obs.deleted[room.ID])
}

func TestRoomStoreZeroTTLDeletesOnLastLeave(t *testing.T) {
	s, _, obs := newStore(t, 0)
	room, err := s.Create(RoomSpec{})
	require.NoError(t, err)
	_, err = s.AddMember(room.ID, member("a"))
	require.NoError(t, err)

	s.RemoveMember(room.ID, "a")
	s.MarkIfEmpty(room.ID)
	_, ok := s.Get(room.ID)
	assert.False(t, ok)
	assert.Equal(t, DeleteIdle, obs.deleted[room.ID])
}

func TestRoomStoreKeepRoomsSurvive(t *testing.T) {
	s, clock, _ := newStore(t, 0)
	room, err := s.Create(RoomSpec{ID: "lobby", Keep: true})
	require.NoError(t, err)

	s.MarkIfEmpty(room.ID)
	assert.Empty(t, s.SweepExpired(clock.Now().Add(24*time.Hour)))
	_, ok := s.Get("lobby")
	assert.True(t, ok)
}

func TestRoomStoreLock(t *testing.T) {
	s, _, obs := newStore(t, 0)
	room, err := s.Create(RoomSpec{})
	require.NoError(t, err)

	_, err = s.Lock(room.ID, "alice", "manual")
	require.NoError(t, err)
	assert.Equal(t, epoch, room.LockedAt)

	_, err = s.Lock(room.ID, "bob", "again")
	assert.ErrorIs(t, err, domain.ErrAlreadyLocked)
	assert.Equal(t, "alice", room.LockedBy, "second lock must not overwrite")

	_, err = s.Unlock(room.ID, "alice")
	require.NoError(t, err)
	_, err = s.Unlock(room.ID, "alice")
	assert.ErrorIs(t, err, domain.ErrNotLocked)

	_, err = s.Lock("missing", "x", "y")
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)

	assert.Equal(t, []domain.RoomID{room.ID}, obs.locked)
	assert.Equal(t, []domain.RoomID{room.ID}, obs.unlocked)
}

func TestRoomStoreTruncatesOnRuneBoundary(t *testing.T) {
	s, _, _ := newStore(t, 0)
	room, err := s.Create(RoomSpec{Name: strings.Repeat("€", 40), Description: strings.Repeat("é", 200)})
	require.NoError(t, err)
	assert.True(t, utf8.ValidString(room.Name))
	assert.Equal(t, strings.Repeat("€", 21), room.Name)
	assert.True(t, utf8.ValidString(room.Description))
	assert.Len(t, room.Description, MaxRoomDescriptionLen)

	name := strings.Repeat("ü", 40)
	_, err = s.Update(room.ID, RoomPatch{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("ü", 32), room.Name)
}

func TestRoomStoreAutoLockAfterUsers(t *testing.T) {
	s, _, obs := newStore(t, 0)
	room, err := s.Create(RoomSpec{AutoLock: &domain.AutoLock{AfterUsers: 3}})
	require.NoError(t, err)

	for i, sid := range []string{"a", "b"} {
		_, err := s.AddMember(room.ID, member(sid))
		require.NoError(t, err)
		assert.False(t, s.CheckAutoLock(room.ID), "join %d", i+1)
	}
	_, err = s.AddMember(room.ID, member("c"))
	require.NoError(t, err)
	assert.True(t, s.CheckAutoLock(room.ID))
	assert.True(t, room.Locked)
	assert.Equal(t, domain.LockAutoUsers, room.LockReason)

	s.RemoveMember(room.ID, "c")
	assert.False(t, s.CheckAutoLock(room.ID))
	assert.True(t, room.Locked, "auto-lock never unlocks")
	assert.Len(t, obs.locked, 1)
}

func TestRoomStoreAutoLockAfterMinutes(t *testing.T) {
	s, clock, _ := newStore(t, 0)
	room, err := s.Create(RoomSpec{AutoLock: &domain.AutoLock{AfterMinutes: 5}})
	require.NoError(t, err)

	clock.Advance(4 * time.Minute)
	assert.False(t, room.Locked)
	clock.Advance(time.Minute)
	assert.True(t, room.Locked)
	assert.Equal(t, domain.LockAutoTime, room.LockReason)
}

func TestRoomStoreManualLockCancelsAutoTimer(t *testing.T) {
	s, clock, obs := newStore(t, 0)
	room, err := s.Create(RoomSpec{AutoLock: &domain.AutoLock{AfterMinutes: 5}})
	require.NoError(t, err)
	_, err = s.Lock(room.ID, "alice", "manual")
	require.NoError(t, err)
	_, err = s.Unlock(room.ID, "alice")
	require.NoError(t, err)

	clock.Advance(10 * time.Minute)
	assert.False(t, room.Locked)
	assert.Len(t, obs.locked, 1)
}

func TestRoomStoreUpdateDropsAutoLockTimer(t *testing.T) {
	s, clock, obs := newStore(t, 0)
	room, err := s.Create(RoomSpec{AutoLock: &domain.AutoLock{AfterMinutes: 5}})
	require.NoError(t, err)
	_, err = s.Update(room.ID, RoomPatch{AutoLock: &domain.AutoLock{AfterUsers: 10}})
	require.NoError(t, err)

	clock.Advance(6 * time.Minute)
	assert.False(t, room.Locked)
	assert.Empty(t, obs.locked)
}

func TestRoomStoreUpdateReschedulesAutoLock(t *testing.T) {
	s, clock, _ := newStore(t, 0)
	room, err := s.Create(RoomSpec{AutoLock: &domain.AutoLock{AfterMinutes: 5}})
	require.NoError(t, err)
	_, err = s.Update(room.ID, RoomPatch{AutoLock: &domain.AutoLock{AfterMinutes: 10}})
	require.NoError(t, err)

	clock.Advance(6 * time.Minute)
	assert.False(t, room.Locked)
	clock.Advance(4 * time.Minute)
	assert.True(t, room.Locked)
	assert.Equal(t, domain.LockAutoTime, room.LockReason)
}

func TestRoomStoreHostLeave(t *testing.T) {
	s, _, _ := newStore(t, 0)
	room, err := s.Create(RoomSpec{CreatorHandle: "alice", AutoLock: &domain.AutoLock{OnHostLeave: true}})
	require.NoError(t, err)

	assert.False(t, s.HandleHostLeave(room.ID, ""))
	assert.False(t, s.HandleHostLeave(room.ID, "bob"))
	assert.True(t, s.HandleHostLeave(room.ID, "alice"))
	assert.Equal(t, domain.LockAutoHostLeave, room.LockReason)
}

func TestRoomStoreUpdate(t *testing.T) {
	s, _, _ := newStore(t, 0)
	room, err := s.Create(RoomSpec{MaxUsers: 5, AutoLock: &domain.AutoLock{AfterUsers: 4}})
	require.NoError(t, err)
	for _, sid := range []string{"a", "b", "c"} {
		_, err := s.AddMember(room.ID, member(sid))
		require.NoError(t, err)
	}

	two := 2
	_, err = s.Update(room.ID, RoomPatch{MaxUsers: &two})
	assert.ErrorIs(t, err, domain.ErrBelowMembers)
	assert.Equal(t, 5, room.MaxUsers)

	name := "  Renamed "
	desc := "about"
	eight := 8
	_, err = s.Update(room.ID, RoomPatch{Name: &name, Description: &desc, MaxUsers: &eight, AutoLock: &domain.AutoLock{}})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", room.Name)
	assert.Equal(t, "about", room.Description)
	assert.Equal(t, 8, room.MaxUsers)
	assert.Nil(t, room.AutoLock)

	_, err = s.Update("missing", RoomPatch{})
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)
}

func TestRoomStoreDeleteIsIdempotent(t *testing.T) {
	s, clock, obs := newStore(t, time.Minute)
	room, err := s.Create(RoomSpec{Duration: time.Hour, AutoLock: &domain.AutoLock{AfterMinutes: 1}})
	require.NoError(t, err)

	_, ok := s.Delete(room.ID, DeleteExplicit)
	assert.True(t, ok)
	_, ok = s.Delete(room.ID, DeleteExplicit)
	assert.False(t, ok)
	assert.Zero(t, clock.Pending())

	clock.Advance(2 * time.Hour)
	assert.Empty(t, obs.locked)
	assert.Equal(t, DeleteExplicit, obs.deleted[room.ID])
}

func TestRoomStoreSweep(t *testing.T) {
	s, clock, obs := newStore(t, time.Minute)
	expiring, err := s.Create(RoomSpec{Duration: time.Minute})
	require.NoError(t, err)
	idle, err := s.Create(RoomSpec{})
	require.NoError(t, err)
	busy, err := s.Create(RoomSpec{})
	require.NoError(t, err)
	_, err = s.AddMember(busy.ID, member("a"))
	require.NoError(t, err)

	ids := s.SweepExpired(clock.Now().Add(2 * time.Minute))
	assert.ElementsMatch(t, []domain.RoomID{expiring.ID, idle.ID}, ids)
	assert.Equal(t, DeleteExpired, obs.deleted[expiring.ID])
	assert.Equal(t, DeleteIdle, obs.deleted[idle.ID])
	assert.Equal(t, 1, s.Count())
}

func TestRoomStoreRestore(t *testing.T) {
	s, clock, obs := newStore(t, 0)
	s.Restore(&domain.Room{
		ID:        "old",
		Name:      "Old",
		MaxUsers:  4,
		CreatedAt: epoch.Add(-time.Hour),
		ExpiresAt: epoch.Add(time.Minute),
		Members:   []*domain.Member{member("ghost")},
	})
	room, ok := s.Get("old")
	require.True(t, ok)
	assert.Zero(t, room.MemberCount())

	clock.Advance(time.Minute)
	assert.Equal(t, DeleteExpired, obs.deleted["old"])
}

func TestRoomStoreAllOrdered(t *testing.T) {
	s, clock, _ := newStore(t, 0)
	first, err := s.Create(RoomSpec{Name: "first"})
	require.NoError(t, err)
	clock.Advance(time.Second)
	second, err := s.Create(RoomSpec{Name: "second"})
	require.NoError(t, err)

	all := s.All()
	require.Len(t, all, 2)
	assert.Equal(t, first.ID, all[0].ID)
	assert.Equal(t, second.ID, all[1].ID)
}
