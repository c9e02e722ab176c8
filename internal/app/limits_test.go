package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/dkeye/voicerooms/internal/domain"
)

var testLimits = CreateLimits{
	GuestMaxUsers:    5,
	AuthMaxUsers:     50,
	GuestMinDuration: 10 * time.Minute,
	GuestMaxDuration: 30 * time.Minute,
}

func guest() *domain.Session { return &domain.Session{ID: "g", DisplayName: "guest"} }

func authed(handle string) *domain.Session {
	return &domain.Session{ID: "a", DisplayName: handle, Auth: &domain.Identity{Handle: handle}}
}

func TestCreateLimitsGuest(t *testing.T) {
	spec := testLimits.Apply(guest(), CreateRequest{
		ID:         "custom",
		Password:   "pw",
		MaxUsers:   20,
		Visibility: "private",
		Duration:   int64(time.Hour / time.Millisecond),
		AutoLock:   &domain.AutoLock{AfterUsers: 2, OnHostLeave: true},
	})
	assert.Empty(t, spec.ID)
	assert.Empty(t, spec.Password)
	assert.Equal(t, domain.VisibilityPublic, spec.Visibility)
	assert.Equal(t, 5, spec.MaxUsers)
	assert.Equal(t, 30*time.Minute, spec.Duration)
	assert.Empty(t, spec.CreatorHandle)
	assert.Equal(t, 2, spec.AutoLock.AfterUsers)
	assert.False(t, spec.AutoLock.OnHostLeave)
}

func TestCreateLimitsGuestDurationClamp(t *testing.T) {
	cases := []struct {
		name string
		in   time.Duration
		want time.Duration
	}{
		{"missing", 0, 30 * time.Minute},
		{"negative", -time.Minute, 30 * time.Minute},
		{"below min", time.Minute, 10 * time.Minute},
		{"in range", 20 * time.Minute, 20 * time.Minute},
		{"above max", 2 * time.Hour, 30 * time.Minute},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			spec := testLimits.Apply(guest(), CreateRequest{Duration: int64(tc.in / time.Millisecond)})
			assert.Equal(t, tc.want, spec.Duration)
		})
	}
}

func TestCreateLimitsGuestSmallRoomKept(t *testing.T) {
	spec := testLimits.Apply(guest(), CreateRequest{MaxUsers: 3})
	assert.Equal(t, 3, spec.MaxUsers)
}

func TestCreateLimitsAuthenticated(t *testing.T) {
	spec := testLimits.Apply(authed("alice"), CreateRequest{
		ID:         "team",
		Password:   "pw",
		MaxUsers:   80,
		Visibility: "unlisted",
		AutoLock:   &domain.AutoLock{OnHostLeave: true},
	})
	assert.Equal(t, domain.RoomID("team"), spec.ID)
	assert.Equal(t, "pw", spec.Password)
	assert.Equal(t, 50, spec.MaxUsers)
	assert.Equal(t, domain.VisibilityUnlisted, spec.Visibility)
	assert.Equal(t, "alice", spec.CreatorHandle)
	assert.Zero(t, spec.Duration, "authenticated rooms are permanent by default")
	assert.True(t, spec.AutoLock.OnHostLeave)
}
