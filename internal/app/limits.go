package app

import (
	"time"

	"github.com/dkeye/voicerooms/internal/domain"
)

// CreateRequest is a room creation request as received from a client.
type CreateRequest struct {
	ID          string           `json:"id,omitempty"`
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	Password    string           `json:"password,omitempty"`
	MaxUsers    int              `json:"maxUsers,omitempty"`
	Visibility  string           `json:"visibility,omitempty"`
	AccessType  string           `json:"accessType,omitempty"`
	AutoLock    *domain.AutoLock `json:"autoLock,omitempty"`
	// Duration is in milliseconds.
	Duration int64 `json:"duration,omitempty"`
}

type CreateLimits struct {
	GuestMaxUsers    int
	AuthMaxUsers     int
	GuestMinDuration time.Duration
	GuestMaxDuration time.Duration
}

// Apply turns a request into a RoomSpec under the creator's limits.
// Guests get a public, passwordless, capped room whose lifetime is clamped
// into [GuestMinDuration, GuestMaxDuration]; out of range values are never
// rejected.
func (l CreateLimits) Apply(sess *domain.Session, req CreateRequest) RoomSpec {
	spec := RoomSpec{
		ID:          domain.RoomID(req.ID),
		Name:        req.Name,
		Description: req.Description,
		Password:    req.Password,
		MaxUsers:    req.MaxUsers,
		Visibility:  domain.Visibility(req.Visibility),
		AccessType:  domain.AccessType(req.AccessType),
		AutoLock:    req.AutoLock,
		Duration:    time.Duration(req.Duration) * time.Millisecond,
	}
	if sess.Authenticated() {
		spec.CreatorHandle = sess.Handle()
		if spec.MaxUsers > l.AuthMaxUsers {
			spec.MaxUsers = l.AuthMaxUsers
		}
		if spec.Duration < 0 {
			spec.Duration = 0
		}
		return spec
	}

	spec.ID = ""
	spec.Visibility = domain.VisibilityPublic
	spec.Password = ""
	if spec.MaxUsers <= 0 || spec.MaxUsers > l.GuestMaxUsers {
		spec.MaxUsers = l.GuestMaxUsers
	}
	switch {
	case spec.Duration <= 0:
		spec.Duration = l.GuestMaxDuration
	case spec.Duration < l.GuestMinDuration:
		spec.Duration = l.GuestMinDuration
	case spec.Duration > l.GuestMaxDuration:
		spec.Duration = l.GuestMaxDuration
	}
	if spec.AutoLock != nil {
		al := *spec.AutoLock
		al.OnHostLeave = false
		spec.AutoLock = &al
	}
	return spec
}
