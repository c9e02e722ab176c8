// Package domain contains entity without logic, just meta-data
package domain

import (
	"strings"
	"time"
)

const (
	MaxDisplayNameLen = 36
	DefaultGuestName  = "guest"
)

var (
	ErrDisplayNameTooLong = newError(KindInvalidState, "name_too_long", "display name too long")
	ErrDisplayNameEmpty   = newError(KindInvalidState, "name_empty", "display name empty")
)

// SessionID identifies one live connection.
type SessionID string

// Identity is an externally verified user. A nil *Identity means guest.
type Identity struct {
	Handle      string `json:"handle"`
	DisplayName string `json:"displayName,omitempty"`
}

// Session is the per-connection global state.
type Session struct {
	ID          SessionID `json:"connectionId"`
	DisplayName string    `json:"displayName"`
	RoomID      RoomID    `json:"currentRoomId,omitempty"`
	Auth        *Identity `json:"auth,omitempty"`
	JoinedAt    time.Time `json:"joinedAt"`
}

func (s *Session) Authenticated() bool { return s.Auth != nil }

// Handle returns the authenticated handle or "" for guests.
func (s *Session) Handle() string {
	if s.Auth == nil {
		return ""
	}
	return s.Auth.Handle
}

// NormalizeDisplayName trims and validates a user supplied name.
func NormalizeDisplayName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if len(name) == 0 {
		return "", ErrDisplayNameEmpty
	}
	if len(name) > MaxDisplayNameLen {
		return "", ErrDisplayNameTooLong
	}
	return name, nil
}
