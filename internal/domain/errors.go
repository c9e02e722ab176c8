package domain

import "errors"

type ErrorKind string

const (
	KindNotFound          ErrorKind = "not_found"
	KindInvalidState      ErrorKind = "invalid_state"
	KindCapacityExceeded  ErrorKind = "capacity_exceeded"
	KindTransientExternal ErrorKind = "transient_external"
)

// Error is the result of a rejected room/session/message operation.
type Error struct {
	Kind    ErrorKind `json:"kind"`
	Code    string    `json:"code"`
	Message string    `json:"message"`
}

func (e *Error) Error() string { return e.Code + ": " + e.Message }

func newError(kind ErrorKind, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Message: msg}
}

var (
	ErrRoomNotFound       = newError(KindNotFound, "room_not_found", "room does not exist")
	ErrConnectionNotFound = newError(KindNotFound, "connection_not_found", "connection does not exist")
	ErrMessageNotFound    = newError(KindNotFound, "message_not_found", "message does not exist")

	ErrRoomExists      = newError(KindInvalidState, "room_exists", "room already exists")
	ErrAlreadyLocked   = newError(KindInvalidState, "already_locked", "room is already locked")
	ErrNotLocked       = newError(KindInvalidState, "not_locked", "room is not locked")
	ErrRoomLocked      = newError(KindInvalidState, "room_locked", "room is locked")
	ErrInvalidPassword = newError(KindInvalidState, "invalid_password", "invalid room password")
	ErrNotInRoom       = newError(KindInvalidState, "not_in_room", "connection is not in a room")
	ErrForbidden       = newError(KindInvalidState, "forbidden", "operation not allowed")
	ErrBadPayload      = newError(KindInvalidState, "bad_payload", "malformed request")
	ErrInternal        = newError(KindInvalidState, "internal", "request failed")
	ErrShuttingDown    = newError(KindInvalidState, "shutting_down", "server is shutting down")

	ErrRoomFull     = newError(KindCapacityExceeded, "room_full", "room is full")
	ErrRateLimited  = newError(KindCapacityExceeded, "rate_limited", "too many requests")
	ErrBelowMembers = newError(KindCapacityExceeded, "below_member_count", "capacity below current member count")

	ErrFederationUnavailable = newError(KindTransientExternal, "federation_unavailable", "federation unavailable")
)

// KindOf classifies any error; unknown errors are treated as invalid state.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInvalidState
}

// AsError converts err to a *Error suitable for returning to a client.
func AsError(err error) *Error {
	var de *Error
	if errors.As(err, &de) {
		return de
	}
	return ErrInternal
}
