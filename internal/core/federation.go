package core

import (
	"context"

	"github.com/dkeye/voicerooms/internal/domain"
)

type FederationEvent string

const (
	FederationCreated  FederationEvent = "created"
	FederationUpdated  FederationEvent = "updated"
	FederationLocked   FederationEvent = "locked"
	FederationUnlocked FederationEvent = "unlocked"
	FederationDeleted  FederationEvent = "deleted"
)

// FederationGateway propagates room lifecycle to other instances and
// supplies rooms hosted elsewhere.
//
//go:generate mockgen -source=federation.go -destination=mocks/federation_mock.go -package=mocks
type FederationGateway interface {
	// Notify is fire-and-forget and must not block the caller.
	Notify(event FederationEvent, room domain.RoomSummary)
	// ExternalRooms returns the last known external rooms without blocking.
	ExternalRooms() []domain.RoomSummary
	// FetchExternalRooms refreshes external rooms within a bounded timeout.
	// It degrades to the cached (possibly empty) list on failure.
	FetchExternalRooms(ctx context.Context) []domain.RoomSummary
}
