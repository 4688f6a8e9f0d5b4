package domain

import "time"

// ActorType indicates who drove a state transition.
type ActorType string

const (
	ActorTypeTenant ActorType = "TENANT"
	ActorTypeStaff  ActorType = "STAFF"
	ActorTypeSystem ActorType = "SYSTEM"
)

// StatusHistoryEntry is an immutable ledger record of one state transition.
// Entries are never updated or deleted; Sequence breaks timestamp ties so
// replay order is deterministic per request.
type StatusHistoryEntry struct {
	ID        string
	RequestID string
	ToState   RequestState
	FromState *RequestState
	ActorType ActorType
	ActorID   *string
	Notes     *string
	Sequence  int64
	CreatedAt time.Time
}
