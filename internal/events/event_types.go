package events

import (
	"time"

	"github.com/spec-kit/maintenance-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventRequestCreated         EventType = "maintenance_request_created"
	EventRequestAssigned        EventType = "maintenance_request_assigned"
	EventRequestStateChanged    EventType = "maintenance_request_state_changed"
	EventRequestPriorityChanged EventType = "maintenance_request_priority_changed"
	EventRequestSignedOff       EventType = "maintenance_request_signed_off"
	EventSLABreached            EventType = "maintenance_sla_breached"
)

// BreachKind distinguishes which deadline type was crossed.
type BreachKind string

const (
	BreachKindResponse   BreachKind = "RESPONSE"
	BreachKindResolution BreachKind = "RESOLUTION"
)

// Actor encapsulates actor metadata for an event.
type Actor struct {
	Type     domain.ActorType `json:"type"`
	TenantID *string          `json:"tenant_id,omitempty"`
	StaffID  *string          `json:"staff_id,omitempty"`
}

// Event represents a domain event emitted by services. Delivery to external
// consumers is fire-and-forget, at-least-once.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	RequestID string      `json:"request_id"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// RequestCreatedPayload payload.
type RequestCreatedPayload struct {
	UnitID          string                 `json:"unit_id"`
	PropertyID      *string                `json:"property_id,omitempty"`
	Category        domain.RequestCategory `json:"category"`
	Priority        domain.RequestPriority `json:"priority"`
	Title           string                 `json:"title"`
	ResponseDueAt   *time.Time             `json:"response_due_at,omitempty"`
	ResolutionDueAt time.Time              `json:"resolution_due_at"`
}

// RequestAssignedPayload payload.
type RequestAssignedPayload struct {
	TechnicianID     string  `json:"technician_id"`
	PrevTechnicianID *string `json:"prev_technician_id,omitempty"`
	Reassignment     bool    `json:"reassignment"`
}

// RequestStateChangedPayload payload.
type RequestStateChangedPayload struct {
	OldState domain.RequestState `json:"old_state"`
	NewState domain.RequestState `json:"new_state"`
	Notes    string              `json:"notes,omitempty"`
}

// RequestPriorityChangedPayload payload.
type RequestPriorityChangedPayload struct {
	OldPriority domain.RequestPriority `json:"old_priority"`
	NewPriority domain.RequestPriority `json:"new_priority"`
	Reason      string                 `json:"reason,omitempty"`
}

// RequestSignedOffPayload payload.
type RequestSignedOffPayload struct {
	TenantID string `json:"tenant_id"`
}

// SLABreachedPayload payload.
type SLABreachedPayload struct {
	Kind     BreachKind             `json:"kind"`
	Priority domain.RequestPriority `json:"priority"`
	State    domain.RequestState    `json:"state"`
	DueAt    time.Time              `json:"due_at"`
	Overdue  time.Duration          `json:"overdue"`
}
