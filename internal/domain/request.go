package domain

import (
	"strings"
	"time"
)

// RequestState enumerates lifecycle states for maintenance requests.
type RequestState string

const (
	RequestStatePending    RequestState = "PENDING"
	RequestStateAssigned   RequestState = "ASSIGNED"
	RequestStateInProgress RequestState = "IN_PROGRESS"
	RequestStateCompleted  RequestState = "COMPLETED"
	RequestStateCancelled  RequestState = "CANCELLED"
)

// RequestPriority enumerates SLA urgency.
type RequestPriority string

const (
	PriorityLow       RequestPriority = "LOW"
	PriorityMedium    RequestPriority = "MEDIUM"
	PriorityHigh      RequestPriority = "HIGH"
	PriorityEmergency RequestPriority = "EMERGENCY"
)

// RequestCategory classifies the kind of maintenance work.
type RequestCategory string

const (
	CategoryPlumbing    RequestCategory = "PLUMBING"
	CategoryElectrical  RequestCategory = "ELECTRICAL"
	CategoryHVAC        RequestCategory = "HVAC"
	CategoryAppliance   RequestCategory = "APPLIANCE"
	CategoryStructural  RequestCategory = "STRUCTURAL"
	CategoryPestControl RequestCategory = "PEST_CONTROL"
	CategoryLocksKeys   RequestCategory = "LOCKS_KEYS"
	CategoryLandscaping RequestCategory = "LANDSCAPING"
	CategoryGeneral     RequestCategory = "GENERAL"
	CategoryOther       RequestCategory = "OTHER"
)

// PreferredSlot is the tenant's preferred visit window.
type PreferredSlot string

const (
	SlotMorning   PreferredSlot = "MORNING"
	SlotAfternoon PreferredSlot = "AFTERNOON"
	SlotEvening   PreferredSlot = "EVENING"
	SlotAnytime   PreferredSlot = "ANYTIME"
)

// MaintenanceRequest is the aggregate for tenant maintenance work orders.
// Tenant, unit, category, description and creation time are immutable after
// creation; everything else changes only through the transition operations.
type MaintenanceRequest struct {
	ID                string
	TenantID          string
	PropertyID        *string
	UnitID            string
	Category          RequestCategory
	Priority          RequestPriority
	State             RequestState
	Title             string
	Description       string
	PermissionToEnter bool
	PreferredDate     *time.Time
	PreferredSlot     *PreferredSlot

	TechnicianID *string
	SLAPolicyID  *string

	// Deadlines are frozen at creation and never recomputed.
	ResponseDueAt   *time.Time
	ResolutionDueAt time.Time

	CompletedAt     *time.Time
	CompletionNotes *string
	TenantSignature *string

	ResponseBreachRaised   bool
	ResolutionBreachRaised bool

	PhotoCount int

	CreatedAt time.Time
	UpdatedAt time.Time
}

var allowedTransitions = map[RequestState][]RequestState{
	RequestStatePending:    {RequestStateAssigned, RequestStateCancelled},
	RequestStateAssigned:   {RequestStateInProgress, RequestStateCompleted, RequestStateCancelled},
	RequestStateInProgress: {RequestStateCompleted},
	RequestStateCompleted:  {},
	RequestStateCancelled:  {},
}

// CanTransition reports whether the lifecycle permits moving to next.
func CanTransition(current, next RequestState) bool {
	for _, candidate := range allowedTransitions[current] {
		if candidate == next {
			return true
		}
	}
	return false
}

// IsOpen reports whether the request still counts against SLA deadlines.
func (r *MaintenanceRequest) IsOpen() bool {
	switch r.State {
	case RequestStatePending, RequestStateAssigned, RequestStateInProgress:
		return true
	}
	return false
}

// IsTerminal reports whether the request reached a final state.
func (r *MaintenanceRequest) IsTerminal() bool {
	return r.State == RequestStateCompleted || r.State == RequestStateCancelled
}

// CanCancel mirrors the guard exposed to clients: cancellation is only
// possible before work starts.
func (r *MaintenanceRequest) CanCancel() bool {
	return r.State == RequestStatePending || r.State == RequestStateAssigned
}

// CanSign reports whether tenant sign-off is currently possible.
func (r *MaintenanceRequest) CanSign() bool {
	return r.State == RequestStateCompleted && r.TenantSignature == nil
}

// ValidPriority reports whether p is a known priority value.
func ValidPriority(p RequestPriority) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityEmergency:
		return true
	}
	return false
}

// ValidCategory reports whether c is a known category value.
func ValidCategory(c RequestCategory) bool {
	switch c {
	case CategoryPlumbing, CategoryElectrical, CategoryHVAC, CategoryAppliance,
		CategoryStructural, CategoryPestControl, CategoryLocksKeys,
		CategoryLandscaping, CategoryGeneral, CategoryOther:
		return true
	}
	return false
}

// ValidSlot reports whether s is a known preferred slot.
func ValidSlot(s PreferredSlot) bool {
	switch s {
	case SlotMorning, SlotAfternoon, SlotEvening, SlotAnytime:
		return true
	}
	return false
}

const (
	// MinTitleLength and MinDescriptionLength enforce non-trivial content on
	// new requests. Thresholds are a product decision, not an invariant.
	MinTitleLength       = 4
	MinDescriptionLength = 10
)

// ValidateContent checks creation content requirements.
func ValidateContent(title, description string) map[string]any {
	problems := map[string]any{}
	if len(strings.TrimSpace(title)) < MinTitleLength {
		problems["title"] = "too short"
	}
	if len(strings.TrimSpace(description)) < MinDescriptionLength {
		problems["description"] = "too short"
	}
	if len(problems) == 0 {
		return nil
	}
	return problems
}
