package domain

import "time"

// SLAPolicy maps a (priority, property-scope) pair to response and resolution
// commitments. PropertyID nil means the policy is the global default for its
// priority; a property-scoped active policy takes precedence over the global
// one. At most one active policy should exist per scope; the reader side
// tolerates duplicates defensively.
type SLAPolicy struct {
	ID                    string
	Name                  string
	Priority              RequestPriority
	PropertyID            *string
	ResponseTimeMinutes   *int
	ResolutionTimeMinutes int
	Active                bool
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// Deadlines computes the response and resolution due instants for a request
// created at createdAt. Pure, deterministic, timezone-agnostic: minutes are
// added to the absolute instant, never to local wall-clock time.
func (p SLAPolicy) Deadlines(createdAt time.Time) (responseDue *time.Time, resolutionDue time.Time) {
	resolutionDue = createdAt.Add(time.Duration(p.ResolutionTimeMinutes) * time.Minute)
	if p.ResponseTimeMinutes != nil {
		due := createdAt.Add(time.Duration(*p.ResponseTimeMinutes) * time.Minute)
		responseDue = &due
	}
	return responseDue, resolutionDue
}

// Scoped reports whether the policy applies to a specific property.
func (p SLAPolicy) Scoped() bool {
	return p.PropertyID != nil
}
