package dto

import (
	"time"

	"github.com/spec-kit/maintenance-service/internal/domain"
)

// PolicyResponse is one SLA policy as returned to ops.
type PolicyResponse struct {
	ID                    string                 `json:"id"`
	Name                  string                 `json:"name"`
	Priority              domain.RequestPriority `json:"priority"`
	PropertyID            *string                `json:"property_id"`
	ResponseTimeMinutes   *int                   `json:"response_time_minutes"`
	ResolutionTimeMinutes int                    `json:"resolution_time_minutes"`
	Active                bool                   `json:"active"`
	CreatedAt             time.Time              `json:"created_at"`
	UpdatedAt             time.Time              `json:"updated_at"`
}

// NewPolicyResponse projects a policy.
func NewPolicyResponse(p *domain.SLAPolicy) PolicyResponse {
	return PolicyResponse{
		ID:                    p.ID,
		Name:                  p.Name,
		Priority:              p.Priority,
		PropertyID:            p.PropertyID,
		ResponseTimeMinutes:   p.ResponseTimeMinutes,
		ResolutionTimeMinutes: p.ResolutionTimeMinutes,
		Active:                p.Active,
		CreatedAt:             p.CreatedAt,
		UpdatedAt:             p.UpdatedAt,
	}
}
