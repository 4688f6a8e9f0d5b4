package dto

import (
	"time"

	"github.com/spec-kit/maintenance-service/internal/domain"
)

// TechnicianResponse is one directory entry.
type TechnicianResponse struct {
	ID        string                `json:"id"`
	Name      string                `json:"name"`
	Role      domain.TechnicianRole `json:"role"`
	Phone     *string               `json:"phone"`
	Email     *string               `json:"email"`
	Specialty *string               `json:"specialty"`
	Active    bool                  `json:"active"`
	CreatedAt time.Time             `json:"created_at"`
}

// NewTechnicianResponse projects a technician.
func NewTechnicianResponse(t *domain.Technician) TechnicianResponse {
	return TechnicianResponse{
		ID:        t.ID,
		Name:      t.Name,
		Role:      t.Role,
		Phone:     t.Phone,
		Email:     t.Email,
		Specialty: t.Specialty,
		Active:    t.Active,
		CreatedAt: t.CreatedAt,
	}
}
