package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/maintenance-service/internal/api/dto"
	"github.com/spec-kit/maintenance-service/internal/service"
)

// DirectoryHandler serves the ops reference endpoints: technician directory
// and active SLA policies.
type DirectoryHandler struct {
	assignments *service.AssignmentService
	policies    *service.SLAPolicyService
}

// NewDirectoryHandler constructs handler.
func NewDirectoryHandler(assignmentService *service.AssignmentService, policyService *service.SLAPolicyService) *DirectoryHandler {
	return &DirectoryHandler{assignments: assignmentService, policies: policyService}
}

// ListTechnicians GET /ops/technicians.
func (h *DirectoryHandler) ListTechnicians(c *fiber.Ctx) error {
	technicians, err := h.assignments.ListTechnicians(c.Context())
	if err != nil {
		return err
	}
	items := make([]dto.TechnicianResponse, 0, len(technicians))
	for i := range technicians {
		items = append(items, dto.NewTechnicianResponse(&technicians[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// ListPolicies GET /ops/policies.
func (h *DirectoryHandler) ListPolicies(c *fiber.Ctx) error {
	var propertyID *string
	if val := c.Query("property_id"); val != "" {
		propertyID = &val
	}
	policies, err := h.policies.ListActive(c.Context(), propertyID)
	if err != nil {
		return err
	}
	items := make([]dto.PolicyResponse, 0, len(policies))
	for i := range policies {
		items = append(items, dto.NewPolicyResponse(&policies[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}
