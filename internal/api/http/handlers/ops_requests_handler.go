package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/maintenance-service/internal/api/dto"
	"github.com/spec-kit/maintenance-service/internal/auth"
	"github.com/spec-kit/maintenance-service/internal/service"
	apperrors "github.com/spec-kit/maintenance-service/pkg/util"
)

// OpsRequestsHandler manages staff-facing request operations.
type OpsRequestsHandler struct {
	requests    *service.RequestService
	assignments *service.AssignmentService
}

// NewOpsRequestsHandler constructs handler.
func NewOpsRequestsHandler(requestService *service.RequestService, assignmentService *service.AssignmentService) *OpsRequestsHandler {
	return &OpsRequestsHandler{requests: requestService, assignments: assignmentService}
}

// ListRequests GET /ops/requests.
func (h *OpsRequestsHandler) ListRequests(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.Staff == nil {
		return apperrors.NewUnauthorized("staff required")
	}
	filter := parseRequestListQuery(c)
	if propertyID := c.Query("property_id"); propertyID != "" {
		filter.PropertyID = &propertyID
	}
	requests, err := h.requests.ListForOps(c.Context(), principal.Staff, filter)
	if err != nil {
		return err
	}
	items := make([]dto.RequestSummary, 0, len(requests))
	for i := range requests {
		items = append(items, dto.NewRequestSummary(&requests[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Summary GET /ops/requests/summary.
func (h *OpsRequestsHandler) Summary(c *fiber.Ctx) error {
	counts, err := h.requests.Summary(c.Context())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.SummaryResponse{Counts: counts}})
}

// Timeline GET /ops/requests/:id/timeline.
func (h *OpsRequestsHandler) Timeline(c *fiber.Ctx) error {
	limit := parseInt(c.Query("limit"), 100)
	offset := 0
	if page := parseInt(c.Query("page"), 1); page > 1 {
		offset = (page - 1) * limit
	}
	history, err := h.requests.Timeline(c.Context(), c.Params("id"), limit, offset)
	if err != nil {
		return err
	}
	entries := make([]dto.HistoryEntryResponse, 0, len(history))
	for i := range history {
		entries = append(entries, dto.NewHistoryEntry(&history[i]))
	}
	return c.JSON(fiber.Map{"data": entries})
}

// Assign POST /ops/requests/:id/assign.
func (h *OpsRequestsHandler) Assign(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.Staff == nil {
		return apperrors.NewUnauthorized("staff required")
	}
	var req dto.AssignRequestBody
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.TechnicianID == "" {
		return apperrors.NewValidationError("technician_id required", nil)
	}
	request, err := h.assignments.Assign(c.Context(), c.Params("id"), req.TechnicianID, principal.Staff.ID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewRequestDetail(request)})
}

// Reassign POST /ops/requests/:id/reassign.
func (h *OpsRequestsHandler) Reassign(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.Staff == nil {
		return apperrors.NewUnauthorized("staff required")
	}
	var req dto.AssignRequestBody
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.TechnicianID == "" {
		return apperrors.NewValidationError("technician_id required", nil)
	}
	request, err := h.assignments.Reassign(c.Context(), c.Params("id"), req.TechnicianID, principal.Staff.ID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewRequestDetail(request)})
}

// Start POST /ops/requests/:id/start.
func (h *OpsRequestsHandler) Start(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.Staff == nil {
		return apperrors.NewUnauthorized("staff required")
	}
	request, err := h.requests.StartWork(c.Context(), c.Params("id"), principal.Staff.ID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewRequestDetail(request)})
}

// Complete POST /ops/requests/:id/complete.
func (h *OpsRequestsHandler) Complete(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.Staff == nil {
		return apperrors.NewUnauthorized("staff required")
	}
	var req dto.CompleteRequestBody
	if err := c.BodyParser(&req); err != nil && len(c.Body()) > 0 {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	request, err := h.requests.Complete(c.Context(), c.Params("id"), principal.Staff.ID, req.CompletionNotes)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewRequestDetail(request)})
}

// Retriage POST /ops/requests/:id/retriage.
func (h *OpsRequestsHandler) Retriage(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.Staff == nil {
		return apperrors.NewUnauthorized("staff required")
	}
	var req dto.RetriageRequestBody
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(string(req.Priority)) == "" {
		return apperrors.NewValidationError("priority required", nil)
	}
	request, err := h.requests.Retriage(c.Context(), c.Params("id"), principal.Staff.ID, req.Priority, req.Reason)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewRequestDetail(request)})
}
