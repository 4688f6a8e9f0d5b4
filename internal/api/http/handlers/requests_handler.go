package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/maintenance-service/internal/api/dto"
	"github.com/spec-kit/maintenance-service/internal/auth"
	"github.com/spec-kit/maintenance-service/internal/domain"
	"github.com/spec-kit/maintenance-service/internal/service"
	apperrors "github.com/spec-kit/maintenance-service/pkg/util"
)

// RequestsHandler manages tenant-facing maintenance request endpoints.
type RequestsHandler struct {
	service *service.RequestService
}

// NewRequestsHandler constructs handler.
func NewRequestsHandler(requestService *service.RequestService) *RequestsHandler {
	return &RequestsHandler{service: requestService}
}

// CreateRequest POST /requests.
func (h *RequestsHandler) CreateRequest(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.Tenant == nil {
		return apperrors.NewUnauthorized("tenant required")
	}
	var req dto.CreateRequestBody
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.UnitID == "" || req.Title == "" || req.Description == "" {
		return apperrors.NewValidationError("unit_id, title, description required", nil)
	}

	input := service.CreateRequestInput{
		UnitID:            req.UnitID,
		Category:          req.Category,
		Priority:          req.Priority,
		Title:             req.Title,
		Description:       req.Description,
		PermissionToEnter: req.PermissionToEnter,
		PreferredDate:     req.PreferredDate,
		PreferredSlot:     req.PreferredSlot,
	}
	request, err := h.service.Create(c.Context(), principal.Tenant.ID, input)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewRequestDetail(request)})
}

// ListRequests GET /requests.
func (h *RequestsHandler) ListRequests(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.Tenant == nil {
		return apperrors.NewUnauthorized("tenant required")
	}
	filter := parseRequestListQuery(c)
	requests, err := h.service.ListForTenant(c.Context(), principal.Tenant.ID, filter)
	if err != nil {
		return err
	}
	items := make([]dto.RequestSummary, 0, len(requests))
	for i := range requests {
		items = append(items, dto.NewRequestSummary(&requests[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// GetRequest GET /requests/:id.
func (h *RequestsHandler) GetRequest(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.Tenant == nil {
		return apperrors.NewUnauthorized("tenant required")
	}
	request, err := h.service.GetForTenant(c.Context(), principal.Tenant.ID, c.Params("id"))
	if err != nil {
		return err
	}
	history, err := h.service.Timeline(c.Context(), request.ID, 100, 0)
	if err != nil {
		return err
	}
	entries := make([]dto.HistoryEntryResponse, 0, len(history))
	for i := range history {
		entries = append(entries, dto.NewHistoryEntry(&history[i]))
	}
	detail := dto.NewRequestDetail(request)
	return c.JSON(fiber.Map{"data": fiber.Map{"request": detail, "timeline": entries}})
}

// CancelRequest POST /requests/:id/cancel.
func (h *RequestsHandler) CancelRequest(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.Tenant == nil {
		return apperrors.NewUnauthorized("tenant required")
	}
	var req dto.CancelRequestBody
	if err := c.BodyParser(&req); err != nil && len(c.Body()) > 0 {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	request, err := h.service.Cancel(c.Context(), c.Params("id"), domain.ActorTypeTenant, principal.Tenant.ID, req.Reason)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewRequestDetail(request)})
}

// SignOffRequest POST /requests/:id/signoff.
func (h *RequestsHandler) SignOffRequest(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.Tenant == nil {
		return apperrors.NewUnauthorized("tenant required")
	}
	var req dto.SignOffBody
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(req.Signature) == "" {
		return apperrors.NewValidationError("signature required", nil)
	}
	request, err := h.service.SignOff(c.Context(), c.Params("id"), principal.Tenant.ID, req.Signature)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewRequestDetail(request)})
}

// AddNote POST /requests/:id/notes.
func (h *RequestsHandler) AddNote(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.Tenant == nil {
		return apperrors.NewUnauthorized("tenant required")
	}
	var req dto.CreateNoteBody
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(req.Body) == "" {
		return apperrors.NewValidationError("body required", nil)
	}
	// Ownership gate before touching the thread.
	if _, err := h.service.GetForTenant(c.Context(), principal.Tenant.ID, c.Params("id")); err != nil {
		return err
	}
	note, err := h.service.AddNote(c.Context(), c.Params("id"), domain.ActorTypeTenant, principal.Tenant.ID, req.Body)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewNoteResponse(note)})
}

// ListNotes GET /requests/:id/notes.
func (h *RequestsHandler) ListNotes(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.Tenant == nil {
		return apperrors.NewUnauthorized("tenant required")
	}
	if _, err := h.service.GetForTenant(c.Context(), principal.Tenant.ID, c.Params("id")); err != nil {
		return err
	}
	notes, err := h.service.Notes(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	items := make([]dto.NoteResponse, 0, len(notes))
	for i := range notes {
		items = append(items, dto.NewNoteResponse(&notes[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// AttachPhoto POST /requests/:id/photos.
func (h *RequestsHandler) AttachPhoto(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.Tenant == nil {
		return apperrors.NewUnauthorized("tenant required")
	}
	var req dto.AttachPhotoBody
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(req.StorageURL) == "" {
		return apperrors.NewValidationError("storage_url required", nil)
	}
	photo, err := h.service.AttachPhoto(c.Context(), c.Params("id"), principal.Tenant.ID, req.StorageURL, req.ThumbnailURL, req.Caption)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewPhotoResponse(photo)})
}

// ListPhotos GET /requests/:id/photos.
func (h *RequestsHandler) ListPhotos(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.Tenant == nil {
		return apperrors.NewUnauthorized("tenant required")
	}
	if _, err := h.service.GetForTenant(c.Context(), principal.Tenant.ID, c.Params("id")); err != nil {
		return err
	}
	photos, err := h.service.Photos(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	items := make([]dto.PhotoResponse, 0, len(photos))
	for i := range photos {
		items = append(items, dto.NewPhotoResponse(&photos[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

func parseRequestListQuery(c *fiber.Ctx) service.RequestListFilter {
	filter := service.RequestListFilter{}
	if stateStr := c.Query("state"); stateStr != "" {
		for _, part := range strings.Split(stateStr, ",") {
			filter.States = append(filter.States, domain.RequestState(strings.TrimSpace(part)))
		}
	}
	if priorityStr := c.Query("priority"); priorityStr != "" {
		for _, part := range strings.Split(priorityStr, ",") {
			filter.Priorities = append(filter.Priorities, domain.RequestPriority(strings.TrimSpace(part)))
		}
	}
	if unitID := c.Query("unit_id"); unitID != "" {
		filter.UnitID = &unitID
	}
	if technicianID := c.Query("technician_id"); technicianID != "" {
		filter.TechnicianID = &technicianID
	}
	if from := parseTime(c.Query("created_from")); from != nil {
		filter.CreatedFrom = from
	}
	if to := parseTime(c.Query("created_to")); to != nil {
		filter.CreatedTo = to
	}
	page := parseInt(c.Query("page"), 1)
	pageSize := parseInt(c.Query("page_size"), 20)
	filter.Offset = (page - 1) * pageSize
	filter.Limit = pageSize
	return filter
}

func parseTime(val string) *time.Time {
	if val == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, val)
	if err != nil {
		return nil
	}
	return &t
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}
