package dto

import (
	"time"

	"github.com/spec-kit/maintenance-service/internal/domain"
)

// CreateRequestBody payload.
type CreateRequestBody struct {
	UnitID            string                 `json:"unit_id"`
	Category          domain.RequestCategory `json:"category"`
	Priority          domain.RequestPriority `json:"priority"`
	Title             string                 `json:"title"`
	Description       string                 `json:"description"`
	PermissionToEnter bool                   `json:"permission_to_enter"`
	PreferredDate     *time.Time             `json:"preferred_date"`
	PreferredSlot     *domain.PreferredSlot  `json:"preferred_slot"`
}

// CancelRequestBody payload.
type CancelRequestBody struct {
	Reason string `json:"reason"`
}

// SignOffBody payload.
type SignOffBody struct {
	Signature string `json:"signature"`
}

// CompleteRequestBody payload.
type CompleteRequestBody struct {
	CompletionNotes string `json:"completion_notes"`
}

// AssignRequestBody payload.
type AssignRequestBody struct {
	TechnicianID string `json:"technician_id"`
}

// RetriageRequestBody payload.
type RetriageRequestBody struct {
	Priority domain.RequestPriority `json:"priority"`
	Reason   string                 `json:"reason"`
}

// CreateNoteBody payload.
type CreateNoteBody struct {
	Body string `json:"body"`
}

// AttachPhotoBody payload. Binary content lives in external storage; the core
// only tracks references.
type AttachPhotoBody struct {
	StorageURL   string  `json:"storage_url"`
	ThumbnailURL *string `json:"thumbnail_url"`
	Caption      *string `json:"caption"`
}

// RequestSummary is the list-item projection.
type RequestSummary struct {
	ID              string                 `json:"id"`
	UnitID          string                 `json:"unit_id"`
	PropertyID      *string                `json:"property_id"`
	Category        domain.RequestCategory `json:"category"`
	Priority        domain.RequestPriority `json:"priority"`
	State           domain.RequestState    `json:"state"`
	Title           string                 `json:"title"`
	TechnicianID    *string                `json:"technician_id"`
	ResponseDueAt   *time.Time             `json:"response_due_at"`
	ResolutionDueAt time.Time              `json:"resolution_due_at"`
	CreatedAt       time.Time              `json:"created_at"`
	UpdatedAt       time.Time              `json:"updated_at"`
}

// RequestDetailResponse provides full request info plus derived permissions.
type RequestDetailResponse struct {
	ID                     string                 `json:"id"`
	UnitID                 string                 `json:"unit_id"`
	PropertyID             *string                `json:"property_id"`
	Category               domain.RequestCategory `json:"category"`
	Priority               domain.RequestPriority `json:"priority"`
	State                  domain.RequestState    `json:"state"`
	Title                  string                 `json:"title"`
	Description            string                 `json:"description"`
	PermissionToEnter      bool                   `json:"permission_to_enter"`
	PreferredDate          *time.Time             `json:"preferred_date"`
	PreferredSlot          *domain.PreferredSlot  `json:"preferred_slot"`
	TechnicianID           *string                `json:"technician_id"`
	SLAPolicyID            *string                `json:"sla_policy_id"`
	ResponseDueAt          *time.Time             `json:"response_due_at"`
	ResolutionDueAt        time.Time              `json:"resolution_due_at"`
	CompletedAt            *time.Time             `json:"completed_at"`
	CompletionNotes        *string                `json:"completion_notes"`
	TenantSignature        *string                `json:"tenant_signature"`
	ResponseBreachRaised   bool                   `json:"response_breach_raised"`
	ResolutionBreachRaised bool                   `json:"resolution_breach_raised"`
	PhotoCount             int                    `json:"photo_count"`
	CanCancel              bool                   `json:"can_cancel"`
	CanSign                bool                   `json:"can_sign"`
	CreatedAt              time.Time              `json:"created_at"`
	UpdatedAt              time.Time              `json:"updated_at"`
}

// HistoryEntryResponse is one ledger row.
type HistoryEntryResponse struct {
	ID        string               `json:"id"`
	FromState *domain.RequestState `json:"from_state"`
	ToState   domain.RequestState  `json:"to_state"`
	ActorType domain.ActorType     `json:"actor_type"`
	ActorID   *string              `json:"actor_id"`
	Notes     *string              `json:"notes"`
	Sequence  int64                `json:"sequence"`
	CreatedAt time.Time            `json:"created_at"`
}

// NoteResponse is one note on the request thread.
type NoteResponse struct {
	ID         string           `json:"id"`
	AuthorType domain.ActorType `json:"author_type"`
	AuthorID   *string          `json:"author_id"`
	Body       string           `json:"body"`
	CreatedAt  time.Time        `json:"created_at"`
}

// PhotoResponse is one photo reference.
type PhotoResponse struct {
	ID           string    `json:"id"`
	StorageURL   string    `json:"storage_url"`
	ThumbnailURL *string   `json:"thumbnail_url"`
	Caption      *string   `json:"caption"`
	CreatedAt    time.Time `json:"created_at"`
}

// SummaryResponse maps state to open counts for the ops dashboard.
type SummaryResponse struct {
	Counts map[domain.RequestState]int64 `json:"counts"`
}

// NewRequestSummary projects a request into the list shape.
func NewRequestSummary(r *domain.MaintenanceRequest) RequestSummary {
	return RequestSummary{
		ID:              r.ID,
		UnitID:          r.UnitID,
		PropertyID:      r.PropertyID,
		Category:        r.Category,
		Priority:        r.Priority,
		State:           r.State,
		Title:           r.Title,
		TechnicianID:    r.TechnicianID,
		ResponseDueAt:   r.ResponseDueAt,
		ResolutionDueAt: r.ResolutionDueAt,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
}

// NewRequestDetail projects a request into the detail shape.
func NewRequestDetail(r *domain.MaintenanceRequest) RequestDetailResponse {
	return RequestDetailResponse{
		ID:                     r.ID,
		UnitID:                 r.UnitID,
		PropertyID:             r.PropertyID,
		Category:               r.Category,
		Priority:               r.Priority,
		State:                  r.State,
		Title:                  r.Title,
		Description:            r.Description,
		PermissionToEnter:      r.PermissionToEnter,
		PreferredDate:          r.PreferredDate,
		PreferredSlot:          r.PreferredSlot,
		TechnicianID:           r.TechnicianID,
		SLAPolicyID:            r.SLAPolicyID,
		ResponseDueAt:          r.ResponseDueAt,
		ResolutionDueAt:        r.ResolutionDueAt,
		CompletedAt:            r.CompletedAt,
		CompletionNotes:        r.CompletionNotes,
		TenantSignature:        r.TenantSignature,
		ResponseBreachRaised:   r.ResponseBreachRaised,
		ResolutionBreachRaised: r.ResolutionBreachRaised,
		PhotoCount:             r.PhotoCount,
		CanCancel:              r.CanCancel(),
		CanSign:                r.CanSign(),
		CreatedAt:              r.CreatedAt,
		UpdatedAt:              r.UpdatedAt,
	}
}

// NewHistoryEntry projects a ledger row.
func NewHistoryEntry(e *domain.StatusHistoryEntry) HistoryEntryResponse {
	return HistoryEntryResponse{
		ID:        e.ID,
		FromState: e.FromState,
		ToState:   e.ToState,
		ActorType: e.ActorType,
		ActorID:   e.ActorID,
		Notes:     e.Notes,
		Sequence:  e.Sequence,
		CreatedAt: e.CreatedAt,
	}
}

// NewNoteResponse projects a note.
func NewNoteResponse(n *domain.MaintenanceNote) NoteResponse {
	return NoteResponse{
		ID:         n.ID,
		AuthorType: n.AuthorType,
		AuthorID:   n.AuthorID,
		Body:       n.Body,
		CreatedAt:  n.CreatedAt,
	}
}

// NewPhotoResponse projects a photo reference.
func NewPhotoResponse(p *domain.PhotoReference) PhotoResponse {
	return PhotoResponse{
		ID:           p.ID,
		StorageURL:   p.StorageURL,
		ThumbnailURL: p.ThumbnailURL,
		Caption:      p.Caption,
		CreatedAt:    p.CreatedAt,
	}
}
