package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/maintenance-service/internal/domain"
	"github.com/spec-kit/maintenance-service/internal/events"
	"github.com/spec-kit/maintenance-service/internal/repository"
	apperrors "github.com/spec-kit/maintenance-service/pkg/util"
)

// RequestService owns the maintenance request lifecycle. Every mutation goes
// through a per-request lock so concurrent transitions on the same request
// serialize into exactly one winner; the rest see the new state and are
// rejected deterministically.
type RequestService struct {
	requests   repository.RequestRepository
	history    repository.StatusHistoryRepository
	units      repository.UnitRepository
	properties repository.PropertyRepository
	notes      repository.NoteRepository
	photos     repository.PhotoRepository

	policies   *SLAPolicyService
	dispatcher events.Dispatcher
	logger     *zap.Logger

	locks        *LockRegistry
	lockTimeout  time.Duration
	retryBackoff time.Duration
}

// RequestDependencies bundles collaborators for the request service.
type RequestDependencies struct {
	RequestRepo  repository.RequestRepository
	HistoryRepo  repository.StatusHistoryRepository
	UnitRepo     repository.UnitRepository
	PropertyRepo repository.PropertyRepository
	NoteRepo     repository.NoteRepository
	PhotoRepo    repository.PhotoRepository
	Policies     *SLAPolicyService
	Dispatcher   events.Dispatcher
	Logger       *zap.Logger
	Locks        *LockRegistry
	LockTimeout  time.Duration
	RetryBackoff time.Duration
}

// CreateRequestInput describes the tenant creation payload.
type CreateRequestInput struct {
	UnitID            string
	Category          domain.RequestCategory
	Priority          domain.RequestPriority
	Title             string
	Description       string
	PermissionToEnter bool
	PreferredDate     *time.Time
	PreferredSlot     *domain.PreferredSlot
}

// RequestListFilter describes listing filters shared by tenant and ops views.
type RequestListFilter struct {
	States       []domain.RequestState
	Priorities   []domain.RequestPriority
	PropertyID   *string
	UnitID       *string
	TechnicianID *string
	CreatedFrom  *time.Time
	CreatedTo    *time.Time
	Limit        int
	Offset       int
}

// NewRequestService constructs the service.
func NewRequestService(deps RequestDependencies) *RequestService {
	timeout := deps.LockTimeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	locks := deps.Locks
	if locks == nil {
		locks = NewLockRegistry()
	}
	return &RequestService{
		requests:     deps.RequestRepo,
		history:      deps.HistoryRepo,
		units:        deps.UnitRepo,
		properties:   deps.PropertyRepo,
		notes:        deps.NoteRepo,
		photos:       deps.PhotoRepo,
		policies:     deps.Policies,
		dispatcher:   deps.Dispatcher,
		logger:       deps.Logger,
		locks:        locks,
		lockTimeout:  timeout,
		retryBackoff: deps.RetryBackoff,
	}
}

// Locks exposes the registry so the assignment service shares the same
// per-request serialization.
func (s *RequestService) Locks() *LockRegistry {
	return s.locks
}

// Create validates content, resolves the SLA policy for the unit's property,
// freezes both deadlines, and starts the request at PENDING with its first
// ledger entry.
func (s *RequestService) Create(ctx context.Context, tenantID string, input CreateRequestInput) (*domain.MaintenanceRequest, error) {
	if problems := domain.ValidateContent(input.Title, input.Description); problems != nil {
		return nil, apperrors.NewValidationError("title or description too short", problems)
	}
	if !domain.ValidCategory(input.Category) {
		return nil, apperrors.NewValidationError("unknown category", map[string]any{"category": input.Category})
	}
	if input.Priority == "" {
		input.Priority = domain.PriorityMedium
	}
	if !domain.ValidPriority(input.Priority) {
		return nil, apperrors.NewValidationError("unknown priority", map[string]any{"priority": input.Priority})
	}
	if input.PreferredSlot != nil && !domain.ValidSlot(*input.PreferredSlot) {
		return nil, apperrors.NewValidationError("unknown preferred slot", map[string]any{"preferred_slot": *input.PreferredSlot})
	}

	unit, err := s.units.GetByID(ctx, input.UnitID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("unit", map[string]any{"unit_id": input.UnitID})
		}
		return nil, apperrors.MapError(err)
	}
	if !unit.IsActive {
		return nil, apperrors.NewValidationError("unit is not active", map[string]any{"unit_id": unit.ID})
	}
	property, err := s.properties.GetByID(ctx, unit.PropertyID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("property", map[string]any{"property_id": unit.PropertyID})
		}
		return nil, apperrors.MapError(err)
	}
	if !property.IsActive {
		return nil, apperrors.NewValidationError("property is not active", map[string]any{"property_id": property.ID})
	}

	propertyID := unit.PropertyID
	policy, err := s.policies.Resolve(ctx, input.Priority, &propertyID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	responseDue, resolutionDue := policy.Deadlines(now)

	request := &domain.MaintenanceRequest{
		TenantID:          tenantID,
		PropertyID:        &propertyID,
		UnitID:            unit.ID,
		Category:          input.Category,
		Priority:          input.Priority,
		State:             domain.RequestStatePending,
		Title:             strings.TrimSpace(input.Title),
		Description:       strings.TrimSpace(input.Description),
		PermissionToEnter: input.PermissionToEnter,
		PreferredDate:     input.PreferredDate,
		PreferredSlot:     input.PreferredSlot,
		SLAPolicyID:       &policy.ID,
		ResponseDueAt:     responseDue,
		ResolutionDueAt:   resolutionDue,
	}
	if err := s.requests.Create(ctx, request); err != nil {
		return nil, apperrors.MapError(err)
	}
	if err := s.appendHistory(ctx, request.ID, nil, domain.RequestStatePending, domain.ActorTypeTenant, &tenantID, strPtr("request created")); err != nil {
		return nil, err
	}
	s.publish(ctx, events.Event{
		Type:      events.EventRequestCreated,
		RequestID: request.ID,
		Actor:     tenantActor(tenantID),
		Payload: events.RequestCreatedPayload{
			UnitID:          request.UnitID,
			PropertyID:      request.PropertyID,
			Category:        request.Category,
			Priority:        request.Priority,
			Title:           request.Title,
			ResponseDueAt:   request.ResponseDueAt,
			ResolutionDueAt: request.ResolutionDueAt,
		},
	})
	return request, nil
}

// StartWork moves ASSIGNED work to IN_PROGRESS.
func (s *RequestService) StartWork(ctx context.Context, requestID string, staffID string) (*domain.MaintenanceRequest, error) {
	return s.transition(ctx, requestID, domain.RequestStateInProgress, domain.ActorTypeStaff, &staffID, nil,
		func(request *domain.MaintenanceRequest) error {
			if request.State != domain.RequestStateAssigned {
				return apperrors.NewInvalidState("work can only start on an assigned request", stateDetails(request))
			}
			return nil
		}, nil)
}

// Cancel cancels a request that has not started work yet. Breach flags are
// frozen: the monitor skips non-open states, so no further breach events fire.
func (s *RequestService) Cancel(ctx context.Context, requestID string, actorType domain.ActorType, actorID string, reason string) (*domain.MaintenanceRequest, error) {
	notes := strings.TrimSpace(reason)
	var notesPtr *string
	if notes != "" {
		notesPtr = &notes
	}
	return s.transition(ctx, requestID, domain.RequestStateCancelled, actorType, &actorID, notesPtr,
		func(request *domain.MaintenanceRequest) error {
			if actorType == domain.ActorTypeTenant && request.TenantID != actorID {
				return apperrors.NewForbidden("not the requesting tenant")
			}
			if !request.CanCancel() {
				if request.State == domain.RequestStateInProgress {
					return apperrors.NewInvalidState("cannot cancel a request already in progress", stateDetails(request))
				}
				return apperrors.NewInvalidState("request can no longer be cancelled", stateDetails(request))
			}
			return nil
		}, nil)
}

// Complete finishes work from ASSIGNED or IN_PROGRESS, stamping completion.
func (s *RequestService) Complete(ctx context.Context, requestID string, staffID string, completionNotes string) (*domain.MaintenanceRequest, error) {
	trimmed := strings.TrimSpace(completionNotes)
	var notesPtr *string
	if trimmed != "" {
		notesPtr = &trimmed
	}
	return s.transition(ctx, requestID, domain.RequestStateCompleted, domain.ActorTypeStaff, &staffID, notesPtr,
		func(request *domain.MaintenanceRequest) error {
			if request.State != domain.RequestStateAssigned && request.State != domain.RequestStateInProgress {
				return apperrors.NewInvalidState("only assigned or in-progress work can be completed", stateDetails(request))
			}
			return nil
		},
		func(request *domain.MaintenanceRequest) {
			now := time.Now()
			request.CompletedAt = &now
			request.CompletionNotes = notesPtr
		})
}

// SignOff records the tenant's signature on completed work, exactly once. A
// second attempt is surfaced as AlreadySigned because it is evidence of a
// client bug or a replay, never silently absorbed.
func (s *RequestService) SignOff(ctx context.Context, requestID, tenantID, signatureToken string) (*domain.MaintenanceRequest, error) {
	if strings.TrimSpace(signatureToken) == "" {
		return nil, apperrors.NewValidationError("signature token required", nil)
	}

	release, ok := s.locks.Acquire(ctx, requestID, s.lockTimeout)
	if !ok {
		return nil, apperrors.NewBusy(requestID)
	}
	defer release()

	request, err := s.getRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if request.TenantID != tenantID {
		return nil, apperrors.NewForbidden("only the requesting tenant can sign off")
	}
	if request.State != domain.RequestStateCompleted {
		return nil, apperrors.NewInvalidState("only completed work can be signed off", stateDetails(request))
	}
	if request.TenantSignature != nil {
		return nil, apperrors.NewAlreadySigned(requestID)
	}

	request.TenantSignature = &signatureToken
	entry := &domain.StatusHistoryEntry{
		RequestID: request.ID,
		ToState:   request.State,
		FromState: &request.State,
		ActorType: domain.ActorTypeTenant,
		ActorID:   &tenantID,
		Notes:     strPtr("tenant signed off completion"),
	}
	if err := retryStorage(ctx, s.retryBackoff, func() error {
		return s.requests.ApplyTransition(ctx, request, entry)
	}); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.publish(ctx, events.Event{
		Type:      events.EventRequestSignedOff,
		RequestID: request.ID,
		Actor:     tenantActor(tenantID),
		Payload:   events.RequestSignedOffPayload{TenantID: tenantID},
	})
	return request, nil
}

// Retriage changes priority before assignment. Deadlines stay frozen at their
// creation-time values: commitments already made to a tenant never move.
func (s *RequestService) Retriage(ctx context.Context, requestID, staffID string, newPriority domain.RequestPriority, reason string) (*domain.MaintenanceRequest, error) {
	if !domain.ValidPriority(newPriority) {
		return nil, apperrors.NewValidationError("unknown priority", map[string]any{"priority": newPriority})
	}

	release, ok := s.locks.Acquire(ctx, requestID, s.lockTimeout)
	if !ok {
		return nil, apperrors.NewBusy(requestID)
	}
	defer release()

	request, err := s.getRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if request.State != domain.RequestStatePending {
		return nil, apperrors.NewInvalidState("priority can only change before assignment", stateDetails(request))
	}
	if request.Priority == newPriority {
		return request, nil
	}

	oldPriority := request.Priority
	request.Priority = newPriority
	note := "priority " + string(oldPriority) + " -> " + string(newPriority)
	if strings.TrimSpace(reason) != "" {
		note += ": " + strings.TrimSpace(reason)
	}
	entry := &domain.StatusHistoryEntry{
		RequestID: request.ID,
		ToState:   request.State,
		FromState: &request.State,
		ActorType: domain.ActorTypeStaff,
		ActorID:   &staffID,
		Notes:     &note,
	}
	if err := retryStorage(ctx, s.retryBackoff, func() error {
		return s.requests.ApplyTransition(ctx, request, entry)
	}); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.publish(ctx, events.Event{
		Type:      events.EventRequestPriorityChanged,
		RequestID: request.ID,
		Actor:     staffActor(staffID),
		Payload: events.RequestPriorityChangedPayload{
			OldPriority: oldPriority,
			NewPriority: newPriority,
			Reason:      reason,
		},
	})
	return request, nil
}

// Reopen is not part of this lifecycle version.
func (s *RequestService) Reopen(ctx context.Context, requestID string) (*domain.MaintenanceRequest, error) {
	return nil, apperrors.NewTransitionNotAllowed("re-opening requests is not supported")
}

// GetForTenant fetches a request ensuring ownership.
func (s *RequestService) GetForTenant(ctx context.Context, tenantID, requestID string) (*domain.MaintenanceRequest, error) {
	request, err := s.getRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if request.TenantID != tenantID {
		return nil, apperrors.NewForbidden("not the requesting tenant")
	}
	return request, nil
}

// ListForTenant returns the tenant's own requests.
func (s *RequestService) ListForTenant(ctx context.Context, tenantID string, filter RequestListFilter) ([]domain.MaintenanceRequest, error) {
	repoFilter := repository.RequestFilter{
		TenantID:    &tenantID,
		States:      filter.States,
		Priorities:  filter.Priorities,
		CreatedFrom: filter.CreatedFrom,
		CreatedTo:   filter.CreatedTo,
		Limit:       filter.Limit,
		Offset:      filter.Offset,
	}
	requests, err := s.requests.ListWithFilter(ctx, repoFilter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return requests, nil
}

// ListForOps returns requests for the ops view, scoped to the staff member's
// property when one is set.
func (s *RequestService) ListForOps(ctx context.Context, staff *domain.StaffMember, filter RequestListFilter) ([]domain.MaintenanceRequest, error) {
	repoFilter := repository.RequestFilter{
		PropertyID:   filter.PropertyID,
		UnitID:       filter.UnitID,
		TechnicianID: filter.TechnicianID,
		States:       filter.States,
		Priorities:   filter.Priorities,
		CreatedFrom:  filter.CreatedFrom,
		CreatedTo:    filter.CreatedTo,
		Limit:        filter.Limit,
		Offset:       filter.Offset,
	}
	if staff != nil && staff.Role != domain.StaffRoleAdmin && staff.PropertyID != nil {
		repoFilter.PropertyID = staff.PropertyID
	}
	requests, err := s.requests.ListWithFilter(ctx, repoFilter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return requests, nil
}

// Timeline returns the ordered transition ledger for a request.
func (s *RequestService) Timeline(ctx context.Context, requestID string, limit, offset int) ([]domain.StatusHistoryEntry, error) {
	if _, err := s.getRequest(ctx, requestID); err != nil {
		return nil, err
	}
	entries, err := s.history.ListByRequest(ctx, requestID, limit, offset)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return entries, nil
}

// Summary returns request counts by state for the ops dashboard.
func (s *RequestService) Summary(ctx context.Context) (map[domain.RequestState]int64, error) {
	counts, err := s.requests.CountByState(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return counts, nil
}

// AddNote appends a free-text note to the request thread.
func (s *RequestService) AddNote(ctx context.Context, requestID string, authorType domain.ActorType, authorID, body string) (*domain.MaintenanceNote, error) {
	if strings.TrimSpace(body) == "" {
		return nil, apperrors.NewValidationError("note body required", nil)
	}
	request, err := s.getRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if authorType == domain.ActorTypeTenant && request.TenantID != authorID {
		return nil, apperrors.NewForbidden("not the requesting tenant")
	}
	note := &domain.MaintenanceNote{
		RequestID:  request.ID,
		AuthorType: authorType,
		AuthorID:   &authorID,
		Body:       strings.TrimSpace(body),
	}
	if err := s.notes.Create(ctx, note); err != nil {
		return nil, apperrors.MapError(err)
	}
	return note, nil
}

// Notes lists the request's note thread.
func (s *RequestService) Notes(ctx context.Context, requestID string) ([]domain.MaintenanceNote, error) {
	notes, err := s.notes.ListByRequest(ctx, requestID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return notes, nil
}

// AttachPhoto records an external photo reference. Binary content stays in
// the external store; only the URL travels through this core.
func (s *RequestService) AttachPhoto(ctx context.Context, requestID, tenantID, storageURL string, thumbnailURL, caption *string) (*domain.PhotoReference, error) {
	if strings.TrimSpace(storageURL) == "" {
		return nil, apperrors.NewValidationError("storage url required", nil)
	}
	request, err := s.getRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if request.TenantID != tenantID {
		return nil, apperrors.NewForbidden("not the requesting tenant")
	}
	photo := &domain.PhotoReference{
		RequestID:    request.ID,
		StorageURL:   storageURL,
		ThumbnailURL: thumbnailURL,
		Caption:      caption,
	}
	if err := s.photos.Create(ctx, photo); err != nil {
		return nil, apperrors.MapError(err)
	}
	if err := s.requests.IncrementPhotoCount(ctx, request.ID); err != nil {
		return nil, apperrors.MapError(err)
	}
	return photo, nil
}

// Photos lists the request's photo references.
func (s *RequestService) Photos(ctx context.Context, requestID string) ([]domain.PhotoReference, error) {
	photos, err := s.photos.ListByRequest(ctx, requestID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return photos, nil
}

// transition runs one state change under the per-request lock: load, guard,
// mutate, persist, ledger entry, event. Guards run before any write, so a
// rejected transition leaves state and history untouched.
func (s *RequestService) transition(
	ctx context.Context,
	requestID string,
	next domain.RequestState,
	actorType domain.ActorType,
	actorID *string,
	notes *string,
	guard func(*domain.MaintenanceRequest) error,
	mutate func(*domain.MaintenanceRequest),
) (*domain.MaintenanceRequest, error) {
	release, ok := s.locks.Acquire(ctx, requestID, s.lockTimeout)
	if !ok {
		return nil, apperrors.NewBusy(requestID)
	}
	defer release()

	request, err := s.getRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if guard != nil {
		if err := guard(request); err != nil {
			return nil, err
		}
	}
	if !domain.CanTransition(request.State, next) {
		return nil, apperrors.NewInvalidState("transition not permitted", stateDetails(request))
	}

	oldState := request.State
	request.State = next
	if mutate != nil {
		mutate(request)
	}
	entry := &domain.StatusHistoryEntry{
		RequestID: request.ID,
		ToState:   next,
		FromState: &oldState,
		ActorType: actorType,
		ActorID:   actorID,
		Notes:     notes,
	}
	if err := retryStorage(ctx, s.retryBackoff, func() error {
		return s.requests.ApplyTransition(ctx, request, entry)
	}); err != nil {
		return nil, apperrors.MapError(err)
	}

	var noteStr string
	if notes != nil {
		noteStr = *notes
	}
	s.publish(ctx, events.Event{
		Type:      events.EventRequestStateChanged,
		RequestID: request.ID,
		Actor:     actorFor(actorType, actorID),
		Payload: events.RequestStateChangedPayload{
			OldState: oldState,
			NewState: next,
			Notes:    noteStr,
		},
	})
	return request, nil
}

func (s *RequestService) getRequest(ctx context.Context, requestID string) (*domain.MaintenanceRequest, error) {
	request, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("maintenance request", map[string]any{"request_id": requestID})
		}
		return nil, apperrors.MapError(err)
	}
	return request, nil
}

func (s *RequestService) appendHistory(ctx context.Context, requestID string, fromState *domain.RequestState, toState domain.RequestState, actorType domain.ActorType, actorID *string, notes *string) error {
	entry := &domain.StatusHistoryEntry{
		RequestID: requestID,
		ToState:   toState,
		FromState: fromState,
		ActorType: actorType,
		ActorID:   actorID,
		Notes:     notes,
	}
	if err := s.history.Append(ctx, entry); err != nil {
		return apperrors.MapError(err)
	}
	return nil
}

func (s *RequestService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil && s.logger != nil {
		s.logger.Warn("event publish failed", zap.String("event_type", string(event.Type)), zap.Error(err))
	}
}

func stateDetails(request *domain.MaintenanceRequest) map[string]any {
	return map[string]any{
		"request_id": request.ID,
		"state":      request.State,
	}
}

func tenantActor(tenantID string) events.Actor {
	return events.Actor{Type: domain.ActorTypeTenant, TenantID: &tenantID}
}

func staffActor(staffID string) events.Actor {
	return events.Actor{Type: domain.ActorTypeStaff, StaffID: &staffID}
}

func actorFor(actorType domain.ActorType, actorID *string) events.Actor {
	actor := events.Actor{Type: actorType}
	switch actorType {
	case domain.ActorTypeTenant:
		actor.TenantID = actorID
	case domain.ActorTypeStaff:
		actor.StaffID = actorID
	}
	return actor
}

func strPtr(s string) *string {
	return &s
}
