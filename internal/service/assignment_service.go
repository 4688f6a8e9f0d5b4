package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/maintenance-service/internal/domain"
	"github.com/spec-kit/maintenance-service/internal/events"
	"github.com/spec-kit/maintenance-service/internal/repository"
	apperrors "github.com/spec-kit/maintenance-service/pkg/util"
)

// AssignmentService binds technicians to maintenance requests. Assignment is
// the PENDING -> ASSIGNED transition; reassignment swaps the technician on an
// already-assigned request without changing state. Both serialize on the same
// per-request locks as the rest of the lifecycle, so two concurrent assigns
// on one PENDING request produce exactly one winner.
type AssignmentService struct {
	requests    repository.RequestRepository
	technicians repository.TechnicianRepository
	dispatcher  events.Dispatcher
	logger      *zap.Logger

	locks        *LockRegistry
	lockTimeout  time.Duration
	retryBackoff time.Duration
}

// AssignmentDependencies bundles collaborators.
type AssignmentDependencies struct {
	RequestRepo    repository.RequestRepository
	TechnicianRepo repository.TechnicianRepository
	Dispatcher     events.Dispatcher
	Logger         *zap.Logger
	Locks          *LockRegistry
	LockTimeout    time.Duration
	RetryBackoff   time.Duration
}

// NewAssignmentService creates the service.
func NewAssignmentService(deps AssignmentDependencies) *AssignmentService {
	timeout := deps.LockTimeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	locks := deps.Locks
	if locks == nil {
		locks = NewLockRegistry()
	}
	return &AssignmentService{
		requests:     deps.RequestRepo,
		technicians:  deps.TechnicianRepo,
		dispatcher:   deps.Dispatcher,
		logger:       deps.Logger,
		locks:        locks,
		lockTimeout:  timeout,
		retryBackoff: deps.RetryBackoff,
	}
}

// Assign binds a technician to a PENDING request and moves it to ASSIGNED.
func (s *AssignmentService) Assign(ctx context.Context, requestID, technicianID, staffID string) (*domain.MaintenanceRequest, error) {
	technician, err := s.getTechnician(ctx, technicianID)
	if err != nil {
		return nil, err
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
		return nil, apperrors.NewInvalidState("only pending requests can be assigned", map[string]any{
			"request_id": request.ID,
			"state":      request.State,
		})
	}

	oldState := request.State
	request.TechnicianID = &technician.ID
	request.State = domain.RequestStateAssigned
	note := "assigned to " + technician.Name
	entry := &domain.StatusHistoryEntry{
		RequestID: request.ID,
		ToState:   domain.RequestStateAssigned,
		FromState: &oldState,
		ActorType: domain.ActorTypeStaff,
		ActorID:   &staffID,
		Notes:     &note,
	}
	if err := retryStorage(ctx, s.retryBackoff, func() error {
		return s.requests.ApplyTransition(ctx, request, entry)
	}); err != nil {
		return nil, apperrors.MapError(err)
	}

	s.publishAssigned(ctx, staffID, request.ID, events.RequestAssignedPayload{
		TechnicianID: technician.ID,
	})
	return request, nil
}

// Reassign swaps the technician on an ASSIGNED request. State is unchanged
// but the swap still lands in the ledger.
func (s *AssignmentService) Reassign(ctx context.Context, requestID, technicianID, staffID string) (*domain.MaintenanceRequest, error) {
	technician, err := s.getTechnician(ctx, technicianID)
	if err != nil {
		return nil, err
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
	if request.State != domain.RequestStateAssigned {
		return nil, apperrors.NewInvalidState("only assigned requests can be reassigned", map[string]any{
			"request_id": request.ID,
			"state":      request.State,
		})
	}

	previous := request.TechnicianID
	request.TechnicianID = &technician.ID
	note := "reassigned to " + technician.Name
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

	s.publishAssigned(ctx, staffID, request.ID, events.RequestAssignedPayload{
		TechnicianID:     technician.ID,
		PrevTechnicianID: previous,
		Reassignment:     true,
	})
	return request, nil
}

// ListTechnicians returns the active directory for the ops view.
func (s *AssignmentService) ListTechnicians(ctx context.Context) ([]domain.Technician, error) {
	active := true
	technicians, err := s.technicians.List(ctx, repository.TechnicianFilter{Active: &active})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return technicians, nil
}

func (s *AssignmentService) getTechnician(ctx context.Context, technicianID string) (*domain.Technician, error) {
	technician, err := s.technicians.GetByID(ctx, technicianID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("technician", map[string]any{"technician_id": technicianID})
		}
		return nil, apperrors.MapError(err)
	}
	if !technician.Active {
		return nil, apperrors.NewConflict("technician inactive", map[string]any{"technician_id": technicianID})
	}
	return technician, nil
}

func (s *AssignmentService) getRequest(ctx context.Context, requestID string) (*domain.MaintenanceRequest, error) {
	request, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("maintenance request", map[string]any{"request_id": requestID})
		}
		return nil, apperrors.MapError(err)
	}
	return request, nil
}

func (s *AssignmentService) publishAssigned(ctx context.Context, staffID, requestID string, payload events.RequestAssignedPayload) {
	if s.dispatcher == nil {
		return
	}
	event := events.Event{
		ID:        uuid.NewString(),
		Type:      events.EventRequestAssigned,
		RequestID: requestID,
		Actor:     staffActor(staffID),
		Timestamp: time.Now(),
		Payload:   payload,
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil && s.logger != nil {
		s.logger.Warn("event publish failed", zap.String("event_type", string(event.Type)), zap.Error(err))
	}
}
