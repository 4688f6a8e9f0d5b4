package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/maintenance-service/internal/domain"
	"github.com/spec-kit/maintenance-service/internal/events"
	"github.com/spec-kit/maintenance-service/internal/repository"
	"github.com/spec-kit/maintenance-service/internal/repository/memory"
	apperrors "github.com/spec-kit/maintenance-service/pkg/util"
)

type fixture struct {
	store       *memory.Store
	requests    *RequestService
	assignments *AssignmentService
	dispatcher  events.Dispatcher

	property   domain.Property
	unit       domain.Unit
	technician domain.Technician
	tenantID   string
	staffID    string
}

func intPtr(n int) *int { return &n }

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := memory.NewStore()
	property := store.SeedProperty(domain.Property{Name: "Elm Court", Address: "12 Elm St", IsActive: true})
	unit := store.SeedUnit(domain.Unit{PropertyID: property.ID, Label: "2B", IsActive: true})
	technician := store.SeedTechnician(domain.Technician{Name: "Dana Fox", Role: domain.TechnicianRoleInHouse, Active: true})

	store.SeedPolicy(domain.SLAPolicy{Name: "Emergency default", Priority: domain.PriorityEmergency, ResponseTimeMinutes: intPtr(60), ResolutionTimeMinutes: 240, Active: true})
	store.SeedPolicy(domain.SLAPolicy{Name: "High default", Priority: domain.PriorityHigh, ResponseTimeMinutes: intPtr(240), ResolutionTimeMinutes: 720, Active: true})
	store.SeedPolicy(domain.SLAPolicy{Name: "Medium default", Priority: domain.PriorityMedium, ResponseTimeMinutes: intPtr(480), ResolutionTimeMinutes: 1440, Active: true})
	store.SeedPolicy(domain.SLAPolicy{Name: "Low default", Priority: domain.PriorityLow, ResolutionTimeMinutes: 4320, Active: true})

	logger := zap.NewNop()
	dispatcher := events.NewInMemoryDispatcher()
	locks := NewLockRegistry()
	policyService := NewSLAPolicyService(store.Policies(), nil, time.Minute, logger)

	requests := NewRequestService(RequestDependencies{
		RequestRepo:  store.Requests(),
		HistoryRepo:  store.History(),
		UnitRepo:     store.Units(),
		PropertyRepo: store.Properties(),
		NoteRepo:     store.Notes(),
		PhotoRepo:    store.Photos(),
		Policies:     policyService,
		Dispatcher:   dispatcher,
		Logger:       logger,
		Locks:        locks,
		LockTimeout:  2 * time.Second,
	})
	assignments := NewAssignmentService(AssignmentDependencies{
		RequestRepo:    store.Requests(),
		TechnicianRepo: store.Technicians(),
		Dispatcher:     dispatcher,
		Logger:         logger,
		Locks:          locks,
		LockTimeout:    2 * time.Second,
	})

	return &fixture{
		store:       store,
		requests:    requests,
		assignments: assignments,
		dispatcher:  dispatcher,
		property:    property,
		unit:        unit,
		technician:  technician,
		tenantID:    "11111111-1111-1111-1111-111111111111",
		staffID:     "22222222-2222-2222-2222-222222222222",
	}
}

func (f *fixture) createRequest(t *testing.T, priority domain.RequestPriority) *domain.MaintenanceRequest {
	t.Helper()
	request, err := f.requests.Create(context.Background(), f.tenantID, CreateRequestInput{
		UnitID:      f.unit.ID,
		Category:    domain.CategoryPlumbing,
		Priority:    priority,
		Title:       "Leaking kitchen tap",
		Description: "Water drips constantly from the cold tap",
	})
	require.NoError(t, err)
	return request
}

func (f *fixture) timeline(t *testing.T, requestID string) []domain.StatusHistoryEntry {
	t.Helper()
	entries, err := f.requests.Timeline(context.Background(), requestID, 100, 0)
	require.NoError(t, err)
	return entries
}

func TestCreateFreezesDeadlines(t *testing.T) {
	f := newFixture(t)
	before := time.Now()
	request := f.createRequest(t, domain.PriorityEmergency)
	after := time.Now()

	assert.Equal(t, domain.RequestStatePending, request.State)
	require.NotNil(t, request.ResponseDueAt)
	assert.WithinRange(t, *request.ResponseDueAt, before.Add(time.Hour), after.Add(time.Hour))
	assert.WithinRange(t, request.ResolutionDueAt, before.Add(4*time.Hour), after.Add(4*time.Hour))
	require.NotNil(t, request.SLAPolicyID)
	require.NotNil(t, request.PropertyID)
	assert.Equal(t, f.property.ID, *request.PropertyID)

	entries := f.timeline(t, request.ID)
	require.Len(t, entries, 1)
	assert.Nil(t, entries[0].FromState)
	assert.Equal(t, domain.RequestStatePending, entries[0].ToState)
	assert.Equal(t, domain.ActorTypeTenant, entries[0].ActorType)
}

func TestCreateLowPriorityHasNoResponseDeadline(t *testing.T) {
	f := newFixture(t)
	request := f.createRequest(t, domain.PriorityLow)
	assert.Nil(t, request.ResponseDueAt)
	assert.False(t, request.ResolutionDueAt.IsZero())
}

func TestCreateDefaultsToMediumPriority(t *testing.T) {
	f := newFixture(t)
	request, err := f.requests.Create(context.Background(), f.tenantID, CreateRequestInput{
		UnitID:      f.unit.ID,
		Category:    domain.CategoryGeneral,
		Title:       "Hallway light out",
		Description: "The light in the entry hallway is dead",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.PriorityMedium, request.Priority)
}

func TestCreateRejectsShortContent(t *testing.T) {
	f := newFixture(t)
	_, err := f.requests.Create(context.Background(), f.tenantID, CreateRequestInput{
		UnitID:      f.unit.ID,
		Category:    domain.CategoryPlumbing,
		Priority:    domain.PriorityMedium,
		Title:       "Tap",
		Description: "drip",
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, "VALIDATION_FAILED"))
}

func TestCreateUnknownUnit(t *testing.T) {
	f := newFixture(t)
	_, err := f.requests.Create(context.Background(), f.tenantID, CreateRequestInput{
		UnitID:      "missing",
		Category:    domain.CategoryPlumbing,
		Priority:    domain.PriorityMedium,
		Title:       "Leaking kitchen tap",
		Description: "Water drips constantly from the cold tap",
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, "NOT_FOUND"))
}

func TestCreateRejectsInactiveProperty(t *testing.T) {
	f := newFixture(t)
	closed := f.store.SeedProperty(domain.Property{Name: "Maple Yard", Address: "7 Maple Way", IsActive: false})
	unit := f.store.SeedUnit(domain.Unit{PropertyID: closed.ID, Label: "4C", IsActive: true})

	_, err := f.requests.Create(context.Background(), f.tenantID, CreateRequestInput{
		UnitID:      unit.ID,
		Category:    domain.CategoryPlumbing,
		Priority:    domain.PriorityMedium,
		Title:       "Leaking kitchen tap",
		Description: "Water drips constantly from the cold tap",
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, "VALIDATION_FAILED"))
	assert.Contains(t, err.Error(), "property is not active")
}

func TestCreateWithoutPolicyFailsLoudly(t *testing.T) {
	store := memory.NewStore()
	property := store.SeedProperty(domain.Property{Name: "Oak Row", Address: "3 Oak Rd", IsActive: true})
	unit := store.SeedUnit(domain.Unit{PropertyID: property.ID, Label: "1A", IsActive: true})

	logger := zap.NewNop()
	requests := NewRequestService(RequestDependencies{
		RequestRepo:  store.Requests(),
		HistoryRepo:  store.History(),
		UnitRepo:     store.Units(),
		PropertyRepo: store.Properties(),
		NoteRepo:     store.Notes(),
		PhotoRepo:    store.Photos(),
		Policies:     NewSLAPolicyService(store.Policies(), nil, time.Minute, logger),
		Logger:       logger,
	})

	_, err := requests.Create(context.Background(), "tenant-1", CreateRequestInput{
		UnitID:      unit.ID,
		Category:    domain.CategoryHVAC,
		Priority:    domain.PriorityHigh,
		Title:       "No heating",
		Description: "The radiators stay cold on every setting",
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, "POLICY_NOT_CONFIGURED"))
}

func TestFullLifecycleLedger(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	request := f.createRequest(t, domain.PriorityHigh)

	_, err := f.assignments.Assign(ctx, request.ID, f.technician.ID, f.staffID)
	require.NoError(t, err)

	_, err = f.requests.StartWork(ctx, request.ID, f.staffID)
	require.NoError(t, err)

	completed, err := f.requests.Complete(ctx, request.ID, f.staffID, "replaced washer")
	require.NoError(t, err)
	assert.Equal(t, domain.RequestStateCompleted, completed.State)
	require.NotNil(t, completed.CompletedAt)
	require.NotNil(t, completed.CompletionNotes)
	assert.Equal(t, "replaced washer", *completed.CompletionNotes)

	signed, err := f.requests.SignOff(ctx, request.ID, f.tenantID, "sig-token-1")
	require.NoError(t, err)
	require.NotNil(t, signed.TenantSignature)

	entries := f.timeline(t, request.ID)
	require.Len(t, entries, 5)
	states := make([]domain.RequestState, 0, len(entries))
	for _, entry := range entries {
		states = append(states, entry.ToState)
	}
	assert.Equal(t, []domain.RequestState{
		domain.RequestStatePending,
		domain.RequestStateAssigned,
		domain.RequestStateInProgress,
		domain.RequestStateCompleted,
		domain.RequestStateCompleted, // sign-off entry, no state change
	}, states)
	for i := 1; i < len(entries); i++ {
		assert.Less(t, entries[i-1].Sequence, entries[i].Sequence)
	}
}

func TestCompleteDirectlyFromAssigned(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	request := f.createRequest(t, domain.PriorityMedium)

	_, err := f.assignments.Assign(ctx, request.ID, f.technician.ID, f.staffID)
	require.NoError(t, err)

	completed, err := f.requests.Complete(ctx, request.ID, f.staffID, "")
	require.NoError(t, err)
	assert.Equal(t, domain.RequestStateCompleted, completed.State)
	assert.Nil(t, completed.CompletionNotes)
}

func TestCancelBeforeWorkStarts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	request := f.createRequest(t, domain.PriorityMedium)
	cancelled, err := f.requests.Cancel(ctx, request.ID, domain.ActorTypeTenant, f.tenantID, "resolved itself")
	require.NoError(t, err)
	assert.Equal(t, domain.RequestStateCancelled, cancelled.State)

	request = f.createRequest(t, domain.PriorityMedium)
	_, err = f.assignments.Assign(ctx, request.ID, f.technician.ID, f.staffID)
	require.NoError(t, err)
	cancelled, err = f.requests.Cancel(ctx, request.ID, domain.ActorTypeStaff, f.staffID, "duplicate")
	require.NoError(t, err)
	assert.Equal(t, domain.RequestStateCancelled, cancelled.State)
}

func TestCancelRejectedOnceInProgress(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	request := f.createRequest(t, domain.PriorityMedium)

	_, err := f.assignments.Assign(ctx, request.ID, f.technician.ID, f.staffID)
	require.NoError(t, err)
	_, err = f.requests.StartWork(ctx, request.ID, f.staffID)
	require.NoError(t, err)

	ledgerBefore := f.timeline(t, request.ID)

	_, err = f.requests.Cancel(ctx, request.ID, domain.ActorTypeTenant, f.tenantID, "changed my mind")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, "INVALID_STATE"))
	assert.Contains(t, err.Error(), "in progress")

	// A rejected transition must leave both state and ledger untouched.
	current, err := f.requests.GetForTenant(ctx, f.tenantID, request.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RequestStateInProgress, current.State)
	assert.Len(t, f.timeline(t, request.ID), len(ledgerBefore))
}

func TestCancelByWrongTenantForbidden(t *testing.T) {
	f := newFixture(t)
	request := f.createRequest(t, domain.PriorityMedium)

	_, err := f.requests.Cancel(context.Background(), request.ID, domain.ActorTypeTenant, "someone-else", "")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, "FORBIDDEN"))
}

func TestStartWorkRequiresAssignment(t *testing.T) {
	f := newFixture(t)
	request := f.createRequest(t, domain.PriorityMedium)

	_, err := f.requests.StartWork(context.Background(), request.ID, f.staffID)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, "INVALID_STATE"))
}

func TestSignOffGuards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	request := f.createRequest(t, domain.PriorityMedium)

	_, err := f.requests.SignOff(ctx, request.ID, f.tenantID, "sig")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, "INVALID_STATE"), "not completed yet")

	_, err = f.assignments.Assign(ctx, request.ID, f.technician.ID, f.staffID)
	require.NoError(t, err)
	_, err = f.requests.Complete(ctx, request.ID, f.staffID, "done")
	require.NoError(t, err)

	_, err = f.requests.SignOff(ctx, request.ID, "someone-else", "sig")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, "FORBIDDEN"))

	_, err = f.requests.SignOff(ctx, request.ID, f.tenantID, "   ")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, "VALIDATION_FAILED"))

	_, err = f.requests.SignOff(ctx, request.ID, f.tenantID, "sig")
	require.NoError(t, err)

	_, err = f.requests.SignOff(ctx, request.ID, f.tenantID, "sig-again")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, "ALREADY_SIGNED"))
}

func TestSignOffConcurrentExactlyOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	request := f.createRequest(t, domain.PriorityMedium)

	_, err := f.assignments.Assign(ctx, request.ID, f.technician.ID, f.staffID)
	require.NoError(t, err)
	_, err = f.requests.Complete(ctx, request.ID, f.staffID, "done")
	require.NoError(t, err)

	const attempts = 16
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.requests.SignOff(ctx, request.ID, f.tenantID, "sig")
		}(i)
	}
	wg.Wait()

	won := 0
	for _, err := range errs {
		if err == nil {
			won++
		} else {
			assert.True(t, apperrors.IsCode(err, "ALREADY_SIGNED"), "unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, won)
}

func TestRetriageOnlyWhilePending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	request := f.createRequest(t, domain.PriorityMedium)
	originalResolutionDue := request.ResolutionDueAt
	originalResponseDue := request.ResponseDueAt

	retriaged, err := f.requests.Retriage(ctx, request.ID, f.staffID, domain.PriorityEmergency, "gas smell reported")
	require.NoError(t, err)
	assert.Equal(t, domain.PriorityEmergency, retriaged.Priority)

	// Commitments never move: deadlines stay at creation-time values.
	assert.True(t, retriaged.ResolutionDueAt.Equal(originalResolutionDue))
	require.NotNil(t, retriaged.ResponseDueAt)
	assert.True(t, retriaged.ResponseDueAt.Equal(*originalResponseDue))

	_, err = f.assignments.Assign(ctx, request.ID, f.technician.ID, f.staffID)
	require.NoError(t, err)

	_, err = f.requests.Retriage(ctx, request.ID, f.staffID, domain.PriorityLow, "")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, "INVALID_STATE"))
}

func TestReopenNotSupported(t *testing.T) {
	f := newFixture(t)
	_, err := f.requests.Reopen(context.Background(), "any-id")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, "TRANSITION_NOT_ALLOWED"))
}

func TestListForTenantScopedToOwner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.createRequest(t, domain.PriorityMedium)
	f.createRequest(t, domain.PriorityHigh)

	other, err := f.requests.Create(ctx, "other-tenant", CreateRequestInput{
		UnitID:      f.unit.ID,
		Category:    domain.CategoryElectrical,
		Priority:    domain.PriorityLow,
		Title:       "Flickering bulb",
		Description: "The bedroom bulb flickers at night",
	})
	require.NoError(t, err)

	mine, err := f.requests.ListForTenant(ctx, f.tenantID, RequestListFilter{})
	require.NoError(t, err)
	require.Len(t, mine, 2)
	for _, r := range mine {
		assert.Equal(t, f.tenantID, r.TenantID)
		assert.NotEqual(t, other.ID, r.ID)
	}
}

func TestListForOpsPropertyScoping(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.createRequest(t, domain.PriorityMedium)

	otherProperty := f.store.SeedProperty(domain.Property{Name: "Birch Lane", Address: "9 Birch Ln", IsActive: true})
	scoped := &domain.StaffMember{ID: f.staffID, Role: domain.StaffRoleCoordinator, PropertyID: &otherProperty.ID}

	visible, err := f.requests.ListForOps(ctx, scoped, RequestListFilter{})
	require.NoError(t, err)
	assert.Empty(t, visible)

	admin := &domain.StaffMember{ID: f.staffID, Role: domain.StaffRoleAdmin, PropertyID: &otherProperty.ID}
	visible, err = f.requests.ListForOps(ctx, admin, RequestListFilter{})
	require.NoError(t, err)
	assert.Len(t, visible, 1)
}

func TestSummaryCounts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.createRequest(t, domain.PriorityMedium)
	request := f.createRequest(t, domain.PriorityHigh)
	_, err := f.assignments.Assign(ctx, request.ID, f.technician.ID, f.staffID)
	require.NoError(t, err)

	counts, err := f.requests.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts[domain.RequestStatePending])
	assert.Equal(t, int64(1), counts[domain.RequestStateAssigned])
}

func TestNotesAndPhotos(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	request := f.createRequest(t, domain.PriorityMedium)

	_, err := f.requests.AddNote(ctx, request.ID, domain.ActorTypeTenant, f.tenantID, "Please call before visiting")
	require.NoError(t, err)
	_, err = f.requests.AddNote(ctx, request.ID, domain.ActorTypeStaff, f.staffID, "Technician scheduled")
	require.NoError(t, err)

	_, err = f.requests.AddNote(ctx, request.ID, domain.ActorTypeTenant, "someone-else", "hi")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, "FORBIDDEN"))

	notes, err := f.requests.Notes(ctx, request.ID)
	require.NoError(t, err)
	assert.Len(t, notes, 2)

	caption := "under the sink"
	_, err = f.requests.AttachPhoto(ctx, request.ID, f.tenantID, "https://cdn.example.com/p/1.jpg", nil, &caption)
	require.NoError(t, err)

	photos, err := f.requests.Photos(ctx, request.ID)
	require.NoError(t, err)
	require.Len(t, photos, 1)

	current, err := f.requests.GetForTenant(ctx, f.tenantID, request.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, current.PhotoCount)
}

// stalledStorage simulates a transition write that fails to commit.
type stalledStorage struct {
	repository.RequestRepository
	err error
}

func (s *stalledStorage) ApplyTransition(ctx context.Context, request *domain.MaintenanceRequest, entry *domain.StatusHistoryEntry) error {
	return s.err
}

func TestFailedTransitionLeavesNoPartialWrite(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	request := f.createRequest(t, domain.PriorityHigh)
	_, err := f.assignments.Assign(ctx, request.ID, f.technician.ID, f.staffID)
	require.NoError(t, err)

	flaky := NewRequestService(RequestDependencies{
		RequestRepo:  &stalledStorage{RequestRepository: f.store.Requests(), err: errors.New("connection reset")},
		HistoryRepo:  f.store.History(),
		UnitRepo:     f.store.Units(),
		PropertyRepo: f.store.Properties(),
		NoteRepo:     f.store.Notes(),
		PhotoRepo:    f.store.Photos(),
		Policies:     NewSLAPolicyService(f.store.Policies(), nil, time.Minute, zap.NewNop()),
		Logger:       zap.NewNop(),
		RetryBackoff: time.Millisecond,
	})

	_, err = flaky.StartWork(ctx, request.ID, f.staffID)
	require.Error(t, err)

	stored, err := f.store.Requests().GetByID(ctx, request.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RequestStateAssigned, stored.State, "state must not move when the commit failed")

	entries := f.timeline(t, request.ID)
	require.Len(t, entries, 2)
	for _, entry := range entries {
		assert.NotEqual(t, domain.RequestStateInProgress, entry.ToState)
	}
}

// flakyStorage fails the first n transition commits, then recovers.
type flakyStorage struct {
	repository.RequestRepository
	mu       sync.Mutex
	failures int
}

func (s *flakyStorage) ApplyTransition(ctx context.Context, request *domain.MaintenanceRequest, entry *domain.StatusHistoryEntry) error {
	s.mu.Lock()
	if s.failures > 0 {
		s.failures--
		s.mu.Unlock()
		return errors.New("connection reset")
	}
	s.mu.Unlock()
	return s.RequestRepository.ApplyTransition(ctx, request, entry)
}

func TestTransientStorageFaultRetried(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	request := f.createRequest(t, domain.PriorityHigh)
	_, err := f.assignments.Assign(ctx, request.ID, f.technician.ID, f.staffID)
	require.NoError(t, err)

	recovering := NewRequestService(RequestDependencies{
		RequestRepo:  &flakyStorage{RequestRepository: f.store.Requests(), failures: 1},
		HistoryRepo:  f.store.History(),
		UnitRepo:     f.store.Units(),
		PropertyRepo: f.store.Properties(),
		NoteRepo:     f.store.Notes(),
		PhotoRepo:    f.store.Photos(),
		Policies:     NewSLAPolicyService(f.store.Policies(), nil, time.Minute, zap.NewNop()),
		Logger:       zap.NewNop(),
		RetryBackoff: time.Millisecond,
	})

	updated, err := recovering.StartWork(ctx, request.ID, f.staffID)
	require.NoError(t, err)
	assert.Equal(t, domain.RequestStateInProgress, updated.State)

	entries := f.timeline(t, request.ID)
	require.Len(t, entries, 3)
	assert.Equal(t, domain.RequestStateInProgress, entries[2].ToState)
}
