package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/maintenance-service/internal/domain"
	apperrors "github.com/spec-kit/maintenance-service/pkg/util"
)

func TestAssignPendingRequest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	request := f.createRequest(t, domain.PriorityHigh)

	assigned, err := f.assignments.Assign(ctx, request.ID, f.technician.ID, f.staffID)
	require.NoError(t, err)
	assert.Equal(t, domain.RequestStateAssigned, assigned.State)
	require.NotNil(t, assigned.TechnicianID)
	assert.Equal(t, f.technician.ID, *assigned.TechnicianID)

	entries := f.timeline(t, request.ID)
	require.Len(t, entries, 2)
	last := entries[len(entries)-1]
	assert.Equal(t, domain.RequestStateAssigned, last.ToState)
	require.NotNil(t, last.Notes)
	assert.Contains(t, *last.Notes, f.technician.Name)
}

func TestAssignRejectsUnknownTechnician(t *testing.T) {
	f := newFixture(t)
	request := f.createRequest(t, domain.PriorityMedium)

	_, err := f.assignments.Assign(context.Background(), request.ID, "missing", f.staffID)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, "NOT_FOUND"))
}

func TestAssignRejectsInactiveTechnician(t *testing.T) {
	f := newFixture(t)
	inactive := f.store.SeedTechnician(domain.Technician{Name: "Gone Away", Role: domain.TechnicianRoleVendor, Active: false})
	request := f.createRequest(t, domain.PriorityMedium)

	_, err := f.assignments.Assign(context.Background(), request.ID, inactive.ID, f.staffID)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, "CONFLICT"))
}

func TestAssignRequiresPendingState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	request := f.createRequest(t, domain.PriorityMedium)

	_, err := f.assignments.Assign(ctx, request.ID, f.technician.ID, f.staffID)
	require.NoError(t, err)

	_, err = f.assignments.Assign(ctx, request.ID, f.technician.ID, f.staffID)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, "INVALID_STATE"))
}

func TestConcurrentAssignExactlyOneWinner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	request := f.createRequest(t, domain.PriorityEmergency)

	const attempts = 12
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.assignments.Assign(ctx, request.ID, f.technician.ID, f.staffID)
		}(i)
	}
	wg.Wait()

	won := 0
	for _, err := range errs {
		if err == nil {
			won++
		} else {
			assert.True(t, apperrors.IsCode(err, "INVALID_STATE"), "unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, won)

	// The winner's transition is the only assignment in the ledger.
	assigned := 0
	for _, entry := range f.timeline(t, request.ID) {
		if entry.ToState == domain.RequestStateAssigned {
			assigned++
		}
	}
	assert.Equal(t, 1, assigned)
}

func TestReassignKeepsStateSwapsTechnician(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	request := f.createRequest(t, domain.PriorityMedium)
	second := f.store.SeedTechnician(domain.Technician{Name: "Lee Park", Role: domain.TechnicianRoleVendor, Active: true})

	_, err := f.assignments.Assign(ctx, request.ID, f.technician.ID, f.staffID)
	require.NoError(t, err)

	reassigned, err := f.assignments.Reassign(ctx, request.ID, second.ID, f.staffID)
	require.NoError(t, err)
	assert.Equal(t, domain.RequestStateAssigned, reassigned.State)
	require.NotNil(t, reassigned.TechnicianID)
	assert.Equal(t, second.ID, *reassigned.TechnicianID)

	// Swap is recorded even though state did not change.
	entries := f.timeline(t, request.ID)
	require.Len(t, entries, 3)
	require.NotNil(t, entries[2].Notes)
	assert.Contains(t, *entries[2].Notes, second.Name)
}

func TestReassignRequiresAssignedState(t *testing.T) {
	f := newFixture(t)
	request := f.createRequest(t, domain.PriorityMedium)

	_, err := f.assignments.Reassign(context.Background(), request.ID, f.technician.ID, f.staffID)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, "INVALID_STATE"))
}

func TestListTechnicians(t *testing.T) {
	f := newFixture(t)
	f.store.SeedTechnician(domain.Technician{Name: "Idle Vendor", Role: domain.TechnicianRoleVendor, Active: false})

	technicians, err := f.assignments.ListTechnicians(context.Background())
	require.NoError(t, err)
	require.Len(t, technicians, 1)
	assert.Equal(t, f.technician.ID, technicians[0].ID)
}

func TestFailedAssignLeavesNoPartialWrite(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	request := f.createRequest(t, domain.PriorityMedium)

	flaky := NewAssignmentService(AssignmentDependencies{
		RequestRepo:    &stalledStorage{RequestRepository: f.store.Requests(), err: errors.New("connection reset")},
		TechnicianRepo: f.store.Technicians(),
		RetryBackoff:   time.Millisecond,
	})

	_, err := flaky.Assign(ctx, request.ID, f.technician.ID, f.staffID)
	require.Error(t, err)

	stored, err := f.store.Requests().GetByID(ctx, request.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RequestStatePending, stored.State)
	assert.Nil(t, stored.TechnicianID)

	entries := f.timeline(t, request.ID)
	require.Len(t, entries, 1)
}
