package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/maintenance-service/internal/domain"
	"github.com/spec-kit/maintenance-service/internal/repository/memory"
	apperrors "github.com/spec-kit/maintenance-service/pkg/util"
)

func newPolicyService(store *memory.Store) *SLAPolicyService {
	return NewSLAPolicyService(store.Policies(), nil, time.Minute, zap.NewNop())
}

func TestResolvePropertyOverrideWins(t *testing.T) {
	store := memory.NewStore()
	propertyID := "prop-1"
	global := store.SeedPolicy(domain.SLAPolicy{
		Name: "High default", Priority: domain.PriorityHigh,
		ResolutionTimeMinutes: 720, Active: true,
	})
	override := store.SeedPolicy(domain.SLAPolicy{
		Name: "High override", Priority: domain.PriorityHigh, PropertyID: &propertyID,
		ResolutionTimeMinutes: 360, Active: true,
	})

	svc := newPolicyService(store)
	resolved, err := svc.Resolve(context.Background(), domain.PriorityHigh, &propertyID)
	require.NoError(t, err)
	assert.Equal(t, override.ID, resolved.ID)
	assert.NotEqual(t, global.ID, resolved.ID)
}

func TestResolveFallsBackToGlobal(t *testing.T) {
	store := memory.NewStore()
	global := store.SeedPolicy(domain.SLAPolicy{
		Name: "Medium default", Priority: domain.PriorityMedium,
		ResolutionTimeMinutes: 1440, Active: true,
	})

	svc := newPolicyService(store)
	propertyID := "prop-without-override"
	resolved, err := svc.Resolve(context.Background(), domain.PriorityMedium, &propertyID)
	require.NoError(t, err)
	assert.Equal(t, global.ID, resolved.ID)
}

func TestResolveOtherPropertyOverrideIgnored(t *testing.T) {
	store := memory.NewStore()
	otherProperty := "prop-other"
	store.SeedPolicy(domain.SLAPolicy{
		Name: "Other override", Priority: domain.PriorityHigh, PropertyID: &otherProperty,
		ResolutionTimeMinutes: 60, Active: true,
	})
	global := store.SeedPolicy(domain.SLAPolicy{
		Name: "High default", Priority: domain.PriorityHigh,
		ResolutionTimeMinutes: 720, Active: true,
	})

	svc := newPolicyService(store)
	propertyID := "prop-mine"
	resolved, err := svc.Resolve(context.Background(), domain.PriorityHigh, &propertyID)
	require.NoError(t, err)
	assert.Equal(t, global.ID, resolved.ID)
}

func TestResolveIgnoresInactivePolicies(t *testing.T) {
	store := memory.NewStore()
	propertyID := "prop-1"
	store.SeedPolicy(domain.SLAPolicy{
		Name: "Retired override", Priority: domain.PriorityHigh, PropertyID: &propertyID,
		ResolutionTimeMinutes: 60, Active: false,
	})
	global := store.SeedPolicy(domain.SLAPolicy{
		Name: "High default", Priority: domain.PriorityHigh,
		ResolutionTimeMinutes: 720, Active: true,
	})

	svc := newPolicyService(store)
	resolved, err := svc.Resolve(context.Background(), domain.PriorityHigh, &propertyID)
	require.NoError(t, err)
	assert.Equal(t, global.ID, resolved.ID)
}

func TestResolveNoPolicyConfigured(t *testing.T) {
	svc := newPolicyService(memory.NewStore())
	_, err := svc.Resolve(context.Background(), domain.PriorityEmergency, nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, "POLICY_NOT_CONFIGURED"))
}

func TestResolveUnknownPriority(t *testing.T) {
	svc := newPolicyService(memory.NewStore())
	_, err := svc.Resolve(context.Background(), "URGENT", nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, "VALIDATION_FAILED"))
}

func TestResolveDuplicateScopePicksNewest(t *testing.T) {
	store := memory.NewStore()
	store.SeedPolicy(domain.SLAPolicy{
		Name: "Low stale", Priority: domain.PriorityLow,
		ResolutionTimeMinutes: 4320, Active: true,
		CreatedAt: time.Now().Add(-48 * time.Hour),
		UpdatedAt: time.Now().Add(-48 * time.Hour),
	})
	newest := store.SeedPolicy(domain.SLAPolicy{
		Name: "Low current", Priority: domain.PriorityLow,
		ResolutionTimeMinutes: 2880, Active: true,
	})

	svc := newPolicyService(store)
	resolved, err := svc.Resolve(context.Background(), domain.PriorityLow, nil)
	require.NoError(t, err)
	assert.Equal(t, newest.ID, resolved.ID)
}
