package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/maintenance-service/internal/domain"
	"github.com/spec-kit/maintenance-service/internal/repository"
	apperrors "github.com/spec-kit/maintenance-service/pkg/util"
)

// SLAPolicyService resolves the effective SLA policy for a (priority,
// property) pair. Read-only over policy data; an optional Redis cache keeps
// hot resolutions cheap since policies change rarely.
type SLAPolicyService struct {
	policies repository.SLAPolicyRepository
	cache    *redis.Client
	cacheTTL time.Duration
	logger   *zap.Logger
}

// NewSLAPolicyService constructs the service. cache may be nil.
func NewSLAPolicyService(policies repository.SLAPolicyRepository, cache *redis.Client, cacheTTL time.Duration, logger *zap.Logger) *SLAPolicyService {
	return &SLAPolicyService{
		policies: policies,
		cache:    cache,
		cacheTTL: cacheTTL,
		logger:   logger,
	}
}

// Resolve returns the effective active policy: property-scoped wins over the
// global default for the same priority. Missing configuration is a loud
// failure, never a silently invented deadline.
func (s *SLAPolicyService) Resolve(ctx context.Context, priority domain.RequestPriority, propertyID *string) (*domain.SLAPolicy, error) {
	if !domain.ValidPriority(priority) {
		return nil, apperrors.NewValidationError("unknown priority", map[string]any{"priority": priority})
	}

	if cached := s.cacheGet(ctx, priority, propertyID); cached != nil {
		return cached, nil
	}

	matches, err := s.policies.ListActiveForPriority(ctx, priority, propertyID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if len(matches) == 0 {
		return nil, apperrors.NewPolicyNotConfigured(string(priority), propertyID)
	}

	// The writer side guarantees at most one active policy per scope. If
	// duplicates slipped in, take the most recently updated match per the
	// repository ordering and flag the anomaly instead of failing.
	scoped, global := splitByScope(matches)
	if len(scoped) > 1 || len(global) > 1 {
		s.logger.Warn("duplicate active SLA policies for scope",
			zap.String("priority", string(priority)),
			zap.Int("property_scoped", len(scoped)),
			zap.Int("global", len(global)),
		)
	}

	var policy domain.SLAPolicy
	switch {
	case len(scoped) > 0:
		policy = scoped[0]
	default:
		policy = global[0]
	}

	s.cacheSet(ctx, priority, propertyID, policy)
	return &policy, nil
}

// ListActive returns the active policies visible for a property scope,
// property overrides alongside globals, for the ops configuration view.
func (s *SLAPolicyService) ListActive(ctx context.Context, propertyID *string) ([]domain.SLAPolicy, error) {
	policies, err := s.policies.ListActive(ctx, propertyID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return policies, nil
}

func splitByScope(policies []domain.SLAPolicy) (scoped, global []domain.SLAPolicy) {
	for _, policy := range policies {
		if policy.Scoped() {
			scoped = append(scoped, policy)
		} else {
			global = append(global, policy)
		}
	}
	return scoped, global
}

func (s *SLAPolicyService) cacheKey(priority domain.RequestPriority, propertyID *string) string {
	scope := "global"
	if propertyID != nil {
		scope = *propertyID
	}
	return fmt.Sprintf("sla:policy:%s:%s", priority, scope)
}

func (s *SLAPolicyService) cacheGet(ctx context.Context, priority domain.RequestPriority, propertyID *string) *domain.SLAPolicy {
	if s.cache == nil {
		return nil
	}
	raw, err := s.cache.Get(ctx, s.cacheKey(priority, propertyID)).Bytes()
	if err != nil {
		return nil
	}
	var policy domain.SLAPolicy
	if err := json.Unmarshal(raw, &policy); err != nil {
		return nil
	}
	return &policy
}

func (s *SLAPolicyService) cacheSet(ctx context.Context, priority domain.RequestPriority, propertyID *string, policy domain.SLAPolicy) {
	if s.cache == nil {
		return
	}
	raw, err := json.Marshal(policy)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, s.cacheKey(priority, propertyID), raw, s.cacheTTL).Err(); err != nil {
		s.logger.Debug("sla policy cache set failed", zap.Error(err))
	}
}
