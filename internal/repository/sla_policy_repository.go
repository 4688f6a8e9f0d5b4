package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/maintenance-service/internal/domain"
)

// SLAPolicyRepository reads active SLA policies. Policy CRUD lives in the
// property-management configuration surface, outside this core.
type SLAPolicyRepository interface {
	// ListActiveForPriority returns every active policy matching the
	// priority whose scope is either the given property or global.
	// Ordering is property-scoped first, most recently updated first.
	ListActiveForPriority(ctx context.Context, priority domain.RequestPriority, propertyID *string) ([]domain.SLAPolicy, error)
	GetByID(ctx context.Context, id string) (*domain.SLAPolicy, error)
	ListActive(ctx context.Context, propertyID *string) ([]domain.SLAPolicy, error)
}

type slaPolicyRepository struct {
	pool *pgxpool.Pool
}

// NewSLAPolicyRepository builds the repository.
func NewSLAPolicyRepository(pool *pgxpool.Pool) SLAPolicyRepository {
	return &slaPolicyRepository{pool: pool}
}

const policyColumns = `id, name, priority, property_id, response_time_minutes, resolution_time_minutes, active, created_at, updated_at`

func (r *slaPolicyRepository) ListActiveForPriority(ctx context.Context, priority domain.RequestPriority, propertyID *string) ([]domain.SLAPolicy, error) {
	const query = `
        SELECT ` + policyColumns + `
        FROM sla_policies
        WHERE active=TRUE AND priority=$1 AND (property_id=$2 OR property_id IS NULL)
        ORDER BY property_id DESC NULLS LAST, updated_at DESC`
	rows, err := r.pool.Query(ctx, query, priority, propertyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPolicies(rows)
}

func (r *slaPolicyRepository) GetByID(ctx context.Context, id string) (*domain.SLAPolicy, error) {
	const query = `SELECT ` + policyColumns + ` FROM sla_policies WHERE id=$1`
	var policy domain.SLAPolicy
	if err := r.pool.QueryRow(ctx, query, id).Scan(policyScanTargets(&policy)...); err != nil {
		return nil, err
	}
	return &policy, nil
}

func (r *slaPolicyRepository) ListActive(ctx context.Context, propertyID *string) ([]domain.SLAPolicy, error) {
	const query = `
        SELECT ` + policyColumns + `
        FROM sla_policies
        WHERE active=TRUE AND (property_id=$1 OR property_id IS NULL)
        ORDER BY property_id DESC NULLS LAST, priority ASC`
	rows, err := r.pool.Query(ctx, query, propertyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPolicies(rows)
}

func policyScanTargets(policy *domain.SLAPolicy) []any {
	return []any{
		&policy.ID,
		&policy.Name,
		&policy.Priority,
		&policy.PropertyID,
		&policy.ResponseTimeMinutes,
		&policy.ResolutionTimeMinutes,
		&policy.Active,
		&policy.CreatedAt,
		&policy.UpdatedAt,
	}
}

func scanPolicies(rows pgx.Rows) ([]domain.SLAPolicy, error) {
	var result []domain.SLAPolicy
	for rows.Next() {
		var policy domain.SLAPolicy
		if err := rows.Scan(policyScanTargets(&policy)...); err != nil {
			return nil, err
		}
		result = append(result, policy)
	}
	return result, rows.Err()
}
