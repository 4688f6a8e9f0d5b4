package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/maintenance-service/internal/domain"
)

// PropertyRepository reads property reference data.
type PropertyRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Property, error)
}

// UnitRepository reads unit reference data.
type UnitRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Unit, error)
}

type propertyRepository struct {
	pool *pgxpool.Pool
}

// NewPropertyRepository builds the repository.
func NewPropertyRepository(pool *pgxpool.Pool) PropertyRepository {
	return &propertyRepository{pool: pool}
}

func (r *propertyRepository) GetByID(ctx context.Context, id string) (*domain.Property, error) {
	const query = `SELECT id, name, address, is_active, created_at, updated_at FROM properties WHERE id=$1`
	var property domain.Property
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&property.ID,
		&property.Name,
		&property.Address,
		&property.IsActive,
		&property.CreatedAt,
		&property.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &property, nil
}

type unitRepository struct {
	pool *pgxpool.Pool
}

// NewUnitRepository builds the repository.
func NewUnitRepository(pool *pgxpool.Pool) UnitRepository {
	return &unitRepository{pool: pool}
}

func (r *unitRepository) GetByID(ctx context.Context, id string) (*domain.Unit, error) {
	const query = `SELECT id, property_id, label, is_active, created_at, updated_at FROM units WHERE id=$1`
	var unit domain.Unit
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&unit.ID,
		&unit.PropertyID,
		&unit.Label,
		&unit.IsActive,
		&unit.CreatedAt,
		&unit.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &unit, nil
}
