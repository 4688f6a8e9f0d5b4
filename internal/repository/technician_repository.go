package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/maintenance-service/internal/domain"
)

// TechnicianFilter lists directory entries.
type TechnicianFilter struct {
	Active *bool
	Role   *domain.TechnicianRole
	Limit  int
	Offset int
}

// TechnicianRepository reads the technician directory.
type TechnicianRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Technician, error)
	List(ctx context.Context, filter TechnicianFilter) ([]domain.Technician, error)
}

type technicianRepository struct {
	pool *pgxpool.Pool
}

// NewTechnicianRepository builds the repository.
func NewTechnicianRepository(pool *pgxpool.Pool) TechnicianRepository {
	return &technicianRepository{pool: pool}
}

const technicianColumns = `id, name, role, phone, email, specialty, active, created_at, updated_at`

func (r *technicianRepository) GetByID(ctx context.Context, id string) (*domain.Technician, error) {
	const query = `SELECT ` + technicianColumns + ` FROM technicians WHERE id=$1`
	var tech domain.Technician
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&tech.ID,
		&tech.Name,
		&tech.Role,
		&tech.Phone,
		&tech.Email,
		&tech.Specialty,
		&tech.Active,
		&tech.CreatedAt,
		&tech.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &tech, nil
}

func (r *technicianRepository) List(ctx context.Context, filter TechnicianFilter) ([]domain.Technician, error) {
	query := `SELECT ` + technicianColumns + ` FROM technicians WHERE 1=1`
	args := []any{}
	if filter.Active != nil {
		args = append(args, *filter.Active)
		query += ` AND active=$1`
	}
	if filter.Role != nil {
		args = append(args, *filter.Role)
		if len(args) == 1 {
			query += ` AND role=$1`
		} else {
			query += ` AND role=$2`
		}
	}
	query += ` ORDER BY name ASC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Technician
	for rows.Next() {
		var tech domain.Technician
		if err := rows.Scan(
			&tech.ID,
			&tech.Name,
			&tech.Role,
			&tech.Phone,
			&tech.Email,
			&tech.Specialty,
			&tech.Active,
			&tech.CreatedAt,
			&tech.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, tech)
	}
	return result, rows.Err()
}
