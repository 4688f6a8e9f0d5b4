package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/maintenance-service/internal/domain"
)

// NoteRepository stores the free-text note thread for requests.
type NoteRepository interface {
	Create(ctx context.Context, note *domain.MaintenanceNote) error
	ListByRequest(ctx context.Context, requestID string) ([]domain.MaintenanceNote, error)
}

type noteRepository struct {
	pool *pgxpool.Pool
}

// NewNoteRepository builds the repository.
func NewNoteRepository(pool *pgxpool.Pool) NoteRepository {
	return &noteRepository{pool: pool}
}

func (r *noteRepository) Create(ctx context.Context, note *domain.MaintenanceNote) error {
	const query = `
        INSERT INTO maintenance_notes (request_id, author_type, author_id, body)
        VALUES ($1,$2,$3,$4)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		note.RequestID,
		note.AuthorType,
		note.AuthorID,
		note.Body,
	).Scan(&note.ID, &note.CreatedAt)
}

func (r *noteRepository) ListByRequest(ctx context.Context, requestID string) ([]domain.MaintenanceNote, error) {
	const query = `
        SELECT id, request_id, author_type, author_id, body, created_at
        FROM maintenance_notes WHERE request_id=$1 ORDER BY created_at ASC`
	rows, err := r.pool.Query(ctx, query, requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.MaintenanceNote
	for rows.Next() {
		var note domain.MaintenanceNote
		if err := rows.Scan(
			&note.ID,
			&note.RequestID,
			&note.AuthorType,
			&note.AuthorID,
			&note.Body,
			&note.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, note)
	}
	return result, rows.Err()
}
