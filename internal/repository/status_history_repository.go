package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/maintenance-service/internal/domain"
)

// StatusHistoryRepository stores the append-only transition ledger. Entries
// are never updated or deleted; even when a parent request is purged for
// retention, its history rows are kept as tombstones.
type StatusHistoryRepository interface {
	Append(ctx context.Context, entry *domain.StatusHistoryEntry) error
	// ListByRequest returns entries ascending by timestamp then sequence,
	// suitable for paginated timeline rendering.
	ListByRequest(ctx context.Context, requestID string, limit, offset int) ([]domain.StatusHistoryEntry, error)
}

type statusHistoryRepository struct {
	pool *pgxpool.Pool
}

// NewStatusHistoryRepository builds the repository.
func NewStatusHistoryRepository(pool *pgxpool.Pool) StatusHistoryRepository {
	return &statusHistoryRepository{pool: pool}
}

func (r *statusHistoryRepository) Append(ctx context.Context, entry *domain.StatusHistoryEntry) error {
	const query = `
        INSERT INTO status_history (request_id, to_state, from_state, actor_type, actor_id, notes)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING id, sequence, created_at`
	return r.pool.QueryRow(ctx, query,
		entry.RequestID,
		entry.ToState,
		entry.FromState,
		entry.ActorType,
		entry.ActorID,
		entry.Notes,
	).Scan(&entry.ID, &entry.Sequence, &entry.CreatedAt)
}

func (r *statusHistoryRepository) ListByRequest(ctx context.Context, requestID string, limit, offset int) ([]domain.StatusHistoryEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	const query = `
        SELECT id, request_id, to_state, from_state, actor_type, actor_id, notes, sequence, created_at
        FROM status_history WHERE request_id=$1
        ORDER BY created_at ASC, sequence ASC
        LIMIT $2 OFFSET $3`
	rows, err := r.pool.Query(ctx, query, requestID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.StatusHistoryEntry
	for rows.Next() {
		var entry domain.StatusHistoryEntry
		if err := rows.Scan(
			&entry.ID,
			&entry.RequestID,
			&entry.ToState,
			&entry.FromState,
			&entry.ActorType,
			&entry.ActorID,
			&entry.Notes,
			&entry.Sequence,
			&entry.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, entry)
	}
	return result, rows.Err()
}
