package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/maintenance-service/internal/domain"
)

// PhotoRepository stores references to externally stored photos.
type PhotoRepository interface {
	Create(ctx context.Context, photo *domain.PhotoReference) error
	ListByRequest(ctx context.Context, requestID string) ([]domain.PhotoReference, error)
}

type photoRepository struct {
	pool *pgxpool.Pool
}

// NewPhotoRepository builds the repository.
func NewPhotoRepository(pool *pgxpool.Pool) PhotoRepository {
	return &photoRepository{pool: pool}
}

func (r *photoRepository) Create(ctx context.Context, photo *domain.PhotoReference) error {
	const query = `
        INSERT INTO photo_references (request_id, storage_url, thumbnail_url, caption)
        VALUES ($1,$2,$3,$4)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		photo.RequestID,
		photo.StorageURL,
		photo.ThumbnailURL,
		photo.Caption,
	).Scan(&photo.ID, &photo.CreatedAt)
}

func (r *photoRepository) ListByRequest(ctx context.Context, requestID string) ([]domain.PhotoReference, error) {
	const query = `
        SELECT id, request_id, storage_url, thumbnail_url, caption, created_at
        FROM photo_references WHERE request_id=$1 ORDER BY created_at ASC`
	rows, err := r.pool.Query(ctx, query, requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.PhotoReference
	for rows.Next() {
		var photo domain.PhotoReference
		if err := rows.Scan(
			&photo.ID,
			&photo.RequestID,
			&photo.StorageURL,
			&photo.ThumbnailURL,
			&photo.Caption,
			&photo.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, photo)
	}
	return result, rows.Err()
}
