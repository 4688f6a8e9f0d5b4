package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/maintenance-service/internal/domain"
)

// BreachKind selects which breach-raised flag a compare-and-set targets.
type BreachKind string

const (
	BreachResponse   BreachKind = "RESPONSE"
	BreachResolution BreachKind = "RESOLUTION"
)

// RequestFilter captures listing parameters for tenant and ops views.
type RequestFilter struct {
	TenantID     *string
	PropertyID   *string
	UnitID       *string
	TechnicianID *string
	States       []domain.RequestState
	Priorities   []domain.RequestPriority
	CreatedFrom  *time.Time
	CreatedTo    *time.Time
	Limit        int
	Offset       int
}

// RequestRepository encapsulates maintenance request persistence.
type RequestRepository interface {
	Create(ctx context.Context, request *domain.MaintenanceRequest) error
	// ApplyTransition persists a request mutation together with its ledger
	// entry as one atomic unit. Either both land or neither does; a
	// half-committed transition must never be observable.
	ApplyTransition(ctx context.Context, request *domain.MaintenanceRequest, entry *domain.StatusHistoryEntry) error
	GetByID(ctx context.Context, id string) (*domain.MaintenanceRequest, error)
	ListWithFilter(ctx context.Context, filter RequestFilter) ([]domain.MaintenanceRequest, error)
	// ListOpen returns a consistent snapshot of requests in a non-terminal
	// state, for the breach sweep. No locks are held by the caller.
	ListOpen(ctx context.Context, limit int) ([]domain.MaintenanceRequest, error)
	// MarkBreachRaised flips one breach flag if and only if it is still
	// unset. Returns true when this call won the flip; the flag is the
	// source of truth for "has this breach been counted".
	MarkBreachRaised(ctx context.Context, id string, kind BreachKind) (bool, error)
	CountByState(ctx context.Context) (map[domain.RequestState]int64, error)
	IncrementPhotoCount(ctx context.Context, id string) error
}

type requestRepository struct {
	pool *pgxpool.Pool
}

// NewRequestRepository instantiates the repository.
func NewRequestRepository(pool *pgxpool.Pool) RequestRepository {
	return &requestRepository{pool: pool}
}

const requestColumns = `id, tenant_id, property_id, unit_id, category, priority, state,
               title, description, permission_to_enter, preferred_date, preferred_slot,
               technician_id, sla_policy_id, response_due_at, resolution_due_at,
               completed_at, completion_notes, tenant_signature,
               response_breach_raised, resolution_breach_raised, photo_count,
               created_at, updated_at`

func (r *requestRepository) Create(ctx context.Context, request *domain.MaintenanceRequest) error {
	const query = `
        INSERT INTO maintenance_requests (tenant_id, property_id, unit_id, category, priority, state,
            title, description, permission_to_enter, preferred_date, preferred_slot,
            sla_policy_id, response_due_at, resolution_due_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		request.TenantID,
		request.PropertyID,
		request.UnitID,
		request.Category,
		request.Priority,
		request.State,
		request.Title,
		request.Description,
		request.PermissionToEnter,
		request.PreferredDate,
		request.PreferredSlot,
		request.SLAPolicyID,
		request.ResponseDueAt,
		request.ResolutionDueAt,
	).Scan(&request.ID, &request.CreatedAt, &request.UpdatedAt)
}

func (r *requestRepository) ApplyTransition(ctx context.Context, request *domain.MaintenanceRequest, entry *domain.StatusHistoryEntry) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	const update = `
        UPDATE maintenance_requests SET priority=$1, state=$2, technician_id=$3,
            completed_at=$4, completion_notes=$5, tenant_signature=$6, updated_at=NOW()
        WHERE id=$7`
	cmd, err := tx.Exec(ctx, update,
		request.Priority,
		request.State,
		request.TechnicianID,
		request.CompletedAt,
		request.CompletionNotes,
		request.TenantSignature,
		request.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}

	const insert = `
        INSERT INTO status_history (request_id, to_state, from_state, actor_type, actor_id, notes)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING id, sequence, created_at`
	if err := tx.QueryRow(ctx, insert,
		entry.RequestID,
		entry.ToState,
		entry.FromState,
		entry.ActorType,
		entry.ActorID,
		entry.Notes,
	).Scan(&entry.ID, &entry.Sequence, &entry.CreatedAt); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *requestRepository) GetByID(ctx context.Context, id string) (*domain.MaintenanceRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM maintenance_requests WHERE id=$1`
	var request domain.MaintenanceRequest
	if err := r.pool.QueryRow(ctx, query, id).Scan(requestScanTargets(&request)...); err != nil {
		return nil, err
	}
	return &request, nil
}

func (r *requestRepository) ListWithFilter(ctx context.Context, filter RequestFilter) ([]domain.MaintenanceRequest, error) {
	base := `SELECT ` + requestColumns + ` FROM maintenance_requests`
	clauses := []string{"1=1"}
	args := []any{}

	if filter.TenantID != nil {
		args = append(args, *filter.TenantID)
		clauses = append(clauses, fmt.Sprintf("tenant_id=$%d", len(args)))
	}
	if filter.PropertyID != nil {
		args = append(args, *filter.PropertyID)
		clauses = append(clauses, fmt.Sprintf("property_id=$%d", len(args)))
	}
	if filter.UnitID != nil {
		args = append(args, *filter.UnitID)
		clauses = append(clauses, fmt.Sprintf("unit_id=$%d", len(args)))
	}
	if filter.TechnicianID != nil {
		args = append(args, *filter.TechnicianID)
		clauses = append(clauses, fmt.Sprintf("technician_id=$%d", len(args)))
	}
	if len(filter.States) > 0 {
		placeholders := make([]string, len(filter.States))
		for i, state := range filter.States {
			args = append(args, state)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("state IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(filter.Priorities) > 0 {
		placeholders := make([]string, len(filter.Priorities))
		for i, pr := range filter.Priorities {
			args = append(args, pr)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("priority IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.CreatedFrom != nil {
		args = append(args, *filter.CreatedFrom)
		clauses = append(clauses, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if filter.CreatedTo != nil {
		args = append(args, *filter.CreatedTo)
		clauses = append(clauses, fmt.Sprintf("created_at <= $%d", len(args)))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`%s WHERE %s ORDER BY created_at DESC LIMIT %d OFFSET %d`,
		base, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRequests(rows)
}

func (r *requestRepository) ListOpen(ctx context.Context, limit int) ([]domain.MaintenanceRequest, error) {
	if limit <= 0 {
		limit = 500
	}
	query := fmt.Sprintf(`SELECT %s FROM maintenance_requests
        WHERE state IN ('PENDING','ASSIGNED','IN_PROGRESS')
        ORDER BY resolution_due_at ASC LIMIT %d`, requestColumns, limit)
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRequests(rows)
}

func (r *requestRepository) MarkBreachRaised(ctx context.Context, id string, kind BreachKind) (bool, error) {
	column := "response_breach_raised"
	if kind == BreachResolution {
		column = "resolution_breach_raised"
	}
	query := fmt.Sprintf(`UPDATE maintenance_requests SET %s=TRUE, updated_at=NOW()
        WHERE id=$1 AND %s=FALSE
          AND state IN ('PENDING','ASSIGNED','IN_PROGRESS')`, column, column)
	cmd, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() == 1, nil
}

func (r *requestRepository) CountByState(ctx context.Context) (map[domain.RequestState]int64, error) {
	const query = `SELECT state, COUNT(*) FROM maintenance_requests GROUP BY state`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[domain.RequestState]int64)
	for rows.Next() {
		var state domain.RequestState
		var count int64
		if err := rows.Scan(&state, &count); err != nil {
			return nil, err
		}
		counts[state] = count
	}
	return counts, rows.Err()
}

func (r *requestRepository) IncrementPhotoCount(ctx context.Context, id string) error {
	const query = `UPDATE maintenance_requests SET photo_count = photo_count + 1, updated_at=NOW() WHERE id=$1`
	cmd, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func requestScanTargets(request *domain.MaintenanceRequest) []any {
	return []any{
		&request.ID,
		&request.TenantID,
		&request.PropertyID,
		&request.UnitID,
		&request.Category,
		&request.Priority,
		&request.State,
		&request.Title,
		&request.Description,
		&request.PermissionToEnter,
		&request.PreferredDate,
		&request.PreferredSlot,
		&request.TechnicianID,
		&request.SLAPolicyID,
		&request.ResponseDueAt,
		&request.ResolutionDueAt,
		&request.CompletedAt,
		&request.CompletionNotes,
		&request.TenantSignature,
		&request.ResponseBreachRaised,
		&request.ResolutionBreachRaised,
		&request.PhotoCount,
		&request.CreatedAt,
		&request.UpdatedAt,
	}
}

func scanRequests(rows pgx.Rows) ([]domain.MaintenanceRequest, error) {
	var result []domain.MaintenanceRequest
	for rows.Next() {
		var request domain.MaintenanceRequest
		if err := rows.Scan(requestScanTargets(&request)...); err != nil {
			return nil, err
		}
		result = append(result, request)
	}
	return result, rows.Err()
}
