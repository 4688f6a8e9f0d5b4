package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/maintenance-service/internal/domain"
	"github.com/spec-kit/maintenance-service/internal/repository"
)

type requestRepo struct {
	store *Store
}

func (r *requestRepo) Create(ctx context.Context, request *domain.MaintenanceRequest) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if request.ID == "" {
		request.ID = uuid.NewString()
	}
	now := time.Now()
	request.CreatedAt = now
	request.UpdatedAt = now
	r.store.requests[request.ID] = cloneRequest(request)
	return nil
}

func (r *requestRepo) ApplyTransition(ctx context.Context, request *domain.MaintenanceRequest, entry *domain.StatusHistoryEntry) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	stored, ok := r.store.requests[request.ID]
	if !ok {
		return errNoRows
	}
	request.UpdatedAt = time.Now()
	// Breach flags are owned by MarkBreachRaised; keep the stored values.
	request.ResponseBreachRaised = stored.ResponseBreachRaised
	request.ResolutionBreachRaised = stored.ResolutionBreachRaised
	request.PhotoCount = stored.PhotoCount

	entry.ID = uuid.NewString()
	r.store.historySeq++
	entry.Sequence = r.store.historySeq
	entry.CreatedAt = time.Now()
	copied := *entry

	// Both writes happen under the one store lock, so readers never see
	// the new state without its ledger entry.
	r.store.requests[request.ID] = cloneRequest(request)
	r.store.history = append(r.store.history, &copied)
	return nil
}

func (r *requestRepo) GetByID(ctx context.Context, id string) (*domain.MaintenanceRequest, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	stored, ok := r.store.requests[id]
	if !ok {
		return nil, errNoRows
	}
	return cloneRequest(stored), nil
}

func (r *requestRepo) ListWithFilter(ctx context.Context, filter repository.RequestFilter) ([]domain.MaintenanceRequest, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var result []domain.MaintenanceRequest
	for _, stored := range r.store.requests {
		if !matchesFilter(stored, filter) {
			continue
		}
		result = append(result, *cloneRequest(stored))
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	if offset >= len(result) {
		return nil, nil
	}
	end := offset + limit
	if end > len(result) {
		end = len(result)
	}
	return result[offset:end], nil
}

func (r *requestRepo) ListOpen(ctx context.Context, limit int) ([]domain.MaintenanceRequest, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if limit <= 0 {
		limit = 500
	}

	var result []domain.MaintenanceRequest
	for _, stored := range r.store.requests {
		if stored.IsOpen() {
			result = append(result, *cloneRequest(stored))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ResolutionDueAt.Before(result[j].ResolutionDueAt)
	})
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (r *requestRepo) MarkBreachRaised(ctx context.Context, id string, kind repository.BreachKind) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	stored, ok := r.store.requests[id]
	if !ok {
		return false, errNoRows
	}
	if !stored.IsOpen() {
		return false, nil
	}
	switch kind {
	case repository.BreachResponse:
		if stored.ResponseBreachRaised {
			return false, nil
		}
		stored.ResponseBreachRaised = true
	case repository.BreachResolution:
		if stored.ResolutionBreachRaised {
			return false, nil
		}
		stored.ResolutionBreachRaised = true
	default:
		return false, nil
	}
	stored.UpdatedAt = time.Now()
	return true, nil
}

func (r *requestRepo) CountByState(ctx context.Context) (map[domain.RequestState]int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	counts := make(map[domain.RequestState]int64)
	for _, stored := range r.store.requests {
		counts[stored.State]++
	}
	return counts, nil
}

func (r *requestRepo) IncrementPhotoCount(ctx context.Context, id string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	stored, ok := r.store.requests[id]
	if !ok {
		return errNoRows
	}
	stored.PhotoCount++
	stored.UpdatedAt = time.Now()
	return nil
}

func matchesFilter(request *domain.MaintenanceRequest, filter repository.RequestFilter) bool {
	if filter.TenantID != nil && request.TenantID != *filter.TenantID {
		return false
	}
	if filter.PropertyID != nil && (request.PropertyID == nil || *request.PropertyID != *filter.PropertyID) {
		return false
	}
	if filter.UnitID != nil && request.UnitID != *filter.UnitID {
		return false
	}
	if filter.TechnicianID != nil && (request.TechnicianID == nil || *request.TechnicianID != *filter.TechnicianID) {
		return false
	}
	if len(filter.States) > 0 && !containsState(filter.States, request.State) {
		return false
	}
	if len(filter.Priorities) > 0 && !containsPriority(filter.Priorities, request.Priority) {
		return false
	}
	if filter.CreatedFrom != nil && request.CreatedAt.Before(*filter.CreatedFrom) {
		return false
	}
	if filter.CreatedTo != nil && request.CreatedAt.After(*filter.CreatedTo) {
		return false
	}
	return true
}

func containsState(states []domain.RequestState, state domain.RequestState) bool {
	for _, candidate := range states {
		if candidate == state {
			return true
		}
	}
	return false
}

func containsPriority(priorities []domain.RequestPriority, priority domain.RequestPriority) bool {
	for _, candidate := range priorities {
		if candidate == priority {
			return true
		}
	}
	return false
}
