package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/maintenance-service/internal/domain"
	"github.com/spec-kit/maintenance-service/internal/repository"
)

type policyRepo struct {
	store *Store
}

func (r *policyRepo) ListActiveForPriority(ctx context.Context, priority domain.RequestPriority, propertyID *string) ([]domain.SLAPolicy, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var result []domain.SLAPolicy
	for _, policy := range r.store.policies {
		if !policy.Active || policy.Priority != priority {
			continue
		}
		if policy.PropertyID != nil {
			if propertyID == nil || *policy.PropertyID != *propertyID {
				continue
			}
		}
		result = append(result, *policy)
	}
	// Property-scoped first, then most recently updated.
	sort.Slice(result, func(i, j int) bool {
		iScoped, jScoped := result[i].Scoped(), result[j].Scoped()
		if iScoped != jScoped {
			return iScoped
		}
		return result[i].UpdatedAt.After(result[j].UpdatedAt)
	})
	return result, nil
}

func (r *policyRepo) GetByID(ctx context.Context, id string) (*domain.SLAPolicy, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	policy, ok := r.store.policies[id]
	if !ok {
		return nil, errNoRows
	}
	copied := *policy
	return &copied, nil
}

func (r *policyRepo) ListActive(ctx context.Context, propertyID *string) ([]domain.SLAPolicy, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var result []domain.SLAPolicy
	for _, policy := range r.store.policies {
		if !policy.Active {
			continue
		}
		if policy.PropertyID != nil {
			if propertyID == nil || *policy.PropertyID != *propertyID {
				continue
			}
		}
		result = append(result, *policy)
	}
	sort.Slice(result, func(i, j int) bool {
		iScoped, jScoped := result[i].Scoped(), result[j].Scoped()
		if iScoped != jScoped {
			return iScoped
		}
		return result[i].Priority < result[j].Priority
	})
	return result, nil
}

type historyRepo struct {
	store *Store
}

func (r *historyRepo) Append(ctx context.Context, entry *domain.StatusHistoryEntry) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	entry.ID = uuid.NewString()
	r.store.historySeq++
	entry.Sequence = r.store.historySeq
	entry.CreatedAt = time.Now()
	copied := *entry
	r.store.history = append(r.store.history, &copied)
	return nil
}

func (r *historyRepo) ListByRequest(ctx context.Context, requestID string, limit, offset int) ([]domain.StatusHistoryEntry, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if limit <= 0 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	var result []domain.StatusHistoryEntry
	for _, entry := range r.store.history {
		if entry.RequestID == requestID {
			result = append(result, *entry)
		}
	}
	sortHistory(result)
	if offset >= len(result) {
		return nil, nil
	}
	end := offset + limit
	if end > len(result) {
		end = len(result)
	}
	return result[offset:end], nil
}

type technicianRepo struct {
	store *Store
}

func (r *technicianRepo) GetByID(ctx context.Context, id string) (*domain.Technician, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	tech, ok := r.store.technicians[id]
	if !ok {
		return nil, errNoRows
	}
	copied := *tech
	return &copied, nil
}

func (r *technicianRepo) List(ctx context.Context, filter repository.TechnicianFilter) ([]domain.Technician, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var result []domain.Technician
	for _, tech := range r.store.technicians {
		if filter.Active != nil && tech.Active != *filter.Active {
			continue
		}
		if filter.Role != nil && tech.Role != *filter.Role {
			continue
		}
		result = append(result, *tech)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

type propertyRepo struct {
	store *Store
}

func (r *propertyRepo) GetByID(ctx context.Context, id string) (*domain.Property, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	property, ok := r.store.properties[id]
	if !ok {
		return nil, errNoRows
	}
	copied := *property
	return &copied, nil
}

type unitRepo struct {
	store *Store
}

func (r *unitRepo) GetByID(ctx context.Context, id string) (*domain.Unit, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	unit, ok := r.store.units[id]
	if !ok {
		return nil, errNoRows
	}
	copied := *unit
	return &copied, nil
}

type userRepo struct {
	store *Store
}

func (r *userRepo) Create(ctx context.Context, user *domain.User) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now
	copied := *user
	r.store.users[user.ID] = &copied
	return nil
}

func (r *userRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	user, ok := r.store.users[id]
	if !ok {
		return nil, errNoRows
	}
	copied := *user
	return &copied, nil
}

func (r *userRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, user := range r.store.users {
		if user.Email == email {
			copied := *user
			return &copied, nil
		}
	}
	return nil, errNoRows
}

type staffRepo struct {
	store *Store
}

func (r *staffRepo) GetByID(ctx context.Context, id string) (*domain.StaffMember, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	staff, ok := r.store.staff[id]
	if !ok {
		return nil, errNoRows
	}
	copied := *staff
	return &copied, nil
}

func (r *staffRepo) GetByEmail(ctx context.Context, email string) (*domain.StaffMember, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, staff := range r.store.staff {
		if staff.Email == email {
			copied := *staff
			return &copied, nil
		}
	}
	return nil, errNoRows
}

type noteRepo struct {
	store *Store
}

func (r *noteRepo) Create(ctx context.Context, note *domain.MaintenanceNote) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	note.ID = uuid.NewString()
	note.CreatedAt = time.Now()
	copied := *note
	r.store.notes = append(r.store.notes, &copied)
	return nil
}

func (r *noteRepo) ListByRequest(ctx context.Context, requestID string) ([]domain.MaintenanceNote, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var result []domain.MaintenanceNote
	for _, note := range r.store.notes {
		if note.RequestID == requestID {
			result = append(result, *note)
		}
	}
	return result, nil
}

type photoRepo struct {
	store *Store
}

func (r *photoRepo) Create(ctx context.Context, photo *domain.PhotoReference) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	photo.ID = uuid.NewString()
	photo.CreatedAt = time.Now()
	copied := *photo
	r.store.photos = append(r.store.photos, &copied)
	return nil
}

func (r *photoRepo) ListByRequest(ctx context.Context, requestID string) ([]domain.PhotoReference, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var result []domain.PhotoReference
	for _, photo := range r.store.photos {
		if photo.RequestID == requestID {
			result = append(result, *photo)
		}
	}
	return result, nil
}
