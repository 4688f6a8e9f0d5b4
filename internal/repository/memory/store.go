// Package memory provides in-memory repository implementations with the same
// atomicity semantics as the postgres ones. They back the test suite and
// DSN-less local runs.
package memory

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/maintenance-service/internal/domain"
	"github.com/spec-kit/maintenance-service/internal/repository"
)

// Store holds all in-memory collections behind one mutex. Individual
// repository views share the store so cross-entity reads stay consistent.
type Store struct {
	mu sync.Mutex

	requests    map[string]*domain.MaintenanceRequest
	policies    map[string]*domain.SLAPolicy
	history     []*domain.StatusHistoryEntry
	technicians map[string]*domain.Technician
	properties  map[string]*domain.Property
	units       map[string]*domain.Unit
	users       map[string]*domain.User
	staff       map[string]*domain.StaffMember
	notes       []*domain.MaintenanceNote
	photos      []*domain.PhotoReference

	historySeq int64
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		requests:    make(map[string]*domain.MaintenanceRequest),
		policies:    make(map[string]*domain.SLAPolicy),
		technicians: make(map[string]*domain.Technician),
		properties:  make(map[string]*domain.Property),
		units:       make(map[string]*domain.Unit),
		users:       make(map[string]*domain.User),
		staff:       make(map[string]*domain.StaffMember),
	}
}

// Requests returns the request repository view.
func (s *Store) Requests() repository.RequestRepository { return &requestRepo{store: s} }

// Policies returns the SLA policy repository view.
func (s *Store) Policies() repository.SLAPolicyRepository { return &policyRepo{store: s} }

// History returns the status history repository view.
func (s *Store) History() repository.StatusHistoryRepository { return &historyRepo{store: s} }

// Technicians returns the technician repository view.
func (s *Store) Technicians() repository.TechnicianRepository { return &technicianRepo{store: s} }

// Properties returns the property repository view.
func (s *Store) Properties() repository.PropertyRepository { return &propertyRepo{store: s} }

// Units returns the unit repository view.
func (s *Store) Units() repository.UnitRepository { return &unitRepo{store: s} }

// Users returns the user repository view.
func (s *Store) Users() repository.UserRepository { return &userRepo{store: s} }

// Staff returns the staff repository view.
func (s *Store) Staff() repository.StaffRepository { return &staffRepo{store: s} }

// Notes returns the note repository view.
func (s *Store) Notes() repository.NoteRepository { return &noteRepo{store: s} }

// Photos returns the photo repository view.
func (s *Store) Photos() repository.PhotoRepository { return &photoRepo{store: s} }

// SeedPolicy inserts an SLA policy directly, for fixtures.
func (s *Store) SeedPolicy(policy domain.SLAPolicy) domain.SLAPolicy {
	s.mu.Lock()
	defer s.mu.Unlock()
	if policy.ID == "" {
		policy.ID = uuid.NewString()
	}
	if policy.CreatedAt.IsZero() {
		policy.CreatedAt = time.Now()
	}
	if policy.UpdatedAt.IsZero() {
		policy.UpdatedAt = policy.CreatedAt
	}
	copied := policy
	s.policies[policy.ID] = &copied
	return policy
}

// SeedTechnician inserts a technician directly, for fixtures.
func (s *Store) SeedTechnician(tech domain.Technician) domain.Technician {
	s.mu.Lock()
	defer s.mu.Unlock()
	if tech.ID == "" {
		tech.ID = uuid.NewString()
	}
	now := time.Now()
	if tech.CreatedAt.IsZero() {
		tech.CreatedAt = now
	}
	tech.UpdatedAt = tech.CreatedAt
	copied := tech
	s.technicians[tech.ID] = &copied
	return tech
}

// SeedProperty inserts a property directly, for fixtures.
func (s *Store) SeedProperty(property domain.Property) domain.Property {
	s.mu.Lock()
	defer s.mu.Unlock()
	if property.ID == "" {
		property.ID = uuid.NewString()
	}
	if property.CreatedAt.IsZero() {
		property.CreatedAt = time.Now()
	}
	copied := property
	s.properties[property.ID] = &copied
	return property
}

// SeedUnit inserts a unit directly, for fixtures.
func (s *Store) SeedUnit(unit domain.Unit) domain.Unit {
	s.mu.Lock()
	defer s.mu.Unlock()
	if unit.ID == "" {
		unit.ID = uuid.NewString()
	}
	if unit.CreatedAt.IsZero() {
		unit.CreatedAt = time.Now()
	}
	copied := unit
	s.units[unit.ID] = &copied
	return unit
}

// SeedStaff inserts a staff member directly, for fixtures.
func (s *Store) SeedStaff(member domain.StaffMember) domain.StaffMember {
	s.mu.Lock()
	defer s.mu.Unlock()
	if member.ID == "" {
		member.ID = uuid.NewString()
	}
	if member.CreatedAt.IsZero() {
		member.CreatedAt = time.Now()
	}
	copied := member
	s.staff[member.ID] = &copied
	return member
}

func cloneRequest(r *domain.MaintenanceRequest) *domain.MaintenanceRequest {
	copied := *r
	return &copied
}

func sortHistory(entries []domain.StatusHistoryEntry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].CreatedAt.Equal(entries[j].CreatedAt) {
			return entries[i].Sequence < entries[j].Sequence
		}
		return entries[i].CreatedAt.Before(entries[j].CreatedAt)
	})
}

// errNoRows mirrors the pgx sentinel the services translate to NotFound.
var errNoRows = pgx.ErrNoRows
