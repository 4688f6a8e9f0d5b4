package domain

import "time"

// UserStatus represents lifecycle states for a tenant account.
type UserStatus string

const (
	UserStatusActive    UserStatus = "ACTIVE"
	UserStatusSuspended UserStatus = "SUSPENDED"
)

// User is the domain model for tenants who raise maintenance requests.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Status       UserStatus
	UnitID       *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
