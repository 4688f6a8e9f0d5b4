package domain

import "time"

// StaffRole enumerates property-management operator roles.
type StaffRole string

const (
	StaffRoleCoordinator StaffRole = "COORDINATOR"
	StaffRoleManager     StaffRole = "MANAGER"
	StaffRoleAdmin       StaffRole = "ADMIN"
)

// StaffMember models a property manager or maintenance coordinator.
type StaffMember struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         StaffRole
	PropertyID   *string
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
