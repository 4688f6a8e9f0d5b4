package domain

import "time"

// TechnicianRole distinguishes in-house technicians from contracted vendors.
type TechnicianRole string

const (
	TechnicianRoleInHouse TechnicianRole = "IN_HOUSE"
	TechnicianRoleVendor  TechnicianRole = "VENDOR"
)

// Technician is a read-mostly directory entry used by assignment. The
// directory itself is maintained by an external collaborator; this core only
// validates existence and eligibility at assign time.
type Technician struct {
	ID        string
	Name      string
	Role      TechnicianRole
	Phone     *string
	Email     *string
	Specialty *string
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}
