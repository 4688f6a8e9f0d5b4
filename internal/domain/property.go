package domain

import "time"

// Property is a managed building; it scopes SLA policy overrides.
type Property struct {
	ID        string
	Name      string
	Address   string
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Unit is a rentable unit within a property.
type Unit struct {
	ID         string
	PropertyID string
	Label      string
	IsActive   bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
