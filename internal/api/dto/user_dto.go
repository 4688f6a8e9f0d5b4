package dto

import "time"

// TenantRegisterRequest payload for new tenants.
type TenantRegisterRequest struct {
	Name     string  `json:"name"`
	Email    string  `json:"email"`
	Password string  `json:"password"`
	UnitID   *string `json:"unit_id"`
}

// LoginRequest payload for tenant and staff login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse standard response for auth endpoints.
type AuthResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}
