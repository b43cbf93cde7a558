package domain

import (
	"strings"
	"time"
)

// Role is the closed set of authorization roles an account can hold.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleUser    Role = "user"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleUser:
		return true
	}
	return false
}

// ParseRole maps an optional role string to a Role, defaulting to RoleUser
// when empty. Unknown roles yield a validation error.
func ParseRole(s string) (Role, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return RoleUser, nil
	}
	r := Role(s)
	if !r.Valid() {
		return "", NewValidationError("role", "role must be one of: admin manager user")
	}
	return r, nil
}

// Account is a registered user of the time tracker.
type Account struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	Email        string         `json:"email"`
	Company      string         `json:"company"`
	PasswordHash string         `json:"-"`
	Role         Role           `json:"role"`
	IsActive     bool           `json:"is_active"`
	LastLogin    *time.Time     `json:"last_login,omitempty"`
	Settings     map[string]any `json:"settings"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// NormalizeEmail lower-cases and trims an email address. The result is the
// lookup key used by every account store.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
