package domain

import "time"

// TokenTypePasswordReset marks tokens that may only be used to reset a
// password. Session tokens carry an empty type.
const TokenTypePasswordReset = "password_reset"

// Claims is the identity bundle carried by a signed bearer token.
type Claims struct {
	AccountID string
	Email     string
	Role      Role
	Type      string
	TokenID   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// IsSession reports whether the claims belong to a regular session token.
func (c *Claims) IsSession() bool {
	return c.Type == ""
}

// IsPasswordReset reports whether the claims belong to a reset token.
func (c *Claims) IsPasswordReset() bool {
	return c.Type == TokenTypePasswordReset
}

// ClaimsFor builds session claims for an account.
func ClaimsFor(a *Account) Claims {
	return Claims{AccountID: a.ID, Email: a.Email, Role: a.Role}
}
