package ports

import (
	"context"
	"time"

	"github.com/trackhub/auth-service/internal/core/domain"
)

// RegisterInput carries the fields accepted by Register.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Company  string
	Role     string // optional, defaults to "user"
}

// AuthResult is returned by every operation that issues a session token.
type AuthResult struct {
	Token     string
	ExpiresAt time.Time
	Account   *domain.Account
}

// AuthService orchestrates the account lifecycle and token issuance.
type AuthService interface {
	Register(ctx context.Context, in RegisterInput) (*AuthResult, error)
	Login(ctx context.Context, email, password string) (*AuthResult, error)
	Refresh(ctx context.Context, token string) (*AuthResult, error)
	Logout(ctx context.Context, token string) (string, error)
	Me(ctx context.Context, accountID string) (*domain.Account, error)
	UpdateSettings(ctx context.Context, accountID string, patch map[string]any) (*domain.Account, error)
	ChangePassword(ctx context.Context, accountID, currentPassword, newPassword string) error
	RequestPasswordReset(ctx context.Context, email string) (string, error)
	ResetPassword(ctx context.Context, token, newPassword string) error
	Deactivate(ctx context.Context, accountID string) error
}
