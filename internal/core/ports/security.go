package ports

import (
	"context"
	"time"

	"github.com/trackhub/auth-service/internal/core/domain"
)

// PasswordHasher hashes and verifies passwords. Verify never errors: a
// mismatch or a malformed hash is simply false.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, hash string) bool
}

// TokenVerifier checks a bearer token and returns its claims. Failures are
// domain.ErrTokenExpired or domain.ErrTokenInvalidSignature.
type TokenVerifier interface {
	Verify(token string) (*domain.Claims, error)
}

// TokenIssuer signs and verifies bearer tokens.
type TokenIssuer interface {
	TokenVerifier
	IssueSession(account *domain.Account) (string, time.Time, error)
	IssueReset(account *domain.Account) (string, time.Time, error)
}

// TokenGuard remembers claimed single-use tokens until they expire.
// Claim is atomic: exactly one caller gets true for a given tokenID.
type TokenGuard interface {
	Claim(ctx context.Context, tokenID string, until time.Time) (bool, error)
	Release(ctx context.Context, tokenID string) error
}

// Mailer delivers account emails.
type Mailer interface {
	SendPasswordReset(ctx context.Context, account *domain.Account, token string, expiresAt time.Time) error
}
