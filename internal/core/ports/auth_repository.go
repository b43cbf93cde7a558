package ports

import (
	"context"
	"time"

	"github.com/trackhub/auth-service/internal/core/domain"
)

// AccountRepository is the credential store. Emails are passed already
// normalized; uniqueness is enforced by the store and reported as
// domain.ErrDuplicateEmail. Lookups that miss return domain.ErrAccountNotFound.
type AccountRepository interface {
	Create(ctx context.Context, account *domain.Account) error
	FindByEmail(ctx context.Context, email string) (*domain.Account, error)
	FindByID(ctx context.Context, id string) (*domain.Account, error)
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error
	UpdatePassword(ctx context.Context, id, passwordHash string, at time.Time) error
	// MergeSettings deep-merges patch into the stored settings and returns
	// the updated account.
	MergeSettings(ctx context.Context, id string, patch map[string]any, at time.Time) (*domain.Account, error)
	SetActive(ctx context.Context, id string, active bool, at time.Time) error
}

// AuditLog persists account audit events.
type AuditLog interface {
	Record(ctx context.Context, event domain.AuditEvent) error
}
