package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/trackhub/auth-service/internal/core/domain"
	"github.com/trackhub/auth-service/internal/core/ports"
	"github.com/trackhub/auth-service/internal/pkg/metrics"
)

const (
	minPasswordLen = 6
	minNameLen     = 2

	// ResetRequestedMessage is returned by RequestPasswordReset whether or not
	// the email belongs to an account.
	ResetRequestedMessage = "If an account with that email exists, a password reset link has been sent"
	LoggedOutMessage      = "Successfully logged out"
)

// Options tunes AuthService policy.
type Options struct {
	// UniformLoginErrors reports deactivated accounts as invalid credentials
	// on login instead of ErrAccountDeactivated.
	UniformLoginErrors bool
	// Now overrides the clock, for tests.
	Now func() time.Time
}

// AuthService implements ports.AuthService.
type AuthService struct {
	accounts ports.AccountRepository
	audit    ports.AuditLog
	hasher   ports.PasswordHasher
	tokens   ports.TokenIssuer
	mailer   ports.Mailer
	guard    ports.TokenGuard
	log      zerolog.Logger

	uniformLoginErrors bool
	now                func() time.Time
}

// NewAuthService wires the Auth Service. audit, mailer and guard are
// optional and may be nil.
func NewAuthService(
	accounts ports.AccountRepository,
	audit ports.AuditLog,
	hasher ports.PasswordHasher,
	tokens ports.TokenIssuer,
	mailer ports.Mailer,
	guard ports.TokenGuard,
	log zerolog.Logger,
	opts Options,
) *AuthService {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &AuthService{
		accounts:           accounts,
		audit:              audit,
		hasher:             hasher,
		tokens:             tokens,
		mailer:             mailer,
		guard:              guard,
		log:                log.With().Str("component", "auth_service").Logger(),
		uniformLoginErrors: opts.UniformLoginErrors,
		now:                now,
	}
}

// Register creates an active account and issues a session token.
func (s *AuthService) Register(ctx context.Context, in ports.RegisterInput) (res *ports.AuthResult, err error) {
	defer observe("register", &err)

	name := strings.TrimSpace(in.Name)
	email := domain.NormalizeEmail(in.Email)
	company := strings.TrimSpace(in.Company)

	ve := &domain.ValidationError{Fields: map[string]string{}}
	if len(name) < minNameLen {
		ve.Fields["name"] = "name must be at least 2 characters"
	}
	if email == "" || !strings.Contains(email, "@") {
		ve.Fields["email"] = "valid email is required"
	}
	if len(in.Password) < minPasswordLen {
		ve.Fields["password"] = "password must be at least 6 characters"
	}
	if len(company) < minNameLen {
		ve.Fields["company"] = "company name is required"
	}
	role, roleErr := domain.ParseRole(in.Role)
	if roleErr != nil {
		ve.Fields["role"] = "invalid role specified"
	}
	if len(ve.Fields) > 0 {
		return nil, ve
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("register: hash password: %w", err)
	}

	now := s.now().UTC()
	account := &domain.Account{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        email,
		Company:      company,
		PasswordHash: hash,
		Role:         role,
		IsActive:     true,
		LastLogin:    &now,
		Settings:     map[string]any{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, domain.ErrDuplicateEmail) {
			return nil, domain.ErrDuplicateEmail
		}
		return nil, fmt.Errorf("register: %w", err)
	}

	res, err = s.issueSession(account)
	if err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}

	s.record(ctx, account.ID, account.Email, domain.AuditRegister)
	s.log.Info().Str("account_id", account.ID).Str("role", string(account.Role)).Msg("account registered")
	return res, nil
}

// Login verifies credentials and issues a session token.
func (s *AuthService) Login(ctx context.Context, email, password string) (res *ports.AuthResult, err error) {
	defer observe("login", &err)

	email = domain.NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, domain.ErrInvalidCredentials
	}

	account, err := s.accounts.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			s.record(ctx, "", email, domain.AuditLoginFailed)
			return nil, domain.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("login: %w", err)
	}

	if !s.hasher.Verify(password, account.PasswordHash) {
		s.record(ctx, account.ID, account.Email, domain.AuditLoginFailed)
		return nil, domain.ErrInvalidCredentials
	}

	if !account.IsActive {
		s.record(ctx, account.ID, account.Email, domain.AuditLoginFailed)
		if s.uniformLoginErrors {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, domain.ErrAccountDeactivated
	}

	now := s.now().UTC()
	if err := s.accounts.UpdateLastLogin(ctx, account.ID, now); err != nil {
		return nil, fmt.Errorf("login: update last login: %w", err)
	}
	account.LastLogin = &now

	res, err = s.issueSession(account)
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}

	s.record(ctx, account.ID, account.Email, domain.AuditLogin)
	return res, nil
}

// Refresh exchanges a valid session token for a new one with a fresh expiry.
func (s *AuthService) Refresh(ctx context.Context, token string) (res *ports.AuthResult, err error) {
	defer observe("refresh", &err)

	claims, err := s.verifySession(token)
	if err != nil {
		return nil, err
	}

	account, err := s.activeAccount(ctx, claims.AccountID)
	if err != nil {
		return nil, err
	}

	res, err = s.issueSession(account)
	if err != nil {
		return nil, fmt.Errorf("refresh: %w", err)
	}

	s.record(ctx, account.ID, account.Email, domain.AuditRefresh)
	return res, nil
}

// Logout records the logout. The token itself stays valid until it expires.
func (s *AuthService) Logout(ctx context.Context, token string) (msg string, err error) {
	defer observe("logout", &err)

	claims, err := s.verifySession(token)
	if err != nil {
		return "", err
	}

	s.record(ctx, claims.AccountID, claims.Email, domain.AuditLogout)
	s.log.Info().Str("account_id", claims.AccountID).Msg("account logged out")
	return LoggedOutMessage, nil
}

// Me returns the account behind accountID.
func (s *AuthService) Me(ctx context.Context, accountID string) (*domain.Account, error) {
	account, err := s.accounts.FindByID(ctx, accountID)
	if err != nil {
		return nil, wrapLookup("me", err)
	}
	return account, nil
}

// UpdateSettings deep-merges patch into the account settings.
func (s *AuthService) UpdateSettings(ctx context.Context, accountID string, patch map[string]any) (account *domain.Account, err error) {
	defer observe("update_settings", &err)

	if err := domain.ValidateSettingsPatch(patch); err != nil {
		return nil, err
	}
	if len(patch) == 0 {
		return s.Me(ctx, accountID)
	}

	account, err = s.accounts.MergeSettings(ctx, accountID, patch, s.now().UTC())
	if err != nil {
		return nil, wrapLookup("update settings", err)
	}

	s.record(ctx, account.ID, account.Email, domain.AuditSettingsUpdated)
	return account, nil
}

// ChangePassword replaces the password after verifying the current one.
func (s *AuthService) ChangePassword(ctx context.Context, accountID, currentPassword, newPassword string) (err error) {
	defer observe("change_password", &err)

	if len(newPassword) < minPasswordLen {
		return domain.NewValidationError("new_password", "new password must be at least 6 characters")
	}

	account, err := s.accounts.FindByID(ctx, accountID)
	if err != nil {
		return wrapLookup("change password", err)
	}

	if !s.hasher.Verify(currentPassword, account.PasswordHash) {
		return domain.ErrInvalidCredentials
	}

	if err := s.setPassword(ctx, account.ID, newPassword); err != nil {
		return fmt.Errorf("change password: %w", err)
	}

	s.record(ctx, account.ID, account.Email, domain.AuditPasswordChanged)
	return nil
}

// RequestPasswordReset issues a reset token for an active account and hands
// it to the mailer. The returned message never depends on whether the email
// is registered.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) (msg string, err error) {
	defer observe("request_password_reset", &err)

	email = domain.NormalizeEmail(email)
	if email == "" {
		return "", domain.NewValidationError("email", "valid email is required")
	}

	account, err := s.accounts.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			return ResetRequestedMessage, nil
		}
		return "", fmt.Errorf("request password reset: %w", err)
	}
	if !account.IsActive {
		return ResetRequestedMessage, nil
	}

	token, expiresAt, err := s.tokens.IssueReset(account)
	if err != nil {
		return "", fmt.Errorf("request password reset: %w", err)
	}

	if s.mailer != nil {
		if err := s.mailer.SendPasswordReset(ctx, account, token, expiresAt); err != nil {
			s.log.Warn().Err(err).Str("account_id", account.ID).Msg("failed to queue password reset email")
		}
	}

	s.record(ctx, account.ID, account.Email, domain.AuditPasswordResetRequested)
	return ResetRequestedMessage, nil
}

// ResetPassword sets a new password using a password_reset token.
func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword string) (err error) {
	defer observe("reset_password", &err)

	if len(newPassword) < minPasswordLen {
		return domain.NewValidationError("password", "password must be at least 6 characters")
	}

	claims, err := s.tokens.Verify(token)
	if err != nil {
		return err
	}
	if !claims.IsPasswordReset() {
		return domain.ErrInvalidResetToken
	}

	account, err := s.accounts.FindByID(ctx, claims.AccountID)
	if err != nil {
		return wrapLookup("reset password", err)
	}
	if !account.IsActive {
		return domain.ErrAccountDeactivated
	}

	claimed, err := s.claimResetToken(ctx, claims)
	if err != nil {
		return err
	}

	if err := s.setPassword(ctx, account.ID, newPassword); err != nil {
		if claimed {
			if rerr := s.guard.Release(ctx, claims.TokenID); rerr != nil {
				s.log.Warn().Err(rerr).Str("account_id", account.ID).Msg("failed to release reset token claim")
			}
		}
		return fmt.Errorf("reset password: %w", err)
	}

	s.record(ctx, account.ID, account.Email, domain.AuditPasswordReset)
	return nil
}

// Deactivate permanently disables an account. Already issued tokens remain
// valid until they expire, but refresh and login stop working.
func (s *AuthService) Deactivate(ctx context.Context, accountID string) (err error) {
	defer observe("deactivate", &err)

	account, err := s.accounts.FindByID(ctx, accountID)
	if err != nil {
		return wrapLookup("deactivate", err)
	}
	if !account.IsActive {
		return nil
	}

	if err := s.accounts.SetActive(ctx, account.ID, false, s.now().UTC()); err != nil {
		return fmt.Errorf("deactivate: %w", err)
	}

	s.record(ctx, account.ID, account.Email, domain.AuditDeactivated)
	s.log.Info().Str("account_id", account.ID).Msg("account deactivated")
	return nil
}

// claimResetToken takes the single-use claim on a reset token. It reports
// whether a claim is held. A guard outage is logged and the reset proceeds
// unclaimed.
func (s *AuthService) claimResetToken(ctx context.Context, claims *domain.Claims) (bool, error) {
	if s.guard == nil || claims.TokenID == "" {
		return false, nil
	}
	ok, err := s.guard.Claim(ctx, claims.TokenID, claims.ExpiresAt)
	if err != nil {
		s.log.Warn().Err(err).Str("account_id", claims.AccountID).Msg("reset token guard unavailable, processing anyway")
		return false, nil
	}
	if !ok {
		return false, domain.ErrInvalidResetToken
	}
	return true, nil
}

// verifySession verifies token and rejects anything that is not a session token.
func (s *AuthService) verifySession(token string) (*domain.Claims, error) {
	claims, err := s.tokens.Verify(token)
	if err != nil {
		return nil, err
	}
	if !claims.IsSession() {
		return nil, domain.ErrInvalidOrExpiredToken
	}
	return claims, nil
}

func (s *AuthService) activeAccount(ctx context.Context, id string) (*domain.Account, error) {
	account, err := s.accounts.FindByID(ctx, id)
	if err != nil {
		return nil, wrapLookup("load account", err)
	}
	if !account.IsActive {
		return nil, domain.ErrAccountDeactivated
	}
	return account, nil
}

func (s *AuthService) issueSession(account *domain.Account) (*ports.AuthResult, error) {
	token, expiresAt, err := s.tokens.IssueSession(account)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	return &ports.AuthResult{Token: token, ExpiresAt: expiresAt, Account: account}, nil
}

func (s *AuthService) setPassword(ctx context.Context, id, password string) error {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return err
	}
	return s.accounts.UpdatePassword(ctx, id, hash, s.now().UTC())
}

// record writes an audit event. Failures are logged and otherwise ignored.
func (s *AuthService) record(ctx context.Context, accountID, email string, action domain.AuditAction) {
	if s.audit == nil {
		return
	}
	event := domain.AuditEvent{
		AccountID: accountID,
		Email:     email,
		Action:    action,
		At:        s.now().UTC(),
	}
	if err := s.audit.Record(ctx, event); err != nil {
		s.log.Warn().Err(err).Str("action", string(action)).Str("account_id", accountID).Msg("failed to record audit event")
	}
}

func wrapLookup(op string, err error) error {
	if errors.Is(err, domain.ErrAccountNotFound) {
		return domain.ErrAccountNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}

func observe(op string, errp *error) {
	result := "ok"
	if *errp != nil {
		result = domain.Kind(*errp)
	}
	metrics.OperationsTotal.WithLabelValues(op, result).Inc()
}
