package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/trackhub/auth-service/internal/core/domain"
	"github.com/trackhub/auth-service/internal/pkg/metrics"
)

const (
	DefaultSessionTTL = 7 * 24 * time.Hour
	DefaultResetTTL   = time.Hour
)

// JWTConfig configures a JWTIssuer.
type JWTConfig struct {
	Secret     string
	Issuer     string
	SessionTTL time.Duration
	ResetTTL   time.Duration
	// Now overrides the clock, for tests.
	Now func() time.Time
}

// tokenClaims is the wire form of domain.Claims.
type tokenClaims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	Type  string `json:"type,omitempty"`
	jwt.RegisteredClaims
}

// JWTIssuer signs HS256 tokens with a process-wide secret.
type JWTIssuer struct {
	secret     []byte
	issuer     string
	sessionTTL time.Duration
	resetTTL   time.Duration
	now        func() time.Time
}

// NewJWTIssuer validates cfg and returns an issuer.
func NewJWTIssuer(cfg JWTConfig) (*JWTIssuer, error) {
	if cfg.Secret == "" {
		return nil, errors.New("jwt: secret is required")
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = DefaultSessionTTL
	}
	if cfg.ResetTTL <= 0 {
		cfg.ResetTTL = DefaultResetTTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &JWTIssuer{
		secret:     []byte(cfg.Secret),
		issuer:     cfg.Issuer,
		sessionTTL: cfg.SessionTTL,
		resetTTL:   cfg.ResetTTL,
		now:        cfg.Now,
	}, nil
}

// Issue signs claims valid for ttl from now. IssuedAt, ExpiresAt and TokenID
// on the input are ignored and set by the issuer.
func (i *JWTIssuer) Issue(claims domain.Claims, ttl time.Duration) (string, time.Time, error) {
	if ttl <= 0 {
		return "", time.Time{}, fmt.Errorf("jwt: ttl must be positive, got %s", ttl)
	}

	// JWT timestamps have second precision.
	now := i.now().UTC().Truncate(time.Second)
	expiresAt := now.Add(ttl)

	tc := tokenClaims{
		Email: claims.Email,
		Role:  string(claims.Role),
		Type:  claims.Type,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    i.issuer,
			Subject:   claims.AccountID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, tc).SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("jwt: sign: %w", err)
	}

	kind := claims.Type
	if kind == "" {
		kind = "session"
	}
	metrics.TokensIssuedTotal.WithLabelValues(kind).Inc()

	return signed, expiresAt, nil
}

// IssueSession signs a session token for a with the configured session TTL.
func (i *JWTIssuer) IssueSession(a *domain.Account) (string, time.Time, error) {
	return i.Issue(domain.ClaimsFor(a), i.sessionTTL)
}

// IssueReset signs a password_reset token for a with the configured reset TTL.
func (i *JWTIssuer) IssueReset(a *domain.Account) (string, time.Time, error) {
	claims := domain.ClaimsFor(a)
	claims.Type = domain.TokenTypePasswordReset
	return i.Issue(claims, i.resetTTL)
}

// Verify checks the signature, algorithm, issuer and expiry of token.
func (i *JWTIssuer) Verify(token string) (*domain.Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(i.now),
		jwt.WithExpirationRequired(),
	}
	if i.issuer != "" {
		opts = append(opts, jwt.WithIssuer(i.issuer))
	}

	var tc tokenClaims
	parsed, err := jwt.ParseWithClaims(token, &tc, func(*jwt.Token) (any, error) {
		return i.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, domain.ErrTokenExpired
		}
		return nil, domain.ErrTokenInvalidSignature
	}
	if !parsed.Valid || tc.Subject == "" {
		return nil, domain.ErrTokenInvalidSignature
	}

	claims := &domain.Claims{
		AccountID: tc.Subject,
		Email:     tc.Email,
		Role:      domain.Role(tc.Role),
		Type:      tc.Type,
		TokenID:   tc.ID,
	}
	if tc.IssuedAt != nil {
		claims.IssuedAt = tc.IssuedAt.Time
	}
	if tc.ExpiresAt != nil {
		claims.ExpiresAt = tc.ExpiresAt.Time
	}
	return claims, nil
}
