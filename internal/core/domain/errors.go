package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrDuplicateEmail     = errors.New("an account with this email already exists")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrAccountDeactivated = errors.New("account is deactivated")
	ErrAccountNotFound    = errors.New("account not found")
	ErrInvalidResetToken  = errors.New("invalid password reset token")
	ErrForbidden          = errors.New("access forbidden")
	ErrEmptyPassword      = errors.New("password cannot be empty")

	// ErrInvalidOrExpiredToken is the umbrella for every token verification
	// failure. ErrTokenExpired and ErrTokenInvalidSignature wrap it.
	ErrInvalidOrExpiredToken = errors.New("invalid or expired token")
	ErrTokenExpired          = fmt.Errorf("%w: token has expired", ErrInvalidOrExpiredToken)
	ErrTokenInvalidSignature = fmt.Errorf("%w: token signature is invalid", ErrInvalidOrExpiredToken)
)

// ValidationError carries per-field messages for malformed input.
type ValidationError struct {
	Fields map[string]string
}

// NewValidationError builds a ValidationError for a single field.
func NewValidationError(field, msg string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: msg}}
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	msgs := make([]string, 0, len(keys))
	for _, k := range keys {
		msgs = append(msgs, e.Fields[k])
	}
	return strings.Join(msgs, "; ")
}

// Error kinds reported to API callers.
const (
	KindValidation     = "validation_error"
	KindDuplicateEmail = "duplicate_email"
	KindInvalidCreds   = "invalid_credentials"
	KindDeactivated    = "account_deactivated"
	KindInvalidToken   = "invalid_or_expired_token"
	KindInvalidReset   = "invalid_reset_token"
	KindNotFound       = "not_found"
	KindForbidden      = "forbidden"
	KindInternal       = "internal_error"
)

// Kind classifies err into one of the stable error kinds. Anything not
// recognised is KindInternal.
func Kind(err error) string {
	var ve *ValidationError
	switch {
	case errors.As(err, &ve), errors.Is(err, ErrEmptyPassword):
		return KindValidation
	case errors.Is(err, ErrDuplicateEmail):
		return KindDuplicateEmail
	case errors.Is(err, ErrInvalidCredentials):
		return KindInvalidCreds
	case errors.Is(err, ErrAccountDeactivated):
		return KindDeactivated
	case errors.Is(err, ErrInvalidResetToken):
		return KindInvalidReset
	case errors.Is(err, ErrInvalidOrExpiredToken):
		return KindInvalidToken
	case errors.Is(err, ErrAccountNotFound):
		return KindNotFound
	case errors.Is(err, ErrForbidden):
		return KindForbidden
	default:
		return KindInternal
	}
}
