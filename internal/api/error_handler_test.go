package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trackhub/auth-service/internal/core/domain"
)

func renderError(t *testing.T, method string, err error) (*httptest.ResponseRecorder, errorResponse) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(method, "/x", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	NewHTTPErrorHandler(zerolog.Nop())(err, c)

	var body errorResponse
	if method != http.MethodHead {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec, body
}

func TestHTTPErrorHandler_DomainKinds(t *testing.T) {
	cases := []struct {
		err    error
		status int
		kind   string
	}{
		{domain.ErrDuplicateEmail, http.StatusBadRequest, domain.KindDuplicateEmail},
		{domain.ErrEmptyPassword, http.StatusBadRequest, domain.KindValidation},
		{domain.ErrInvalidCredentials, http.StatusUnauthorized, domain.KindInvalidCreds},
		{domain.ErrAccountDeactivated, http.StatusUnauthorized, domain.KindDeactivated},
		{domain.ErrTokenExpired, http.StatusUnauthorized, domain.KindInvalidToken},
		{domain.ErrTokenInvalidSignature, http.StatusUnauthorized, domain.KindInvalidToken},
		{domain.ErrInvalidResetToken, http.StatusUnauthorized, domain.KindInvalidReset},
		{fmt.Errorf("me: %w", domain.ErrAccountNotFound), http.StatusNotFound, domain.KindNotFound},
		{domain.ErrForbidden, http.StatusForbidden, domain.KindForbidden},
	}

	for _, tc := range cases {
		t.Run(tc.kind, func(t *testing.T) {
			rec, body := renderError(t, http.MethodPost, tc.err)
			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, tc.kind, body.Kind)
			assert.NotEmpty(t, body.Error)
		})
	}
}

func TestHTTPErrorHandler_ValidationFields(t *testing.T) {
	err := &domain.ValidationError{Fields: map[string]string{
		"email":    "valid email is required",
		"password": "password must be at least 6 characters",
	}}

	rec, body := renderError(t, http.MethodPost, err)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, domain.KindValidation, body.Kind)
	assert.Equal(t, "valid email is required", body.Fields["email"])
	assert.Len(t, body.Fields, 2)
}

func TestHTTPErrorHandler_EchoErrors(t *testing.T) {
	rec, body := renderError(t, http.MethodGet, echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header"))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, kindUnauthorized, body.Kind)
	assert.Equal(t, "missing authorization header", body.Error)

	rec, body = renderError(t, http.MethodGet, echo.ErrNotFound)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, domain.KindNotFound, body.Kind)

	rec, body = renderError(t, http.MethodGet, echo.NewHTTPError(http.StatusTooManyRequests, "slow down"))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, kindRateLimited, body.Kind)
}

func TestHTTPErrorHandler_UnexpectedErrorIsHidden(t *testing.T) {
	rec, body := renderError(t, http.MethodGet, errors.New("pq: connection reset by peer"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, domain.KindInternal, body.Kind)
	assert.Equal(t, "internal server error", body.Error)
	assert.NotContains(t, rec.Body.String(), "pq:")
}

func TestHTTPErrorHandler_Head(t *testing.T) {
	rec, _ := renderError(t, http.MethodHead, domain.ErrForbidden)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Zero(t, rec.Body.Len())
}
