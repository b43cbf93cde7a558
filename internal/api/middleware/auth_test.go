package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/trackhub/auth-service/internal/core/domain"
)

type stubVerifier struct {
	claims *domain.Claims
	err    error
	got    string
}

func (s *stubVerifier) Verify(token string) (*domain.Claims, error) {
	s.got = token
	return s.claims, s.err
}

func runAuth(t *testing.T, header string, v *stubVerifier, next echo.HandlerFunc) (*httptest.ResponseRecorder, error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if next == nil {
		next = func(c echo.Context) error {
			t.Fatalf("should not reach next")
			return nil
		}
	}
	return rec, Auth(v)(next)(c)
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	v := &stubVerifier{claims: &domain.Claims{AccountID: "acc-1", Email: "alice@x.com", Role: domain.RoleAdmin}}

	called := false
	rec, err := runAuth(t, "Bearer signed-token", v, func(c echo.Context) error {
		called = true
		if c.Get(KeyAccountID) != "acc-1" {
			t.Fatalf("account_id not set")
		}
		if c.Get(KeyEmail) != "alice@x.com" {
			t.Fatalf("email not set")
		}
		if c.Get(KeyRole) != "admin" {
			t.Fatalf("role not set")
		}
		if c.Get(KeyToken) != "signed-token" {
			t.Fatalf("token not set")
		}
		return c.NoContent(http.StatusOK)
	})

	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if !called {
		t.Fatalf("next not called")
	}
	if v.got != "signed-token" {
		t.Fatalf("verifier got %q", v.got)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestAuthMiddleware_MissingHeader(t *testing.T) {
	_, err := runAuth(t, "", &stubVerifier{}, nil)

	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 HTTPError, got %v", err)
	}
}

func TestAuthMiddleware_InvalidHeaderFormat(t *testing.T) {
	for _, header := range []string{"Token abc", "Bearer", "Bearer   "} {
		_, err := runAuth(t, header, &stubVerifier{}, nil)

		var he *echo.HTTPError
		if !errors.As(err, &he) || he.Code != http.StatusUnauthorized {
			t.Fatalf("%q: expected 401 HTTPError, got %v", header, err)
		}
	}
}

func TestAuthMiddleware_InvalidToken(t *testing.T) {
	_, err := runAuth(t, "Bearer not-a-token", &stubVerifier{err: domain.ErrTokenInvalidSignature}, nil)

	if !errors.Is(err, domain.ErrTokenInvalidSignature) {
		t.Fatalf("expected ErrTokenInvalidSignature, got %v", err)
	}
}

func TestAuthMiddleware_RejectsResetToken(t *testing.T) {
	v := &stubVerifier{claims: &domain.Claims{AccountID: "acc-1", Type: domain.TokenTypePasswordReset}}

	_, err := runAuth(t, "Bearer reset-token", v, nil)
	if !errors.Is(err, domain.ErrInvalidOrExpiredToken) {
		t.Fatalf("expected ErrInvalidOrExpiredToken, got %v", err)
	}
}

func TestBearerToken_CaseInsensitiveScheme(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "bearer abc")
	c := e.NewContext(req, httptest.NewRecorder())

	token, ok := BearerToken(c)
	if !ok || token != "abc" {
		t.Fatalf("got %q, %v", token, ok)
	}
}
