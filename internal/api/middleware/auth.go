package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/trackhub/auth-service/internal/core/domain"
	"github.com/trackhub/auth-service/internal/core/ports"
)

// Context keys set by Auth.
const (
	KeyAccountID = "account_id"
	KeyEmail     = "email"
	KeyRole      = "role"
	KeyToken     = "token"
)

// Auth verifies the bearer session token and injects its claims into the
// echo context. Password reset tokens are refused.
func Auth(verifier ports.TokenVerifier) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
			if authHeader == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
			}

			token, ok := BearerToken(c)
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization header")
			}

			claims, err := verifier.Verify(token)
			if err != nil {
				return err
			}
			if !claims.IsSession() {
				return domain.ErrInvalidOrExpiredToken
			}

			c.Set(KeyAccountID, claims.AccountID)
			c.Set(KeyEmail, claims.Email)
			c.Set(KeyRole, string(claims.Role))
			c.Set(KeyToken, token)

			return next(c)
		}
	}
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" header.
func BearerToken(c echo.Context) (string, bool) {
	parts := strings.SplitN(c.Request().Header.Get(echo.HeaderAuthorization), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}
