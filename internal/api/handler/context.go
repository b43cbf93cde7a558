package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/trackhub/auth-service/internal/api/middleware"
)

// ctxAccountID returns the account id injected by the Auth middleware.
func ctxAccountID(c echo.Context) (string, error) {
	id, _ := c.Get(middleware.KeyAccountID).(string)
	if id == "" {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "missing authentication claims")
	}
	return id, nil
}
