package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/trackhub/auth-service/internal/core/domain"
)

// Kinds for errors raised by echo or middleware rather than the domain.
const (
	kindUnauthorized    = "unauthorized"
	kindRateLimited     = "rate_limited"
	kindPayloadTooLarge = "payload_too_large"
	kindHTTP            = "http_error"
)

// errorResponse is the canonical error envelope for all API errors.
type errorResponse struct {
	Kind   string            `json:"kind"`
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

// NewHTTPErrorHandler returns an echo.HTTPErrorHandler that:
//   - Maps domain errors to status codes through domain.Kind.
//   - Logs unexpected errors without leaking details to the client.
//   - Renders {"kind": "...", "error": "...", "fields": {...}}.
func NewHTTPErrorHandler(log zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code, body := resolveError(err, log, c)
		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(code)
			return
		}
		_ = c.JSON(code, body)
	}
}

func resolveError(err error, log zerolog.Logger, c echo.Context) (int, errorResponse) {
	// Echo's own errors (bind failures, 404 from router, middleware rejections).
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code, errorResponse{Kind: kindForStatus(he.Code), Error: fmt.Sprintf("%v", he.Message)}
	}

	kind := domain.Kind(err)
	switch kind {
	case domain.KindValidation:
		resp := errorResponse{Kind: kind, Error: err.Error()}
		var ve *domain.ValidationError
		if errors.As(err, &ve) {
			resp.Fields = ve.Fields
		}
		return http.StatusBadRequest, resp
	case domain.KindDuplicateEmail:
		return http.StatusBadRequest, errorResponse{Kind: kind, Error: "user already exists with this email"}
	case domain.KindInvalidCreds:
		return http.StatusUnauthorized, errorResponse{Kind: kind, Error: "invalid credentials"}
	case domain.KindDeactivated:
		return http.StatusUnauthorized, errorResponse{Kind: kind, Error: "account is deactivated"}
	case domain.KindInvalidToken:
		return http.StatusUnauthorized, errorResponse{Kind: kind, Error: err.Error()}
	case domain.KindInvalidReset:
		return http.StatusUnauthorized, errorResponse{Kind: kind, Error: "invalid password reset token"}
	case domain.KindNotFound:
		return http.StatusNotFound, errorResponse{Kind: kind, Error: "account not found"}
	case domain.KindForbidden:
		return http.StatusForbidden, errorResponse{Kind: kind, Error: "access forbidden"}
	}

	// Unexpected error: log the real cause, return a generic message.
	log.Error().
		Err(err).
		Str("method", c.Request().Method).
		Str("path", c.Path()).
		Str("request_id", c.Response().Header().Get(echo.HeaderXRequestID)).
		Msg("unhandled error")

	return http.StatusInternalServerError, errorResponse{Kind: domain.KindInternal, Error: "internal server error"}
}

func kindForStatus(code int) string {
	switch code {
	case http.StatusBadRequest:
		return domain.KindValidation
	case http.StatusUnauthorized:
		return kindUnauthorized
	case http.StatusForbidden:
		return domain.KindForbidden
	case http.StatusNotFound:
		return domain.KindNotFound
	case http.StatusRequestEntityTooLarge:
		return kindPayloadTooLarge
	case http.StatusTooManyRequests:
		return kindRateLimited
	default:
		if code >= http.StatusInternalServerError {
			return domain.KindInternal
		}
		return kindHTTP
	}
}
