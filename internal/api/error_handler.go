package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/backendauth/identity-service/internal/core/domain"
)

// errorResponse is the body of every non-2xx reply.
type errorResponse struct {
	Error string `json:"error"`
}

type mappedError struct {
	target  error
	status  int
	message string
}

// domainErrors is checked in order with errors.Is.
var domainErrors = []mappedError{
	{domain.ErrInvalidCredentials, http.StatusUnauthorized, "invalid credentials"},
	{domain.ErrTooManyAttempts, http.StatusTooManyRequests, "too many failed login attempts, try again later"},
	{domain.ErrUserNotFound, http.StatusNotFound, "user not found"},
	{domain.ErrConflict, http.StatusConflict, "username or email already in use"},
}

// NewHTTPErrorHandler renders errors as {"error": "..."}. Domain sentinels
// get fixed statuses; anything unrecognised is logged and answered with a
// generic 500 so internals never reach the client.
func NewHTTPErrorHandler(log zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status, msg := statusFor(err)
		if status == http.StatusInternalServerError {
			log.Error().
				Err(err).
				Str("method", c.Request().Method).
				Str("route", c.Path()).
				Msg("request failed")
		}

		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(status)
			return
		}
		_ = c.JSON(status, errorResponse{Error: msg})
	}
}

func statusFor(err error) (int, string) {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code, fmt.Sprint(he.Message)
	}
	for _, m := range domainErrors {
		if errors.Is(err, m.target) {
			return m.status, m.message
		}
	}
	return http.StatusInternalServerError, "internal server error"
}
