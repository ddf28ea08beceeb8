package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/backendauth/identity-service/internal/pkg/token"
)

// IdentityKey is the echo.Context key holding the verified token.Identity.
const IdentityKey = "identity"

// accessTokenParam lets clients that cannot set headers pass the bearer
// token in the query string.
const accessTokenParam = "access_token"

// TokenParser verifies a raw bearer token.
type TokenParser interface {
	Parse(raw string) (*token.Claims, error)
}

// Auth verifies the bearer token and injects the caller's identity into the
// context. The token is read from the Authorization header, falling back to
// the access_token query parameter.
func Auth(parser TokenParser) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw, err := bearerToken(c)
			if err != nil {
				return err
			}

			claims, err := parser.Parse(raw)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			c.Set(IdentityKey, claims.Identity())
			return next(c)
		}
	}
}

func bearerToken(c echo.Context) (string, error) {
	authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
	if authHeader == "" {
		if q := c.QueryParam(accessTokenParam); q != "" {
			return q, nil
		}
		return "", echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization header")
	}
	return strings.TrimSpace(parts[1]), nil
}

// IdentityFrom returns the identity stored by Auth.
func IdentityFrom(c echo.Context) (token.Identity, bool) {
	ident, ok := c.Get(IdentityKey).(token.Identity)
	return ident, ok
}
