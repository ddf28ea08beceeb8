package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/backendauth/identity-service/internal/api/middleware"
	"github.com/backendauth/identity-service/internal/pkg/token"
)

// ctxIdentity returns the identity injected by the Auth middleware. Its
// absence means the route was registered without Auth.
func ctxIdentity(c echo.Context) (token.Identity, error) {
	ident, ok := middleware.IdentityFrom(c)
	if !ok {
		return token.Identity{}, echo.NewHTTPError(http.StatusUnauthorized, "missing authentication claims")
	}
	return ident, nil
}

// pathID parses the :id path parameter.
func pathID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid user id")
	}
	return id, nil
}
