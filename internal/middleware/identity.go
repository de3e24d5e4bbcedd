package middleware

import (
	"net/http"
	"strings"

	"github.com/anonto42/sidequest/backend/internal/models"
	"github.com/labstack/echo/v4"
)

const identityKey = "identity"

// GetIdentity returns the identity stored by one of the auth middlewares.
func GetIdentity(c echo.Context) (models.Identity, bool) {
	identity, ok := c.Get(identityKey).(models.Identity)
	if !ok || identity.ID == "" {
		return models.Identity{}, false
	}
	return identity, true
}

func setIdentity(c echo.Context, identity models.Identity) {
	c.Set(identityKey, identity)
}

// bearerToken extracts the token of an "Authorization: Bearer <token>" header.
func bearerToken(c echo.Context) (string, error) {
	authHeader := c.Request().Header.Get("Authorization")
	if authHeader == "" {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "Missing Authorization header")
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" || parts[1] == "" {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "Invalid Authorization header format")
	}
	return parts[1], nil
}
