package handlers

import (
	"errors"
	"net/http"

	"github.com/anonto42/sidequest/backend/internal/follow"
	"github.com/anonto42/sidequest/backend/internal/middleware"
	"github.com/anonto42/sidequest/backend/internal/models"
	"github.com/anonto42/sidequest/backend/internal/repositories"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

func currentIdentity(c echo.Context) (models.Identity, error) {
	identity, ok := middleware.GetIdentity(c)
	if !ok {
		return models.Identity{}, echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}
	return identity, nil
}

// controllerFor returns the shared follow controller of the caller, signing
// it in on first use.
func controllerFor(c echo.Context, registry *follow.Registry) (*follow.Controller, error) {
	identity, err := currentIdentity(c)
	if err != nil {
		return nil, err
	}
	// a failed initial load is logged by the controller; the sets stay empty
	// until the next successful refresh
	ctrl, _ := registry.Acquire(c.Request().Context(), identity)
	return ctrl, nil
}

// pathUUID returns the canonical form of the :name path parameter, or a 400
// carrying message when it is not a UUID.
func pathUUID(c echo.Context, name, message string) (string, error) {
	parsed, err := uuid.Parse(c.Param(name))
	if err != nil {
		return "", echo.NewHTTPError(http.StatusBadRequest, message)
	}
	return parsed.String(), nil
}

func userIDParam(c echo.Context) (string, error) {
	return pathUUID(c, "id", "Invalid user ID")
}

func httpError(err error) error {
	switch {
	case errors.Is(err, follow.ErrNotSignedIn):
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	case errors.Is(err, follow.ErrCannotFollowSelf):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, follow.ErrToggleInProgress):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, repositories.ErrNotificationNotFound), errors.Is(err, repositories.ErrProfileNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

func respond(c echo.Context, data any) error {
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": data})
}
