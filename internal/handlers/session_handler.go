package handlers

import (
	"github.com/anonto42/sidequest/backend/internal/follow"
	"github.com/labstack/echo/v4"
)

// SessionHandler binds the authenticated identity to its follow controller.
type SessionHandler struct {
	registry *follow.Registry
}

func NewSessionHandler(registry *follow.Registry) *SessionHandler {
	return &SessionHandler{registry: registry}
}

func (h *SessionHandler) RegisterSessionRoutes(g *echo.Group) {
	g.POST("/session", h.SignIn)
	g.DELETE("/session", h.SignOut)
}

// SignIn resets the caller's follow state and loads it again. A failed load
// still signs in; "synced" tells the client to refresh later.
func (h *SessionHandler) SignIn(c echo.Context) error {
	identity, err := currentIdentity(c)
	if err != nil {
		return err
	}

	ctrl, err := h.registry.SignIn(c.Request().Context(), identity)
	return respond(c, echo.Map{
		"identity": identity,
		"status":   ctrl.Snapshot(),
		"synced":   err == nil,
	})
}

func (h *SessionHandler) SignOut(c echo.Context) error {
	identity, err := currentIdentity(c)
	if err != nil {
		return err
	}

	h.registry.SignOut(identity.ID)
	return respond(c, echo.Map{"signed_out": true})
}
