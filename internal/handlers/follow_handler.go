package handlers

import (
	"errors"
	"net/http"

	"github.com/anonto42/sidequest/backend/internal/follow"
	"github.com/labstack/echo/v4"
)

// FollowHandler exposes the caller's follow controller.
type FollowHandler struct {
	registry *follow.Registry
}

func NewFollowHandler(registry *follow.Registry) *FollowHandler {
	return &FollowHandler{registry: registry}
}

// RegisterFollowRoutes registers follow-related routes
func (h *FollowHandler) RegisterFollowRoutes(g *echo.Group) {
	g.GET("/follow/status", h.GetStatus)
	g.GET("/follow/status/stream", h.StreamStatus)
	g.POST("/follow/status/refresh", h.RefreshStatus)
	g.POST("/users/:id/follow/toggle", h.ToggleFollow)
	g.GET("/users/:id/follow/label", h.GetLabel)
	g.GET("/users/:id/stats", h.GetStats)
}

func (h *FollowHandler) GetStatus(c echo.Context) error {
	ctrl, err := controllerFor(c, h.registry)
	if err != nil {
		return err
	}
	return respond(c, ctrl.Snapshot())
}

func (h *FollowHandler) RefreshStatus(c echo.Context) error {
	ctrl, err := controllerFor(c, h.registry)
	if err != nil {
		return err
	}
	if err := ctrl.LoadFollowingStatus(c.Request().Context()); err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, "Could not load follow status")
	}
	return respond(c, ctrl.Snapshot())
}

// ToggleFollow follows or unfollows :id. When only the resync after the
// mutation failed, the result is returned with "synced": false.
func (h *FollowHandler) ToggleFollow(c echo.Context) error {
	ctrl, err := controllerFor(c, h.registry)
	if err != nil {
		return err
	}

	targetID, err := userIDParam(c)
	if err != nil {
		return err
	}

	result, err := ctrl.ToggleFollow(c.Request().Context(), targetID)
	if err != nil && !errors.Is(err, follow.ErrResyncFailed) {
		return httpError(err)
	}

	return respond(c, echo.Map{
		"result": result,
		"label":  ctrl.LabelFor(targetID),
		"synced": err == nil,
	})
}

func (h *FollowHandler) GetLabel(c echo.Context) error {
	ctrl, err := controllerFor(c, h.registry)
	if err != nil {
		return err
	}

	targetID, err := userIDParam(c)
	if err != nil {
		return err
	}
	return respond(c, echo.Map{
		"label":           ctrl.LabelFor(targetID),
		"is_friend":       ctrl.IsFriend(targetID),
		"is_following":    ctrl.IsFollowing(targetID),
		"is_following_me": ctrl.IsFollowedBy(targetID),
	})
}

// GetStats loads follower/following counts of :id. When the load fails the
// last good counts are returned with "fresh": false.
func (h *FollowHandler) GetStats(c echo.Context) error {
	ctrl, err := controllerFor(c, h.registry)
	if err != nil {
		return err
	}

	userID, err := userIDParam(c)
	if err != nil {
		return err
	}
	stats, err := ctrl.LoadUserStats(c.Request().Context(), userID)
	if err != nil {
		previous, cached := ctrl.Stats(userID)
		if !cached {
			return echo.NewHTTPError(http.StatusBadGateway, "Could not load user stats")
		}
		return respond(c, echo.Map{"stats": previous, "fresh": false})
	}
	return respond(c, echo.Map{"stats": stats, "fresh": true})
}
