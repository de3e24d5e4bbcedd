package handlers

import (
	"net/http"
	"strconv"

	"github.com/anonto42/sidequest/backend/internal/follow"
	"github.com/anonto42/sidequest/backend/internal/models"
	"github.com/anonto42/sidequest/backend/internal/repositories"
	"github.com/labstack/echo/v4"
)

const (
	defaultLeaderboardLimit = 100
	maxLeaderboardLimit     = 500
)

// LeaderboardHandler serves points and rankings.
type LeaderboardHandler struct {
	pointsRepository repositories.PointsRepository
	registry         *follow.Registry
}

func NewLeaderboardHandler(pointsRepo repositories.PointsRepository, registry *follow.Registry) *LeaderboardHandler {
	return &LeaderboardHandler{pointsRepository: pointsRepo, registry: registry}
}

func (h *LeaderboardHandler) RegisterLeaderboardRoutes(g *echo.Group) {
	g.GET("/leaderboard/global", h.GetGlobal)
	g.GET("/leaderboard/friends", h.GetFriends)
	g.GET("/leaderboard/rank", h.GetRank)
	g.POST("/points", h.AddPoints)
}

func leaderboardLimit(c echo.Context) int {
	limit, err := strconv.Atoi(c.QueryParam("limit"))
	if err != nil || limit < 1 {
		return defaultLeaderboardLimit
	}
	return min(limit, maxLeaderboardLimit)
}

func (h *LeaderboardHandler) GetGlobal(c echo.Context) error {
	identity, err := currentIdentity(c)
	if err != nil {
		return err
	}

	entries, err := h.pointsRepository.GetGlobalLeaderboard(c.Request().Context(), leaderboardLimit(c))
	if err != nil {
		return httpError(err)
	}
	for i := range entries {
		entries[i].IsUser = entries[i].ID == identity.ID
	}
	return respond(c, echo.Map{"leaderboard": entries})
}

// GetFriends ranks the caller against their mutual friends as known to the
// follow controller.
func (h *LeaderboardHandler) GetFriends(c echo.Context) error {
	ctrl, err := controllerFor(c, h.registry)
	if err != nil {
		return err
	}
	identity, _ := ctrl.Identity()

	ids := append(ctrl.Snapshot().Friends, identity.ID)
	entries, err := h.pointsRepository.GetLeaderboardFor(c.Request().Context(), ids, identity.ID, leaderboardLimit(c))
	if err != nil {
		return httpError(err)
	}
	return respond(c, echo.Map{"leaderboard": entries})
}

func (h *LeaderboardHandler) GetRank(c echo.Context) error {
	identity, err := currentIdentity(c)
	if err != nil {
		return err
	}

	rank, err := h.pointsRepository.GetUserRank(c.Request().Context(), identity.ID)
	if err != nil {
		return httpError(err)
	}
	return respond(c, rank)
}

func (h *LeaderboardHandler) AddPoints(c echo.Context) error {
	identity, err := currentIdentity(c)
	if err != nil {
		return err
	}

	var req models.AddPointsRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	total, err := h.pointsRepository.AddPoints(c.Request().Context(), identity.ID, req.Points, req.Reason)
	if err != nil {
		return httpError(err)
	}
	return respond(c, echo.Map{"points": total})
}
