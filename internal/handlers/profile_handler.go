package handlers

import (
	"net/http"
	"strings"

	"github.com/anonto42/sidequest/backend/internal/follow"
	"github.com/anonto42/sidequest/backend/internal/models"
	"github.com/anonto42/sidequest/backend/internal/repositories"
	"github.com/labstack/echo/v4"
)

// ProfileHandler serves profile lookups, bio edits and the friends list.
type ProfileHandler struct {
	profileRepository repositories.ProfileRepository
	registry          *follow.Registry
}

func NewProfileHandler(profileRepo repositories.ProfileRepository, registry *follow.Registry) *ProfileHandler {
	return &ProfileHandler{profileRepository: profileRepo, registry: registry}
}

func (h *ProfileHandler) RegisterProfileRoutes(g *echo.Group) {
	g.GET("/users/search", h.SearchUsers)
	g.GET("/users/:id", h.GetUser)
	g.PUT("/profile", h.UpdateBio)
	g.GET("/friends", h.GetFriends)
}

func (h *ProfileHandler) GetUser(c echo.Context) error {
	userID, err := userIDParam(c)
	if err != nil {
		return err
	}

	profile, err := h.profileRepository.GetProfileByID(c.Request().Context(), userID)
	if err != nil {
		return httpError(err)
	}
	return respond(c, profile)
}

// SearchUsers matches nicknames against ?q=. At most 20 results.
func (h *ProfileHandler) SearchUsers(c echo.Context) error {
	users, err := h.profileRepository.SearchProfiles(c.Request().Context(), c.QueryParam("q"))
	if err != nil {
		return httpError(err)
	}
	return respond(c, echo.Map{"users": users})
}

// UpdateBio replaces the caller's bio. An empty or blank bio clears it.
func (h *ProfileHandler) UpdateBio(c echo.Context) error {
	identity, err := currentIdentity(c)
	if err != nil {
		return err
	}

	var req models.UpdateBioRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if req.Bio != nil {
		trimmed := strings.TrimSpace(*req.Bio)
		req.Bio = &trimmed
		if trimmed == "" {
			req.Bio = nil
		}
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	profile, err := h.profileRepository.UpdateBio(c.Request().Context(), identity.ID, req.Bio)
	if err != nil {
		return httpError(err)
	}
	return respond(c, profile)
}

// GetFriends lists the profiles of the caller's mutual follows as currently
// known to the follow controller.
func (h *ProfileHandler) GetFriends(c echo.Context) error {
	ctrl, err := controllerFor(c, h.registry)
	if err != nil {
		return err
	}

	friends, err := h.profileRepository.GetProfilesByIDs(c.Request().Context(), ctrl.Snapshot().Friends)
	if err != nil {
		return httpError(err)
	}
	return respond(c, echo.Map{"friends": friends})
}
