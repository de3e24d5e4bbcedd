package handlers

import (
	"net/http"

	"github.com/anonto42/sidequest/backend/internal/models"
	"github.com/anonto42/sidequest/backend/internal/repositories"
	"github.com/labstack/echo/v4"
)

type DeviceHandler struct {
	deviceRepository repositories.DeviceRepository
}

func NewDeviceHandler(deviceRepo repositories.DeviceRepository) *DeviceHandler {
	return &DeviceHandler{deviceRepository: deviceRepo}
}

func (h *DeviceHandler) RegisterDeviceRoutes(g *echo.Group) {
	g.POST("/devices", h.RegisterDevice)
	g.GET("/devices", h.ListDevices)
}

// RegisterDevice stores the caller's push token. Nothing is sent to it.
func (h *DeviceHandler) RegisterDevice(c echo.Context) error {
	identity, err := currentIdentity(c)
	if err != nil {
		return err
	}

	var req models.RegisterDeviceRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	device := &models.DeviceToken{UserID: identity.ID, Token: req.Token, Platform: req.Platform}
	if err := h.deviceRepository.RegisterToken(c.Request().Context(), device); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusCreated, echo.Map{"success": true, "data": device})
}

// ListDevices returns the caller's registrations, most recent first.
func (h *DeviceHandler) ListDevices(c echo.Context) error {
	identity, err := currentIdentity(c)
	if err != nil {
		return err
	}

	devices, err := h.deviceRepository.GetTokensByUserID(c.Request().Context(), identity.ID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if devices == nil {
		devices = []models.DeviceToken{}
	}
	return respond(c, echo.Map{"devices": devices})
}
