package handlers

import (
	"net/http"

	"github.com/anonto42/sidequest/backend/internal/follow"
	"github.com/anonto42/sidequest/backend/internal/repositories"
	"github.com/labstack/echo/v4"
)

// NotificationHandler handles notification-related HTTP requests
type NotificationHandler struct {
	notificationRepository repositories.NotificationRepository
	notifier               *follow.Notifier
}

// NewNotificationHandler creates a new NotificationHandler
func NewNotificationHandler(notifRepo repositories.NotificationRepository, notifier *follow.Notifier) *NotificationHandler {
	return &NotificationHandler{
		notificationRepository: notifRepo,
		notifier:               notifier,
	}
}

// RegisterNotificationRoutes registers notification routes
func (h *NotificationHandler) RegisterNotificationRoutes(g *echo.Group) {
	g.GET("/notifications", h.GetNotifications)
	g.GET("/notifications/unread-count", h.GetUnreadCount)
	g.PUT("/notifications/:id/read", h.MarkAsRead)
	g.PUT("/notifications/read-all", h.MarkAllAsRead)
}

// GetNotifications returns the caller's notifications, newest first
func (h *NotificationHandler) GetNotifications(c echo.Context) error {
	identity, err := currentIdentity(c)
	if err != nil {
		return err
	}

	notifications, err := h.notificationRepository.GetByRecipientID(c.Request().Context(), identity.ID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return respond(c, echo.Map{"notifications": notifications})
}

// GetUnreadCount returns the unread notification count
func (h *NotificationHandler) GetUnreadCount(c echo.Context) error {
	identity, err := currentIdentity(c)
	if err != nil {
		return err
	}

	count, err := h.notificationRepository.GetUnreadCount(c.Request().Context(), identity.ID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return respond(c, echo.Map{"count": count})
}

// MarkAsRead marks one of the caller's notifications as read
func (h *NotificationHandler) MarkAsRead(c echo.Context) error {
	identity, err := currentIdentity(c)
	if err != nil {
		return err
	}

	notificationID, err := pathUUID(c, "id", "Invalid notification ID")
	if err != nil {
		return err
	}

	notification, err := h.notifier.MarkRead(c.Request().Context(), identity.ID, notificationID)
	if err != nil {
		return httpError(err)
	}

	return respond(c, echo.Map{"notification": notification})
}

// MarkAllAsRead marks all notifications as read
func (h *NotificationHandler) MarkAllAsRead(c echo.Context) error {
	identity, err := currentIdentity(c)
	if err != nil {
		return err
	}

	if err := h.notificationRepository.MarkAllAsRead(c.Request().Context(), identity.ID); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return respond(c, echo.Map{"success": true})
}
