package follow

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/anonto42/sidequest/backend/internal/models"
	"github.com/anonto42/sidequest/backend/internal/repositories"
)

// Notifier writes follow notifications and flips their read flag.
type Notifier struct {
	notifications repositories.NotificationRepository
	logger        *slog.Logger
}

func NewNotifier(notifications repositories.NotificationRepository, logger *slog.Logger) *Notifier {
	return &Notifier{notifications: notifications, logger: logger}
}

// NotifyOnFollow records that actorID started following targetID. The
// actor's display name is stored as-is so later nickname changes do not
// rewrite history.
func (n *Notifier) NotifyOnFollow(ctx context.Context, actorID, targetID, actorDisplayName string) error {
	if actorDisplayName == "" {
		actorDisplayName = models.UnknownNickname
	}

	notification := &models.Notification{
		Type:             models.NotificationTypeFollow,
		FromUserID:       actorID,
		FromUserNickname: actorDisplayName,
		ToUserID:         targetID,
		Read:             false,
	}
	if err := n.notifications.CreateNotification(ctx, notification); err != nil {
		return fmt.Errorf("create follow notification: %w", err)
	}
	return nil
}

// MarkRead sets the read flag of one of recipientID's notifications and
// returns the updated row. Callers keep their previous read state when an
// error is returned.
func (n *Notifier) MarkRead(ctx context.Context, recipientID, notificationID string) (*models.Notification, error) {
	notification, err := n.notifications.MarkAsRead(ctx, recipientID, notificationID)
	if err != nil {
		n.logger.Error("Marking notification read failed", "notification_id", notificationID, "error", err)
		return nil, err
	}
	return notification, nil
}
