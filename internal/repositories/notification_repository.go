package repositories

import (
	"context"
	"errors"

	"github.com/anonto42/sidequest/backend/internal/models"
	"gorm.io/gorm"
)

var ErrNotificationNotFound = errors.New("notification not found")

// NotificationRepository defines the interface for notification operations
type NotificationRepository interface {
	CreateNotification(ctx context.Context, notification *models.Notification) error
	GetByRecipientID(ctx context.Context, recipientID string) ([]models.Notification, error)
	GetUnreadCount(ctx context.Context, recipientID string) (int64, error)
	MarkAsRead(ctx context.Context, recipientID, notificationID string) (*models.Notification, error)
	MarkAllAsRead(ctx context.Context, recipientID string) error
}

type postgresNotificationRepository struct {
	db *gorm.DB
}

func NewPostgresNotificationRepository(db *gorm.DB) NotificationRepository {
	return &postgresNotificationRepository{db: db}
}

func (r *postgresNotificationRepository) CreateNotification(ctx context.Context, notification *models.Notification) error {
	return r.db.WithContext(ctx).Create(notification).Error
}

// GetByRecipientID returns every notification of recipientID, newest first.
func (r *postgresNotificationRepository) GetByRecipientID(ctx context.Context, recipientID string) ([]models.Notification, error) {
	var notifications []models.Notification
	err := r.db.WithContext(ctx).Where("to_user_id = ?", recipientID).
		Order("created_at DESC").
		Find(&notifications).Error
	return notifications, err
}

func (r *postgresNotificationRepository) GetUnreadCount(ctx context.Context, recipientID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Notification{}).Where("to_user_id = ? AND read = ?", recipientID, false).Count(&count).Error
	return count, err
}

// MarkAsRead sets the read flag on a notification owned by recipientID and
// returns the updated row.
func (r *postgresNotificationRepository) MarkAsRead(ctx context.Context, recipientID, notificationID string) (*models.Notification, error) {
	db := r.db.WithContext(ctx)

	res := db.Model(&models.Notification{}).Where("id = ? AND to_user_id = ?", notificationID, recipientID).Update("read", true)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotificationNotFound
	}

	var notification models.Notification
	if err := db.First(&notification, "id = ?", notificationID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotificationNotFound
		}
		return nil, err
	}
	return &notification, nil
}

func (r *postgresNotificationRepository) MarkAllAsRead(ctx context.Context, recipientID string) error {
	return r.db.WithContext(ctx).Model(&models.Notification{}).Where("to_user_id = ? AND read = ?", recipientID, false).Update("read", true).Error
}
