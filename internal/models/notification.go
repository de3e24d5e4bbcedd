package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const NotificationTypeFollow = "follow"

// UnknownNickname is written when the actor of a notification has no nickname.
const UnknownNickname = "Unknown user"

// Notification is owned by ToUserID. FromUserNickname is captured when the
// row is written and never recomputed.
type Notification struct {
	ID               string    `json:"id" gorm:"type:uuid;primaryKey"`
	Type             string    `json:"type" gorm:"size:30;index"`
	FromUserID       string    `json:"from_user_id" gorm:"type:uuid;index"`
	FromUserNickname string    `json:"from_user_nickname"`
	ToUserID         string    `json:"to_user_id" gorm:"type:uuid;index"`
	Read             bool      `json:"read" gorm:"column:read;default:false;index"`
	CreatedAt        time.Time `json:"created_at" gorm:"index"`
}

func (n *Notification) BeforeCreate(_ *gorm.DB) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	return nil
}
