package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Follow is a directed edge "FollowerID follows FollowingID".
type Follow struct {
	ID          string    `json:"id" gorm:"type:uuid;primaryKey"`
	FollowerID  string    `json:"follower_id" gorm:"type:uuid;index;uniqueIndex:idx_follower_following"`
	FollowingID string    `json:"following_id" gorm:"type:uuid;index;uniqueIndex:idx_follower_following"`
	CreatedAt   time.Time `json:"created_at"`
}

func (f *Follow) BeforeCreate(_ *gorm.DB) error {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	return nil
}

// FollowStats holds the follower/following counts of one user.
type FollowStats struct {
	Followers int64 `json:"followers"`
	Following int64 `json:"following"`
}
