package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PointsHistory records why a user was awarded points.
type PointsHistory struct {
	ID        string    `json:"id" gorm:"type:uuid;primaryKey"`
	UserID    string    `json:"user_id" gorm:"type:uuid;index"`
	Points    int64     `json:"points"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"created_at"`
}

func (PointsHistory) TableName() string {
	return "points_history"
}

func (h *PointsHistory) BeforeCreate(_ *gorm.DB) error {
	if h.ID == "" {
		h.ID = uuid.NewString()
	}
	return nil
}

// LeaderboardEntry is one ranked row. Rank is the 1-based row index.
type LeaderboardEntry struct {
	ID        string  `json:"id"`
	Nickname  string  `json:"nickname"`
	Points    int64   `json:"points"`
	Rank      int     `json:"rank"`
	AvatarURL *string `json:"avatar_url,omitempty"`
	IsUser    bool    `json:"isUser"`
}

// UserRank is the position of one user in the global leaderboard.
type UserRank struct {
	Rank   int64 `json:"rank"`
	Points int64 `json:"points"`
}

type AddPointsRequest struct {
	Points int64  `json:"points" validate:"required,min=1,max=100000"`
	Reason string `json:"reason" validate:"omitempty,max=200"`
}
