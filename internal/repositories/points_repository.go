package repositories

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/anonto42/sidequest/backend/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PointsRepository defines the interface for points and leaderboard queries
type PointsRepository interface {
	AddPoints(ctx context.Context, userID string, points int64, reason string) (int64, error)
	GetGlobalLeaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error)
	GetLeaderboardFor(ctx context.Context, userIDs []string, currentUserID string, limit int) ([]models.LeaderboardEntry, error)
	GetUserRank(ctx context.Context, userID string) (*models.UserRank, error)
}

type postgresPointsRepository struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewPostgresPointsRepository(db *gorm.DB, logger *slog.Logger) PointsRepository {
	return &postgresPointsRepository{db: db, logger: logger}
}

// AddPoints adds points to the profile, creating the row when it is missing,
// and returns the new total. The increment happens inside one upsert, so
// concurrent calls never lose each other's points. A non-empty reason is
// recorded in points_history; a failed history insert is logged and does not
// fail the call.
func (r *postgresPointsRepository) AddPoints(ctx context.Context, userID string, points int64, reason string) (int64, error) {
	db := r.db.WithContext(ctx)

	row := models.Profile{ID: userID, Points: &points, UpdatedAt: time.Now()}
	if err := db.Clauses(
		clause.OnConflict{
			Columns: []clause.Column{{Name: "id"}},
			DoUpdates: clause.Assignments(map[string]any{
				"points":     gorm.Expr("COALESCE(profiles.points, 0) + excluded.points"),
				"updated_at": gorm.Expr("excluded.updated_at"),
			}),
		},
		clause.Returning{Columns: []clause.Column{{Name: "points"}}},
	).Create(&row).Error; err != nil {
		return 0, err
	}

	var total int64
	if row.Points != nil {
		total = *row.Points
	}

	if reason != "" {
		history := &models.PointsHistory{UserID: userID, Points: points, Reason: reason}
		if err := db.Create(history).Error; err != nil {
			r.logger.Warn("Adding points history failed", "user_id", userID, "error", err)
		}
	}

	return total, nil
}

func (r *postgresPointsRepository) GetGlobalLeaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error) {
	var profiles []models.Profile
	if err := r.db.WithContext(ctx).
		Where("points IS NOT NULL").
		Order("points DESC").
		Limit(limit).
		Find(&profiles).Error; err != nil {
		return nil, err
	}
	return rank(profiles, ""), nil
}

// GetLeaderboardFor ranks only userIDs. currentUserID marks the caller's row.
func (r *postgresPointsRepository) GetLeaderboardFor(ctx context.Context, userIDs []string, currentUserID string, limit int) ([]models.LeaderboardEntry, error) {
	if len(userIDs) == 0 {
		return []models.LeaderboardEntry{}, nil
	}

	var profiles []models.Profile
	if err := r.db.WithContext(ctx).
		Where("id IN ? AND points IS NOT NULL", userIDs).
		Order("points DESC").
		Limit(limit).
		Find(&profiles).Error; err != nil {
		return nil, err
	}
	return rank(profiles, currentUserID), nil
}

// GetUserRank is 1 + the number of profiles with strictly more points.
func (r *postgresPointsRepository) GetUserRank(ctx context.Context, userID string) (*models.UserRank, error) {
	db := r.db.WithContext(ctx)

	var profile models.Profile
	if err := db.Select("id", "points").First(&profile, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProfileNotFound
		}
		return nil, err
	}

	var points int64
	if profile.Points != nil {
		points = *profile.Points
	}

	var higher int64
	if err := db.Model(&models.Profile{}).Where("points > ?", points).Count(&higher).Error; err != nil {
		return nil, err
	}

	return &models.UserRank{Rank: higher + 1, Points: points}, nil
}

func rank(profiles []models.Profile, currentUserID string) []models.LeaderboardEntry {
	entries := make([]models.LeaderboardEntry, len(profiles))
	for i := range profiles {
		p := &profiles[i]
		var points int64
		if p.Points != nil {
			points = *p.Points
		}
		entries[i] = models.LeaderboardEntry{
			ID:        p.ID,
			Nickname:  p.DisplayName(),
			Points:    points,
			Rank:      i + 1,
			AvatarURL: p.AvatarURL,
			IsUser:    currentUserID != "" && p.ID == currentUserID,
		}
	}
	return entries
}
