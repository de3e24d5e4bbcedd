package repositories

import (
	"context"
	"errors"
	"log/slog"

	"github.com/anonto42/sidequest/backend/internal/models"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// SQLSTATE unique_violation
const pgUniqueViolation = "23505"

// FollowRepository wraps the follows table. Every method issues exactly one
// statement; nothing is retried and no transaction spans two calls.
type FollowRepository interface {
	FollowIdempotent(ctx context.Context, followerID, followingID string) (bool, error)
	Unfollow(ctx context.Context, followerID, followingID string) error
	IsFollowing(ctx context.Context, followerID, followingID string) (bool, error)
	IsMutual(ctx context.Context, followerID, followingID string) bool
	GetFollowingIDs(ctx context.Context, userID string) ([]string, error)
	GetFollowerIDs(ctx context.Context, userID string) ([]string, error)
	GetFollowersAmong(ctx context.Context, userID string, candidateIDs []string) ([]string, error)
	GetFollowersCount(ctx context.Context, userID string) (int64, error)
	GetFollowingCount(ctx context.Context, userID string) (int64, error)
}

// PostgresFollowRepository implements FollowRepository for PostgreSQL
type PostgresFollowRepository struct {
	db     *gorm.DB
	logger *slog.Logger
}

// NewPostgresFollowRepository creates a new PostgresFollowRepository
func NewPostgresFollowRepository(db *gorm.DB, logger *slog.Logger) *PostgresFollowRepository {
	return &PostgresFollowRepository{db: db, logger: logger}
}

// FollowIdempotent creates the edge followerID -> followingID unless it
// already exists. created is true only when this call inserted the row; an
// existing edge, or one inserted concurrently by another request, yields
// created=false and no error.
func (r *PostgresFollowRepository) FollowIdempotent(ctx context.Context, followerID, followingID string) (bool, error) {
	exists, err := r.IsFollowing(ctx, followerID, followingID)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	return r.createFollow(ctx, followerID, followingID)
}

func (r *PostgresFollowRepository) createFollow(ctx context.Context, followerID, followingID string) (bool, error) {
	follow := &models.Follow{
		FollowerID:  followerID,
		FollowingID: followingID,
	}
	if err := r.db.WithContext(ctx).Create(follow).Error; err != nil {
		if isUniqueViolation(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Unfollow deletes the edge. Deleting a missing edge is not an error.
func (r *PostgresFollowRepository) Unfollow(ctx context.Context, followerID, followingID string) error {
	return r.db.WithContext(ctx).
		Where("follower_id = ? AND following_id = ?", followerID, followingID).
		Delete(&models.Follow{}).Error
}

func (r *PostgresFollowRepository) IsFollowing(ctx context.Context, followerID, followingID string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Follow{}).Where("follower_id = ? AND following_id = ?", followerID, followingID).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// IsMutual reports whether followingID follows followerID back. A failed
// query counts as "not mutual".
func (r *PostgresFollowRepository) IsMutual(ctx context.Context, followerID, followingID string) bool {
	mutual, err := r.IsFollowing(ctx, followingID, followerID)
	if err != nil {
		r.logger.Warn("Mutual follow check failed", "follower_id", followerID, "following_id", followingID, "error", err)
		return false
	}
	return mutual
}

func (r *PostgresFollowRepository) GetFollowingIDs(ctx context.Context, userID string) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).Model(&models.Follow{}).Where("follower_id = ?", userID).Pluck("following_id", &ids).Error
	return ids, err
}

func (r *PostgresFollowRepository) GetFollowerIDs(ctx context.Context, userID string) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).Model(&models.Follow{}).Where("following_id = ?", userID).Pluck("follower_id", &ids).Error
	return ids, err
}

// GetFollowersAmong returns the subset of candidateIDs that follow userID.
func (r *PostgresFollowRepository) GetFollowersAmong(ctx context.Context, userID string, candidateIDs []string) ([]string, error) {
	if len(candidateIDs) == 0 {
		return nil, nil
	}

	var ids []string
	err := r.db.WithContext(ctx).Model(&models.Follow{}).
		Where("follower_id IN ? AND following_id = ?", candidateIDs, userID).
		Pluck("follower_id", &ids).Error
	return ids, err
}

func (r *PostgresFollowRepository) GetFollowersCount(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Follow{}).Where("following_id = ?", userID).Count(&count).Error
	return count, err
}

func (r *PostgresFollowRepository) GetFollowingCount(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Follow{}).Where("follower_id = ?", userID).Count(&count).Error
	return count, err
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}
