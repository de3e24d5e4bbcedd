package repositories

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/anonto42/sidequest/backend/internal/models"
	"github.com/anonto42/sidequest/backend/pkg/cache"
)

// CachedProfileRepository serves profile reads from the request cache and
// falls back to the wrapped repository. Cache failures never fail a read.
type CachedProfileRepository struct {
	next   ProfileRepository
	cache  cache.Cache
	ttl    time.Duration
	logger *slog.Logger
}

func NewCachedProfileRepository(next ProfileRepository, c cache.Cache, ttl time.Duration, logger *slog.Logger) *CachedProfileRepository {
	return &CachedProfileRepository{next: next, cache: c, ttl: ttl, logger: logger}
}

func profileKey(id string) string {
	return "profile:" + id
}

func (r *CachedProfileRepository) GetProfileByID(ctx context.Context, id string) (*models.Profile, error) {
	key := profileKey(id)

	var profile models.Profile
	if ok := r.lookup(ctx, key, &profile); ok {
		return &profile, nil
	}

	fresh, err := r.next.GetProfileByID(ctx, id)
	if err != nil {
		return nil, err
	}
	r.store(ctx, key, fresh)
	return fresh, nil
}

func (r *CachedProfileRepository) SearchProfiles(ctx context.Context, query string) ([]models.ProfileCompact, error) {
	key := "profile-search:" + strings.ToLower(strings.TrimSpace(query))

	var profiles []models.ProfileCompact
	if ok := r.lookup(ctx, key, &profiles); ok {
		return profiles, nil
	}

	fresh, err := r.next.SearchProfiles(ctx, query)
	if err != nil {
		return nil, err
	}
	r.store(ctx, key, fresh)
	return fresh, nil
}

// GetProfilesByIDs is not cached; friend sets change with every toggle.
func (r *CachedProfileRepository) GetProfilesByIDs(ctx context.Context, ids []string) ([]models.ProfileCompact, error) {
	return r.next.GetProfilesByIDs(ctx, ids)
}

// UpdateBio writes through and evicts the cached profile.
func (r *CachedProfileRepository) UpdateBio(ctx context.Context, id string, bio *string) (*models.Profile, error) {
	profile, err := r.next.UpdateBio(ctx, id, bio)
	if err != nil {
		return nil, err
	}
	evict(ctx, r.cache, r.logger, profileKey(id))
	return profile, nil
}

func (r *CachedProfileRepository) lookup(ctx context.Context, key string, dest any) bool {
	ok, err := r.cache.Get(ctx, key, dest)
	if err != nil {
		r.logger.Warn("Cache read failed", "key", key, "error", err)
		return false
	}
	return ok
}

func (r *CachedProfileRepository) store(ctx context.Context, key string, value any) {
	if err := r.cache.Set(ctx, key, value, r.ttl); err != nil {
		r.logger.Warn("Cache write failed", "key", key, "error", err)
	}
}

func evict(ctx context.Context, c cache.Cache, logger *slog.Logger, key string) {
	if err := c.Delete(ctx, key); err != nil {
		logger.Warn("Cache eviction failed", "key", key, "error", err)
	}
}

// CachedPointsRepository evicts the cached profile whenever points change,
// so GET /users/:id never serves a stale total.
type CachedPointsRepository struct {
	PointsRepository
	cache  cache.Cache
	logger *slog.Logger
}

func NewCachedPointsRepository(next PointsRepository, c cache.Cache, logger *slog.Logger) *CachedPointsRepository {
	return &CachedPointsRepository{PointsRepository: next, cache: c, logger: logger}
}

func (r *CachedPointsRepository) AddPoints(ctx context.Context, userID string, points int64, reason string) (int64, error) {
	total, err := r.PointsRepository.AddPoints(ctx, userID, points, reason)
	if err != nil {
		return 0, err
	}
	evict(ctx, r.cache, r.logger, profileKey(userID))
	return total, nil
}
