package repositories

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/anonto42/sidequest/backend/internal/models"
	"gorm.io/gorm"
)

var ErrProfileNotFound = errors.New("profile not found")

const searchLimit = 20

// ProfileRepository defines the interface for profile storage
type ProfileRepository interface {
	GetProfileByID(ctx context.Context, id string) (*models.Profile, error)
	GetProfilesByIDs(ctx context.Context, ids []string) ([]models.ProfileCompact, error)
	SearchProfiles(ctx context.Context, query string) ([]models.ProfileCompact, error)
	UpdateBio(ctx context.Context, id string, bio *string) (*models.Profile, error)
}

// PostgresProfileRepository implements ProfileRepository for PostgreSQL
type PostgresProfileRepository struct {
	db *gorm.DB
}

// NewPostgresProfileRepository creates a new PostgresProfileRepository
func NewPostgresProfileRepository(db *gorm.DB) *PostgresProfileRepository {
	return &PostgresProfileRepository{db: db}
}

// GetProfileByID retrieves a profile by ID
func (r *PostgresProfileRepository) GetProfileByID(ctx context.Context, id string) (*models.Profile, error) {
	var profile models.Profile
	if err := r.db.WithContext(ctx).First(&profile, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProfileNotFound
		}
		return nil, err
	}
	return &profile, nil
}

// GetProfilesByIDs loads the compact profiles for ids in one query, ordered
// by nickname. Unknown ids are skipped.
func (r *PostgresProfileRepository) GetProfilesByIDs(ctx context.Context, ids []string) ([]models.ProfileCompact, error) {
	if len(ids) == 0 {
		return []models.ProfileCompact{}, nil
	}

	var profiles []models.Profile
	if err := r.db.WithContext(ctx).
		Select("id", "nickname", "bio", "avatar_url").
		Where("id IN ?", ids).
		Order("nickname ASC").
		Find(&profiles).Error; err != nil {
		return nil, err
	}
	return toCompact(profiles), nil
}

// UpdateBio replaces the bio of the profile. A nil bio clears it.
func (r *PostgresProfileRepository) UpdateBio(ctx context.Context, id string, bio *string) (*models.Profile, error) {
	var value any
	if bio != nil {
		value = *bio
	}

	result := r.db.WithContext(ctx).
		Model(&models.Profile{}).
		Where("id = ?", id).
		Updates(map[string]any{"bio": value, "updated_at": time.Now()})
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, ErrProfileNotFound
	}
	return r.GetProfileByID(ctx, id)
}

// SearchProfiles matches nicknames case-insensitively. A blank query matches nothing.
func (r *PostgresProfileRepository) SearchProfiles(ctx context.Context, query string) ([]models.ProfileCompact, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []models.ProfileCompact{}, nil
	}

	var profiles []models.Profile
	if err := r.db.WithContext(ctx).
		Select("id", "nickname", "bio", "avatar_url").
		Where("LOWER(nickname) LIKE LOWER(?)", "%"+query+"%").
		Limit(searchLimit).
		Find(&profiles).Error; err != nil {
		return nil, err
	}

	return toCompact(profiles), nil
}

func toCompact(profiles []models.Profile) []models.ProfileCompact {
	compact := make([]models.ProfileCompact, len(profiles))
	for i := range profiles {
		compact[i] = profiles[i].ToCompact()
	}
	return compact
}
