package repositories

import (
	"context"
	"time"

	"github.com/anonto42/sidequest/backend/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// DeviceRepository stores push client registrations. Nothing here delivers pushes.
type DeviceRepository interface {
	RegisterToken(ctx context.Context, device *models.DeviceToken) error
	GetTokensByUserID(ctx context.Context, userID string) ([]models.DeviceToken, error)
}

// MongoDeviceRepository implements DeviceRepository for MongoDB
type MongoDeviceRepository struct {
	collection *mongo.Collection
}

// NewMongoDeviceRepository creates a new MongoDeviceRepository
func NewMongoDeviceRepository(db *mongo.Database) *MongoDeviceRepository {
	return &MongoDeviceRepository{collection: db.Collection("device_tokens")}
}

// RegisterToken upserts by token so a device that changes hands moves to the
// new user instead of being registered twice.
func (r *MongoDeviceRepository) RegisterToken(ctx context.Context, device *models.DeviceToken) error {
	device.UpdatedAt = time.Now()
	_, err := r.collection.UpdateOne(ctx,
		bson.M{"token": device.Token},
		bson.M{"$set": device},
		options.Update().SetUpsert(true),
	)
	return err
}

// GetTokensByUserID lists the registrations of a user, most recent first
func (r *MongoDeviceRepository) GetTokensByUserID(ctx context.Context, userID string) ([]models.DeviceToken, error) {
	var devices []models.DeviceToken
	findOptions := options.Find().SetSort(bson.D{{Key: "updated_at", Value: -1}})
	cursor, err := r.collection.Find(ctx, bson.M{"user_id": userID}, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	if err = cursor.All(ctx, &devices); err != nil {
		return nil, err
	}
	return devices, nil
}
