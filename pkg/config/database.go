package config

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// DB holds the database connections. Mongo is nil when MONGO_URI is unset.
type DB struct {
	Postgres *gorm.DB
	Mongo    *mongo.Client
	mongoDB  string
}

// InitDB connects to PostgreSQL and, when configured, MongoDB.
func InitDB(ctx context.Context, cfg *Config) (*DB, error) {
	if cfg.PostgresUrl == "" {
		return nil, fmt.Errorf("POSTGRES_URL environment variable not set")
	}

	postgresDB, err := initPostgres(cfg.PostgresUrl)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	db := &DB{Postgres: postgresDB, mongoDB: cfg.MongoDatabase}

	if cfg.MongoURI == "" {
		slog.Warn("MONGO_URI not set, device registration disabled")
		return db, nil
	}

	db.Mongo, err = initMongo(ctx, cfg.MongoURI)
	if err != nil {
		db.CloseDB()
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	return db, nil
}

// MongoDatabase returns the configured database, or nil without MongoDB.
func (db *DB) MongoDatabase() *mongo.Database {
	if db.Mongo == nil {
		return nil
	}
	return db.Mongo.Database(db.mongoDB)
}

// initPostgres opens PostgreSQL with driver errors translated, so unique
// violations surface as gorm.ErrDuplicatedKey.
func initPostgres(connStr string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(connStr), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if err = sqlDB.Ping(); err != nil {
		return nil, err
	}

	slog.Info("Successfully connected to PostgreSQL")
	return db, nil
}

func initMongo(ctx context.Context, uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}

	if err = client.Ping(ctx, nil); err != nil {
		return nil, err
	}

	slog.Info("Successfully connected to MongoDB")
	return client, nil
}

// CloseDB closes the database connections
func (db *DB) CloseDB() {
	if db.Postgres != nil {
		sqlDB, err := db.Postgres.DB()
		if err != nil {
			slog.Error("Getting SQL DB from GORM failed", "error", err)
		} else if err := sqlDB.Close(); err != nil {
			slog.Error("Closing PostgreSQL connection failed", "error", err)
		} else {
			slog.Info("PostgreSQL connection closed")
		}
	}

	if db.Mongo != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := db.Mongo.Disconnect(ctx); err != nil {
			slog.Error("Closing MongoDB connection failed", "error", err)
		} else {
			slog.Info("MongoDB connection closed")
		}
	}
}
