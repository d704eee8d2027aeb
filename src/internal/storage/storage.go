package storage

import (
	"context"
	"fmt"

	"storefront-session-svc/src/internal/config"
	"storefront-session-svc/src/internal/models"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
)

const (
	DriverRedis  = "redis"
	DriverMongo  = "mongo"
	DriverFile   = "file"
	DriverMemory = "memory"
)

// Storage is a durable string key-value facility scoped to one profile.
// Get returns models.ErrStorageKeyNotFound when the key is absent.
type Storage interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, keys ...string) error
	Ping(ctx context.Context) error
}

// Backends carries the already-connected clients a driver may need.
type Backends struct {
	Redis    *redis.Client
	Database *mongo.Database
}

func New(cfg *config.Configuration, backends Backends) (Storage, error) {
	profile := cfg.Session.Profile

	switch cfg.Storage.Driver {
	case DriverRedis:
		if backends.Redis == nil {
			return nil, fmt.Errorf("%w: redis client is not configured", models.ErrStorageUnavailable)
		}
		return NewRedisStorage(backends.Redis, cfg.Storage.KeyPrefix, profile), nil
	case DriverMongo:
		if backends.Database == nil {
			return nil, fmt.Errorf("%w: mongo database is not configured", models.ErrStorageUnavailable)
		}
		return NewMongoStorage(backends.Database.Collection(cfg.Database.SessionCollection), profile), nil
	case DriverFile:
		return NewFileStorage(cfg.Storage.Directory, profile)
	case DriverMemory:
		return NewMemoryStorage(), nil
	default:
		return nil, fmt.Errorf("%w: %q", models.ErrUnknownStorage, cfg.Storage.Driver)
	}
}
