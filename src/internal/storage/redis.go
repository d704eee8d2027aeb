package storage

import (
	"context"
	"errors"
	"fmt"

	"storefront-session-svc/src/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const redisKeyPattern = "%s:%s:%s" // prefix:profile:key

type redisStorage struct {
	client  *redis.Client
	prefix  string
	profile string
}

func NewRedisStorage(client *redis.Client, prefix, profile string) Storage {
	if prefix == "" {
		prefix = "session"
	}
	return &redisStorage{
		client:  client,
		prefix:  prefix,
		profile: profile,
	}
}

func (r *redisStorage) key(key string) string {
	return fmt.Sprintf(redisKeyPattern, r.prefix, r.profile, key)
}

func (r *redisStorage) Get(ctx context.Context, key string) (string, error) {
	data, err := r.client.Get(ctx, r.key(key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", models.ErrStorageKeyNotFound
		}
		logrus.WithError(err).WithField("key", r.key(key)).Error("Failed to get value from redis")
		return "", models.ErrStorageGet
	}

	return data, nil
}

// Set stores the value without expiration; session lifetime is owned by the store.
func (r *redisStorage) Set(ctx context.Context, key, value string) error {
	if err := r.client.Set(ctx, r.key(key), value, 0).Err(); err != nil {
		logrus.WithError(err).WithField("key", r.key(key)).Error("Failed to set value in redis")
		return models.ErrStorageSet
	}

	return nil
}

func (r *redisStorage) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	full := make([]string, len(keys))
	for i, key := range keys {
		full[i] = r.key(key)
	}

	if err := r.client.Del(ctx, full...).Err(); err != nil {
		logrus.WithError(err).WithField("keys", full).Error("Failed to delete values from redis")
		return models.ErrStorageDelete
	}

	return nil
}

func (r *redisStorage) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
