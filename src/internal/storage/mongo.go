package storage

import (
	"context"
	"errors"
	"time"

	"storefront-session-svc/src/internal/models"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type entry struct {
	Profile   string    `bson:"profile"`
	Key       string    `bson:"key"`
	Value     string    `bson:"value"`
	UpdatedAt time.Time `bson:"updated_at"`
}

type mongoStorage struct {
	collection *mongo.Collection
	profile    string
}

// NewMongoStorage keeps one document per (profile, key) pair in the collection.
func NewMongoStorage(collection *mongo.Collection, profile string) Storage {
	return &mongoStorage{
		collection: collection,
		profile:    profile,
	}
}

func (m *mongoStorage) Get(ctx context.Context, key string) (string, error) {
	var doc entry
	filter := bson.M{"profile": m.profile, "key": key}

	err := m.collection.FindOne(ctx, filter).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return "", models.ErrStorageKeyNotFound
		}
		logrus.WithError(err).WithFields(logrus.Fields{
			"profile": m.profile,
			"key":     key,
		}).Error("Failed to get value from mongo")
		return "", models.ErrStorageGet
	}

	return doc.Value, nil
}

func (m *mongoStorage) Set(ctx context.Context, key, value string) error {
	filter := bson.M{"profile": m.profile, "key": key}
	update := bson.M{
		"$set": bson.M{
			"value":      value,
			"updated_at": time.Now(),
		},
	}

	_, err := m.collection.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"profile": m.profile,
			"key":     key,
		}).Error("Failed to set value in mongo")
		return models.ErrStorageSet
	}

	return nil
}

func (m *mongoStorage) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	filter := bson.M{
		"profile": m.profile,
		"key":     bson.M{"$in": keys},
	}

	if _, err := m.collection.DeleteMany(ctx, filter); err != nil {
		logrus.WithError(err).WithField("profile", m.profile).Error("Failed to delete values from mongo")
		return models.ErrStorageDelete
	}

	return nil
}

func (m *mongoStorage) Ping(ctx context.Context) error {
	return m.collection.Database().Client().Ping(ctx, nil)
}
