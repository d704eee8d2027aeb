package clients

import (
	"context"
	"fmt"
	"time"

	"storefront-session-svc/src/internal/config"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MongoDB struct {
	Client   *mongo.Client
	Database *mongo.Database
}

func NewMongoDB(ctx context.Context, cfg *config.Database) (*MongoDB, error) {
	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	connectCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.Url))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("mongodb ping failed: %w", err)
	}

	database := client.Database(cfg.DbName)
	if err := ensureSessionIndex(connectCtx, database.Collection(cfg.SessionCollection)); err != nil {
		logrus.WithError(err).Warn("Failed to create session index")
	}

	logrus.WithField("database", cfg.DbName).Info("Connected to MongoDB")

	return &MongoDB{
		Client:   client,
		Database: database,
	}, nil
}

// ensureSessionIndex makes (profile, key) unique so upserts cannot duplicate entries.
func ensureSessionIndex(ctx context.Context, collection *mongo.Collection) error {
	_, err := collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "profile", Value: 1}, {Key: "key", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}

func (m *MongoDB) Close(ctx context.Context) error {
	logrus.Info("Closing MongoDB connection")
	return m.Client.Disconnect(ctx)
}
