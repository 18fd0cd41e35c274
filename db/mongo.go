package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
	"go.uber.org/zap"
)

// NewMongo connects to MongoDB and pings the primary so a bad URI fails at
// startup instead of on the first request
func NewMongo(ctx context.Context, cfg Config) (*mongo.Database, error) {
	if cfg.MongoURI == "" {
		return nil, errors.New("no mongo uri provided")
	}

	if cfg.Name == "" {
		return nil, errors.New("no database name provided")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	opts := options.Client().ApplyURI(cfg.MongoURI).SetTimeout(timeout)

	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo, %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongo, %w", err)
	}

	zap.L().Info("Connected to mongo", zap.String("database", cfg.Name))

	return client.Database(cfg.Name), nil
}
