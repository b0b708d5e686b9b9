package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/PratikDhanave/event-inbox-service/internal/config"
)

// Open connects the backend selected by cfg.Driver and, when requested, provisions its schema.
func Open(ctx context.Context, cfg config.StoreConfig, logger *slog.Logger) (Backend, error) {
	var (
		b   Backend
		err error
	)

	switch cfg.Driver {
	case config.DriverMemory:
		logger.Warn("using in-memory store; events are lost on restart")
		b = NewMemoryStore()
	case config.DriverPostgres:
		b, err = NewPostgresStore(cfg.Postgres.URL)
	case config.DriverDynamoDB:
		b, err = NewDynamoDBStore(ctx, DynamoDBConfig{
			Table:    cfg.DynamoDB.Table,
			Index:    cfg.DynamoDB.Index,
			Region:   cfg.DynamoDB.Region,
			Endpoint: cfg.DynamoDB.Endpoint,
		})
	case config.DriverRedis:
		b, err = NewRedisStore(ctx, cfg.Redis.URL, cfg.Redis.KeyPrefix)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Driver, err)
	}

	logger.Info("store connected", slog.String("driver", cfg.Driver))

	if cfg.EnsureSchema {
		if err := EnsureSchema(ctx, b); err != nil {
			_ = b.Close()
			return nil, err
		}
		logger.Info("store schema ensured", slog.String("driver", cfg.Driver))
	}
	return b, nil
}

// EnsureSchema provisions b when the driver supports it and is a no-op otherwise.
func EnsureSchema(ctx context.Context, b Backend) error {
	se, ok := b.(SchemaEnsurer)
	if !ok {
		return nil
	}
	if err := se.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
