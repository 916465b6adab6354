package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jwebster45206/tabletop-session/internal/config"
	"github.com/jwebster45206/tabletop-session/pkg/storage"
)

// Open builds the backend named by cfg.StorageDriver. The Redis client is
// returned as well when the driver is redis so callers can share it with
// the event broadcaster; it is nil otherwise.
func Open(cfg *config.Config, logger *slog.Logger) (storage.Storage, *redis.Client, error) {
	switch cfg.StorageDriver {
	case config.StorageRedis:
		rs, err := NewRedisStorage(cfg.RedisURL, logger)
		if err != nil {
			return nil, nil, err
		}
		return rs, rs.Client(), nil
	case config.StorageSQLite:
		ss, err := OpenSQLite(cfg.SQLitePath, logger)
		if err != nil {
			return nil, nil, err
		}
		return ss, nil, nil
	case config.StorageMemory:
		logger.Warn("Using in-memory storage; campaigns are lost on exit")
		return storage.NewMockStorage(), nil, nil
	default:
		return nil, nil, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}
}

const readyPollInterval = 2 * time.Second

// WaitReady blocks until the backend answers. Redis is polled until ctx
// ends; the local backends get a single ping.
func WaitReady(ctx context.Context, s storage.Storage) error {
	return waitReady(ctx, s, readyPollInterval)
}

func waitReady(ctx context.Context, s storage.Storage, every time.Duration) error {
	if rs, ok := s.(*RedisStorage); ok {
		return rs.WaitForConnection(ctx, every)
	}
	return s.Ping(ctx)
}
