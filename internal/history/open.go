package history

import (
	"context"
	"fmt"
	"log/slog"
)

// Config selects and configures an archive backend.
type Config struct {
	Backend  string `validate:"omitempty,oneof=memory badger redis"`
	Path     string `validate:"required_if=Backend badger"`
	RedisURL string `validate:"required_if=Backend redis"`
	Prefix   string
	Capacity int `validate:"gte=0"`
}

// Open creates the archive named by cfg.Backend. An empty backend means
// memory.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (Store, error) {
	switch cfg.Backend {
	case "", "memory":
		return NewMemoryStore(cfg.Capacity), nil
	case "badger":
		return OpenBadger(BadgerConfig{Path: cfg.Path, SyncWrites: true, Logger: logger})
	case "redis":
		return OpenRedis(ctx, cfg.RedisURL, cfg.Prefix)
	default:
		return nil, fmt.Errorf("unknown archive backend %q", cfg.Backend)
	}
}
