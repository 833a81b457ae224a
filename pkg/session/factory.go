package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-datainsight/internal/config"
)

// NewStore builds the store selected by cfg.Store: memory, badger or redis.
func NewStore(ctx context.Context, cfg config.SessionConfig, ttl time.Duration) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Store)) {
	case "", "memory":
		return NewMemoryStore(ttl), nil
	case "badger":
		return OpenBadgerStore(cfg.BadgerPath, ttl)
	case "redis":
		return NewRedisStore(ctx, RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, ttl)
	default:
		return nil, fmt.Errorf("session: unknown store %q", cfg.Store)
	}
}
