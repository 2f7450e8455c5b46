// Package bootstrap connects the process-wide dependencies shared by the
// server and the command line tools.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"inkwell/internal/cache"
	"inkwell/internal/config"
	"inkwell/internal/database"
	"inkwell/internal/middleware"
	"inkwell/internal/notifications"
	"inkwell/internal/seed"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Options control runtime initialization behavior.
type Options struct {
	// SeedDemo fills an empty database with demo posts.
	SeedDemo bool
}

// Runtime is the set of connected dependencies.
type Runtime struct {
	DB        *gorm.DB
	Redis     *redis.Client
	Publisher notifications.Publisher
}

// InitRuntime connects to DB, Redis and the event broker and optionally
// seeds demo data.
func InitRuntime(cfg *config.Config, opts Options) (*Runtime, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	// Init Redis (may result in nil client if unreachable)
	cache.InitRedis(cfg.RedisURL)
	r := cache.GetClient()
	cache.SetEnabled(cfg.CacheEnabled)

	rt := &Runtime{
		DB:        db,
		Redis:     r,
		Publisher: NewPublisher(cfg, r),
	}

	if opts.SeedDemo {
		if err := seedIfEmpty(db, cfg); err != nil {
			return nil, fmt.Errorf("failed to seed demo posts: %w", err)
		}
	}

	return rt, nil
}

// NewPublisher selects the domain event broker named by cfg.EventBroker.
// A broker that cannot be reached degrades to a no-op publisher.
func NewPublisher(cfg *config.Config, rdb *redis.Client) notifications.Publisher {
	switch cfg.EventBroker {
	case "redis":
		if rdb == nil {
			middleware.Logger.Warn("redis unavailable, post events disabled")
			return notifications.NoopPublisher{}
		}
		return notifications.NewNotifier(rdb)
	case "nats":
		p, err := notifications.ConnectNats(cfg.NATSURL)
		if err != nil {
			middleware.Logger.Warn("nats unavailable, post events disabled",
				slog.String("url", cfg.NATSURL),
				slog.String("error", err.Error()),
			)
			return notifications.NoopPublisher{}
		}
		return p
	default:
		return notifications.NoopPublisher{}
	}
}

func seedIfEmpty(db *gorm.DB, cfg *config.Config) error {
	var count int64
	if err := db.Table("posts").Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	opts := seed.DefaultOptions()
	opts.Clean = false
	opts.RatingMin = cfg.RatingMin
	opts.RatingMax = cfg.RatingMax
	_, err := seed.Seed(context.Background(), db, opts)
	return err
}
