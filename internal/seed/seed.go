package seed

import (
	"context"
	"fmt"
	"log/slog"

	"inkwell/internal/cache"
	"inkwell/internal/middleware"
	"inkwell/internal/models"
	"inkwell/internal/observability"

	"gorm.io/gorm"
)

// Seed fills db with demo content according to opts.
func Seed(ctx context.Context, db *gorm.DB, opts Options) (Summary, error) {
	var summary Summary
	if observability.ExtractCorrelationID(ctx) == "" {
		ctx = observability.WithCorrelationID(ctx, observability.GenerateCorrelationID())
	}
	if opts.Authors <= 0 {
		opts.Authors = 1
	}

	if opts.Clean {
		if err := ClearAll(ctx, db); err != nil {
			return summary, err
		}
	}

	f := NewFactory(db, opts, 0)
	for i := 0; i < opts.Posts; i++ {
		author := uint(f.fake.Number(1, opts.Authors))
		post, err := f.CreatePost(ctx, author)
		if err != nil {
			return summary, err
		}
		summary.Posts++

		ratings, comments, err := f.Engage(ctx, post)
		summary.Ratings += ratings
		summary.Comments += comments
		if err != nil {
			return summary, err
		}
	}

	middleware.Logger.InfoContext(ctx, "seed complete",
		slog.Int("posts", summary.Posts),
		slog.Int("ratings", summary.Ratings),
		slog.Int("comments", summary.Comments),
	)
	return summary, nil
}

// ClearAll removes every post together with its ratings and comments.
func ClearAll(ctx context.Context, db *gorm.DB) error {
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, model := range []any{&models.Comment{}, &models.Rating{}, &models.Post{}} {
			if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(model).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("clear posts: %w", err)
	}
	cache.InvalidatePostsList(ctx)
	return nil
}
