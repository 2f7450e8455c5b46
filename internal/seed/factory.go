// Package seed creates demo posts, ratings and comments for development and
// testing. It writes through the post repository, so seeded averages are
// computed exactly as they are for API traffic.
package seed

import (
	"context"
	"fmt"
	"time"

	"inkwell/internal/models"
	"inkwell/internal/repository"

	"github.com/brianvoe/gofakeit/v6"
	"gorm.io/gorm"
)

// Options configure a seeding run.
type Options struct {
	Posts       int
	Authors     int
	MaxRatings  int
	MaxComments int
	// MaxDays spreads created_at over the given number of past days.
	MaxDays int
	// RatingMin and RatingMax bound generated rating values.
	RatingMin float64
	RatingMax float64
	Clean     bool
}

// DefaultOptions returns the options used by cmd/seed when no flags are given.
func DefaultOptions() Options {
	return Options{
		Posts:       50,
		Authors:     10,
		MaxRatings:  8,
		MaxComments: 5,
		MaxDays:     90,
		RatingMin:   1,
		RatingMax:   5,
		Clean:       true,
	}
}

// Summary reports what a run created.
type Summary struct {
	Posts    int
	Ratings  int
	Comments int
}

// Factory builds posts and persists them with their engagement.
type Factory struct {
	repo repository.PostRepository
	opts Options
	fake *gofakeit.Faker
}

// NewFactory creates a Factory writing to db. seed makes the generated data
// reproducible; pass 0 for a time-based seed.
func NewFactory(db *gorm.DB, opts Options, seed int64) *Factory {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Factory{
		repo: repository.NewPostRepository(db),
		opts: opts,
		fake: gofakeit.New(seed),
	}
}

// BuildPost constructs an unsaved post by author with fake content and a
// created_at spread over the last MaxDays days.
func (f *Factory) BuildPost(author uint, overrides ...func(*models.Post)) *models.Post {
	post := &models.Post{
		Title:    f.fake.Sentence(f.fake.Number(3, 8)),
		Content:  f.fake.Paragraph(f.fake.Number(1, 3), 4, 12, "\n\n"),
		AuthorID: author,
	}

	maxDays := f.opts.MaxDays
	if maxDays <= 0 {
		maxDays = 90
	}
	back := time.Duration(f.fake.Number(0, maxDays-1))*24*time.Hour +
		time.Duration(f.fake.Number(0, 24*60-1))*time.Minute
	post.CreatedAt = time.Now().UTC().Add(-back)
	post.UpdatedAt = post.CreatedAt

	for _, override := range overrides {
		override(post)
	}
	return post
}

// CreatePost persists a built post.
func (f *Factory) CreatePost(ctx context.Context, author uint, overrides ...func(*models.Post)) (*models.Post, error) {
	post := f.BuildPost(author, overrides...)
	if err := f.repo.Create(ctx, post); err != nil {
		return nil, fmt.Errorf("create post: %w", err)
	}
	return post, nil
}

// RatingValue returns a whole-number rating within the configured bounds.
func (f *Factory) RatingValue() float64 {
	lo, hi := int(f.opts.RatingMin), int(f.opts.RatingMax)
	if hi <= lo {
		return float64(lo)
	}
	return float64(f.fake.Number(lo, hi))
}

// Engage adds up to MaxRatings ratings and MaxComments comments to post from
// distinct fake users.
func (f *Factory) Engage(ctx context.Context, post *models.Post) (ratings, comments int, err error) {
	users := make([]int, f.opts.MaxRatings+f.opts.MaxComments+1)
	for i := range users {
		users[i] = i
	}
	f.fake.ShuffleInts(users)
	numRatings := f.fake.Number(0, f.opts.MaxRatings)
	numComments := f.fake.Number(0, f.opts.MaxComments)

	for i := 0; i < numRatings; i++ {
		if _, err := f.repo.Rate(ctx, post.ID, uint(users[i]+1), f.RatingValue()); err != nil {
			return ratings, comments, fmt.Errorf("rate post %d: %w", post.ID, err)
		}
		ratings++
	}
	for i := 0; i < numComments; i++ {
		text := f.fake.Sentence(f.fake.Number(4, 13))
		if _, err := f.repo.AddComment(ctx, post.ID, uint(users[i]+1), text); err != nil {
			return ratings, comments, fmt.Errorf("comment on post %d: %w", post.ID, err)
		}
		comments++
	}
	return ratings, comments, nil
}
