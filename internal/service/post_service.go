// Package service contains the business rules for posts, ratings and comments.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"unicode/utf8"

	"inkwell/internal/middleware"
	"inkwell/internal/models"
	"inkwell/internal/notifications"
	"inkwell/internal/observability"
	"inkwell/internal/repository"

	"gorm.io/gorm"
)

const (
	maxTitleLen   = 300
	maxContentLen = 50000
	maxCommentLen = 10000
)

// RatingBounds is the inclusive range a rating value must fall in.
type RatingBounds struct {
	Min float64
	Max float64
}

// DefaultRatingBounds accepts ratings from 1 to 5.
var DefaultRatingBounds = RatingBounds{Min: 1, Max: 5}

type PostService struct {
	postRepo  repository.PostRepository
	publisher notifications.Publisher
	bounds    RatingBounds
}

type CreatePostInput struct {
	AuthorID uint
	Title    string
	Content  string
}

// UpdatePostInput carries a partial update; nil fields are left unchanged.
type UpdatePostInput struct {
	UserID  uint
	PostID  uint
	Title   *string
	Content *string
}

type DeletePostInput struct {
	UserID uint
	PostID uint
}

// RatePostInput carries a rating; a nil Rating means the client sent none.
type RatePostInput struct {
	UserID uint
	PostID uint
	Rating *float64
}

type CommentPostInput struct {
	UserID uint
	PostID uint
	Text   string
}

func NewPostService(
	postRepo repository.PostRepository,
	publisher notifications.Publisher,
	bounds RatingBounds,
) *PostService {
	if publisher == nil {
		publisher = notifications.NoopPublisher{}
	}
	return &PostService{
		postRepo:  postRepo,
		publisher: publisher,
		bounds:    bounds,
	}
}

// mapRepoError converts repository failures into AppErrors.
func mapRepoError(err error) error {
	if err == nil {
		return nil
	}
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.NewPostNotFoundError()
	}
	return models.NewInternalError(err)
}

func validateTitle(title string) error {
	if strings.TrimSpace(title) == "" {
		return models.NewValidationError("Title is required")
	}
	if utf8.RuneCountInString(title) > maxTitleLen {
		return models.NewValidationError(fmt.Sprintf("Title too long (max %d characters)", maxTitleLen))
	}
	return nil
}

func validateContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return models.NewValidationError("Content is required")
	}
	if utf8.RuneCountInString(content) > maxContentLen {
		return models.NewValidationError(fmt.Sprintf("Content too long (max %d characters)", maxContentLen))
	}
	return nil
}

func (s *PostService) publish(ctx context.Context, event notifications.PostEvent) {
	observability.PostMutations.WithLabelValues(event.Type).Inc()
	if err := s.publisher.Publish(ctx, event); err != nil {
		observability.EventPublishFailures.WithLabelValues(s.publisher.Name()).Inc()
		middleware.Logger.WarnContext(ctx, "failed to publish post event",
			slog.String("type", event.Type),
			slog.Uint64("post_id", uint64(event.PostID)),
			slog.String("broker", s.publisher.Name()),
			slog.String("error", err.Error()),
		)
	}
}

func (s *PostService) CreatePost(ctx context.Context, in CreatePostInput) (*models.Post, error) {
	if err := validateTitle(in.Title); err != nil {
		return nil, err
	}
	if err := validateContent(in.Content); err != nil {
		return nil, err
	}

	post := &models.Post{
		Title:    in.Title,
		Content:  in.Content,
		AuthorID: in.AuthorID,
	}
	if err := s.postRepo.Create(ctx, post); err != nil {
		return nil, mapRepoError(err)
	}
	post.EnsureCollections()

	s.publish(ctx, notifications.NewPostEvent(notifications.EventPostCreated, post.ID, in.AuthorID))
	return post, nil
}

func (s *PostService) ListPosts(ctx context.Context, criteria repository.ListCriteria) (*models.PostPage, error) {
	page, err := s.postRepo.List(ctx, criteria)
	if err != nil {
		return nil, mapRepoError(err)
	}
	return page, nil
}

func (s *PostService) GetPost(ctx context.Context, id uint) (*models.Post, error) {
	post, err := s.postRepo.GetByID(ctx, id)
	if err != nil {
		return nil, mapRepoError(err)
	}
	return post, nil
}

func (s *PostService) UpdatePost(ctx context.Context, in UpdatePostInput) (*models.Post, error) {
	post, err := s.postRepo.GetByID(ctx, in.PostID)
	if err != nil {
		return nil, mapRepoError(err)
	}

	if post.AuthorID != in.UserID {
		return nil, models.NewNotAuthorError()
	}

	if in.Title != nil {
		if err := validateTitle(*in.Title); err != nil {
			return nil, err
		}
		post.Title = *in.Title
	}
	if in.Content != nil {
		if err := validateContent(*in.Content); err != nil {
			return nil, err
		}
		post.Content = *in.Content
	}

	if err := s.postRepo.Update(ctx, post); err != nil {
		return nil, mapRepoError(err)
	}

	s.publish(ctx, notifications.NewPostEvent(notifications.EventPostUpdated, post.ID, in.UserID))
	return post, nil
}

func (s *PostService) DeletePost(ctx context.Context, in DeletePostInput) error {
	post, err := s.postRepo.GetByID(ctx, in.PostID)
	if err != nil {
		return mapRepoError(err)
	}

	if post.AuthorID != in.UserID {
		return models.NewNotAuthorError()
	}

	if err := s.postRepo.Delete(ctx, in.PostID); err != nil {
		return mapRepoError(err)
	}

	s.publish(ctx, notifications.NewPostEvent(notifications.EventPostDeleted, in.PostID, in.UserID))
	return nil
}

func (s *PostService) RatePost(ctx context.Context, in RatePostInput) (*models.Post, error) {
	if in.Rating == nil {
		return nil, models.NewValidationError("Rating is required")
	}
	value := *in.Rating
	if math.IsNaN(value) || math.IsInf(value, 0) || value < s.bounds.Min || value > s.bounds.Max {
		return nil, models.NewValidationError(
			fmt.Sprintf("Rating must be between %g and %g", s.bounds.Min, s.bounds.Max))
	}

	post, err := s.postRepo.Rate(ctx, in.PostID, in.UserID, value)
	if err != nil {
		return nil, mapRepoError(err)
	}

	event := notifications.NewPostEvent(notifications.EventPostRated, post.ID, in.UserID)
	event.AverageRating = post.AverageRating
	s.publish(ctx, event)
	return post, nil
}

func (s *PostService) CommentPost(ctx context.Context, in CommentPostInput) (*models.Post, error) {
	if strings.TrimSpace(in.Text) == "" {
		return nil, models.NewValidationError("Comment text is required")
	}
	if utf8.RuneCountInString(in.Text) > maxCommentLen {
		return nil, models.NewValidationError(fmt.Sprintf("Comment too long (max %d characters)", maxCommentLen))
	}

	post, err := s.postRepo.AddComment(ctx, in.PostID, in.UserID, in.Text)
	if err != nil {
		return nil, mapRepoError(err)
	}

	s.publish(ctx, notifications.NewPostEvent(notifications.EventPostCommented, post.ID, in.UserID))
	return post, nil
}
