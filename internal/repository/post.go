// Package repository provides data access layer implementations for the application.
package repository

import (
	"context"
	"errors"

	"inkwell/internal/cache"
	"inkwell/internal/models"
	"inkwell/internal/observability"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PostRepository defines the interface for post data operations.
// Lookups of a missing post return gorm.ErrRecordNotFound.
type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	GetByID(ctx context.Context, id uint) (*models.Post, error)
	List(ctx context.Context, criteria ListCriteria) (*models.PostPage, error)
	Update(ctx context.Context, post *models.Post) error
	Delete(ctx context.Context, id uint) error
	// Rate inserts or overwrites userID's rating and recomputes the average
	// in one transaction, returning the updated post.
	Rate(ctx context.Context, postID, userID uint, value float64) (*models.Post, error)
	AddComment(ctx context.Context, postID, userID uint, text string) (*models.Post, error)
}

// postRepository implements PostRepository
type postRepository struct {
	db  *gorm.DB
	log *observability.RepoLogger
}

// NewPostRepository creates a new post repository
func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db, log: observability.NewRepoLogger("posts")}
}

// pgForeignKeyViolation is the SQLSTATE for a child row whose parent is gone.
const pgForeignKeyViolation = "23503"

// mapWriteError turns a foreign key violation on a child table into
// gorm.ErrRecordNotFound: the post was deleted underneath the write.
func mapWriteError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation {
		return gorm.ErrRecordNotFound
	}
	return err
}

func withDetails(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Ratings", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Preload("Comments", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") })
}

func (r *postRepository) load(ctx context.Context, db *gorm.DB, id uint) (*models.Post, error) {
	var post models.Post
	if err := withDetails(db.WithContext(ctx)).First(&post, id).Error; err != nil {
		return nil, err
	}
	post.EnsureCollections()
	return &post, nil
}

func (r *postRepository) finish(ctx context.Context, operation string, err error) {
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		r.log.LogError(ctx, err, operation)
	}
}

func (r *postRepository) Create(ctx context.Context, post *models.Post) (err error) {
	ctx, span := observability.StartRepositorySpan(ctx, "Create", "posts")
	defer func() { observability.EndSpan(span, err) }()
	defer observability.TrackQuery("create", "posts")()
	defer func() { r.finish(ctx, "create", err) }()

	if err = r.db.WithContext(ctx).Omit(clause.Associations).Create(post).Error; err != nil {
		return err
	}
	post.EnsureCollections()
	cache.InvalidatePostsList(ctx)
	r.log.LogMutation(ctx, "create")
	return nil
}

func (r *postRepository) GetByID(ctx context.Context, id uint) (post *models.Post, err error) {
	ctx, span := observability.StartRepositorySpan(ctx, "GetByID", "posts")
	defer func() { observability.EndSpan(span, err) }()
	defer observability.TrackQuery("get", "posts")()
	defer func() { r.finish(ctx, "get", err) }()

	var cached models.Post
	err = cache.AsidePost(ctx, id, &cached, func() error {
		loaded, loadErr := r.load(ctx, readDB(r.db), id)
		if loadErr != nil {
			return loadErr
		}
		cached = *loaded
		return nil
	})
	if err != nil {
		return nil, err
	}
	cached.EnsureCollections()
	return &cached, nil
}

func (r *postRepository) filtered(ctx context.Context, c ListCriteria) *gorm.DB {
	q := readDB(r.db).WithContext(ctx).Model(&models.Post{})
	if c.AverageRating != nil {
		q = q.Where("average_rating = ?", *c.AverageRating)
	}
	if c.AuthorID != nil {
		q = q.Where("author_id = ?", *c.AuthorID)
	}
	if c.CreatedFrom != nil {
		q = q.Where("created_at >= ?", *c.CreatedFrom)
	}
	if c.CreatedTo != nil {
		q = q.Where("created_at <= ?", *c.CreatedTo)
	}
	return q
}

func (r *postRepository) List(ctx context.Context, c ListCriteria) (page *models.PostPage, err error) {
	ctx, span := observability.StartRepositorySpan(ctx, "List", "posts")
	defer func() { observability.EndSpan(span, err) }()
	defer observability.TrackQuery("list", "posts")()
	defer func() { r.finish(ctx, "list", err) }()

	var result models.PostPage
	err = cache.Aside(ctx, cache.PostsListKey(ctx, c.Fingerprint()), &result, cache.ListTTL, func() error {
		var total int64
		if countErr := r.filtered(ctx, c).Count(&total).Error; countErr != nil {
			return countErr
		}

		q := r.filtered(ctx, c)
		if column, ok := sortColumns[c.SortBy]; ok {
			q = q.Order(clause.OrderByColumn{Column: clause.Column{Name: column}, Desc: c.SortDesc})
		}
		// id breaks ties so pages stay stable.
		q = q.Order(clause.OrderByColumn{Column: clause.Column{Name: "id"}})

		var posts []*models.Post
		if findErr := withDetails(q).Limit(c.Limit).Offset(c.Offset()).Find(&posts).Error; findErr != nil {
			return findErr
		}
		for _, p := range posts {
			p.EnsureCollections()
		}
		result = *models.NewPostPage(posts, total, c.Page, c.Limit)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// Update persists the post's title and content.
func (r *postRepository) Update(ctx context.Context, post *models.Post) (err error) {
	ctx, span := observability.StartRepositorySpan(ctx, "Update", "posts")
	defer func() { observability.EndSpan(span, err) }()
	defer observability.TrackQuery("update", "posts")()
	defer func() { r.finish(ctx, "update", err) }()

	result := r.db.WithContext(ctx).Model(post).
		Select("Title", "Content", "UpdatedAt").
		Updates(post)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	cache.InvalidatePost(ctx, post.ID)
	cache.InvalidatePostsList(ctx)
	r.log.LogMutation(ctx, "update")
	return nil
}

// Delete permanently removes the post with its ratings and comments.
func (r *postRepository) Delete(ctx context.Context, id uint) (err error) {
	ctx, span := observability.StartRepositorySpan(ctx, "Delete", "posts")
	defer func() { observability.EndSpan(span, err) }()
	defer observability.TrackQuery("delete", "posts")()
	defer func() { r.finish(ctx, "delete", err) }()

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("post_id = ?", id).Delete(&models.Comment{}).Error; err != nil {
			return err
		}
		if err := tx.Where("post_id = ?", id).Delete(&models.Rating{}).Error; err != nil {
			return err
		}
		result := tx.Delete(&models.Post{}, id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	if err != nil {
		return err
	}
	cache.InvalidatePost(ctx, id)
	cache.InvalidatePostsList(ctx)
	r.log.LogMutation(ctx, "delete")
	return nil
}

func (r *postRepository) Rate(ctx context.Context, postID, userID uint, value float64) (post *models.Post, err error) {
	ctx, span := observability.StartRepositorySpan(ctx, "Rate", "post_ratings")
	defer func() { observability.EndSpan(span, err) }()
	defer observability.TrackQuery("rate", "post_ratings")()
	defer func() { r.finish(ctx, "rate", err) }()

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		lock := tx.Select("id")
		if tx.Dialector.Name() == "postgres" {
			// Serializes concurrent raters of the same post.
			lock = lock.Clauses(clause.Locking{Strength: "UPDATE"})
		}
		var locked models.Post
		if err := lock.First(&locked, postID).Error; err != nil {
			return err
		}

		rating := models.Rating{PostID: postID, UserID: userID, Value: value}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "post_id"}, {Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).Create(&rating).Error; err != nil {
			return mapWriteError(err)
		}

		return tx.Exec(
			"UPDATE posts SET average_rating = (SELECT AVG(value) FROM post_ratings WHERE post_id = ?), updated_at = ? WHERE id = ?",
			postID, tx.NowFunc(), postID,
		).Error
	})
	if err != nil {
		return nil, err
	}

	cache.InvalidatePost(ctx, postID)
	cache.InvalidatePostsList(ctx)
	r.log.LogMutation(ctx, "rate")
	return r.load(ctx, r.db, postID)
}

func (r *postRepository) AddComment(ctx context.Context, postID, userID uint, text string) (post *models.Post, err error) {
	ctx, span := observability.StartRepositorySpan(ctx, "AddComment", "post_comments")
	defer func() { observability.EndSpan(span, err) }()
	defer observability.TrackQuery("comment", "post_comments")()
	defer func() { r.finish(ctx, "comment", err) }()

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		touched := tx.Model(&models.Post{}).Where("id = ?", postID).Update("updated_at", tx.NowFunc())
		if touched.Error != nil {
			return touched.Error
		}
		if touched.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		comment := models.Comment{PostID: postID, UserID: userID, Text: text}
		return mapWriteError(tx.Create(&comment).Error)
	})
	if err != nil {
		return nil, err
	}

	cache.InvalidatePost(ctx, postID)
	cache.InvalidatePostsList(ctx)
	r.log.LogMutation(ctx, "comment")
	return r.load(ctx, r.db, postID)
}
