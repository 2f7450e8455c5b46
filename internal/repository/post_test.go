package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"inkwell/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func createPost(t *testing.T, repo PostRepository, author uint, title string) *models.Post {
	t.Helper()
	post := &models.Post{Title: title, Content: "content of " + title, AuthorID: author}
	require.NoError(t, repo.Create(context.Background(), post))
	return post
}

func TestPostRepository_CreateAndGet(t *testing.T) {
	repo := NewPostRepository(setupSQLiteDB(t))
	ctx := context.Background()

	post := createPost(t, repo, 1, "A")
	assert.NotZero(t, post.ID)
	assert.Empty(t, post.Ratings)
	assert.NotNil(t, post.Ratings)
	assert.Nil(t, post.AverageRating)

	got, err := repo.GetByID(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, "A", got.Title)
	assert.Equal(t, uint(1), got.AuthorID)
	assert.NotNil(t, got.Comments)

	_, err = repo.GetByID(ctx, post.ID+100)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestPostRepository_RateScenario(t *testing.T) {
	repo := NewPostRepository(setupSQLiteDB(t))
	ctx := context.Background()
	post := createPost(t, repo, 1, "A")

	steps := []struct {
		user     uint
		value    float64
		expected float64
		count    int
	}{
		{user: 2, value: 4, expected: 4, count: 1},
		{user: 2, value: 2, expected: 2, count: 1},
		{user: 3, value: 5, expected: 3.5, count: 2},
	}

	for _, step := range steps {
		rated, err := repo.Rate(ctx, post.ID, step.user, step.value)
		require.NoError(t, err)
		require.NotNil(t, rated.AverageRating)
		assert.InDelta(t, step.expected, *rated.AverageRating, 1e-9)
		assert.Len(t, rated.Ratings, step.count)
		assert.InDelta(t, *rated.MeanRating(), *rated.AverageRating, 1e-9)
	}

	got, err := repo.GetByID(ctx, post.ID)
	require.NoError(t, err)
	require.Len(t, got.Ratings, 2)
	// the overwritten rating keeps its original position
	assert.Equal(t, uint(2), got.Ratings[0].UserID)
	assert.Equal(t, 2.0, got.Ratings[0].Value)
	assert.Equal(t, uint(3), got.Ratings[1].UserID)
}

func TestPostRepository_RateMissingPost(t *testing.T) {
	repo := NewPostRepository(setupSQLiteDB(t))

	_, err := repo.Rate(context.Background(), 42, 1, 3)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestPostRepository_AddComment(t *testing.T) {
	repo := NewPostRepository(setupSQLiteDB(t))
	ctx := context.Background()
	post := createPost(t, repo, 1, "A")

	_, err := repo.AddComment(ctx, post.ID, 2, "first")
	require.NoError(t, err)
	commented, err := repo.AddComment(ctx, post.ID, 1, "second")
	require.NoError(t, err)

	require.Len(t, commented.Comments, 2)
	assert.Equal(t, "first", commented.Comments[0].Text)
	assert.Equal(t, uint(2), commented.Comments[0].UserID)
	assert.Equal(t, "second", commented.Comments[1].Text)

	_, err = repo.AddComment(ctx, post.ID+1, 1, "orphan")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestPostRepository_UpdateKeepsChildren(t *testing.T) {
	repo := NewPostRepository(setupSQLiteDB(t))
	ctx := context.Background()
	post := createPost(t, repo, 1, "A")
	_, err := repo.Rate(ctx, post.ID, 2, 4)
	require.NoError(t, err)

	loaded, err := repo.GetByID(ctx, post.ID)
	require.NoError(t, err)
	loaded.Title = "New"
	require.NoError(t, repo.Update(ctx, loaded))

	got, err := repo.GetByID(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, "New", got.Title)
	assert.Equal(t, "content of A", got.Content)
	assert.Len(t, got.Ratings, 1)
	require.NotNil(t, got.AverageRating)
	assert.Equal(t, 4.0, *got.AverageRating)

	missing := &models.Post{ID: post.ID + 1, Title: "x", Content: "y"}
	assert.ErrorIs(t, repo.Update(ctx, missing), gorm.ErrRecordNotFound)
}

func TestPostRepository_Delete(t *testing.T) {
	db := setupSQLiteDB(t)
	repo := NewPostRepository(db)
	ctx := context.Background()
	post := createPost(t, repo, 1, "A")
	_, err := repo.Rate(ctx, post.ID, 2, 4)
	require.NoError(t, err)
	_, err = repo.AddComment(ctx, post.ID, 2, "hi")
	require.NoError(t, err)

	require.NoError(t, repo.Delete(ctx, post.ID))

	_, err = repo.GetByID(ctx, post.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	var ratings, comments int64
	require.NoError(t, db.Model(&models.Rating{}).Where("post_id = ?", post.ID).Count(&ratings).Error)
	require.NoError(t, db.Model(&models.Comment{}).Where("post_id = ?", post.ID).Count(&comments).Error)
	assert.Zero(t, ratings)
	assert.Zero(t, comments)

	assert.ErrorIs(t, repo.Delete(ctx, post.ID), gorm.ErrRecordNotFound)
}

func TestPostRepository_List(t *testing.T) {
	db := setupSQLiteDB(t)
	repo := NewPostRepository(db)
	ctx := context.Background()

	a := createPost(t, repo, 1, "Charlie")
	b := createPost(t, repo, 2, "Alpha")
	c := createPost(t, repo, 1, "Bravo")

	_, err := repo.Rate(ctx, a.ID, 9, 2)
	require.NoError(t, err)
	_, err = repo.Rate(ctx, b.ID, 9, 5)
	require.NoError(t, err)

	jan := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	require.NoError(t, db.Model(&models.Post{}).Where("id = ?", c.ID).UpdateColumn("created_at", jan).Error)

	titles := func(page *models.PostPage) []string {
		out := make([]string, 0, len(page.Docs))
		for _, p := range page.Docs {
			out = append(out, p.Title)
		}
		return out
	}

	t.Run("default insertion order", func(t *testing.T) {
		page, err := repo.List(ctx, ListCriteria{Page: 1, Limit: 10})
		require.NoError(t, err)
		assert.Equal(t, []string{"Charlie", "Alpha", "Bravo"}, titles(page))
		assert.Equal(t, int64(3), page.TotalDocs)
		assert.Equal(t, 1, page.TotalPages)
	})

	t.Run("sort by title", func(t *testing.T) {
		page, err := repo.List(ctx, ListCriteria{SortBy: SortTitle, Page: 1, Limit: 10})
		require.NoError(t, err)
		assert.Equal(t, []string{"Alpha", "Bravo", "Charlie"}, titles(page))
	})

	t.Run("sort by rating descending", func(t *testing.T) {
		page, err := repo.List(ctx, ListCriteria{SortBy: SortAverageRating, SortDesc: true, Page: 1, Limit: 2})
		require.NoError(t, err)
		require.Len(t, page.Docs, 2)
		assert.Equal(t, "Alpha", page.Docs[0].Title)
		assert.Equal(t, "Charlie", page.Docs[1].Title)
	})

	t.Run("filter by author", func(t *testing.T) {
		author := uint(1)
		page, err := repo.List(ctx, ListCriteria{AuthorID: &author, Page: 1, Limit: 10})
		require.NoError(t, err)
		assert.Equal(t, []string{"Charlie", "Bravo"}, titles(page))
	})

	t.Run("filter by average rating", func(t *testing.T) {
		avg := 5.0
		page, err := repo.List(ctx, ListCriteria{AverageRating: &avg, Page: 1, Limit: 10})
		require.NoError(t, err)
		assert.Equal(t, []string{"Alpha"}, titles(page))
	})

	t.Run("filter by date range", func(t *testing.T) {
		from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		to := time.Date(2024, 1, 31, 23, 59, 59, 0, time.UTC)
		page, err := repo.List(ctx, ListCriteria{CreatedFrom: &from, CreatedTo: &to, Page: 1, Limit: 10})
		require.NoError(t, err)
		assert.Equal(t, []string{"Bravo"}, titles(page))
	})

	t.Run("pagination", func(t *testing.T) {
		page, err := repo.List(ctx, ListCriteria{Page: 2, Limit: 2})
		require.NoError(t, err)
		assert.Equal(t, []string{"Bravo"}, titles(page))
		assert.Equal(t, 2, page.TotalPages)
		assert.True(t, page.HasPrevPage)
		assert.False(t, page.HasNextPage)
		require.NotNil(t, page.PrevPage)
		assert.Equal(t, 1, *page.PrevPage)
		assert.Equal(t, 3, page.PagingCounter)
	})

	t.Run("page past the end", func(t *testing.T) {
		page, err := repo.List(ctx, ListCriteria{Page: 5, Limit: 10})
		require.NoError(t, err)
		assert.Empty(t, page.Docs)
		assert.NotNil(t, page.Docs)
		assert.Equal(t, int64(3), page.TotalDocs)
	})
}

func TestPostRepository_ListDateFilterOffLocalZone(t *testing.T) {
	local := time.Local
	time.Local = time.FixedZone("UTC+5", 5*60*60)
	t.Cleanup(func() { time.Local = local })

	repo := NewPostRepository(setupSQLiteDB(t))
	createPost(t, repo, 1, "A")

	now := time.Now().UTC()
	from, to := now.Add(-time.Minute), now.Add(time.Minute)
	page, err := repo.List(context.Background(), ListCriteria{CreatedFrom: &from, CreatedTo: &to, Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(1), page.TotalDocs)
}

func TestPostRepository_RatePostgres(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPostRepository(db)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT "id" FROM "posts" WHERE "posts"."id" = $1`) + `.*FOR UPDATE`).
		WithArgs(7, 1).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "post_ratings"`) + `.*` +
		regexp.QuoteMeta(`ON CONFLICT ("post_id","user_id") DO UPDATE SET "value"="excluded"."value","updated_at"="excluded"."updated_at"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE posts SET average_rating = (SELECT AVG(value) FROM post_ratings WHERE post_id = $1), updated_at = $2 WHERE id = $3`)).
		WithArgs(7, sqlmock.AnyArg(), 7).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "posts" WHERE "posts"."id" = $1`)).
		WithArgs(7, 1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "content", "author_id", "average_rating"}).
			AddRow(7, "A", "B", 1, 4.0))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "post_comments" WHERE "post_comments"."post_id" = $1`)).
		WithArgs(7).
		WillReturnRows(sqlmock.NewRows([]string{"id", "post_id", "user_id", "text"}))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "post_ratings" WHERE "post_ratings"."post_id" = $1`)).
		WithArgs(7).
		WillReturnRows(sqlmock.NewRows([]string{"id", "post_id", "user_id", "value"}).AddRow(1, 7, 2, 4.0))

	post, err := repo.Rate(ctx, 7, 2, 4)
	require.NoError(t, err)
	require.NotNil(t, post.AverageRating)
	assert.Equal(t, 4.0, *post.AverageRating)
	assert.Len(t, post.Ratings, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostRepository_RatePostgres_NotFound(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPostRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	_, err := repo.Rate(context.Background(), 7, 2, 4)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostRepository_AddCommentPostgres_DeletedConcurrently(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPostRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "posts" SET "updated_at"=$1 WHERE id = $2`)).
		WithArgs(sqlmock.AnyArg(), 7).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "post_comments"`)).
		WillReturnError(&pgconn.PgError{Code: "23503", Message: "violates foreign key constraint"})
	mock.ExpectRollback()

	_, err := repo.AddComment(context.Background(), 7, 2, "hello")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMapWriteError(t *testing.T) {
	other := errors.New("boom")
	assert.Equal(t, other, mapWriteError(other))
	assert.NoError(t, mapWriteError(nil))
	assert.ErrorIs(t, mapWriteError(&pgconn.PgError{Code: "23503"}), gorm.ErrRecordNotFound)
	assert.Equal(t, "23505", mapWriteError(&pgconn.PgError{Code: "23505"}).(*pgconn.PgError).Code)
}
