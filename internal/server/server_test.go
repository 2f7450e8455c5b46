package server

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"inkwell/internal/config"
	"inkwell/internal/models"
	"inkwell/internal/testutil"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	return &config.Config{Env: "test", JWTSecret: testSecret, RatingMin: 1, RatingMax: 5}
}

func TestNewServerWithDeps_RequiresConfig(t *testing.T) {
	_, err := NewServerWithDeps(nil, nil, nil, nil)
	assert.Error(t, err)
}

func TestHealthChecks(t *testing.T) {
	db := testutil.NewSQLiteDB(t)

	t.Run("Liveness", func(t *testing.T) {
		s, err := NewServerWithDeps(testConfig(), nil, nil, nil)
		require.NoError(t, err)
		resp, err := s.NewApp().Test(httptest.NewRequest(http.MethodGet, "/health/live", nil))
		require.NoError(t, err)
		_ = resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("Ready Without Redis", func(t *testing.T) {
		s, err := NewServerWithDeps(testConfig(), db, nil, nil)
		require.NoError(t, err)
		status, body := doRequest(t, s.NewApp(), http.MethodGet, "/health/ready", "", nil)
		assert.Equal(t, http.StatusOK, status)
		checks := body["checks"].(map[string]any)
		assert.Equal(t, "healthy", checks["database"])
		assert.Equal(t, "unavailable", checks["redis"])
		assert.Equal(t, "none", checks["events"])
	})

	t.Run("Redis Down", func(t *testing.T) {
		mr, err := miniredis.Run()
		require.NoError(t, err)
		rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		defer func() { _ = rdb.Close() }()
		mr.Close()

		s, err := NewServerWithDeps(testConfig(), db, rdb, nil)
		require.NoError(t, err)
		status, body := doRequest(t, s.NewApp(), http.MethodGet, "/health/ready", "", nil)
		assert.Equal(t, http.StatusServiceUnavailable, status)
		assert.Equal(t, "unhealthy", body["status"])
	})

	t.Run("No Database", func(t *testing.T) {
		s, err := NewServerWithDeps(testConfig(), nil, nil, nil)
		require.NoError(t, err)
		status, _ := doRequest(t, s.NewApp(), http.MethodGet, "/health/ready", "", nil)
		assert.Equal(t, http.StatusServiceUnavailable, status)
	})
}

func TestUnknownRoute(t *testing.T) {
	s, err := NewServerWithDeps(testConfig(), nil, nil, nil)
	require.NoError(t, err)
	status, body := doRequest(t, s.NewApp(), http.MethodGet, "/api/nothing-here", "", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.NotEmpty(t, body["error"])
}

func TestPostLifecycle(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	s, err := NewServerWithDeps(testConfig(), db, nil, nil)
	require.NoError(t, err)
	app := s.NewApp()

	author, rater := bearer(t, 1), bearer(t, 2)

	status, created := doRequest(t, app, http.MethodPost, "/api/posts", author,
		map[string]string{"title": "First", "content": "Body"})
	require.Equal(t, http.StatusOK, status)
	path := fmt.Sprintf("/api/posts/%v", created["id"])
	assert.Nil(t, created["averageRating"])

	status, rated := doRequest(t, app, http.MethodPost, path+"/rate", rater, map[string]any{"rating": 4})
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 4, rated["averageRating"])

	status, rated = doRequest(t, app, http.MethodPost, path+"/rate", author, map[string]any{"rating": 2})
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 3, rated["averageRating"])

	// re-rating replaces the caller's earlier value
	status, rated = doRequest(t, app, http.MethodPost, path+"/rate", rater, map[string]any{"rating": 5})
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 3.5, rated["averageRating"])
	assert.Len(t, rated["ratings"], 2)

	status, commented := doRequest(t, app, http.MethodPost, path+"/comment", rater, map[string]string{"text": "Great"})
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, commented["comments"], 1)

	status, _ = doRequest(t, app, http.MethodPut, path, rater, map[string]string{"title": "Hijack"})
	assert.Equal(t, http.StatusForbidden, status)

	status, updated := doRequest(t, app, http.MethodPut, path, author, map[string]string{"content": "Edited"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "First", updated["title"])
	assert.Equal(t, "Edited", updated["content"])

	status, page := doRequest(t, app, http.MethodGet, "/api/posts?filterByAuthor=1", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 1, page["totalDocs"])

	status, deleted := doRequest(t, app, http.MethodDelete, path, author, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, models.MsgPostDeleted, deleted["msg"])

	status, _ = doRequest(t, app, http.MethodGet, path, "", nil)
	assert.Equal(t, http.StatusNotFound, status)

	var ratings int64
	require.NoError(t, db.Model(&models.Rating{}).Count(&ratings).Error)
	assert.Zero(t, ratings)
}
