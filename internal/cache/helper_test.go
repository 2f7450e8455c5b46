package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cachedPost struct {
	ID    uint   `json:"id"`
	Title string `json:"title"`
}

func setupMiniredis(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	SetClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() {
		_ = Close()
		mr.Close()
	})
	return mr
}

func TestAside_MissThenHit(t *testing.T) {
	mr := setupMiniredis(t)
	ctx := context.Background()

	calls := 0
	load := func(dest *cachedPost) func() error {
		return func() error {
			calls++
			*dest = cachedPost{ID: 1, Title: "hello"}
			return nil
		}
	}

	var first cachedPost
	require.NoError(t, Aside(ctx, PostKey(1), &first, PostTTL, load(&first)))
	assert.Equal(t, "hello", first.Title)
	assert.True(t, mr.Exists("post:1"))
	assert.Equal(t, PostTTL, mr.TTL("post:1"))

	var second cachedPost
	require.NoError(t, Aside(ctx, PostKey(1), &second, PostTTL, load(&second)))
	assert.Equal(t, first, second)
	assert.Equal(t, 1, calls, "second read is served from cache")
}

func TestAside_FetchErrorIsNotCached(t *testing.T) {
	mr := setupMiniredis(t)
	boom := errors.New("boom")

	var dest cachedPost
	err := Aside(context.Background(), PostKey(2), &dest, PostTTL, func() error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.False(t, mr.Exists("post:2"))
}

func TestAside_WithoutClient(t *testing.T) {
	SetClient(nil)
	calls := 0
	for i := 0; i < 2; i++ {
		var dest cachedPost
		require.NoError(t, Aside(context.Background(), PostKey(3), &dest, PostTTL, func() error {
			calls++
			return nil
		}))
	}
	assert.Equal(t, 2, calls)
}

func TestAside_Disabled(t *testing.T) {
	mr := setupMiniredis(t)
	SetEnabled(false)
	t.Cleanup(func() { SetEnabled(true) })

	var dest cachedPost
	require.NoError(t, Aside(context.Background(), PostKey(6), &dest, PostTTL, func() error {
		dest = cachedPost{ID: 6}
		return nil
	}))
	assert.False(t, mr.Exists("post:6"))
}

func TestAside_CorruptEntryRefetches(t *testing.T) {
	mr := setupMiniredis(t)
	require.NoError(t, mr.Set("post:4", "{not json"))

	var dest cachedPost
	require.NoError(t, Aside(context.Background(), PostKey(4), &dest, PostTTL, func() error {
		dest = cachedPost{ID: 4}
		return nil
	}))
	assert.Equal(t, uint(4), dest.ID)
}

func TestInvalidatePost(t *testing.T) {
	mr := setupMiniredis(t)
	require.NoError(t, mr.Set("post:5", "{}"))

	InvalidatePost(context.Background(), 5)
	assert.False(t, mr.Exists("post:5"))
	assert.True(t, mr.Exists("post:5:gen"))
}

func TestAsidePost_FillAndHit(t *testing.T) {
	mr := setupMiniredis(t)
	ctx := context.Background()

	var first cachedPost
	require.NoError(t, AsidePost(ctx, 2, &first, func() error {
		first = cachedPost{ID: 2, Title: "cached"}
		return nil
	}))
	assert.True(t, mr.Exists("post:2"))
	assert.Equal(t, PostTTL, mr.TTL("post:2"))

	var second cachedPost
	require.NoError(t, AsidePost(ctx, 2, &second, func() error {
		t.Fatal("served from cache")
		return nil
	}))
	assert.Equal(t, first, second)
}

func TestAsidePost_InvalidatedDuringLoadIsNotCached(t *testing.T) {
	mr := setupMiniredis(t)
	ctx := context.Background()

	// A writer commits and invalidates after the reader loaded the old row.
	var stale cachedPost
	require.NoError(t, AsidePost(ctx, 3, &stale, func() error {
		stale = cachedPost{ID: 3, Title: "before write"}
		InvalidatePost(ctx, 3)
		return nil
	}))
	assert.Equal(t, "before write", stale.Title, "the caller still gets its load")
	assert.False(t, mr.Exists("post:3"))

	var fresh cachedPost
	require.NoError(t, AsidePost(ctx, 3, &fresh, func() error {
		fresh = cachedPost{ID: 3, Title: "after write"}
		return nil
	}))
	assert.True(t, mr.Exists("post:3"))

	var hit cachedPost
	require.NoError(t, AsidePost(ctx, 3, &hit, func() error {
		t.Fatal("served from cache")
		return nil
	}))
	assert.Equal(t, "after write", hit.Title)
}

func TestPostsListKey_Versioning(t *testing.T) {
	mr := setupMiniredis(t)
	ctx := context.Background()

	before := PostsListKey(ctx, "page=1")
	assert.Equal(t, "posts:list:v0:page=1", before)

	InvalidatePostsList(ctx)
	after := PostsListKey(ctx, "page=1")
	assert.Equal(t, "posts:list:v1:page=1", after)

	mr.FastForward(time.Hour)
	assert.Equal(t, after, PostsListKey(ctx, "page=1"), "the version counter does not expire")
}
