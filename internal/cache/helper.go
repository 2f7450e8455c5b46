package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"inkwell/internal/middleware"
	"inkwell/internal/observability"

	"github.com/redis/go-redis/v9"
)

const (
	PostKeyPrefix       = "post:%d"
	postGenPrefix       = "post:%d:gen"
	PostsListPrefix     = "posts:list:v%d:%s"
	postsListVersionKey = "posts:list:version"
)

const (
	PostTTL = 30 * time.Minute
	ListTTL = 2 * time.Minute

	// postGenTTL outlives any single load.
	postGenTTL = 24 * time.Hour
)

// enabled gates Aside; invalidation runs regardless.
var enabled = true

// SetEnabled turns read-through caching on or off.
func SetEnabled(on bool) {
	enabled = on
}

func PostKey(postID uint) string {
	return fmt.Sprintf(PostKeyPrefix, postID)
}

func postGenKey(postID uint) string {
	return fmt.Sprintf(postGenPrefix, postID)
}

// PostsListKey returns the key for a listing identified by fingerprint. The
// key embeds the current list version so InvalidatePostsList retires every
// cached page at once.
func PostsListKey(ctx context.Context, fingerprint string) string {
	var version int64
	if client != nil {
		v, err := client.Get(ctx, postsListVersionKey).Int64()
		if err == nil {
			version = v
		}
	}
	return fmt.Sprintf(PostsListPrefix, version, fingerprint)
}

// Aside decodes the JSON value cached at key into dest. On a miss it calls
// fetch, which must fill dest, and caches dest for ttl. Redis failures fall
// through to fetch.
func Aside(ctx context.Context, key string, dest any, ttl time.Duration, fetch func() error) error {
	return aside(ctx, key, "", dest, ttl, fetch)
}

// AsidePost is Aside for a single post. The fill is dropped when the post is
// invalidated while fetch runs, so a load that raced a write cannot cache the
// pre-write state.
func AsidePost(ctx context.Context, postID uint, dest any, fetch func() error) error {
	return aside(ctx, PostKey(postID), postGenKey(postID), dest, PostTTL, fetch)
}

func aside(ctx context.Context, key, guard string, dest any, ttl time.Duration, fetch func() error) error {
	if client == nil || !enabled {
		return fetch()
	}

	raw, err := client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		if jsonErr := json.Unmarshal(raw, dest); jsonErr == nil {
			observability.CacheResults.WithLabelValues("hit").Inc()
			return nil
		}
		observability.CacheResults.WithLabelValues("error").Inc()
	case errors.Is(err, redis.Nil):
		observability.CacheResults.WithLabelValues("miss").Inc()
	default:
		observability.CacheResults.WithLabelValues("error").Inc()
		middleware.Logger.WarnContext(ctx, "cache read failed", slog.String("key", key), slog.String("error", err.Error()))
	}

	var gen int64
	if guard != "" {
		gen, err = client.Get(ctx, guard).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			// Without the generation a fill cannot be checked; serve uncached.
			return fetch()
		}
	}

	if err := fetch(); err != nil {
		return err
	}

	encoded, jsonErr := json.Marshal(dest)
	if jsonErr != nil {
		return nil
	}
	if setErr := store(ctx, key, guard, gen, encoded, ttl); setErr != nil {
		middleware.Logger.WarnContext(ctx, "cache write failed", slog.String("key", key), slog.String("error", setErr.Error()))
	}
	return nil
}

var errStaleFill = errors.New("cache fill superseded")

// store writes encoded at key. With a guard, the write only happens while the
// guard still holds gen.
func store(ctx context.Context, key, guard string, gen int64, encoded []byte, ttl time.Duration) error {
	if guard == "" {
		return client.Set(ctx, key, encoded, ttl).Err()
	}
	err := client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, guard).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != gen {
			return errStaleFill
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, encoded, ttl)
			return nil
		})
		return err
	}, guard)
	if errors.Is(err, errStaleFill) || errors.Is(err, redis.TxFailedErr) {
		return nil
	}
	return err
}

// InvalidatePost drops the cached post and bumps its generation so fills
// already in flight are discarded.
func InvalidatePost(ctx context.Context, postID uint) {
	if client == nil {
		return
	}
	_, err := client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, postGenKey(postID))
		pipe.Expire(ctx, postGenKey(postID), postGenTTL)
		pipe.Del(ctx, PostKey(postID))
		return nil
	})
	if err != nil {
		middleware.Logger.WarnContext(ctx, "cache invalidation failed",
			slog.Uint64("post_id", uint64(postID)),
			slog.String("error", err.Error()),
		)
	}
}

// InvalidatePostsList bumps the list version; old pages expire on their TTL.
func InvalidatePostsList(ctx context.Context) {
	if client != nil {
		client.Incr(ctx, postsListVersionKey)
	}
}
