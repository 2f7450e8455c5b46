package notifications

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// PostEventsChannel receives every post event.
const PostEventsChannel = "posts:events"

// PostChannel returns the channel carrying events for a single post.
func PostChannel(postID uint) string {
	return fmt.Sprintf("posts:events:%d", postID)
}

// Notifier publishes post events into Redis pub/sub channels.
type Notifier struct {
	rdb *redis.Client
}

// NewNotifier creates a new Notifier instance using the provided Redis client.
func NewNotifier(rdb *redis.Client) *Notifier {
	return &Notifier{rdb: rdb}
}

// Publish sends the event to PostEventsChannel and to the post's own channel.
func (n *Notifier) Publish(ctx context.Context, event PostEvent) error {
	if n.rdb == nil {
		return nil
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	pipe := n.rdb.Pipeline()
	pipe.Publish(ctx, PostEventsChannel, payload)
	pipe.Publish(ctx, PostChannel(event.PostID), payload)
	_, err = pipe.Exec(ctx)
	return err
}

// Name returns "redis".
func (n *Notifier) Name() string { return "redis" }

// Close is a no-op; the Redis client is shared and closed by its owner.
func (n *Notifier) Close() error {
	return nil
}
