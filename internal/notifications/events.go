// Package notifications publishes post lifecycle events to message brokers.
package notifications

import (
	"context"
	"time"
)

// Event subjects. NATS publishes on them directly; Redis carries them in the payload.
const (
	EventPostCreated   = "post.created"
	EventPostUpdated   = "post.updated"
	EventPostDeleted   = "post.deleted"
	EventPostRated     = "post.rated"
	EventPostCommented = "post.commented"
)

// PostEvent describes a change to a post.
type PostEvent struct {
	Type          string    `json:"type"`
	PostID        uint      `json:"post_id"`
	UserID        uint      `json:"user_id"`
	AverageRating *float64  `json:"average_rating,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// NewPostEvent returns an event of the given type stamped with the current time.
func NewPostEvent(eventType string, postID, userID uint) PostEvent {
	return PostEvent{
		Type:       eventType,
		PostID:     postID,
		UserID:     userID,
		OccurredAt: time.Now().UTC(),
	}
}

// Publisher delivers post events. Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, event PostEvent) error
	// Name identifies the broker in logs and metrics.
	Name() string
	Close() error
}

// NoopPublisher discards every event.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, PostEvent) error { return nil }
func (NoopPublisher) Name() string { return "none" }
func (NoopPublisher) Close() error { return nil }
