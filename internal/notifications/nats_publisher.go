package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// NatsPublisher publishes post events on NATS subjects named after the event type.
type NatsPublisher struct {
	nc *nats.Conn
}

// NewNatsPublisher wraps an established connection.
func NewNatsPublisher(nc *nats.Conn) *NatsPublisher {
	return &NatsPublisher{nc: nc}
}

// ConnectNats dials url and returns a publisher owning the connection.
func ConnectNats(url string) (*NatsPublisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("inkwell-api"),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return NewNatsPublisher(nc), nil
}

func (p *NatsPublisher) Publish(ctx context.Context, event PostEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshalling error: %w", err)
	}

	msg := &nats.Msg{
		Subject: event.Type,
		Data:    data,
		Header:  nats.Header{},
	}
	// Carry the trace context so consumers join the request's trace.
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(msg.Header))

	slog.DebugContext(ctx, "publishing post event", slog.String("subject", msg.Subject), slog.Uint64("post_id", uint64(event.PostID)))

	return p.nc.PublishMsg(msg)
}

// Name returns "nats".
func (p *NatsPublisher) Name() string { return "nats" }

// Close flushes pending messages and closes the connection.
func (p *NatsPublisher) Close() error {
	if p.nc == nil {
		return nil
	}
	err := p.nc.Drain()
	if err != nil {
		p.nc.Close()
	}
	return err
}
