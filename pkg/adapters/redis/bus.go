package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/oklog/ulid/v2"
	backend "github.com/redis/go-redis/v9"

	"github.com/evhart/bivouac/pkg/domain"
)

// frame wraps an envelope with the publishing endpoint's identity. Redis
// pub/sub echoes a publish back to the publisher's own subscription; the
// origin tag lets each endpoint drop its own traffic, matching the bus
// port's "everyone but me" semantics.
type frame struct {
	Origin   string          `json:"origin"`
	Envelope domain.Envelope `json:"envelope"`
}

// Bus implements ports.Bus over a Redis pub/sub channel. Delivery is
// at-most-once: Redis pub/sub itself never retries, and a slow local
// consumer loses envelopes rather than blocking.
type Bus struct {
	client  *backend.Client
	channel string
	origin  string

	mu     sync.Mutex
	closed bool
}

// BusOption configures the Bus.
type BusOption func(*Bus)

// WithChannel overrides the pub/sub channel name.
func WithChannel(channel string) BusOption {
	return func(b *Bus) {
		b.channel = channel
	}
}

// NewBus creates a bus endpoint with its own client.
func NewBus(address, password string, db int, opts ...BusOption) *Bus {
	client := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewBusFromClient(client, opts...)
}

// NewBusFromClient creates a bus endpoint on an existing client. Each
// endpoint gets a unique origin tag, so two endpoints sharing a client
// still ignore their own publishes and see each other's.
func NewBusFromClient(client *backend.Client, opts ...BusOption) *Bus {
	b := &Bus{
		client:  client,
		channel: "bivouac:session:bus",
		origin:  ulid.Make().String(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Publish sends the envelope to every other endpoint on the channel.
func (b *Bus) Publish(ctx context.Context, env domain.Envelope) error {
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return domain.ErrBusClosed
	}

	data, err := json.Marshal(frame{Origin: b.origin, Envelope: env})
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	if err := b.client.Publish(ctx, b.channel, data).Err(); err != nil {
		return fmt.Errorf("publish envelope: %w", err)
	}
	return nil
}

// Subscribe returns the stream of envelopes published by other endpoints.
func (b *Bus) Subscribe(ctx context.Context) (<-chan domain.Envelope, error) {
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return nil, domain.ErrBusClosed
	}

	pubsub := b.client.Subscribe(ctx, b.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("subscribe bus: %w", err)
	}

	out := make(chan domain.Envelope, 32)
	go func() {
		defer close(out)
		defer pubsub.Close()
		msgs := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var f frame
				if err := json.Unmarshal([]byte(msg.Payload), &f); err != nil {
					continue
				}
				if f.Origin == b.origin {
					continue
				}
				select {
				case out <- f.Envelope:
				default:
					// At-most-once: drop instead of blocking.
				}
			}
		}
	}()
	return out, nil
}

// Close marks the endpoint closed and releases the client.
func (b *Bus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()
	return b.client.Close()
}
