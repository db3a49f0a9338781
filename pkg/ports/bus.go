package ports

import (
	"context"

	"github.com/evhart/bivouac/pkg/domain"
)

// Bus is the session's pub/sub transport. Delivery is at-most-once: a lost
// envelope is never retried by the engine, and all mutations are idempotent
// from current state so clients can safely re-issue after a timeout.
type Bus interface {
	// Publish sends an envelope to every other subscriber.
	// Returns domain.ErrBusClosed after Close.
	Publish(ctx context.Context, env domain.Envelope) error

	// Subscribe returns the stream of envelopes published by others.
	// The channel closes when ctx is done or the bus is closed. Slow
	// consumers may lose envelopes rather than block the bus.
	Subscribe(ctx context.Context) (<-chan domain.Envelope, error)

	// Close tears the transport down.
	Close() error
}
