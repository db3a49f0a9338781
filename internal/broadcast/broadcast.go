// Package broadcast implements the open/ack primitive: push an "open this
// app" request to every peer and report whether anyone acknowledged within
// the timeout. It is independent of the command and reconciliation
// machinery.
package broadcast

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/evhart/bivouac/internal/logging"
	"github.com/evhart/bivouac/pkg/domain"
	"github.com/evhart/bivouac/pkg/ports"
)

// DefaultTimeout is how long an open request waits for the first ack.
const DefaultTimeout = 5 * time.Second

// Result is the single notification delivered per request: acked by someone,
// or timed out. There is no automatic retry.
type Result struct {
	RequestID string
	Acked     bool
	AckedBy   domain.Identity
}

// Broadcaster issues open requests and matches acks to them.
type Broadcaster struct {
	bus     ports.Bus
	self    domain.Identity
	timeout time.Duration
	logger  *slog.Logger

	mu      sync.Mutex
	pending map[string]chan Result
}

// Option configures the Broadcaster.
type Option func(*Broadcaster)

// WithTimeout overrides the ack timeout.
func WithTimeout(d time.Duration) Option {
	return func(b *Broadcaster) {
		if d > 0 {
			b.timeout = d
		}
	}
}

// WithLogger sets the broadcaster logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Broadcaster) {
		b.logger = logger
	}
}

// New creates a broadcaster publishing as the given identity.
func New(bus ports.Bus, self domain.Identity, opts ...Option) *Broadcaster {
	b := &Broadcaster{
		bus:     bus,
		self:    self,
		timeout: DefaultTimeout,
		logger:  logging.NewNop(),
		pending: make(map[string]chan Result),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Open broadcasts an open request for the named app and returns the request
// ID plus a channel that delivers exactly one Result: the first ack, or the
// timeout.
func (b *Broadcaster) Open(ctx context.Context, app string) (string, <-chan Result, error) {
	requestID := ulid.Make().String()
	results := make(chan Result, 1)

	b.mu.Lock()
	b.pending[requestID] = results
	b.mu.Unlock()

	env := domain.Envelope{
		Type:      domain.MsgOpen,
		From:      b.self,
		App:       app,
		RequestID: requestID,
	}
	if err := b.bus.Publish(ctx, env); err != nil {
		b.mu.Lock()
		delete(b.pending, requestID)
		b.mu.Unlock()
		return "", nil, fmt.Errorf("broadcast open: %w", err)
	}

	time.AfterFunc(b.timeout, func() {
		if b.complete(requestID, Result{RequestID: requestID, Acked: false}) {
			b.logger.Warn("open request timed out", "app", app, "requestId", requestID)
		}
	})

	return requestID, results, nil
}

// HandleAck feeds an open:ack envelope in. The first ack per request wins;
// later acks and acks for unknown requests are dropped.
func (b *Broadcaster) HandleAck(env domain.Envelope) {
	if env.Type != domain.MsgOpenAck || env.RequestID == "" {
		return
	}
	b.complete(env.RequestID, Result{
		RequestID: env.RequestID,
		Acked:     true,
		AckedBy:   env.From,
	})
}

// complete resolves a request at most once. It reports whether this call was
// the resolving one.
func (b *Broadcaster) complete(requestID string, res Result) bool {
	b.mu.Lock()
	ch, ok := b.pending[requestID]
	if ok {
		delete(b.pending, requestID)
	}
	b.mu.Unlock()
	if !ok {
		return false
	}
	ch <- res
	close(ch)
	return true
}
