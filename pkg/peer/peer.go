// Package peer is the non-authoritative side of a session. A peer never
// touches storage or effects; it publishes commands to the host and reacts
// to refresh and open broadcasts coming back over the bus.
package peer

import (
	"context"
	"log/slog"

	"github.com/evhart/bivouac/internal/logging"
	"github.com/evhart/bivouac/pkg/domain"
	"github.com/evhart/bivouac/pkg/ports"
)

// Peer is a session participant without write authority.
type Peer struct {
	bus    ports.Bus
	self   domain.Identity
	logger *slog.Logger

	onRefresh func(doc domain.DocName)
	onOpen    func(app string)
}

// Option configures a Peer.
type Option func(*Peer)

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Peer) {
		p.logger = l
	}
}

// WithRefreshHandler registers the callback invoked on every refresh
// broadcast, carrying the document that changed. Handlers run on the Run
// loop's goroutine and should return quickly.
func WithRefreshHandler(fn func(doc domain.DocName)) Option {
	return func(p *Peer) {
		p.onRefresh = fn
	}
}

// WithOpenHandler registers the callback invoked when the host asks every
// peer to surface an app. The acknowledgement is sent regardless.
func WithOpenHandler(fn func(app string)) Option {
	return func(p *Peer) {
		p.onOpen = fn
	}
}

// New creates a Peer speaking over the given bus as the given identity.
func New(bus ports.Bus, self domain.Identity, opts ...Option) *Peer {
	p := &Peer{
		bus:    bus,
		self:   self,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Submit sends a command to the host. Delivery is at-most-once; if nothing
// visibly changes, the caller may re-issue the same command safely.
func (p *Peer) Submit(ctx context.Context, cmd domain.Command) error {
	cmd.From = p.self
	return p.bus.Publish(ctx, domain.Envelope{
		Type:    domain.MsgMutate,
		From:    p.self,
		Request: &cmd,
	})
}

// Run consumes the bus until ctx is cancelled or the bus closes. Open
// broadcasts are acknowledged exactly once, echoing the request id.
func (p *Peer) Run(ctx context.Context) error {
	stream, err := p.bus.Subscribe(ctx)
	if err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case env, ok := <-stream:
			if !ok {
				return nil
			}
			p.handle(ctx, env)
		}
	}
}

func (p *Peer) handle(ctx context.Context, env domain.Envelope) {
	switch env.Type {
	case domain.MsgRefresh:
		if p.onRefresh != nil {
			p.onRefresh(domain.DocName(env.App))
		}
	case domain.MsgOpen:
		if p.onOpen != nil {
			p.onOpen(env.App)
		}
		ack := domain.Envelope{
			Type:      domain.MsgOpenAck,
			From:      p.self,
			App:       env.App,
			RequestID: env.RequestID,
		}
		if err := p.bus.Publish(ctx, ack); err != nil {
			p.logger.Warn("open ack not delivered", "err", err, "requestId", env.RequestID)
		}
	}
}
