package memory

import (
	"context"
	"sync"

	"github.com/evhart/bivouac/pkg/domain"
)

// Hub is an in-process message bus. Each participant (host, peer) takes its
// own endpoint via Client; an envelope published on one endpoint reaches the
// subscriptions of every other endpoint, mirroring how the networked buses
// behave.
type Hub struct {
	mu      sync.Mutex
	closed  bool
	streams map[*Bus][]chan domain.Envelope
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{streams: make(map[*Bus][]chan domain.Envelope)}
}

// Client returns a new endpoint attached to the hub.
func (h *Hub) Client() *Bus {
	b := &Bus{hub: h}
	h.mu.Lock()
	h.streams[b] = nil
	h.mu.Unlock()
	return b
}

// Close tears down the hub and every endpoint's streams.
func (h *Hub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	for _, streams := range h.streams {
		for _, ch := range streams {
			close(ch)
		}
	}
	h.streams = make(map[*Bus][]chan domain.Envelope)
	return nil
}

func (h *Hub) publish(from *Bus, env domain.Envelope) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return domain.ErrBusClosed
	}
	for owner, streams := range h.streams {
		if owner == from {
			continue
		}
		for _, ch := range streams {
			// At-most-once: a full stream drops the envelope.
			select {
			case ch <- env:
			default:
			}
		}
	}
	return nil
}

func (h *Hub) subscribe(owner *Bus, ctx context.Context) (<-chan domain.Envelope, error) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, domain.ErrBusClosed
	}
	ch := make(chan domain.Envelope, 32)
	h.streams[owner] = append(h.streams[owner], ch)
	h.mu.Unlock()

	go func() {
		<-ctx.Done()
		h.mu.Lock()
		defer h.mu.Unlock()
		streams := h.streams[owner]
		for i, s := range streams {
			if s == ch {
				h.streams[owner] = append(streams[:i], streams[i+1:]...)
				close(ch)
				return
			}
		}
	}()

	return ch, nil
}

// Bus is one endpoint of a Hub, implementing ports.Bus.
type Bus struct {
	hub *Hub
}

// Publish delivers the envelope to every other endpoint's subscriptions.
func (b *Bus) Publish(ctx context.Context, env domain.Envelope) error {
	return b.hub.publish(b, env)
}

// Subscribe returns the stream of envelopes published by other endpoints.
func (b *Bus) Subscribe(ctx context.Context) (<-chan domain.Envelope, error) {
	return b.hub.subscribe(b, ctx)
}

// Close closes the whole hub.
func (b *Bus) Close() error {
	return b.hub.Close()
}
