// Package ws carries the session bus over websockets: the host mounts a Hub
// as an HTTP handler, peers dial in with Client. Envelopes travel as JSON
// text frames, and the hub relays every peer frame to every other peer, so
// all endpoints see the same "everyone but me" bus the in-process hub gives.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/evhart/bivouac/internal/logging"
	"github.com/evhart/bivouac/pkg/domain"
)

const (
	// writeWait bounds a single frame write.
	writeWait = 10 * time.Second
	// pongWait is how long a silent peer stays connected.
	pongWait = 60 * time.Second
	// pingPeriod must be under pongWait.
	pingPeriod = (pongWait * 9) / 10
)

// conn is one connected peer with a write lock, since gorilla connections
// allow a single concurrent writer.
type conn struct {
	ws *websocket.Conn
	mu sync.Mutex
}

func (c *conn) write(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.ws.WriteMessage(messageType, data)
}

// Hub is the host side of the websocket bus. It implements ports.Bus: the
// host's Publish fans out to every peer, and Subscribe yields every frame
// any peer sends.
type Hub struct {
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	closed  bool
	conns   map[*conn]struct{}
	streams []chan domain.Envelope
}

// HubOption configures the Hub.
type HubOption func(*Hub)

// WithLogger sets the hub logger.
func WithLogger(l *slog.Logger) HubOption {
	return func(h *Hub) {
		h.logger = l
	}
}

// NewHub creates a websocket hub.
func NewHub(opts ...HubOption) *Hub {
	h := &Hub{
		logger: logging.NewNop(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		conns: make(map[*conn]struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// ServeHTTP upgrades the request and pumps the peer's frames until it
// disconnects. Mount it wherever the peers dial, e.g. at /ws.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "err", err)
		return
	}

	c := &conn{ws: ws}
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		ws.Close()
		return
	}
	h.conns[c] = struct{}{}
	h.mu.Unlock()
	h.logger.Debug("peer connected", "remote", ws.RemoteAddr())

	go h.pingLoop(c)
	h.readLoop(c)
}

func (h *Hub) readLoop(c *conn) {
	defer h.drop(c)

	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("peer read failed", "err", err)
			}
			return
		}
		var env domain.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			h.logger.Warn("malformed frame dropped", "err", err)
			continue
		}
		h.deliver(env, c)
	}
}

func (h *Hub) pingLoop(c *conn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for range ticker.C {
		if err := c.write(websocket.PingMessage, nil); err != nil {
			return
		}
	}
}

// deliver hands a peer frame to the host's subscriptions and relays it to
// every other peer.
func (h *Hub) deliver(env domain.Envelope, from *conn) {
	data, err := json.Marshal(env)
	if err != nil {
		return
	}

	h.mu.Lock()
	streams := make([]chan domain.Envelope, len(h.streams))
	copy(streams, h.streams)
	var others []*conn
	for c := range h.conns {
		if c != from {
			others = append(others, c)
		}
	}
	h.mu.Unlock()

	for _, ch := range streams {
		select {
		case ch <- env:
		default:
			// At-most-once: a full stream loses the envelope.
		}
	}
	for _, c := range others {
		if err := c.write(websocket.TextMessage, data); err != nil {
			h.drop(c)
		}
	}
}

func (h *Hub) drop(c *conn) {
	h.mu.Lock()
	_, present := h.conns[c]
	delete(h.conns, c)
	h.mu.Unlock()
	if present {
		c.ws.Close()
		h.logger.Debug("peer disconnected", "remote", c.ws.RemoteAddr())
	}
}

// Publish sends the envelope to every connected peer.
func (h *Hub) Publish(ctx context.Context, env domain.Envelope) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return domain.ErrBusClosed
	}
	conns := make([]*conn, 0, len(h.conns))
	for c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	for _, c := range conns {
		if err := c.write(websocket.TextMessage, data); err != nil {
			h.drop(c)
		}
	}
	return nil
}

// Subscribe returns the stream of frames arriving from any peer. The
// channel closes when ctx is done or the hub closes.
func (h *Hub) Subscribe(ctx context.Context) (<-chan domain.Envelope, error) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, domain.ErrBusClosed
	}
	ch := make(chan domain.Envelope, 32)
	h.streams = append(h.streams, ch)
	h.mu.Unlock()

	go func() {
		<-ctx.Done()
		h.mu.Lock()
		defer h.mu.Unlock()
		for i, s := range h.streams {
			if s == ch {
				h.streams = append(h.streams[:i], h.streams[i+1:]...)
				close(ch)
				return
			}
		}
	}()
	return ch, nil
}

// Close disconnects every peer and closes all subscriptions.
func (h *Hub) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	conns := h.conns
	h.conns = make(map[*conn]struct{})
	streams := h.streams
	h.streams = nil
	h.mu.Unlock()

	for c := range conns {
		c.ws.Close()
	}
	for _, ch := range streams {
		close(ch)
	}
	return nil
}
