package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/evhart/bivouac/internal/logging"
	"github.com/evhart/bivouac/pkg/domain"
)

// Client is the peer side of the websocket bus: one dialed connection
// implementing ports.Bus.
type Client struct {
	conn   *conn
	logger *slog.Logger

	mu      sync.Mutex
	closed  bool
	streams []chan domain.Envelope
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithClientLogger sets the client logger.
func WithClientLogger(l *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = l
	}
}

// Dial connects to a hub at the given ws:// or wss:// URL and starts the
// read pump.
func Dial(ctx context.Context, url string, opts ...ClientOption) (*Client, error) {
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}

	c := &Client{
		conn:   &conn{ws: ws},
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	go c.readLoop()
	return c, nil
}

func (c *Client) readLoop() {
	defer c.Close()
	for {
		_, data, err := c.conn.ws.ReadMessage()
		if err != nil {
			return
		}
		var env domain.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			c.logger.Warn("malformed frame dropped", "err", err)
			continue
		}

		c.mu.Lock()
		streams := make([]chan domain.Envelope, len(c.streams))
		copy(streams, c.streams)
		c.mu.Unlock()
		for _, ch := range streams {
			select {
			case ch <- env:
			default:
			}
		}
	}
}

// Publish sends the envelope to the hub, which relays it onward.
func (c *Client) Publish(ctx context.Context, env domain.Envelope) error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return domain.ErrBusClosed
	}

	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	if deadline, ok := ctx.Deadline(); ok && deadline.Before(time.Now().Add(writeWait)) {
		c.conn.mu.Lock()
		c.conn.ws.SetWriteDeadline(deadline)
		err = c.conn.ws.WriteMessage(websocket.TextMessage, data)
		c.conn.mu.Unlock()
		return err
	}
	return c.conn.write(websocket.TextMessage, data)
}

// Subscribe returns the stream of envelopes relayed by the hub.
func (c *Client) Subscribe(ctx context.Context) (<-chan domain.Envelope, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, domain.ErrBusClosed
	}
	ch := make(chan domain.Envelope, 32)
	c.streams = append(c.streams, ch)
	c.mu.Unlock()

	go func() {
		<-ctx.Done()
		c.mu.Lock()
		defer c.mu.Unlock()
		for i, s := range c.streams {
			if s == ch {
				c.streams = append(c.streams[:i], c.streams[i+1:]...)
				close(ch)
				return
			}
		}
	}()
	return ch, nil
}

// Close hangs up and closes all subscriptions.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	streams := c.streams
	c.streams = nil
	c.mu.Unlock()

	for _, ch := range streams {
		close(ch)
	}
	return c.conn.ws.Close()
}
