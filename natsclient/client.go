// Package natsclient provides a managed NATS connection with JetStream
// access for durable record archival.
package natsclient

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/br-g/fastf1-livetiming/errors"
)

// Client wraps a NATS connection and its JetStream context. Reconnection
// is delegated to the NATS client library; callers only see Connect and
// Close.
type Client struct {
	url           string
	name          string
	maxReconnects int
	reconnectWait time.Duration
	pingInterval  time.Duration
	logger        *slog.Logger

	mu   sync.RWMutex
	conn *nats.Conn
	js   jetstream.JetStream
}

// Option configures a Client
type Option func(*Client)

// WithName sets the connection name visible in NATS monitoring
func WithName(name string) Option {
	return func(c *Client) { c.name = name }
}

// WithMaxReconnects sets the reconnection attempt cap (-1 for infinite)
func WithMaxReconnects(n int) Option {
	return func(c *Client) { c.maxReconnects = n }
}

// WithReconnectWait sets the wait between reconnection attempts
func WithReconnectWait(d time.Duration) Option {
	return func(c *Client) { c.reconnectWait = d }
}

// WithPingInterval sets the connection health check period
func WithPingInterval(d time.Duration) Option {
	return func(c *Client) { c.pingInterval = d }
}

// WithLogger sets the structured logger
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// New creates a client for the given NATS URL. The connection is not
// established until Connect.
func New(url string, opts ...Option) (*Client, error) {
	if url == "" {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig,
			"Client", "New", "NATS URL required")
	}

	c := &Client{
		url:           url,
		name:          "livetiming",
		maxReconnects: -1,
		reconnectWait: 2 * time.Second,
		pingInterval:  2 * time.Minute,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "natsclient")
	return c, nil
}

func (c *Client) connectOptions() []nats.Option {
	return []nats.Option{
		nats.Name(c.name),
		nats.MaxReconnects(c.maxReconnects),
		nats.ReconnectWait(c.reconnectWait),
		nats.PingInterval(c.pingInterval),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				c.logger.Warn("NATS disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(conn *nats.Conn) {
			c.logger.Info("NATS reconnected", "url", conn.ConnectedUrl())
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			c.logger.Info("NATS connection closed")
		}),
	}
}

type connResult struct {
	conn *nats.Conn
	js   jetstream.JetStream
	err  error
}

// Connect establishes the connection and initializes JetStream.
func (c *Client) Connect(ctx context.Context) error {
	results := make(chan connResult, 1)
	go func() {
		conn, err := nats.Connect(c.url, c.connectOptions()...)
		if err != nil {
			results <- connResult{err: err}
			return
		}
		js, err := jetstream.New(conn)
		if err != nil {
			conn.Close()
			results <- connResult{err: err}
			return
		}
		results <- connResult{conn: conn, js: js}
	}()

	select {
	case res := <-results:
		if res.err != nil {
			return errors.WrapTransient(res.err, "Client", "Connect", "establish connection")
		}
		c.mu.Lock()
		c.conn = res.conn
		c.js = res.js
		c.mu.Unlock()
	case <-ctx.Done():
		// The dial may still succeed after this returns; reap it so no
		// connection outlives the failed Connect.
		go func() {
			if res := <-results; res.conn != nil {
				res.conn.Close()
			}
		}()
		return errors.WrapTransient(ctx.Err(), "Client", "Connect", "connection cancelled")
	}

	c.logger.Info("connected to NATS", "url", c.url)
	return nil
}

// Connected reports whether the underlying connection is currently up.
func (c *Client) Connected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn != nil && c.conn.IsConnected()
}

// EnsureStream creates the stream or updates it to the given configuration.
func (c *Client) EnsureStream(ctx context.Context, cfg jetstream.StreamConfig) (jetstream.Stream, error) {
	c.mu.RLock()
	js := c.js
	c.mu.RUnlock()
	if js == nil {
		return nil, errors.Wrap(errors.ErrNotStarted, "Client", "EnsureStream", "get JetStream context")
	}

	stream, err := js.CreateOrUpdateStream(ctx, cfg)
	if err != nil {
		return nil, errors.WrapTransient(err, "Client", "EnsureStream", "create or update stream")
	}
	return stream, nil
}

// Publish writes a message through JetStream and waits for the ack.
func (c *Client) Publish(ctx context.Context, subject string, data []byte) error {
	c.mu.RLock()
	js := c.js
	c.mu.RUnlock()
	if js == nil {
		return errors.Wrap(errors.ErrNotStarted, "Client", "Publish", "get JetStream context")
	}

	if _, err := js.Publish(ctx, subject, data); err != nil {
		return errors.WrapTransient(err, "Client", "Publish", "publish message")
	}
	return nil
}

// Close drains and closes the connection. Safe to call when never
// connected.
func (c *Client) Close() {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.js = nil
	c.mu.Unlock()

	if conn == nil {
		return
	}
	if err := conn.Drain(); err != nil {
		conn.Close()
	}
}
