// Package stream maintains the websocket connection to the push feed and
// hands each inbound message to a handler in arrival order.
package stream

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/couchcryptid/vigil-feed-service/internal/observability"
)

const (
	reconnectBaseDelay = 1 * time.Second
	writeTimeout       = 10 * time.Second
	pongTimeout        = 60 * time.Second
	pingInterval       = 30 * time.Second
	handshakeTimeout   = 10 * time.Second
)

// DefaultReconnectMax caps the delay between reconnection attempts.
const DefaultReconnectMax = 30 * time.Second

// State is the connection lifecycle position.
type State int32

const (
	Disconnected State = iota
	Connecting
	Connected
	Reconnecting
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Reconnecting:
		return "reconnecting"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Handler consumes one raw message. It is called from a single goroutine and
// the next message is not read until it returns. Returned errors are
// considered already reported and never drop the connection.
type Handler interface {
	HandleMessage(ctx context.Context, data []byte) error
}

// Client keeps one websocket connection open, redialing with exponential
// backoff whenever it drops.
type Client struct {
	url       string
	handler   Handler
	dialer    *websocket.Dialer
	baseDelay time.Duration
	maxDelay  time.Duration
	logger    *slog.Logger
	metrics   *observability.Metrics
	state     atomic.Int32
}

// NewClient creates a client for the given ws:// or wss:// URL.
func NewClient(url string, h Handler, reconnectMax time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Client {
	if reconnectMax <= 0 {
		reconnectMax = DefaultReconnectMax
	}
	return &Client{
		url:       url,
		handler:   h,
		dialer:    &websocket.Dialer{HandshakeTimeout: handshakeTimeout},
		baseDelay: reconnectBaseDelay,
		maxDelay:  reconnectMax,
		logger:    logger,
		metrics:   metrics,
	}
}

// State reports the current lifecycle position.
func (c *Client) State() State {
	return State(c.state.Load())
}

// Status reports the lifecycle position by name.
func (c *Client) Status() string {
	return c.State().String()
}

// CheckConnected returns nil while a connection is open.
func (c *Client) CheckConnected(_ context.Context) error {
	if s := c.State(); s != Connected {
		return fmt.Errorf("stream %s", s)
	}
	return nil
}

// Run connects and reads until ctx is cancelled. Disconnects are never
// fatal; the client backs off and redials. The connection is closed on every
// exit path.
func (c *Client) Run(ctx context.Context) error {
	defer c.setState(Disconnected)
	c.logger.Info("stream client started", "url", c.url)

	delay := c.baseDelay
	for {
		if ctx.Err() != nil {
			c.logger.Info("stream client stopping", "reason", ctx.Err())
			return nil
		}

		connected, err := c.connect(ctx)
		if ctx.Err() != nil {
			c.logger.Info("stream client stopping", "reason", ctx.Err())
			return nil
		}
		if connected {
			delay = c.baseDelay
		}

		c.setState(Reconnecting)
		c.metrics.StreamReconnects.Inc()
		c.logger.Warn("stream disconnected", "error", err, "retry_in", delay)
		if !sleepWithContext(ctx, delay) {
			c.logger.Info("stream client stopping", "reason", ctx.Err())
			return nil
		}
		delay = nextBackoff(delay, c.maxDelay)
	}
}

// connect dials once and reads until the connection fails. It reports
// whether the handshake succeeded.
func (c *Client) connect(ctx context.Context) (bool, error) {
	c.setState(Connecting)
	connID := uuid.NewString()
	logger := c.logger.With("conn_id", connID)

	conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return false, fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()
	// Unblocks ReadMessage when ctx is cancelled.
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	c.setState(Connected)
	logger.Info("stream connected")

	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongTimeout))
	})
	if err := conn.SetReadDeadline(time.Now().Add(pongTimeout)); err != nil {
		return true, err
	}

	pingCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go pingLoop(pingCtx, conn)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return true, fmt.Errorf("read: %w", err)
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongTimeout))
		if herr := c.handler.HandleMessage(ctx, data); herr != nil && ctx.Err() != nil {
			return true, herr
		}
	}
}

func (c *Client) setState(s State) {
	prev := State(c.state.Swap(int32(s)))
	if prev == s {
		return
	}
	if s == Connected {
		c.metrics.StreamConnected.Set(1)
	} else if prev == Connected {
		c.metrics.StreamConnected.Set(0)
	}
}

// pingLoop sends periodic pings until ctx is cancelled or a write fails.
func pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				return
			}
		}
	}
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
