// internal/portal/client.go
package portal

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gorilla/websocket"
	"github.com/mhatey/PumpFun-Pump-Portal/internal/events"
	"go.uber.org/zap"
)

const (
	dialTimeout    = 10 * time.Second
	writeTimeout   = 5 * time.Second
	readTimeout    = 90 * time.Second
	initialBackoff = 200 * time.Millisecond
	maxBackoff     = 30 * time.Second
	eventBuffer    = 256
)

// Client maintains the PumpPortal websocket stream and turns raw frames into
// typed market events. It reconnects with exponential backoff and replays
// all subscriptions (new-token plus every watched mint) after a reconnect.
type Client struct {
	url    string
	logger *zap.Logger
	events chan events.Event

	mu      sync.Mutex
	conn    *websocket.Conn
	watched map[string]struct{}
}

func NewClient(url string, logger *zap.Logger) *Client {
	return &Client{
		url:     url,
		logger:  logger.Named("portal"),
		events:  make(chan events.Event, eventBuffer),
		watched: make(map[string]struct{}),
	}
}

// Events returns the typed event stream. The channel is closed when Run
// returns.
func (c *Client) Events() <-chan events.Event {
	return c.events
}

// WatchToken subscribes to the trade stream for a mint. Watched mints are
// remembered and re-subscribed after reconnects.
func (c *Client) WatchToken(mint string) {
	c.mu.Lock()
	if _, ok := c.watched[mint]; ok {
		c.mu.Unlock()
		return
	}
	c.watched[mint] = struct{}{}
	conn := c.conn
	c.mu.Unlock()

	if conn != nil {
		if err := c.send(conn, subscribeRequest{Method: methodSubscribeTokenTrade, Keys: []string{mint}}); err != nil {
			c.logger.Warn("Trade subscribe failed, will replay after reconnect",
				zap.String("mint", mint), zap.Error(err))
		}
	}
}

// UnwatchToken drops the trade subscription for a mint.
func (c *Client) UnwatchToken(mint string) {
	c.mu.Lock()
	delete(c.watched, mint)
	conn := c.conn
	c.mu.Unlock()

	if conn != nil {
		if err := c.send(conn, subscribeRequest{Method: methodUnsubscribeTokenTrade, Keys: []string{mint}}); err != nil {
			c.logger.Warn("Trade unsubscribe failed",
				zap.String("mint", mint), zap.Error(err))
		}
	}
}

// Run drives the connect/read/reconnect loop until the context is cancelled.
func (c *Client) Run(ctx context.Context) error {
	defer close(c.events)

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = initialBackoff
	policy.MaxInterval = maxBackoff

	notify := func(err error, wait time.Duration) {
		c.logger.Warn("Stream connect failed, retrying",
			zap.Error(err),
			zap.Duration("backoff", wait))
	}

	for {
		connect := func() (*websocket.Conn, error) {
			return c.connect(ctx)
		}
		conn, err := backoff.Retry(ctx, connect,
			backoff.WithBackOff(policy),
			backoff.WithNotify(notify))
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("connect to portal: %w", err)
		}
		policy.Reset()

		c.mu.Lock()
		c.conn = conn
		c.mu.Unlock()

		err = c.readLoop(ctx, conn)
		_ = conn.Close()

		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()

		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.logger.Warn("Stream disconnected, reconnecting", zap.Error(err))
	}
}

func (c *Client) connect(ctx context.Context) (*websocket.Conn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", c.url, err)
	}

	if err := c.resubscribe(conn); err != nil {
		_ = conn.Close()
		return nil, err
	}

	c.logger.Info("Connected to portal stream", zap.String("url", c.url))
	return conn, nil
}

func (c *Client) resubscribe(conn *websocket.Conn) error {
	if err := c.send(conn, subscribeRequest{Method: methodSubscribeNewToken}); err != nil {
		return err
	}

	c.mu.Lock()
	mints := make([]string, 0, len(c.watched))
	for mint := range c.watched {
		mints = append(mints, mint)
	}
	c.mu.Unlock()

	if len(mints) == 0 {
		return nil
	}
	return c.send(conn, subscribeRequest{Method: methodSubscribeTokenTrade, Keys: mints})
}

func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) error {
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readTimeout))
	})

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := conn.SetReadDeadline(time.Now().Add(readTimeout)); err != nil {
			return err
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var f frame
		if err := json.Unmarshal(data, &f); err != nil {
			c.logger.Debug("Discarding undecodable frame", zap.Error(err))
			continue
		}

		ev := f.toEvent(time.Now())
		if ev == nil {
			continue
		}

		select {
		case c.events <- ev:
		case <-ctx.Done():
			return ctx.Err()
		default:
			c.logger.Warn("Event buffer full, dropping event",
				zap.String("mint", ev.EventMint()))
		}
	}
}

func (c *Client) send(conn *websocket.Conn, req subscribeRequest) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	if err := conn.WriteJSON(req); err != nil {
		return fmt.Errorf("send %s: %w", req.Method, err)
	}
	return nil
}
