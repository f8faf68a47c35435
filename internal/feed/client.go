// Package feed implements the client side of the upstream trade feed: one
// WebSocket subscription per process, message decode and validation, and a
// short-window signature dedup in front of storage.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"solana-copysim/internal/dedup"
	"solana-copysim/internal/domain"
	"solana-copysim/internal/observability"
)

// subscribeMethod names the account-trade subscription channel.
const subscribeMethod = "subscribeAccountTrade"

// ErrNotConnected is returned by Receive before ConnectAndSubscribe.
var ErrNotConnected = errors.New("feed: not connected")

// ClientConfig configures feed client behavior.
type ClientConfig struct {
	// HandshakeTimeout bounds the WebSocket dial.
	HandshakeTimeout time.Duration
	// WriteTimeout bounds the subscription write.
	WriteTimeout time.Duration
	// DedupCapacity is the size of the signature suppression window.
	DedupCapacity int
}

// DefaultClientConfig returns default feed client configuration.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     10 * time.Second,
		DedupCapacity:    dedup.DefaultCapacity,
	}
}

// Client reads trade events for tracked wallets from the upstream feed.
// It owns the dedup ring; the store's unique signature index backs it up.
// Reconnecting is the caller's job: any transport error from Receive means
// the connection is gone and ConnectAndSubscribe must be called again.
type Client struct {
	url    string
	config ClientConfig
	logger *log.Logger

	connMu sync.Mutex
	conn   *websocket.Conn

	ring *dedup.Ring
	now  func() time.Time
}

// NewClient creates a feed client for the given endpoint. A nil config
// uses DefaultClientConfig; a nil logger uses log.Default().
func NewClient(url string, config *ClientConfig, logger *log.Logger) *Client {
	cfg := DefaultClientConfig()
	if config != nil {
		cfg = *config
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Client{
		url:    url,
		config: cfg,
		logger: logger,
		ring:   dedup.NewRing(cfg.DedupCapacity),
		now:    time.Now,
	}
}

// ConnectAndSubscribe dials the feed and sends the account-trade
// subscription for the tracked wallets. Any previous connection is
// discarded first. The dedup window survives reconnects so replayed
// frames after a resubscribe stay suppressed.
func (c *Client) ConnectAndSubscribe(ctx context.Context, wallets []string) error {
	c.closeConn()

	dialer := websocket.Dialer{HandshakeTimeout: c.config.HandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	conn.SetWriteDeadline(c.now().Add(c.config.WriteTimeout))
	if err := conn.WriteJSON(subscribeRequest{Method: subscribeMethod, Keys: wallets}); err != nil {
		conn.Close()
		return fmt.Errorf("write subscribe: %w", err)
	}

	c.connMu.Lock()
	c.conn = conn
	c.connMu.Unlock()

	c.logger.Printf("[feed] subscribed to trades of %d wallets", len(wallets))
	return nil
}

// Receive reads one frame and maps it to a TradeEvent. It returns
// (nil, nil) for frames that carry nothing actionable: subscription acks,
// messages missing required fields, unparseable amounts, and signatures
// already inside the dedup window. A transport error means the connection
// is dead and the caller must reconnect.
func (c *Client) Receive(ctx context.Context) (*domain.TradeEvent, error) {
	conn := c.currentConn()
	if conn == nil {
		return nil, ErrNotConnected
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Fail the blocked read promptly when ctx is canceled.
	stop := context.AfterFunc(ctx, func() {
		conn.SetReadDeadline(c.now())
	})
	defer stop()

	_, data, err := conn.ReadMessage()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("read frame: %w", err)
	}

	return c.decode(data)
}

// decode turns one frame into an event, or (nil, nil) when the frame is
// dropped. Drops are counted and logged; duplicates are counted silently.
func (c *Client) decode(data []byte) (*domain.TradeEvent, error) {
	var msg tradeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		observability.RecordEventDropped()
		c.logger.Printf("[feed] drop undecodable message: %v", err)
		return nil, nil
	}

	// Frames without a signature are service messages, not trades.
	if msg.Signature == "" {
		return nil, nil
	}
	observability.RecordEventReceived()

	if !msg.hasRequiredFields() {
		observability.RecordEventDropped()
		c.logger.Printf("[feed] drop message %s: missing required fields", msg.Signature)
		return nil, nil
	}

	if c.ring.Contains(msg.Signature) {
		observability.RecordEventDeduped()
		return nil, nil
	}

	event, err := msg.toEvent(c.now())
	if err != nil {
		observability.RecordEventDropped()
		c.logger.Printf("[feed] drop message %s: %v", msg.Signature, err)
		return nil, nil
	}

	c.ring.Add(msg.Signature)
	return event, nil
}

// Close tears down the current connection. Safe to call repeatedly.
func (c *Client) Close() error {
	c.closeConn()
	return nil
}

func (c *Client) closeConn() {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	if c.conn != nil {
		c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.conn.Close()
		c.conn = nil
	}
}

func (c *Client) currentConn() *websocket.Conn {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	return c.conn
}
