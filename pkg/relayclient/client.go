// Package relayclient is a producer/consumer client for the relay socket.
// It reconnects with backoff and keeps undeliverable frames in a bounded
// queue that is flushed once the socket is back.
package relayclient

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/canteen/pkg/event"
	"github.com/gorilla/websocket"
)

const (
	defaultQueueSize  = 256
	defaultFrameQueue = 256
	defaultMinBackoff = 1 * time.Second
	defaultMaxBackoff = 30 * time.Second
	writeWait         = 10 * time.Second
)

// Config configures a Client. Zero values fall back to defaults.
type Config struct {
	URL        string
	QueueSize  int
	MinBackoff time.Duration
	MaxBackoff time.Duration
}

// Client holds one logical connection to the relay across reconnects.
type Client struct {
	cfg    Config
	dialer *websocket.Dialer
	logger apt.Logger

	mu        sync.Mutex
	outbox    [][]byte
	connected bool
	dropped   int

	wake   chan struct{}
	frames chan event.Envelope

	startOnce sync.Once
	cancel    context.CancelFunc
	done      chan struct{}
}

func NewClient(cfg Config, logger apt.Logger) *Client {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultQueueSize
	}
	if cfg.MinBackoff <= 0 {
		cfg.MinBackoff = defaultMinBackoff
	}
	if cfg.MaxBackoff < cfg.MinBackoff {
		cfg.MaxBackoff = defaultMaxBackoff
		if cfg.MaxBackoff < cfg.MinBackoff {
			cfg.MaxBackoff = cfg.MinBackoff
		}
	}
	return &Client{
		cfg:    cfg,
		dialer: websocket.DefaultDialer,
		logger: logger,
		wake:   make(chan struct{}, 1),
		frames: make(chan event.Envelope, defaultFrameQueue),
		done:   make(chan struct{}),
	}
}

// Frames delivers every frame the relay sends, snapshots included. It is
// closed after Stop.
func (c *Client) Frames() <-chan event.Envelope {
	return c.frames
}

// Connected reports whether a socket is currently open.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Pending returns the number of frames waiting for a socket.
func (c *Client) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.outbox)
}

// Send encodes a producer frame and queues it. When the queue is full the
// oldest frame is dropped.
func (c *Client) Send(msgType string, payload any) error {
	if !event.IsProducerType(msgType) {
		return fmt.Errorf("%s is not a producer message type", msgType)
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("cannot encode %s payload: %w", msgType, err)
	}
	frame, err := json.Marshal(event.Envelope{Type: msgType, Payload: body})
	if err != nil {
		return fmt.Errorf("cannot encode %s frame: %w", msgType, err)
	}

	c.enqueue(frame)
	return nil
}

func (c *Client) enqueue(frame []byte) {
	c.mu.Lock()
	if len(c.outbox) >= c.cfg.QueueSize {
		c.outbox = c.outbox[1:]
		c.dropped++
		c.logger.Info("relay outbox full, dropping oldest frame", "dropped", c.dropped)
	}
	c.outbox = append(c.outbox, frame)
	c.mu.Unlock()

	select {
	case c.wake <- struct{}{}:
	default:
	}
}

func (c *Client) pop() ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.outbox) == 0 {
		return nil, false
	}
	frame := c.outbox[0]
	c.outbox = c.outbox[1:]
	return frame, true
}

// requeue puts back a frame whose write failed, unless newer frames already
// filled the queue.
func (c *Client) requeue(frame []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.outbox) >= c.cfg.QueueSize {
		c.dropped++
		return
	}
	c.outbox = append([][]byte{frame}, c.outbox...)
}

func (c *Client) setConnected(v bool) {
	c.mu.Lock()
	c.connected = v
	c.mu.Unlock()
}

// Start connects in the background; it never blocks on the relay.
func (c *Client) Start(ctx context.Context) error {
	c.startOnce.Do(func() {
		runCtx, cancel := context.WithCancel(context.Background())
		c.cancel = cancel
		go c.connectWithRetry(runCtx)
	})
	return nil
}

// Stop closes the socket and the Frames channel. Queued frames are discarded.
func (c *Client) Stop(ctx context.Context) error {
	if c.cancel == nil {
		return nil
	}
	c.cancel()
	select {
	case <-c.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client) connectWithRetry(ctx context.Context) {
	defer close(c.done)
	defer close(c.frames)

	backoff := c.cfg.MinBackoff

	for {
		if ctx.Err() != nil {
			return
		}

		conn, _, err := c.dialer.DialContext(ctx, c.cfg.URL, nil)
		if err != nil {
			c.logger.Error("cannot connect to relay", "url", c.cfg.URL, "error", err, "retry_in", backoff)
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > c.cfg.MaxBackoff {
				backoff = c.cfg.MaxBackoff
			}
			continue
		}

		c.logger.Info("connected to relay", "url", c.cfg.URL)
		backoff = c.cfg.MinBackoff

		c.session(ctx, conn)

		if ctx.Err() != nil {
			return
		}
		c.logger.Info("relay connection lost, reconnecting", "url", c.cfg.URL)
	}
}

// session runs one socket until it fails or ctx ends. Reads happen on a
// separate goroutine; this one flushes the outbox.
func (c *Client) session(ctx context.Context, conn *websocket.Conn) {
	c.setConnected(true)
	defer c.setConnected(false)

	readDone := make(chan struct{})
	go c.readLoop(ctx, conn, readDone)

	defer func() {
		_ = conn.Close()
		<-readDone
	}()

	if err := c.flush(conn); err != nil {
		c.logger.Debug("relay write failed", "error", err)
		return
	}

	for {
		select {
		case <-ctx.Done():
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case <-readDone:
			return
		case <-c.wake:
			if err := c.flush(conn); err != nil {
				c.logger.Debug("relay write failed", "error", err)
				return
			}
		}
	}
}

func (c *Client) flush(conn *websocket.Conn) error {
	for {
		frame, ok := c.pop()
		if !ok {
			return nil
		}
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
			c.requeue(frame)
			return err
		}
	}
}

func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var env event.Envelope
		if err := json.Unmarshal(data, &env); err != nil || env.Type == "" {
			c.logger.Debug("ignoring relay frame", "reason", "malformed")
			continue
		}

		select {
		case c.frames <- env:
		case <-ctx.Done():
			return
		default:
			c.logger.Info("frames channel full, dropping relay frame", "type", env.Type)
		}
	}
}
