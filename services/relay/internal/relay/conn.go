package relay

import (
	"context"
	"sync"
	"time"

	"github.com/appetiteclub/apt"
	"github.com/gorilla/websocket"
)

const (
	writeWait     = 10 * time.Second
	pongWait      = 60 * time.Second
	pingPeriod    = (pongWait * 9) / 10
	maxFrameBytes = 1 << 20
)

// wsClient adapts one WebSocket connection to the hub. Frames queued by the
// hub are written by writePump; readPump feeds inbound frames to the hub.
type wsClient struct {
	id     string
	conn   *websocket.Conn
	hub    *Hub
	logger apt.Logger

	mu     sync.Mutex
	send   chan []byte
	closed bool
}

func newWSClient(id string, conn *websocket.Conn, hub *Hub, buffer int, logger apt.Logger) *wsClient {
	if buffer <= 0 {
		buffer = defaultSendBuffer
	}
	return &wsClient{
		id:     id,
		conn:   conn,
		hub:    hub,
		logger: logger,
		send:   make(chan []byte, buffer),
	}
}

func (c *wsClient) ID() string {
	return c.id
}

// Send queues frame without blocking. A closed client or a full queue
// skips the frame for this client only.
func (c *wsClient) Send(frame []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

// Close stops the writer and tears down the socket, which ends readPump.
func (c *wsClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// serve registers the client, then runs both pumps until the peer goes away.
func (c *wsClient) serve(ctx context.Context) {
	go c.writePump()

	if err := c.hub.Register(ctx, c); err != nil {
		c.logger.Error("cannot register client", "client_id", c.id, "error", err)
		c.Close()
		return
	}

	c.readPump(ctx)
}

func (c *wsClient) readPump(ctx context.Context) {
	defer func() {
		c.hub.Unregister(c.id)
		c.Close()
	}()

	c.conn.SetReadLimit(maxFrameBytes)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		kind, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				c.logger.Debug("client read failed", "client_id", c.id, "error", err)
			}
			return
		}
		if kind != websocket.TextMessage {
			c.logger.Debug("frame dropped", "origin", c.id, "reason", "non-text frame")
			continue
		}
		if err := c.hub.Submit(ctx, c.id, data); err != nil {
			return
		}
	}
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.logger.Debug("client write failed", "client_id", c.id, "error", err)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
