package gateway

import (
	"context"
	"sync"
	"time"

	"auction-engine/utils"

	"github.com/gorilla/websocket"
)

// Settings tune the websocket connections
type Settings struct {
	SendBuffer     int
	WriteWait      time.Duration
	PongWait       time.Duration
	MaxMessageSize int64
	AllowedOrigins []string
}

// DefaultSettings returns the settings used when none are configured
func DefaultSettings() Settings {
	return Settings{
		SendBuffer:     256,
		WriteWait:      10 * time.Second,
		PongWait:       60 * time.Second,
		MaxMessageSize: 4096,
	}
}

func (s Settings) pingPeriod() time.Duration {
	return (s.PongWait * 9) / 10
}

// Client is a Peer backed by a gorilla websocket connection
type Client struct {
	id         string
	conn       *websocket.Conn
	gateway    *Gateway
	dispatcher *Dispatcher
	settings   Settings

	mu     sync.Mutex
	closed bool
	send   chan []byte
}

// NewClient wraps an upgraded connection
func NewClient(id string, conn *websocket.Conn, gateway *Gateway, dispatcher *Dispatcher, settings Settings) *Client {
	return &Client{
		id:         id,
		conn:       conn,
		gateway:    gateway,
		dispatcher: dispatcher,
		settings:   settings,
		send:       make(chan []byte, settings.SendBuffer),
	}
}

// ID returns the connection id
func (c *Client) ID() string { return c.id }

// Deliver queues a frame without blocking
func (c *Client) Deliver(frame []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrPeerClosed
	}
	select {
	case c.send <- frame:
		return nil
	default:
		return ErrSlowPeer
	}
}

// Close stops the write pump, which closes the socket. Safe to call more than once.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// Run starts both pumps and blocks until the connection ends
func (c *Client) Run(ctx context.Context) {
	go c.writePump()
	c.readPump(ctx)
}

// readPump dispatches inbound frames. Any read error ends the session and
// disconnects the client from the gateway.
func (c *Client) readPump(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer func() {
		cancel()
		c.gateway.Disconnect(c.id)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(c.settings.MaxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.settings.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.settings.PongWait))
	})

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				utils.Warn("client: connection dropped", map[string]any{"connection_id": c.id, "error": err.Error()})
			}
			return
		}
		c.dispatcher.Dispatch(ctx, c.id, frame)
	}
}

// writePump writes queued frames and keeps the connection alive with pings.
// Each frame is written as its own text message.
func (c *Client) writePump() {
	ticker := time.NewTicker(c.settings.pingPeriod())
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.settings.WriteWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				utils.Warn("client: write failed", map[string]any{"connection_id": c.id, "error": err.Error()})
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.settings.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
