package websocket

import (
	"context"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vanshmadan/gke-connect/internal/models"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Default ping period; pongs are awaited for a little longer.
	defaultPingPeriod = 30 * time.Second

	// Subscribers only send control frames; anything larger is a misbehaving peer.
	maxMessageSize = 4 * 1024
)

// Client is one WebSocket subscriber to a namespace topology stream.
type Client struct {
	conn *websocket.Conn
	hub  *Hub

	// Cancelled when the peer goes away or the hub stops; ends the stream.
	ctx    context.Context
	cancel context.CancelFunc

	id         string
	namespace  string
	pingPeriod time.Duration
	logger     *slog.Logger
}

// NewClient creates a client whose context is derived from the hub's.
func NewClient(hub *Hub, conn *websocket.Conn, id, namespace string, pingPeriod time.Duration, logger *slog.Logger) *Client {
	if pingPeriod <= 0 {
		pingPeriod = defaultPingPeriod
	}
	if logger == nil {
		logger = slog.Default()
	}
	clientCtx, cancel := context.WithCancel(hub.Context())
	return &Client{
		conn:       conn,
		hub:        hub,
		ctx:        clientCtx,
		cancel:     cancel,
		id:         id,
		namespace:  namespace,
		pingPeriod: pingPeriod,
		logger:     logger.With("client_id", id, "namespace", namespace),
	}
}

// Context ends when the client disconnects.
func (c *Client) Context() context.Context {
	return c.ctx
}

func (c *Client) pongWait() time.Duration {
	return c.pingPeriod * 10 / 9
}

// ReadPump consumes control frames until the peer disconnects, then cancels the
// client context so the stream behind it stops.
func (c *Client) ReadPump() {
	defer func() {
		c.cancel()
		c.hub.Unregister(c)
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.pongWait()))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.pongWait()))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn("websocket read failed", "error", err)
			}
			return
		}
		// Subscriptions are fixed by the URL; data frames from the peer are ignored.
	}
}

// WritePump writes one JSON text frame per stream message and pings the peer.
// When messages is closed it sends a close frame and closes the connection.
func (c *Client) WritePump(messages <-chan models.StreamMessage) {
	ticker := time.NewTicker(c.pingPeriod)
	defer func() {
		ticker.Stop()
		c.cancel()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-messages:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				c.logger.Debug("websocket write failed", "error", err)
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

// Close cancels the client's stream.
func (c *Client) Close() {
	c.cancel()
}
