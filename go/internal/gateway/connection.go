package gateway

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/chainwatch/go/internal/models"
)

// Connection represents a WebSocket connection to a client
type Connection struct {
	ID      string
	Session *models.Session // nil for anonymous connections
	Conn    *websocket.Conn
	Send    chan []byte

	ConnectedAt time.Time

	hub    *Hub
	config ConnectionConfig

	mu     sync.Mutex
	closed bool
}

func newConnection(ws *websocket.Conn, session *models.Session, hub *Hub, config ConnectionConfig) *Connection {
	return &Connection{
		ID:          uuid.New().String(),
		Session:     session,
		Conn:        ws,
		Send:        make(chan []byte, config.SendBufferSize),
		ConnectedAt: time.Now(),
		hub:         hub,
		config:      config,
	}
}

// Authenticated reports whether the connection resolved to a session
func (c *Connection) Authenticated() bool {
	return c.Session != nil
}

// FactionID returns the session's faction, or 0 for anonymous connections
func (c *Connection) FactionID() int64 {
	if c.Session == nil {
		return 0
	}
	return c.Session.FactionID
}

// enqueue hands msg to the write pump without blocking.
// It reports false when the buffer is full or the connection is closing.
func (c *Connection) enqueue(msg []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}
	select {
	case c.Send <- msg:
		return true
	default:
		return false
	}
}

// closeSend stops delivery; the write pump drains what is queued and exits
func (c *Connection) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.Send)
	}
}

func (c *Connection) start() {
	go c.writePump()
	go c.readPump()
}

// writePump handles sending messages to the WebSocket connection
func (c *Connection) writePump() {
	ticker := time.NewTicker(c.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Debug().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to write message to WebSocket")
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Debug().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to send ping")
				return
			}
		}
	}
}

// readPump applies client messages in arrival order until the socket fails
func (c *Connection) readPump() {
	defer func() {
		c.hub.Close(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Warn().
					Err(err).
					Str("connection_id", c.ID).
					Msg("unexpected WebSocket close error")
			}
			return
		}

		c.hub.HandleMessage(c, message)
		c.Conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
	}
}
