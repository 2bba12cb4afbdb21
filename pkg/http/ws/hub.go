package ws

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

var (
	ErrConnectionNotFound = errors.New("connection not found")
	ErrConnectionClosed   = errors.New("connection closed")
	ErrSendQueueFull      = errors.New("send queue full")
)

// Hub manages WebSocket connections and routes generation-progress pushes to
// the users watching an exam.
type Hub struct {
	mu          sync.RWMutex
	connections map[uuid.UUID]*Connection // user_id -> connection
	watchers    map[uuid.UUID][]uuid.UUID // exam_id -> []user_id
	logger      zerolog.Logger
}

// NewHub creates a new WebSocket hub.
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		connections: make(map[uuid.UUID]*Connection),
		watchers:    make(map[uuid.UUID][]uuid.UUID),
		logger:      logger,
	}
}

// RegisterConnection adds a connection for a user, closing any previous one.
func (h *Hub) RegisterConnection(userID uuid.UUID, conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if old, exists := h.connections[userID]; exists {
		old.Close()
	}
	h.connections[userID] = conn
	h.logger.Info().Str("user_id", userID.String()).Msg("connection registered")
}

// UnregisterConnection removes the caller's connection and its exam
// subscriptions. A no-op when a reconnect has already replaced conn in the
// map; the replacement keeps its registration and watches.
func (h *Hub) UnregisterConnection(userID uuid.UUID, conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	current, exists := h.connections[userID]
	if !exists || current != conn {
		return
	}
	current.Close()
	delete(h.connections, userID)
	h.logger.Info().Str("user_id", userID.String()).Msg("connection unregistered")

	for examID, users := range h.watchers {
		for i, uid := range users {
			if uid == userID {
				h.watchers[examID] = append(users[:i], users[i+1:]...)
				break
			}
		}
	}
}

// WatchExam subscribes a user to progress pushes for an exam.
func (h *Hub) WatchExam(examID, userID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	users := h.watchers[examID]
	for _, uid := range users {
		if uid == userID {
			return
		}
	}
	h.watchers[examID] = append(users, userID)
}

// UnwatchExam removes a user's subscription for an exam.
func (h *Hub) UnwatchExam(examID, userID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	users := h.watchers[examID]
	for i, uid := range users {
		if uid == userID {
			h.watchers[examID] = append(users[:i], users[i+1:]...)
			break
		}
	}
}

// BroadcastToExam sends a message to every user watching an exam.
func (h *Hub) BroadcastToExam(examID uuid.UUID, msg Message) error {
	h.mu.RLock()
	users := append([]uuid.UUID(nil), h.watchers[examID]...)
	h.mu.RUnlock()

	var firstErr error
	for _, userID := range users {
		if err := h.SendToUser(userID, msg); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// SendToUser delivers a message to a specific user.
func (h *Hub) SendToUser(userID uuid.UUID, msg Message) error {
	h.mu.RLock()
	conn, exists := h.connections[userID]
	h.mu.RUnlock()

	if !exists {
		return ErrConnectionNotFound
	}
	return conn.Send(msg)
}

// Connection represents a WebSocket connection with a buffered send queue.
type Connection struct {
	conn   *websocket.Conn
	sendCh chan Message
	mu     sync.Mutex
	closed bool
	logger zerolog.Logger
}

// NewConnection wraps a WebSocket connection.
func NewConnection(conn *websocket.Conn, logger zerolog.Logger) *Connection {
	return &Connection{
		conn:   conn,
		sendCh: make(chan Message, 64),
		logger: logger,
	}
}

// Send queues a message for delivery. Non-blocking: a full queue drops the
// message with an error rather than stalling the broadcaster.
func (c *Connection) Send(msg Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrConnectionClosed
	}

	select {
	case c.sendCh <- msg:
		return nil
	default:
		return ErrSendQueueFull
	}
}

// Close shuts down the connection.
func (c *Connection) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	close(c.sendCh)
	c.conn.Close()
}

// WritePump sends queued messages until the connection closes.
func (c *Connection) WritePump() {
	defer c.conn.Close()

	for msg := range c.sendCh {
		c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := c.conn.WriteJSON(msg); err != nil {
			c.logger.Warn().Err(err).Msg("websocket write failed")
			return
		}
	}
}

// ReadMessage reads one protocol message from the socket.
func (c *Connection) ReadMessage() (Message, error) {
	var msg Message
	err := c.conn.ReadJSON(&msg)
	return msg, err
}
