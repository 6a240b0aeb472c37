package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Connection wraps a gorilla WebSocket connection behind the
// interfaces.Connection contract. All writes funnel through a single writer
// goroutine; gorilla connections do not allow concurrent writers.
type Connection struct {
	conn      *websocket.Conn
	writeCh   chan []byte
	sessionID string
	pseudo    string
	roomName  string
	joined    bool
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
	mu        sync.RWMutex // protects identity fields
}

// NewConnection wraps an upgraded WebSocket connection and starts its writer.
func NewConnection(conn *websocket.Conn, bufferSize int) *Connection {
	if bufferSize <= 0 {
		bufferSize = 100
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &Connection{
		conn:    conn,
		writeCh: make(chan []byte, bufferSize),
		ctx:     ctx,
		cancel:  cancel,
	}

	go c.writeLoop()

	return c
}

// writeLoop is the sole writer. The channel is never closed; when the loop
// exits it cancels the context so pending and future WriteJSON calls fail
// with ErrConnectionClosed instead of racing a closed channel.
func (c *Connection) writeLoop() {
	defer c.cancel()

	for {
		select {
		case data := <-c.writeCh:
			if err := c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-c.ctx.Done():
			return
		}
	}
}

// WriteJSON queues a JSON message for delivery. Safe for concurrent use.
func (c *Connection) WriteJSON(v interface{}) error {
	select {
	case <-c.ctx.Done():
		return ErrConnectionClosed
	default:
	}

	data, err := json.Marshal(v)
	if err != nil {
		return ErrInvalidJSON
	}

	select {
	case c.writeCh <- data:
		return nil
	case <-time.After(5 * time.Second):
		return ErrWriteTimeout
	case <-c.ctx.Done():
		return ErrConnectionClosed
	}
}

// Close tears down the connection. Idempotent.
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		if c.conn != nil {
			err = c.conn.Close()
		}
	})
	return err
}

// SetIdentity records the session identity after a valid join request.
func (c *Connection) SetIdentity(sessionID, pseudo, roomName string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.sessionID = sessionID
	c.pseudo = pseudo
	c.roomName = roomName
	c.joined = true
	return nil
}

// IsJoined reports whether the join handshake completed.
func (c *Connection) IsJoined() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.joined
}

// GetSessionID returns the server-assigned session id.
func (c *Connection) GetSessionID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sessionID
}

// GetPseudo returns the display name from the join request.
func (c *Connection) GetPseudo() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.pseudo
}

// GetRoomName returns the joined room's raw name.
func (c *Connection) GetRoomName() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.roomName
}
