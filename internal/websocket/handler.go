package websocket

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"chatcam/internal/hub"
	"chatcam/pkg/types"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// Allow all origins; the PWA is served from a different host than
		// the relay. Deployments needing stricter policy front this with a
		// proxy.
		return true
	},
	HandshakeTimeout: 10 * time.Second,
}

// Handler upgrades HTTP requests to WebSocket sessions and drives their
// lifecycle: join handshake, read pump, leave/disconnect cleanup.
type Handler struct {
	hub        *hub.Hub
	bufferSize int

	pingInterval time.Duration
	readTimeout  time.Duration
}

// NewHandler creates a WebSocket handler.
func NewHandler(h *hub.Hub, bufferSize int, pingInterval, readTimeout time.Duration) *Handler {
	if pingInterval <= 0 {
		pingInterval = 30 * time.Second
	}
	if readTimeout <= 0 {
		readTimeout = 60 * time.Second
	}
	return &Handler{
		hub:          h,
		bufferSize:   bufferSize,
		pingInterval: pingInterval,
		readTimeout:  readTimeout,
	}
}

// HandleWebSocket upgrades the request and runs the session. The first client
// frame must be a join request { pseudo, roomName }; everything after that is
// message envelopes.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	wsConn := NewConnection(conn, h.bufferSize)

	join, err := h.readJoinRequest(conn)
	if err != nil {
		log.Printf("Join handshake failed: %v", err)
		_ = wsConn.Close()
		return
	}

	sessionID := uuid.New().String()
	if err := wsConn.SetIdentity(sessionID, join.Pseudo, join.RoomName); err != nil {
		log.Printf("Failed to set session identity: %v", err)
		_ = wsConn.Close()
		return
	}

	if _, err := h.hub.Join(wsConn); err != nil {
		log.Printf("Join failed: session=%s room=%s err=%v", sessionID, join.RoomName, err)
		_ = wsConn.Close()
		return
	}

	h.handleConnection(wsConn)
}

// readJoinRequest reads and validates the first frame. A client that sends
// nothing within the read timeout never becomes a session.
func (h *Handler) readJoinRequest(conn *websocket.Conn) (*types.JoinRequest, error) {
	if err := conn.SetReadDeadline(time.Now().Add(h.readTimeout)); err != nil {
		return nil, err
	}

	_, data, err := conn.ReadMessage()
	if err != nil {
		return nil, err
	}

	var join types.JoinRequest
	if err := json.Unmarshal(data, &join); err != nil {
		return nil, ErrInvalidJoinRequest
	}
	if err := join.Validate(); err != nil {
		return nil, err
	}
	return &join, nil
}

// handleConnection runs the read pump with ping/pong keepalive. Returns when
// the client leaves or the transport dies; cleanup is unconditional.
func (h *Handler) handleConnection(conn *Connection) {
	defer func() {
		// Membership cleanup runs for voluntary leaves and transport
		// failures alike; Leave is idempotent so an explicit leave frame
		// followed by the close does not announce twice.
		if err := h.hub.Leave(conn, true); err != nil {
			log.Printf("Leave cleanup failed: session=%s err=%v", conn.GetSessionID(), err)
		}
		_ = conn.Close()
	}()

	if err := conn.conn.SetReadDeadline(time.Now().Add(h.readTimeout)); err != nil {
		log.Printf("Failed to set read deadline: %v", err)
		return
	}
	conn.conn.SetPongHandler(func(string) error {
		return conn.conn.SetReadDeadline(time.Now().Add(h.readTimeout))
	})

	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()

	go func() {
		for {
			select {
			case <-ticker.C:
				if err := conn.conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(10*time.Second)); err != nil {
					return
				}
			case <-conn.ctx.Done():
				return
			}
		}
	}()

	for {
		messageType, data, err := conn.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: session=%s err=%v", conn.GetSessionID(), err)
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		var env types.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			log.Printf("Dropping unparseable frame: session=%s err=%v", conn.GetSessionID(), err)
			continue
		}

		if env.Kind == types.KindLeave {
			// Flushed by the client before closing, so other members get a
			// timely notice instead of waiting on transport timeout.
			return
		}

		if err := h.hub.SendMessage(&env, conn.GetSessionID()); err != nil {
			log.Printf("Failed to queue message: session=%s err=%v", conn.GetSessionID(), err)
		}
	}
}
