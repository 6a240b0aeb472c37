// Package client implements the client side of the room protocol: the
// connection manager state machine, attachment upload/fetch, and history
// interception.
package client

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"chatcam/internal/history"
	"chatcam/internal/profile"
	"chatcam/pkg/types"
)

// State is the connection manager's lifecycle position.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateJoined
	StateLeaving
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateJoined:
		return "joined"
	case StateLeaving:
		return "leaving"
	default:
		return "unknown"
	}
}

// Options configure a Manager.
type Options struct {
	// OnMessage receives every inbound envelope while joined. Called from
	// the read loop, in delivery order.
	OnMessage func(*types.Envelope)

	// OnError receives transport failures. Never called for a close the
	// manager itself initiated via Leave.
	OnError func(error)

	// History, when set, durably records every inbound envelope before
	// OnMessage sees it. The broadcast stream includes the caller's own
	// messages, so intercepting inbound covers outbound too.
	History *history.Cache

	// HandshakeTimeout bounds the transport dial. Zero means 10 seconds.
	HandshakeTimeout time.Duration
}

// Manager owns exactly one transport connection per room visit and exposes
// the Disconnected → Connecting → Joined → Leaving → Disconnected machine.
// The terminal state re-enters the initial one: the machine restarts for a
// new room. There is no automatic reconnect; retrying is the caller's
// explicit decision.
type Manager struct {
	opts Options

	mu       sync.Mutex
	state    State
	leaving  bool
	conn     *websocket.Conn
	pseudo   string
	roomName string

	writeMu sync.Mutex // gorilla connections allow one writer at a time

	// deliverMu spans one inbound delivery: guard check, history append,
	// OnMessage. Leave acquires it after setting leaving, so Leave cannot
	// return while a delivery that passed the guard is still running.
	deliverMu sync.Mutex
}

// NewManager creates a disconnected manager.
func NewManager(opts Options) *Manager {
	return &Manager{opts: opts, state: StateDisconnected}
}

// State returns the current machine state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Connect dials the relay, emits the join request and transitions to Joined.
// On transport failure the machine stays Disconnected and the error is
// surfaced to the caller; nothing retries behind their back.
func (m *Manager) Connect(ctx context.Context, serverURL, roomName, displayName string) error {
	if roomName == "" {
		return types.ErrMissingRoomName
	}
	if displayName == "" {
		return types.ErrMissingPseudo
	}

	m.mu.Lock()
	if m.state != StateDisconnected {
		m.mu.Unlock()
		return ErrAlreadyConnected
	}
	m.state = StateConnecting
	m.mu.Unlock()

	conn, err := m.dial(ctx, serverURL)
	if err != nil {
		m.mu.Lock()
		m.state = StateDisconnected
		m.mu.Unlock()
		return fmt.Errorf("%w: %v", ErrConnectFailed, err)
	}

	join := types.JoinRequest{Pseudo: displayName, RoomName: roomName}
	m.writeMu.Lock()
	err = conn.WriteJSON(join)
	m.writeMu.Unlock()
	if err != nil {
		_ = conn.Close()
		m.mu.Lock()
		m.state = StateDisconnected
		m.mu.Unlock()
		return fmt.Errorf("%w: %v", ErrConnectFailed, err)
	}

	m.mu.Lock()
	m.conn = conn
	m.pseudo = displayName
	m.roomName = roomName
	m.leaving = false
	m.state = StateJoined
	m.mu.Unlock()

	go m.readLoop(conn)
	return nil
}

// ConnectWithProfile joins a room under the locally stored identity. The
// profile is read once here; edits made while joined take effect on the next
// room visit.
func (m *Manager) ConnectWithProfile(ctx context.Context, serverURL, roomName string, store *profile.Store) error {
	p, err := store.Load()
	if err != nil {
		return err
	}
	return m.Connect(ctx, serverURL, roomName, p.Pseudo)
}

func (m *Manager) dial(ctx context.Context, serverURL string) (*websocket.Conn, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	u.Path = "/ws"

	timeout := m.opts.HandshakeTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	dialer := websocket.Dialer{HandshakeTimeout: timeout}

	conn, _, err := dialer.DialContext(ctx, u.String(), nil)
	return conn, err
}

// Send emits a text message. Valid only in Joined; empty messages are
// rejected locally before touching the wire.
func (m *Manager) Send(content string) error {
	return m.send(content, "")
}

// SendAttachment emits a message carrying an attachment reference, with
// optional caption text. The blob itself travels out of band.
func (m *Manager) SendAttachment(referenceID, caption string) error {
	if referenceID == "" {
		return types.ErrEmptyMessage
	}
	return m.send(caption, referenceID)
}

func (m *Manager) send(content, attachmentRef string) error {
	m.mu.Lock()
	if m.state != StateJoined {
		m.mu.Unlock()
		return ErrNotJoined
	}
	conn := m.conn
	env := types.Envelope{
		Kind:          types.KindChat,
		Pseudo:        m.pseudo,
		Content:       content,
		AttachmentRef: attachmentRef,
		RoomName:      m.roomName,
	}
	m.mu.Unlock()

	if err := env.Validate(); err != nil {
		return err
	}

	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	if err := conn.WriteJSON(&env); err != nil {
		return fmt.Errorf("%w: %v", ErrSendFailed, err)
	}
	return nil
}

// Leave flushes a leave notice to the server so other members get a timely
// "left" notice, then closes the transport. No inbound message reaches the
// caller after Leave returns, even if already in flight on the wire.
func (m *Manager) Leave() error {
	m.mu.Lock()
	if m.state != StateJoined {
		m.mu.Unlock()
		return ErrNotJoined
	}
	m.state = StateLeaving
	m.leaving = true
	conn := m.conn
	roomName := m.roomName
	m.mu.Unlock()

	leave := types.Envelope{Kind: types.KindLeave, RoomName: roomName}
	m.writeMu.Lock()
	if err := conn.WriteJSON(&leave); err != nil {
		log.Printf("Failed to flush leave notice: %v", err)
	}
	m.writeMu.Unlock()

	err := conn.Close()

	// A delivery that passed the guard before leaving was set may still be
	// running; wait it out so no callback fires after Leave returns.
	m.deliverMu.Lock()
	m.deliverMu.Unlock()

	m.mu.Lock()
	m.conn = nil
	m.state = StateDisconnected
	m.mu.Unlock()

	return err
}

// readLoop delivers inbound envelopes until the connection dies. A close
// triggered by Leave is silent; anything else surfaces through OnError.
func (m *Manager) readLoop(conn *websocket.Conn) {
	for {
		var env types.Envelope
		if err := conn.ReadJSON(&env); err != nil {
			m.mu.Lock()
			leaving := m.leaving
			if !leaving {
				m.conn = nil
				m.state = StateDisconnected
			}
			m.mu.Unlock()

			if !leaving && m.opts.OnError != nil {
				m.opts.OnError(err)
			}
			return
		}
		m.handleInbound(&env)
	}
}

// handleInbound records and delivers one envelope. The leaving guard
// suppresses late deliveries racing the local Leave; holding deliverMu across
// the guard and the callback keeps the whole delivery inside the window Leave
// waits for.
func (m *Manager) handleInbound(env *types.Envelope) {
	m.deliverMu.Lock()
	defer m.deliverMu.Unlock()

	m.mu.Lock()
	if m.leaving || m.state != StateJoined {
		m.mu.Unlock()
		return
	}
	roomName := m.roomName
	m.mu.Unlock()

	if m.opts.History != nil {
		// Cache failure is a warning, not a rollback: the live stream
		// keeps flowing.
		if err := m.opts.History.Append(roomName, env); err != nil {
			log.Printf("History cache write failed: %v", err)
		}
	}

	if m.opts.OnMessage != nil {
		m.opts.OnMessage(env)
	}
}
