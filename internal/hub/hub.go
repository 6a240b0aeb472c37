package hub

import (
	"context"
	"log"
	"sync"
	"time"

	"chatcam/internal/registry"
	"chatcam/internal/router"
	"chatcam/pkg/interfaces"
	"chatcam/pkg/types"
)

// Hub serializes all membership changes and message routing through a single
// goroutine. Join/leave for the same session can therefore never interleave,
// and messages within a room are processed in a single canonical order.
type Hub struct {
	joinChannel     chan *joinRequest
	leaveChannel    chan *leaveRequest
	messageChannel  chan *messageContext
	shutdownChannel chan struct{}

	registry *registry.Registry
	router   *router.Router

	running bool
	mu      sync.RWMutex
}

type joinRequest struct {
	conn   interfaces.Connection
	result chan joinResult
}

type joinResult struct {
	memberCount int
	err         error
}

type leaveRequest struct {
	conn     interfaces.Connection
	announce bool
	result   chan struct{}
}

// messageContext wraps an envelope with its sender so routing decisions never
// trust sender identity embedded in the payload.
type messageContext struct {
	envelope *types.Envelope
	senderID string
}

// NewHub creates a hub wired to a registry and router.
func NewHub(reg *registry.Registry, rt *router.Router) *Hub {
	return &Hub{
		joinChannel:     make(chan *joinRequest, 100),
		leaveChannel:    make(chan *leaveRequest, 100),
		messageChannel:  make(chan *messageContext, 1000),
		shutdownChannel: make(chan struct{}),
		registry:        reg,
		router:          rt,
	}
}

// Start begins hub processing.
func (h *Hub) Start(ctx context.Context) error {
	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		return ErrHubAlreadyRunning
	}
	h.running = true
	h.mu.Unlock()

	go h.run(ctx)
	return nil
}

// Stop shuts down the hub. Requests queued after Stop fail fast.
func (h *Hub) Stop() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.running {
		return ErrHubNotRunning
	}
	h.running = false

	select {
	case <-h.shutdownChannel:
	default:
		close(h.shutdownChannel)
	}
	return nil
}

// Join registers a session in its requested room and returns the resulting
// member count. Blocks until the hub loop has processed the join, so a
// caller's subsequent sends are guaranteed to find the membership in place.
func (h *Hub) Join(conn interfaces.Connection) (int, error) {
	if conn == nil {
		return 0, ErrNilConnection
	}
	if err := h.checkRunning(); err != nil {
		return 0, err
	}

	req := &joinRequest{conn: conn, result: make(chan joinResult, 1)}
	select {
	case h.joinChannel <- req:
	case <-h.shutdownChannel:
		return 0, ErrHubNotRunning
	}

	select {
	case res := <-req.result:
		return res.memberCount, res.err
	case <-h.shutdownChannel:
		return 0, ErrHubNotRunning
	}
}

// Leave removes a session from its room. With announce set, remaining members
// receive a "left" notice; handlers clear the flag for sessions that never
// completed a join and only need bookkeeping cleaned up.
func (h *Hub) Leave(conn interfaces.Connection, announce bool) error {
	if conn == nil {
		return ErrNilConnection
	}
	if err := h.checkRunning(); err != nil {
		return err
	}

	req := &leaveRequest{conn: conn, announce: announce, result: make(chan struct{}, 1)}
	select {
	case h.leaveChannel <- req:
	case <-h.shutdownChannel:
		return ErrHubNotRunning
	}

	select {
	case <-req.result:
		return nil
	case <-h.shutdownChannel:
		return ErrHubNotRunning
	}
}

// SendMessage queues an envelope for routing. Non-blocking: a full channel is
// reported to the caller rather than stalling the reader.
func (h *Hub) SendMessage(env *types.Envelope, senderID string) error {
	if err := h.checkRunning(); err != nil {
		return err
	}

	select {
	case h.messageChannel <- &messageContext{envelope: env, senderID: senderID}:
		return nil
	default:
		return ErrMessageChannelFull
	}
}

func (h *Hub) checkRunning() error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if !h.running {
		return ErrHubNotRunning
	}
	return nil
}

// run is the single processing loop.
func (h *Hub) run(ctx context.Context) {
	defer log.Println("Hub processing stopped")

	for {
		select {
		case req := <-h.joinChannel:
			h.handleJoin(req)
		case req := <-h.leaveChannel:
			h.handleLeave(req)
		case msgCtx := <-h.messageChannel:
			h.handleMessage(msgCtx)
		case <-h.shutdownChannel:
			return
		case <-ctx.Done():
			return
		}
	}
}

// handleJoin performs the registry join and announces it. A session switching
// rooms is removed from its prior room first, with a "left" notice to that
// room's remaining members.
func (h *Hub) handleJoin(req *joinRequest) {
	conn := req.conn
	roomName := conn.GetRoomName()

	if prior, ok := h.registry.RoomOf(conn.GetSessionID()); ok && prior != roomName {
		h.registry.Leave(conn.GetSessionID())
		h.router.AnnounceLeave(prior, conn.GetPseudo())
	}

	count, err := h.registry.Join(conn, roomName)
	if err != nil {
		req.result <- joinResult{err: err}
		return
	}

	// Existing members get the notice, the joiner does not.
	if count > 1 {
		h.router.AnnounceJoin(roomName, conn.GetPseudo(), conn.GetSessionID())
	}
	log.Printf("Session joined: session=%s pseudo=%s room=%s members=%d",
		conn.GetSessionID(), conn.GetPseudo(), roomName, count)

	req.result <- joinResult{memberCount: count}
}

func (h *Hub) handleLeave(req *leaveRequest) {
	defer func() { req.result <- struct{}{} }()

	sessionID := req.conn.GetSessionID()
	roomName, wasMember := h.registry.Leave(sessionID)
	h.router.Forget(sessionID)
	if !wasMember {
		return
	}

	if req.announce {
		h.router.AnnounceLeave(roomName, req.conn.GetPseudo())
	}
	log.Printf("Session left: session=%s pseudo=%s room=%s",
		sessionID, req.conn.GetPseudo(), roomName)
}

// handleMessage routes one envelope. Routing failures are dropped, never
// broadcast; the sender gets a rejection echo so the UI can react.
func (h *Hub) handleMessage(msgCtx *messageContext) {
	if err := h.router.Route(msgCtx.envelope, msgCtx.senderID); err != nil {
		log.Printf("Message rejected: session=%s room=%s err=%v",
			msgCtx.senderID, msgCtx.envelope.RoomName, err)
		h.echoRejection(msgCtx.senderID, err)
	}
}

// echoRejection sends a rejection notice back to the sender only.
func (h *Hub) echoRejection(senderID string, routeErr error) {
	roomName, ok := h.registry.RoomOf(senderID)
	if !ok {
		return // sender already gone, nothing to echo
	}
	for _, conn := range h.registry.MembersOf(roomName) {
		if conn.GetSessionID() != senderID {
			continue
		}
		rejection := map[string]interface{}{
			"kind":      types.KindSystem,
			"event":     "message_rejected",
			"pseudo":    types.SystemPseudo,
			"content":   "Message could not be delivered",
			"error":     routeErr.Error(),
			"roomName":  roomName,
			"emittedAt": time.Now(),
		}
		if err := conn.WriteJSON(rejection); err != nil {
			log.Printf("Failed to echo rejection to session %s: %v", senderID, err)
		}
		return
	}
}
