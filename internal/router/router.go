package router

import (
	"log"
	"time"

	"github.com/google/uuid"

	"chatcam/internal/registry"
	"chatcam/pkg/types"
)

// Router validates, stamps and broadcasts envelopes within a room. It is pure
// routing logic: membership state lives in the registry and serialization is
// the hub's job.
type Router struct {
	registry    *registry.Registry
	rateLimiter *RateLimiter
}

// NewRouter creates a message router.
func NewRouter(reg *registry.Registry) *Router {
	return &Router{
		registry:    reg,
		rateLimiter: NewRateLimiter(),
	}
}

// Route delivers a chat envelope to every member of its room, including the
// sender: all clients render from the one authoritative stream, which avoids
// local/remote double-render bugs. The envelope is stamped with a server-side
// id and emission time so each room has a single canonical ordering.
//
// Rejections are validation errors; callers drop the envelope and may echo
// the error back to the sender, but never broadcast it.
func (r *Router) Route(env *types.Envelope, senderID string) error {
	sender, ok := r.registry.Get(senderID)
	if !ok {
		return ErrSenderNotInRoom
	}
	if env.RoomName != sender.GetRoomName() {
		// Room spoofing: the sender claims a room it has not joined.
		return ErrSenderNotInRoom
	}

	// Sender identity comes from the session, never from the payload.
	env.Pseudo = sender.GetPseudo()

	// Bare envelopes from older clients carry no kind; they are chat
	// messages. Clients cannot forge system notices.
	if env.Kind == "" {
		env.Kind = types.KindChat
	}
	if env.Kind != types.KindChat {
		return types.ErrInvalidKind
	}

	if err := env.Validate(); err != nil {
		return err
	}

	if !r.rateLimiter.Allow(senderID) {
		return ErrRateLimitExceeded
	}

	r.stamp(env)
	r.broadcast(env, "")
	return nil
}

// AnnounceJoin routes a "joined" notice to the room's existing members. The
// joining session is excluded; it knows it joined.
func (r *Router) AnnounceJoin(roomName, pseudo, joinedSessionID string) {
	notice := types.NewSystemNotice(types.EventJoined, pseudo, roomName)
	r.stamp(notice)
	r.broadcast(notice, joinedSessionID)
}

// AnnounceLeave routes a "left" notice to the members remaining in a room.
// Callers invoke this after the registry removal, so the departed session is
// no longer in the member set.
func (r *Router) AnnounceLeave(roomName, pseudo string) {
	notice := types.NewSystemNotice(types.EventLeft, pseudo, roomName)
	r.stamp(notice)
	r.broadcast(notice, "")
}

// Forget drops per-session routing state after a leave.
func (r *Router) Forget(sessionID string) {
	r.rateLimiter.Forget(sessionID)
}

// stamp assigns the server-authoritative id and emission time. Any
// client-provided values are discarded.
func (r *Router) stamp(env *types.Envelope) {
	env.ID = uuid.New().String()
	env.EmittedAt = time.Now()
}

// broadcast delivers to every current member except excludeSessionID.
// Delivery continues past individual failures; a dead connection is the
// handler's problem, not the router's.
func (r *Router) broadcast(env *types.Envelope, excludeSessionID string) {
	for _, conn := range r.registry.MembersOf(env.RoomName) {
		if conn.GetSessionID() == excludeSessionID {
			continue
		}
		if err := conn.WriteJSON(env); err != nil {
			log.Printf("Failed to deliver to session %s in room %s: %v",
				conn.GetSessionID(), env.RoomName, err)
		}
	}
}
