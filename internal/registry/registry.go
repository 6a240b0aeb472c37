package registry

import (
	"sync"

	"chatcam/pkg/interfaces"
	"chatcam/pkg/types"
)

// Registry is the authoritative membership bookkeeping for rooms. Rooms are
// created implicitly on first join. The registry references sessions, it
// never owns them; ownership stays with the WebSocket handler.
type Registry struct {
	mu       sync.RWMutex
	rooms    map[string]map[string]interfaces.Connection // roomName -> sessionID -> Connection
	sessions map[string]string                           // sessionID -> roomName

	// retainEmpty keeps a room entry after its last member leaves, for cheap
	// rejoin. Policy choice, not a correctness requirement.
	retainEmpty bool
}

// NewRegistry creates an empty registry.
func NewRegistry(retainEmpty bool) *Registry {
	return &Registry{
		rooms:       make(map[string]map[string]interfaces.Connection),
		sessions:    make(map[string]string),
		retainEmpty: retainEmpty,
	}
}

// Join adds a session to a room's member set and returns the resulting member
// count. Idempotent for the same (session, room) pair. A session already in a
// different room is removed from it first: membership is at most one room at
// a time.
func (r *Registry) Join(conn interfaces.Connection, roomName string) (int, error) {
	if conn == nil {
		return 0, ErrNilConnection
	}
	if roomName == "" {
		return 0, ErrEmptyRoomName
	}
	sessionID := conn.GetSessionID()
	if sessionID == "" {
		return 0, ErrNoSessionID
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if prior, ok := r.sessions[sessionID]; ok && prior != roomName {
		r.removeLocked(sessionID, prior)
	}

	members, ok := r.rooms[roomName]
	if !ok {
		members = make(map[string]interfaces.Connection)
		r.rooms[roomName] = members
	}
	members[sessionID] = conn
	r.sessions[sessionID] = roomName

	return len(members), nil
}

// Leave removes a session from its current room, if any. Returns the room it
// left and whether the session was a member anywhere. Idempotent.
func (r *Registry) Leave(sessionID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	roomName, ok := r.sessions[sessionID]
	if !ok {
		return "", false
	}
	r.removeLocked(sessionID, roomName)
	return roomName, true
}

// removeLocked deletes a membership entry. Caller holds the write lock.
func (r *Registry) removeLocked(sessionID, roomName string) {
	delete(r.sessions, sessionID)
	if members, ok := r.rooms[roomName]; ok {
		delete(members, sessionID)
		if len(members) == 0 && !r.retainEmpty {
			delete(r.rooms, roomName)
		}
	}
}

// MembersOf returns the current member connections of a room. The slice is a
// snapshot; delivery to a member that disconnects mid-iteration simply fails
// at the connection level.
func (r *Registry) MembersOf(roomName string) []interfaces.Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members := r.rooms[roomName]
	conns := make([]interfaces.Connection, 0, len(members))
	for _, conn := range members {
		conns = append(conns, conn)
	}
	return conns
}

// MemberCount returns the number of sessions currently in a room.
func (r *Registry) MemberCount(roomName string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms[roomName])
}

// Get returns the connection registered for a session.
func (r *Registry) Get(sessionID string) (interfaces.Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	roomName, ok := r.sessions[sessionID]
	if !ok {
		return nil, false
	}
	conn, ok := r.rooms[roomName][sessionID]
	return conn, ok
}

// RoomOf returns the room a session is currently in.
func (r *Registry) RoomOf(sessionID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	roomName, ok := r.sessions[sessionID]
	return roomName, ok
}

// ListRooms answers room-listing queries with raw name, decoded display name
// and member count, independent of the live message stream. Lets a client
// enumerate rooms without joining one.
func (r *Registry) ListRooms() []types.RoomInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rooms := make([]types.RoomInfo, 0, len(r.rooms))
	for rawName, members := range r.rooms {
		rooms = append(rooms, types.RoomInfo{
			RawName:      rawName,
			Name:         types.DisplayName(rawName),
			ClientsCount: len(members),
		})
	}
	return rooms
}

// GetStats returns registry counters for the health endpoint.
func (r *Registry) GetStats() map[string]int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return map[string]int{
		"total_connections": len(r.sessions),
		"active_rooms":      len(r.rooms),
	}
}
