package interfaces

// Connection is a live client session as seen by the registry and router.
// Implementations must make WriteJSON safe for concurrent use; the WebSocket
// wrapper does this with a single writer goroutine.
type Connection interface {
	// WriteJSON sends a JSON message to the client (thread-safe).
	WriteJSON(v interface{}) error

	// Close closes the connection and cleans up resources.
	Close() error

	// GetSessionID returns the server-assigned session id.
	GetSessionID() string

	// GetPseudo returns the user-chosen display name. Not unique, not
	// authenticated.
	GetPseudo() string

	// GetRoomName returns the room this session joined, or "" before join.
	GetRoomName() string

	// IsJoined reports whether the join handshake completed.
	IsJoined() bool

	// SetIdentity records the session identity after a valid join request.
	SetIdentity(sessionID, pseudo, roomName string) error
}
