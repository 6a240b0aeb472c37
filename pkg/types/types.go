package types

import (
	"net/url"
	"time"
)

// Envelope kinds carried on the wire.
const (
	KindChat   = "chat"   // user-authored message
	KindSystem = "system" // synthesized presence notice
	KindLeave  = "leave"  // client->server control frame, never broadcast
)

// System notice events.
const (
	EventJoined = "joined"
	EventLeft   = "left"
)

// SystemPseudo is the sender identity on synthesized notices.
const SystemPseudo = "System"

// Envelope is the unit of communication between clients and the relay.
// Chat envelopes carry text content and/or an attachment reference; system
// envelopes announce presence changes. Envelopes are immutable once stamped
// by the router.
type Envelope struct {
	ID            string    `json:"id,omitempty"`
	Kind          string    `json:"kind"`
	Pseudo        string    `json:"pseudo"`
	Content       string    `json:"content,omitempty"`
	AttachmentRef string    `json:"attachmentRef,omitempty"`
	RoomName      string    `json:"roomName"`
	Event         string    `json:"event,omitempty"`
	EmittedAt     time.Time `json:"emittedAt,omitzero"`
}

// JoinRequest is the first frame a client sends after the transport handshake.
type JoinRequest struct {
	Pseudo   string `json:"pseudo"`
	RoomName string `json:"roomName"`
}

// RoomInfo describes one room for listing queries. RawName is the opaque
// routing key; Name is the percent-decoded display form.
type RoomInfo struct {
	RawName      string `json:"rawName"`
	Name         string `json:"name"`
	ClientsCount int    `json:"clientsCount"`
}

// Profile is the local identity record read once at room-join time.
type Profile struct {
	Pseudo string `json:"pseudo"`
	Photo  string `json:"photo,omitempty"`
}

// NewSystemNotice builds a presence notice for a room. The router stamps
// id and emission time before delivery, same as chat envelopes.
func NewSystemNotice(event, pseudo, roomName string) *Envelope {
	content := pseudo + " joined"
	if event == EventLeft {
		content = pseudo + " left"
	}
	return &Envelope{
		Kind:     KindSystem,
		Event:    event,
		Pseudo:   SystemPseudo,
		Content:  content,
		RoomName: roomName,
	}
}

// DisplayName percent-decodes a raw room key for display. The raw key stays
// authoritative for routing; callers that cannot decode fall back to the raw
// form.
func DisplayName(rawName string) string {
	decoded, err := url.PathUnescape(rawName)
	if err != nil {
		return rawName
	}
	return decoded
}
