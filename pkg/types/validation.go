package types

// maxContentBytes bounds a single envelope so the relay stays a small-payload
// fan-out; images travel out of band by reference.
const maxContentBytes = 65536

// Validate checks an envelope before routing. A chat envelope with neither
// text content nor an attachment reference is rejected.
func (e *Envelope) Validate() error {
	switch e.Kind {
	case KindChat, KindSystem, KindLeave:
	default:
		return ErrInvalidKind
	}
	if e.RoomName == "" {
		return ErrMissingRoomName
	}
	if e.Kind == KindLeave {
		return nil
	}
	if e.Pseudo == "" {
		return ErrMissingPseudo
	}
	if e.Kind == KindChat && e.Content == "" && e.AttachmentRef == "" {
		return ErrEmptyMessage
	}
	if len(e.Content) > maxContentBytes {
		return ErrContentTooLarge
	}
	return nil
}

// Validate checks a join request.
func (j *JoinRequest) Validate() error {
	if j.Pseudo == "" {
		return ErrMissingPseudo
	}
	if j.RoomName == "" {
		return ErrMissingRoomName
	}
	return nil
}

// IsSystem reports whether the envelope is a synthesized presence notice.
// Clients use this to render notices differently and keep them out of unread
// counts.
func (e *Envelope) IsSystem() bool {
	return e.Kind == KindSystem
}
