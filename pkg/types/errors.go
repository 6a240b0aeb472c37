package types

import "errors"

// Validation errors shared across components.
var (
	ErrEmptyMessage    = errors.New("message must carry text content or an attachment reference")
	ErrInvalidKind     = errors.New("invalid envelope kind")
	ErrMissingPseudo   = errors.New("pseudo cannot be empty")
	ErrMissingRoomName = errors.New("room name cannot be empty")
	ErrContentTooLarge = errors.New("message content exceeds 64KB limit")
)
