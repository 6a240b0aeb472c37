package history

import "errors"

var (
	// ErrAppendFailed wraps durable-write failures. Non-fatal: the caller's
	// in-memory state stays ahead of the cache.
	ErrAppendFailed  = errors.New("history append failed")
	ErrEmptyRoomName = errors.New("room name cannot be empty")
	ErrNilEntry      = errors.New("history entry cannot be nil")
)
