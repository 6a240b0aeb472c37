package registry

import "errors"

var (
	ErrNilConnection = errors.New("connection cannot be nil")
	ErrEmptyRoomName = errors.New("room name cannot be empty")
	ErrNoSessionID   = errors.New("connection has no session id")
)
