package client

import "errors"

var (
	ErrAlreadyConnected = errors.New("manager is not disconnected")
	ErrNotJoined        = errors.New("not joined to a room")
	ErrConnectFailed    = errors.New("connection failed")
	ErrSendFailed       = errors.New("send failed")

	// ErrAttachmentUnavailable signals a fetch that should degrade to an
	// "image unavailable" placeholder.
	ErrAttachmentUnavailable = errors.New("attachment unavailable")
)
