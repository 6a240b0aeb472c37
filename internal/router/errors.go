package router

import "errors"

var (
	ErrSenderNotInRoom   = errors.New("sender is not a member of the target room")
	ErrRateLimitExceeded = errors.New("rate limit exceeded: 100 messages per minute")
)
