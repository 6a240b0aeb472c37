package interfaces

import (
	"context"
	"errors"
)

// ErrAttachmentNotFound is returned by Get for unknown reference ids.
var ErrAttachmentNotFound = errors.New("attachment not found")

// AttachmentStore keeps binary payloads out of the message stream. Put mints
// a fresh opaque id on every call, so retries after a network failure are
// safe: duplicates are acceptable, not harmful. Blob lifetime is independent
// of any message; backends may apply their own retention.
type AttachmentStore interface {
	Put(ctx context.Context, data []byte) (string, error)
	Get(ctx context.Context, id string) ([]byte, error)
}
