// Package attachment implements the out-of-band blob store that keeps image
// payloads off the message broadcast path. Messages carry only an opaque
// reference id; receivers resolve it against this store.
package attachment

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"chatcam/pkg/interfaces"
)

// ErrNotFound aliases the shared sentinel so callers can match either name.
var ErrNotFound = interfaces.ErrAttachmentNotFound

// MemoryStore is the in-process backend. Suitable for a single relay
// instance and for tests.
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		blobs: make(map[string][]byte),
	}
}

// Put stores a blob under a freshly minted reference id. Every call mints a
// new id, so retried uploads duplicate harmlessly instead of colliding.
func (s *MemoryStore) Put(_ context.Context, data []byte) (string, error) {
	if len(data) == 0 {
		return "", ErrEmptyBlob
	}

	id := uuid.New().String()
	stored := make([]byte, len(data))
	copy(stored, data)

	s.mu.Lock()
	s.blobs[id] = stored
	s.mu.Unlock()

	return id, nil
}

// Get resolves a reference id to its payload.
func (s *MemoryStore) Get(_ context.Context, id string) ([]byte, error) {
	s.mu.RLock()
	data, ok := s.blobs[id]
	s.mu.RUnlock()

	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// Len returns the number of stored blobs.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blobs)
}

var _ interfaces.AttachmentStore = (*MemoryStore)(nil)
