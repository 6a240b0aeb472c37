package attachment

import (
	"bytes"
	"context"
	"errors"
	"testing"
)

func TestPutGetRoundtrip(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	data := []byte("fake jpeg bytes")
	id, err := store.Put(ctx, data)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if id == "" {
		t.Fatal("Put returned an empty reference id")
	}

	got, err := store.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("Get returned %q, want %q", got, data)
	}
}

func TestPutMintsFreshIDs(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	// A retried upload of the same bytes must not collide with the first.
	id1, err := store.Put(ctx, []byte("same bytes"))
	if err != nil {
		t.Fatalf("first Put: %v", err)
	}
	id2, err := store.Put(ctx, []byte("same bytes"))
	if err != nil {
		t.Fatalf("second Put: %v", err)
	}
	if id1 == id2 {
		t.Errorf("duplicate upload reused reference id %s", id1)
	}
	if store.Len() != 2 {
		t.Errorf("Len = %d, want 2", store.Len())
	}
}

func TestPutRejectsEmptyBlob(t *testing.T) {
	store := NewMemoryStore()
	if _, err := store.Put(context.Background(), nil); err != ErrEmptyBlob {
		t.Errorf("Put(nil): err = %v, want ErrEmptyBlob", err)
	}
}

func TestGetUnknownReference(t *testing.T) {
	store := NewMemoryStore()
	if _, err := store.Get(context.Background(), "no-such-id"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get unknown: err = %v, want ErrNotFound", err)
	}
}

func TestStoredBlobIsIsolatedFromCaller(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	data := []byte("original")
	id, err := store.Put(ctx, data)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	data[0] = 'X' // caller mutates its buffer after upload

	got, err := store.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != "original" {
		t.Errorf("stored blob aliased the caller's buffer: %q", got)
	}
}
