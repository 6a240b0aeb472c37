// Package integration exercises the full relay stack end to end: two clients,
// one room, attachments out of band, history on the side.
package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"chatcam/internal/api"
	"chatcam/internal/attachment"
	"chatcam/internal/client"
	"chatcam/internal/history"
	"chatcam/internal/hub"
	"chatcam/internal/registry"
	"chatcam/internal/router"
	"chatcam/internal/websocket"
	"chatcam/pkg/types"
)

// newRelay assembles the same component graph the application wires up,
// behind an httptest listener.
func newRelay(t *testing.T) *httptest.Server {
	t.Helper()

	reg := registry.NewRegistry(false)
	h := hub.NewHub(reg, router.NewRouter(reg))
	if err := h.Start(context.Background()); err != nil {
		t.Fatalf("start hub: %v", err)
	}
	t.Cleanup(func() { _ = h.Stop() })

	store := attachment.NewMemoryStore()
	apiServer := api.NewServer(reg, store)
	wsHandler := websocket.NewHandler(h, 16, 30*time.Second, 60*time.Second)

	mux := http.NewServeMux()
	mux.Handle("/api/", apiServer)
	mux.Handle("/health", apiServer)
	mux.HandleFunc("/ws", wsHandler.HandleWebSocket)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

// participant is one connected client with a buffered inbound stream.
type participant struct {
	manager  *client.Manager
	messages chan *types.Envelope
}

func join(t *testing.T, srv *httptest.Server, roomName, pseudo string, cache *history.Cache) *participant {
	t.Helper()

	p := &participant{messages: make(chan *types.Envelope, 32)}
	p.manager = client.NewManager(client.Options{
		OnMessage: func(env *types.Envelope) { p.messages <- env },
		History:   cache,
	})
	if err := p.manager.Connect(context.Background(), srv.URL, roomName, pseudo); err != nil {
		t.Fatalf("%s connect: %v", pseudo, err)
	}
	t.Cleanup(func() { _ = p.manager.Leave() })
	return p
}

// expect reads messages until one satisfies the predicate, failing on timeout.
// Unrelated messages (keepalives, earlier notices) are skipped, not errors.
func (p *participant) expect(t *testing.T, what string, pred func(*types.Envelope) bool) *types.Envelope {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case env := <-p.messages:
			if pred(env) {
				return env
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", what)
			return nil
		}
	}
}

func TestTwoClientSession(t *testing.T) {
	srv := newRelay(t)

	cache, err := history.Open(filepath.Join(t.TempDir(), "history.db"), history.Options{Dedup: true})
	if err != nil {
		t.Fatalf("open history: %v", err)
	}
	defer cache.Close()

	// A joins first, with a history cache recording the session.
	alice := join(t, srv, "general", "alice", cache)

	// B joins; A is notified, B is not notified about itself.
	bob := join(t, srv, "general", "bob", nil)
	notice := alice.expect(t, "bob's join notice", func(e *types.Envelope) bool {
		return e.Event == types.EventJoined
	})
	if notice.Content != "bob joined" || notice.Pseudo != types.SystemPseudo {
		t.Errorf("join notice = %+v", notice)
	}

	// B speaks; both A and B receive the stamped broadcast.
	if err := bob.manager.Send("hi"); err != nil {
		t.Fatalf("bob send: %v", err)
	}
	for _, p := range []*participant{alice, bob} {
		env := p.expect(t, "bob's message", func(e *types.Envelope) bool {
			return e.Kind == types.KindChat && e.Content == "hi"
		})
		if env.Pseudo != "bob" || env.ID == "" || env.EmittedAt.IsZero() {
			t.Errorf("chat envelope = %+v", env)
		}
	}

	// A sends a photo: blob goes out of band, the message carries only the
	// reference, and B resolves it back to the original bytes.
	photo := []byte("jpeg bytes of a cat")
	attachments := client.NewAttachmentClient(srv.URL)
	refID, err := attachments.Upload(context.Background(), "alice-session", photo)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if err := alice.manager.SendAttachment(refID, "look at this"); err != nil {
		t.Fatalf("send attachment: %v", err)
	}

	env := bob.expect(t, "the attachment message", func(e *types.Envelope) bool {
		return e.AttachmentRef != ""
	})
	if env.AttachmentRef != refID || env.Content != "look at this" {
		t.Errorf("attachment envelope = %+v", env)
	}
	fetched, err := attachments.Fetch(context.Background(), env.AttachmentRef)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if !bytes.Equal(fetched, photo) {
		t.Errorf("attachment roundtrip mismatch: %q", fetched)
	}
	alice.expect(t, "alice's own attachment echo", func(e *types.Envelope) bool {
		return e.AttachmentRef == refID
	})

	// A leaves; B gets the notice and A can no longer send.
	if err := alice.manager.Leave(); err != nil {
		t.Fatalf("alice leave: %v", err)
	}
	left := bob.expect(t, "alice's left notice", func(e *types.Envelope) bool {
		return e.Event == types.EventLeft
	})
	if left.Content != "alice left" {
		t.Errorf("left notice = %+v", left)
	}
	if err := alice.manager.Send("too late"); err != client.ErrNotJoined {
		t.Errorf("send after leave: err = %v, want ErrNotJoined", err)
	}

	// A's history cache recorded the session as it was delivered.
	entries, err := cache.Load("general")
	if err != nil {
		t.Fatalf("load history: %v", err)
	}
	var sawHi, sawAttachment bool
	for _, e := range entries {
		if e.Content == "hi" && e.Pseudo == "bob" {
			sawHi = true
		}
		if e.AttachmentRef == refID {
			sawAttachment = true
		}
	}
	if !sawHi || !sawAttachment {
		t.Errorf("history incomplete: hi=%v attachment=%v (%d entries)", sawHi, sawAttachment, len(entries))
	}
}

func TestRoomListingReflectsMembership(t *testing.T) {
	srv := newRelay(t)

	join(t, srv, "general", "alice", nil)
	join(t, srv, "general", "bob", nil)
	join(t, srv, "My%20Room", "carol", nil)

	// The server registers memberships asynchronously after the join frame
	// arrives, so poll the listing until it settles.
	var body api.ListRoomsResponse
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := http.Get(srv.URL + "/api/rooms")
		if err != nil {
			t.Fatalf("GET /api/rooms: %v", err)
		}
		err = json.NewDecoder(resp.Body).Decode(&body)
		resp.Body.Close()
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		total := 0
		for _, room := range body.Rooms {
			total += room.ClientsCount
		}
		if len(body.Rooms) == 2 && total == 3 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if len(body.Rooms) != 2 {
		t.Fatalf("listed %d rooms, want 2", len(body.Rooms))
	}
	counts := make(map[string]int)
	names := make(map[string]string)
	for _, room := range body.Rooms {
		counts[room.RawName] = room.ClientsCount
		names[room.RawName] = room.Name
	}
	if counts["general"] != 2 || counts["My%20Room"] != 1 {
		t.Errorf("room counts = %v", counts)
	}
	if names["My%20Room"] != "My Room" {
		t.Errorf("display name = %q, want decoded form", names["My%20Room"])
	}
}
