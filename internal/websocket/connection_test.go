package websocket

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// newConnPair upgrades a loopback WebSocket and returns the server-side
// wrapper plus the raw client end.
func newConnPair(t *testing.T) (*Connection, *websocket.Conn) {
	t.Helper()

	serverConns := make(chan *websocket.Conn, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		serverConns <- conn
	}))
	t.Cleanup(srv.Close)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	clientConn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = clientConn.Close() })

	select {
	case serverConn := <-serverConns:
		wrapped := NewConnection(serverConn, 4)
		t.Cleanup(func() { _ = wrapped.Close() })
		return wrapped, clientConn
	case <-time.After(2 * time.Second):
		t.Fatal("server connection never arrived")
		return nil, nil
	}
}

func TestWriteJSONDelivers(t *testing.T) {
	serverConn, clientConn := newConnPair(t)

	if err := serverConn.WriteJSON(map[string]string{"content": "hello"}); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}

	clientConn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := clientConn.ReadMessage()
	if err != nil {
		t.Fatalf("client read: %v", err)
	}

	var got map[string]string
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got["content"] != "hello" {
		t.Errorf("delivered %+v", got)
	}
}

func TestWriteJSONAfterClose(t *testing.T) {
	serverConn, _ := newConnPair(t)

	if err := serverConn.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := serverConn.WriteJSON(map[string]string{"content": "x"}); err != ErrConnectionClosed {
		t.Errorf("write after close: err = %v, want ErrConnectionClosed", err)
	}
}

func TestWriteJSONRejectsUnmarshalable(t *testing.T) {
	serverConn, _ := newConnPair(t)

	if err := serverConn.WriteJSON(make(chan int)); err != ErrInvalidJSON {
		t.Errorf("unmarshalable value: err = %v, want ErrInvalidJSON", err)
	}
}

func TestWriteAfterTransportFailure(t *testing.T) {
	serverConn, clientConn := newConnPair(t)

	// Kill the transport out from under the writer goroutine, the way a dead
	// client does mid-broadcast.
	_ = clientConn.Close()
	_ = serverConn.conn.Close()

	// Writes must degrade to ErrConnectionClosed; the broadcast path calls
	// WriteJSON from the hub loop, so a panic here would take down routing.
	deadline := time.Now().Add(3 * time.Second)
	for {
		err := serverConn.WriteJSON(map[string]string{"content": "x"})
		if err == ErrConnectionClosed {
			return
		}
		if err != nil && err != ErrWriteTimeout {
			t.Fatalf("unexpected error: %v", err)
		}
		if time.Now().After(deadline) {
			t.Fatal("writer never reported the dead connection")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	serverConn, _ := newConnPair(t)

	if err := serverConn.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := serverConn.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

func TestIdentityLifecycle(t *testing.T) {
	serverConn, _ := newConnPair(t)

	if serverConn.IsJoined() {
		t.Error("fresh connection reports joined")
	}
	if got := serverConn.GetRoomName(); got != "" {
		t.Errorf("room before join = %q", got)
	}

	if err := serverConn.SetIdentity("s1", "alice", "general"); err != nil {
		t.Fatalf("SetIdentity: %v", err)
	}
	if !serverConn.IsJoined() {
		t.Error("IsJoined false after SetIdentity")
	}
	if serverConn.GetSessionID() != "s1" || serverConn.GetPseudo() != "alice" || serverConn.GetRoomName() != "general" {
		t.Errorf("identity = (%s, %s, %s)", serverConn.GetSessionID(), serverConn.GetPseudo(), serverConn.GetRoomName())
	}
}
