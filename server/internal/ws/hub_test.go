package ws_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ragchat/answerrelay/server/internal/store"
	wsHub "github.com/ragchat/answerrelay/server/internal/ws"
)

const testInterval = 20 * time.Millisecond

// --- helpers ----------------------------------------------------------------

// startHub starts a test HTTP server with the hub as its handler.
// The hub's Run loop is started with a cancellable context.
func startHub(t *testing.T, st *store.Store) (wsURL string, hub *wsHub.Hub, cancel func()) {
	t.Helper()

	hub = wsHub.New(st, testInterval)
	ctx, cancelFn := context.WithCancel(context.Background())

	srv := httptest.NewServer(hub)
	go hub.Run(ctx)

	t.Cleanup(func() {
		cancelFn()
		srv.Close()
	})

	wsURL = "ws" + strings.TrimPrefix(srv.URL, "http")
	return wsURL, hub, cancelFn
}

func dial(t *testing.T, wsURL string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", wsURL, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) wsHub.Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second)) //nolint:errcheck
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	var m wsHub.Message
	if err := json.Unmarshal(raw, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return m
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

// --- tests ------------------------------------------------------------------

func TestHub_Connect_ReceivesImmediateHealth(t *testing.T) {
	st := store.New(time.Minute, 0)
	st.Put("user1", "hello", "")
	wsURL, _, _ := startHub(t, st)

	m := readMessage(t, dial(t, wsURL))
	if m.Event != wsHub.EventHealth {
		t.Errorf("event: got %q, want health", m.Event)
	}
	if m.Data.Status != "healthy" {
		t.Errorf("status: got %q, want healthy", m.Data.Status)
	}
	if m.Data.StoredResponses != 1 {
		t.Errorf("stored_responses: got %d, want 1", m.Data.StoredResponses)
	}
}

func TestHub_BroadcastsOnTick(t *testing.T) {
	st := store.New(time.Minute, 0)
	wsURL, _, _ := startHub(t, st)
	conn := dial(t, wsURL)

	first := readMessage(t, conn)
	if first.Data.StoredResponses != 0 {
		t.Fatalf("initial stored_responses: got %d, want 0", first.Data.StoredResponses)
	}

	st.Put("user2", "42", "")
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if m := readMessage(t, conn); m.Data.StoredResponses == 1 {
			return
		}
	}
	t.Fatal("no broadcast reflected the new answer")
}

func TestHub_DoesNotClaimAnswers(t *testing.T) {
	st := store.New(time.Minute, 0)
	st.Put("user1", "hello", "")
	wsURL, _, _ := startHub(t, st)

	conn := dial(t, wsURL)
	readMessage(t, conn)
	readMessage(t, conn)

	if _, ok := st.Take("user1"); !ok {
		t.Error("streaming health must leave pending answers untouched")
	}
}

func TestHub_Count_TracksClients(t *testing.T) {
	wsURL, hub, _ := startHub(t, store.New(time.Minute, 0))

	c1 := dial(t, wsURL)
	dial(t, wsURL)
	waitFor(t, func() bool { return hub.Count() == 2 })

	c1.Close()
	waitFor(t, func() bool { return hub.Count() == 1 })
}

func TestHub_Shutdown_ClosesClients(t *testing.T) {
	wsURL, hub, cancel := startHub(t, store.New(time.Minute, 0))
	conn := dial(t, wsURL)
	readMessage(t, conn)

	cancel()
	waitFor(t, func() bool { return hub.Count() == 0 })

	conn.SetReadDeadline(time.Now().Add(2 * time.Second)) //nolint:errcheck
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseGoingAway) {
				t.Logf("read ended with %v", err)
			}
			return
		}
	}
}

func TestHub_RejectsPlainHTTP(t *testing.T) {
	hub := wsHub.New(store.New(time.Minute, 0), testInterval)
	rr := httptest.NewRecorder()
	hub.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/ws/health", nil))
	if rr.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", rr.Code)
	}
}
