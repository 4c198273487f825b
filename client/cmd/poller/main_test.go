package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ragchat/answerrelay/pkg/relay"
)

// syncBuffer is a bytes.Buffer safe for the concurrent writer/reader in tests.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// fakeRelay serves one pending answer for alice and reports healthy.
func fakeRelay(t *testing.T) *httptest.Server {
	t.Helper()
	var (
		mu      sync.Mutex
		pending = map[string]string{"alice": "forty-two"}
	)
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(relay.HealthResponse{Status: relay.StatusHealthy}) //nolint:errcheck
	})
	mux.HandleFunc("/poll/", func(w http.ResponseWriter, r *http.Request) {
		user := strings.TrimPrefix(r.URL.Path, "/poll/")
		mu.Lock()
		a, ok := pending[user]
		delete(pending, user)
		mu.Unlock()
		if !ok {
			json.NewEncoder(w).Encode(relay.PollResponse{Status: relay.StatusNoMessages}) //nolint:errcheck
			return
		}
		json.NewEncoder(w).Encode(relay.PollResponse{UserID: user, Answer: a, Timestamp: "t0"}) //nolint:errcheck
	})
	mux.HandleFunc("/webhook", func(w http.ResponseWriter, r *http.Request) {
		var req relay.PushRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(relay.ErrorResponse{Error: "Missing required fields: user_id, answer"}) //nolint:errcheck
			return
		}
		json.NewEncoder(w).Encode(relay.PushResponse{Status: relay.StatusReceived, Timestamp: "now"}) //nolint:errcheck
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestRun_PrintsClaimedAnswers(t *testing.T) {
	srv := fakeRelay(t)

	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`
client:
  relay_url: "`+srv.URL+`"
  users: [alice, bob]
  poll_interval: 20ms
  poll_timeout: 1s
`), 0o600))

	ctx, cancel := context.WithCancel(context.Background())
	out := &syncBuffer{}
	done := make(chan error, 1)
	go func() { done <- run(ctx, cfgPath, out) }()

	require.Eventually(t, func() bool { return strings.Contains(out.String(), "forty-two") },
		3*time.Second, 10*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	var got relay.Answer
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(out.String())), &got))
	assert.Equal(t, relay.Answer{UserID: "alice", Answer: "forty-two", Timestamp: "t0"}, got)
}

func TestRun_InvalidConfig(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("client:\n  users: []\n"), 0o600))

	err := run(context.Background(), cfgPath, &syncBuffer{})
	require.Error(t, err)
}

func TestPushCmd(t *testing.T) {
	srv := fakeRelay(t)
	out := &syncBuffer{}

	cmd := newRootCmd(out)
	cmd.SetArgs([]string{"push", "--relay-url", srv.URL, "--user", "alice", "--answer", "hi"})
	require.NoError(t, cmd.Execute())

	var resp relay.PushResponse
	require.NoError(t, json.Unmarshal([]byte(out.String()), &resp))
	assert.Equal(t, relay.StatusReceived, resp.Status)
}

func TestPushCmd_RequiresFields(t *testing.T) {
	cmd := newRootCmd(&syncBuffer{})
	cmd.SetArgs([]string{"push", "--relay-url", "http://localhost:1", "--user", "alice"})
	cmd.SetErr(&syncBuffer{})
	require.Error(t, cmd.Execute())
}

func TestRootCmd_BadLogLevel(t *testing.T) {
	cmd := newRootCmd(&syncBuffer{})
	cmd.SetArgs([]string{"push", "--log-level", "loud"})
	cmd.SetErr(&syncBuffer{})
	require.Error(t, cmd.Execute())
}
