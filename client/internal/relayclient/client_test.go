package relayclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ragchat/answerrelay/pkg/relay"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := New(srv.URL + "/")
	require.NoError(t, err)
	return c
}

func TestNew_RejectsBadScheme(t *testing.T) {
	_, err := New("ftp://relay")
	require.Error(t, err)
}

func TestPoll_Found(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/poll/alice", r.URL.Path)
		json.NewEncoder(w).Encode(relay.PollResponse{ //nolint:errcheck
			UserID: "alice", Answer: "42", Timestamp: "t0",
		})
	})

	a, ok, err := c.Poll(context.Background(), "alice")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, &relay.Answer{UserID: "alice", Answer: "42", Timestamp: "t0"}, a)
}

func TestPoll_NoMessages(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(relay.PollResponse{Status: relay.StatusNoMessages}) //nolint:errcheck
	})

	a, ok, err := c.Poll(context.Background(), "bob")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, a)
}

func TestPoll_EscapesUserID(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/poll/a%20b%3Fc", r.URL.EscapedPath())
		json.NewEncoder(w).Encode(relay.PollResponse{Status: relay.StatusNoMessages}) //nolint:errcheck
	})

	_, _, err := c.Poll(context.Background(), "a b?c")
	require.NoError(t, err)
}

func TestPoll_UserIDWithSlash(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/poll/team%2Falice", r.URL.EscapedPath())
		json.NewEncoder(w).Encode(relay.PollResponse{UserID: "team/alice", Answer: "42", Timestamp: "t0"}) //nolint:errcheck
	})

	a, ok, err := c.Poll(context.Background(), "team/alice")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "team/alice", a.UserID)
}

func TestPoll_EmptyUser(t *testing.T) {
	c := newTestClient(t, func(http.ResponseWriter, *http.Request) {
		t.Error("no request expected")
	})
	_, _, err := c.Poll(context.Background(), "")
	require.Error(t, err)
}

func TestPoll_StatusError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(relay.ErrorResponse{Error: "user id is required"}) //nolint:errcheck
	})

	_, _, err := c.Poll(context.Background(), "x")
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusBadRequest, se.Code)
	assert.Equal(t, "user id is required", se.Message)
}

func TestPoll_ContextCancelled(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(relay.PollResponse{Status: relay.StatusNoMessages}) //nolint:errcheck
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := c.Poll(ctx, "alice")
	require.ErrorIs(t, err, context.Canceled)
}

func TestHealth(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		json.NewEncoder(w).Encode(relay.HealthResponse{ //nolint:errcheck
			Status: relay.StatusHealthy, Timestamp: "now", StoredResponses: 3,
		})
	})

	h, err := c.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, h.StoredResponses)
}

func TestHealth_UnexpectedBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"status":"degraded"}`)) //nolint:errcheck
	})
	_, err := c.Health(context.Background())
	require.Error(t, err)
}

func TestPush(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/webhook", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req relay.PushRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "alice", req.UserID)
		assert.Equal(t, "hello", req.Answer)

		json.NewEncoder(w).Encode(relay.PushResponse{Status: relay.StatusReceived, Timestamp: "t"}) //nolint:errcheck
	})

	resp, err := c.Push(context.Background(), relay.PushRequest{UserID: "alice", Answer: "hello"})
	require.NoError(t, err)
	assert.Equal(t, relay.StatusReceived, resp.Status)
}
