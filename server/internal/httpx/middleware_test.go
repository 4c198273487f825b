package httpx_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ragchat/answerrelay/server/internal/httpx"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
})

func TestRequestID_GeneratedWhenMissing(t *testing.T) {
	h := httpx.Chain(okHandler, httpx.RequestID())
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	if id := rr.Header().Get(httpx.HeaderRequestID); len(id) != 36 {
		t.Errorf("X-Request-ID: got %q, want a UUID", id)
	}
}

func TestRequestID_KeepsIncoming(t *testing.T) {
	h := httpx.Chain(okHandler, httpx.RequestID())
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(httpx.HeaderRequestID, "abc-123")
	h.ServeHTTP(rr, req)

	if id := rr.Header().Get(httpx.HeaderRequestID); id != "abc-123" {
		t.Errorf("X-Request-ID: got %q, want abc-123", id)
	}
}

func TestRecover_PanicBecomes500(t *testing.T) {
	boom := http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") })
	h := httpx.Chain(boom, httpx.Recover(), httpx.RequestID())

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/poll/u", nil))
	if rr.Code != http.StatusInternalServerError {
		t.Errorf("status: got %d, want 500", rr.Code)
	}
}

func TestCORS_Preflight(t *testing.T) {
	called := false
	next := http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true })
	h := httpx.Chain(next, httpx.CORS([]string{"*"}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodOptions, "/webhook", nil))

	if rr.Code != http.StatusNoContent {
		t.Errorf("status: got %d, want 204", rr.Code)
	}
	if called {
		t.Error("preflight must not reach the wrapped handler")
	}
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Allow-Origin: got %q, want *", got)
	}
}

func TestCORS_SpecificOrigin(t *testing.T) {
	h := httpx.Chain(okHandler, httpx.CORS([]string{"http://localhost:5173"}))

	tests := []struct {
		origin string
		want   string
	}{
		{"http://localhost:5173", "http://localhost:5173"},
		{"http://evil.example", ""},
	}
	for _, tc := range tests {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set("Origin", tc.origin)
		h.ServeHTTP(rr, req)
		if got := rr.Header().Get("Access-Control-Allow-Origin"); got != tc.want {
			t.Errorf("origin %s: Allow-Origin got %q, want %q", tc.origin, got, tc.want)
		}
	}
}
