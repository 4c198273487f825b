package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ragchat/answerrelay/pkg/relay"
	"github.com/ragchat/answerrelay/server/internal/api"
	"github.com/ragchat/answerrelay/server/internal/store"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// queueDepth is how many undelivered frames a subscriber may lag behind
	// before it is dropped.
	queueDepth = 8
)

// EventHealth is the event name of every message the hub sends.
const EventHealth = "health"

// Message is the JSON envelope sent to clients.
type Message struct {
	Event string               `json:"event"`
	Data  relay.HealthResponse `json:"data"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  512,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// Hub fans the relay health out to every connected WebSocket subscriber.
type Hub struct {
	store    *store.Store
	interval time.Duration

	mu     sync.Mutex
	subs   map[chan []byte]struct{}
	closed bool
}

// New creates a Hub that reads from st and broadcasts every interval.
func New(st *store.Store, interval time.Duration) *Hub {
	return &Hub{
		store:    st,
		interval: interval,
		subs:     make(map[chan []byte]struct{}),
	}
}

// Run broadcasts on every tick until ctx is cancelled, then disconnects all
// subscribers.
func (h *Hub) Run(ctx context.Context) {
	t := time.NewTicker(h.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return
		case <-t.C:
			if frame, err := h.frame(); err == nil {
				h.publish(frame)
			}
		}
	}
}

// Count returns the number of connected subscribers.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// ServeHTTP upgrades the request and streams health frames until either side
// goes away.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	queue, ok := h.subscribe()
	if !ok {
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "")) //nolint:errcheck
		return
	}
	defer h.unsubscribe(queue)

	gone := make(chan struct{})
	go readUntilClosed(conn, gone)

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-gone:
			return
		case frame, open := <-queue:
			conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck
			if !open {
				conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "")) //nolint:errcheck
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				slog.Debug("ws: write failed", "err", err)
				return
			}
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Hub) frame() ([]byte, error) {
	return json.Marshal(Message{Event: EventHealth, Data: api.BuildHealth(h.store)})
}

// subscribe registers a new queue primed with the current health so the
// client has data right away.
func (h *Hub) subscribe() (chan []byte, bool) {
	frame, err := h.frame()

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, false
	}
	q := make(chan []byte, queueDepth)
	if err == nil {
		q <- frame
	}
	h.subs[q] = struct{}{}
	return q, true
}

// unsubscribe removes q and closes it if it is still registered.
func (h *Hub) unsubscribe(q chan []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[q]; ok {
		delete(h.subs, q)
		close(q)
	}
}

// publish offers frame to every subscriber. A subscriber whose queue is full
// is disconnected rather than allowed to stall the others.
func (h *Hub) publish(frame []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for q := range h.subs {
		select {
		case q <- frame:
		default:
			delete(h.subs, q)
			close(q)
		}
	}
}

func (h *Hub) shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for q := range h.subs {
		delete(h.subs, q)
		close(q)
	}
}

// readUntilClosed drains control frames and closes gone once the peer
// disconnects or stops answering pings.
func readUntilClosed(conn *websocket.Conn, gone chan<- struct{}) {
	defer close(gone)
	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(pongWait)) //nolint:errcheck
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
