package health

import (
	"context"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/ragchat/answerrelay/pkg/relay"
)

const (
	backoffInitial    = 1 * time.Second
	backoffMultiplier = 2.0
	checkTimeout      = 5 * time.Second
)

// State is the relay connectivity as seen by the client.
type State int

const (
	StateConnecting State = iota
	StateConnected
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	default:
		return "connecting"
	}
}

// Checker reads the relay health. relayclient.Client satisfies it.
type Checker interface {
	Health(ctx context.Context) (*relay.HealthResponse, error)
}

// Monitor periodically checks relay health.
type Monitor struct {
	checker    Checker
	interval   time.Duration
	maxBackoff time.Duration
	changes    chan State

	// wait is the sleep between checks; tests replace it.
	wait func(ctx context.Context, d time.Duration) bool

	mu      sync.RWMutex
	state   State
	pending int
}

// New returns a Monitor that checks every interval while connected and backs
// off up to maxBackoff while disconnected.
func New(c Checker, interval, maxBackoff time.Duration) *Monitor {
	if maxBackoff < backoffInitial {
		maxBackoff = backoffInitial
	}
	return &Monitor{
		checker:    c,
		interval:   interval,
		maxBackoff: maxBackoff,
		changes:    make(chan State, 1),
		wait:       sleepCtx,
	}
}

// State returns the current connectivity state.
func (m *Monitor) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Connected reports whether the last health check succeeded.
func (m *Monitor) Connected() bool { return m.State() == StateConnected }

// Pending returns stored_responses from the last successful check.
func (m *Monitor) Pending() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pending
}

// Changes delivers state transitions. Only the latest unread transition is
// kept, so a slow reader sees the current state rather than a backlog.
func (m *Monitor) Changes() <-chan State { return m.changes }

// Run checks health until ctx is cancelled, then closes Changes.
func (m *Monitor) Run(ctx context.Context) {
	defer close(m.changes)

	bo := newBackoff(m.maxBackoff)
	for {
		if ctx.Err() != nil {
			return
		}

		cctx, cancel := context.WithTimeout(ctx, checkTimeout)
		h, err := m.checker.Health(cctx)
		cancel()

		if ctx.Err() != nil {
			return
		}

		var wait time.Duration
		if err != nil {
			wait = bo.next()
			if m.set(StateDisconnected, 0) {
				slog.Warn("health: relay unreachable", "err", err, "retry_in", wait)
			}
		} else {
			bo.reset()
			wait = m.interval
			if m.set(StateConnected, h.StoredResponses) {
				slog.Info("health: relay connected", "stored_responses", h.StoredResponses)
			}
		}

		if !m.wait(ctx, wait) {
			return
		}
	}
}

// set records s and reports whether it was a transition.
func (m *Monitor) set(s State, pending int) bool {
	m.mu.Lock()
	changed := m.state != s
	m.state = s
	m.pending = pending
	m.mu.Unlock()

	if changed {
		m.emit(s)
	}
	return changed
}

// emit replaces any unread transition with s.
func (m *Monitor) emit(s State) {
	for {
		select {
		case m.changes <- s:
			return
		default:
		}
		select {
		case <-m.changes:
		default:
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// backoff implements truncated exponential backoff with jitter.
type backoff struct {
	current time.Duration
	limit   time.Duration
}

func newBackoff(limit time.Duration) *backoff {
	return &backoff{current: backoffInitial, limit: limit}
}

// next returns the jittered wait and advances the state.
func (b *backoff) next() time.Duration {
	d := b.current
	jitter := time.Duration(float64(b.current) * 0.25 * (rand.Float64()*2 - 1)) //nolint:gosec // not crypto
	d += jitter
	if d < 0 {
		d = 0
	}

	b.current = time.Duration(float64(b.current) * backoffMultiplier)
	if b.current > b.limit {
		b.current = b.limit
	}
	return d
}

func (b *backoff) reset() {
	b.current = backoffInitial
}
