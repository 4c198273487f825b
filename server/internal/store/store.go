package store

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ragchat/answerrelay/pkg/relay"
)

// Entry is one pending answer together with the time the relay received it.
type Entry struct {
	UserID    string
	Answer    string
	Timestamp string // producer timestamp, or arrival time when none was given

	// ReceivedAt is used only for expiry and is never sent to consumers.
	ReceivedAt time.Time
}

// ToAnswer returns the consumer-facing view of e.
func (e *Entry) ToAnswer() relay.Answer {
	return relay.Answer{UserID: e.UserID, Answer: e.Answer, Timestamp: e.Timestamp}
}

// Stats holds cumulative store counters.
type Stats struct {
	Stored   int64 // successful puts
	Replaced int64 // puts that overwrote an unclaimed answer
	Claimed  int64 // answers handed out by Take
	Expired  int64 // answers removed by eviction, including lazy expiry in Take
}

// Store is a thread-safe in-memory answer store keyed by user ID.
// A background goroutine (Run) periodically evicts entries older than maxAge.
type Store struct {
	mu           sync.Mutex
	data         map[string]*Entry
	stats        Stats
	maxAge       time.Duration
	reapInterval time.Duration
	now          func() time.Time // injectable for deterministic tests
}

// New creates a Store that evicts answers older than maxAge, checking every
// reapInterval. A non-positive reapInterval defaults to half of maxAge.
func New(maxAge, reapInterval time.Duration) *Store {
	if reapInterval <= 0 {
		reapInterval = maxAge / 2
	}
	return &Store{
		data:         make(map[string]*Entry),
		maxAge:       maxAge,
		reapInterval: reapInterval,
		now:          time.Now,
	}
}

// MaxAge returns the eviction age.
func (s *Store) MaxAge() time.Duration { return s.maxAge }

// Put stores the answer for userID, replacing any unclaimed one. An empty
// producedAt is replaced by the current time. It reports whether a previous
// answer was discarded.
func (s *Store) Put(userID, answer, producedAt string) (replaced bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if producedAt == "" {
		producedAt = now.UTC().Format(relay.TimeFormat)
	}
	_, replaced = s.data[userID]
	s.data[userID] = &Entry{
		UserID:     userID,
		Answer:     answer,
		Timestamp:  producedAt,
		ReceivedAt: now,
	}
	s.stats.Stored++
	if replaced {
		s.stats.Replaced++
	}
	return replaced
}

// Take removes and returns the answer for userID. The second result is false
// when no answer is pending. An answer already past maxAge that the reaper has
// not reached yet is dropped and reported as absent.
func (s *Store) Take(userID string) (*Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.data[userID]
	if !ok {
		return nil, false
	}
	delete(s.data, userID)
	if expired(e, s.now(), s.maxAge) {
		s.stats.Expired++
		return nil, false
	}
	s.stats.Claimed++
	return e, true
}

// Count returns the number of unclaimed answers currently held.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data)
}

// Stats returns a copy of the cumulative counters.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// EvictOlderThan removes every entry received more than maxAge before now and
// returns the number removed. Nobody is notified.
func (s *Store) EvictOlderThan(maxAge time.Duration, now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, e := range s.data {
		if expired(e, now, maxAge) {
			delete(s.data, id)
			removed++
		}
	}
	s.stats.Expired += int64(removed)
	return removed
}

// Evict is EvictOlderThan with the store's configured max age.
func (s *Store) Evict(now time.Time) int {
	return s.EvictOlderThan(s.maxAge, now)
}

func expired(e *Entry, now time.Time, maxAge time.Duration) bool {
	return now.Sub(e.ReceivedAt) > maxAge
}

// Run starts the background eviction loop, ticking every reapInterval
// (minimum 10ms). Run blocks until ctx is cancelled and stops its ticker
// before returning.
func (s *Store) Run(ctx context.Context) {
	interval := s.reapInterval
	if interval < 10*time.Millisecond {
		interval = 10 * time.Millisecond
	}
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := s.Evict(s.now()); n > 0 {
				slog.Debug("store: evicted unclaimed answers", "count", n, "max_age", s.maxAge)
			}
		}
	}
}
