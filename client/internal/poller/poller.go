package poller

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ragchat/answerrelay/pkg/relay"
)

// Defaults applied to zero-valued Options fields.
const (
	DefaultInterval      = 2 * time.Second
	DefaultTimeout       = 5 * time.Second
	DefaultMaxConcurrent = 4
)

// Fetcher claims the pending answer for one user. relayclient.Client
// satisfies it.
type Fetcher interface {
	Poll(ctx context.Context, userID string) (*relay.Answer, bool, error)
}

// Message is one delivered answer.
type Message struct {
	UserID    string
	Answer    string
	Timestamp string
}

// Options tunes the polling loop.
type Options struct {
	Interval      time.Duration
	Timeout       time.Duration
	MaxConcurrent int

	// BufferSize is the capacity of the Messages channel. Zero means
	// unbuffered.
	BufferSize int
}

// Stats is a snapshot of the poller's counters.
type Stats struct {
	Ticks     int64
	Delivered int64
	Discarded int64
	Errors    int64
}

// Poller polls the relay for a set of users.
type Poller struct {
	client Fetcher
	opts   Options
	out    chan Message

	mu    sync.RWMutex
	users []string

	started atomic.Bool

	ticks     atomic.Int64
	delivered atomic.Int64
	discarded atomic.Int64
	failures  atomic.Int64
}

// New returns a Poller that fetches answers through client for users.
func New(client Fetcher, users []string, opts Options) *Poller {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = DefaultMaxConcurrent
	}
	if opts.BufferSize < 0 {
		opts.BufferSize = 0
	}

	p := &Poller{
		client: client,
		opts:   opts,
		out:    make(chan Message, opts.BufferSize),
	}
	p.SetUsers(users)
	return p
}

// Messages returns the delivery channel. It is closed after the loop started
// by Start has stopped.
func (p *Poller) Messages() <-chan Message { return p.out }

// SetUsers replaces the set of polled users, effective from the next tick.
func (p *Poller) SetUsers(users []string) {
	cp := append([]string(nil), users...)
	p.mu.Lock()
	p.users = cp
	p.mu.Unlock()
}

// Users returns a copy of the current user set.
func (p *Poller) Users() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]string(nil), p.users...)
}

// Stats returns the current counters.
func (p *Poller) Stats() Stats {
	return Stats{
		Ticks:     p.ticks.Load(),
		Delivered: p.delivered.Load(),
		Discarded: p.discarded.Load(),
		Errors:    p.failures.Load(),
	}
}

// Start launches the polling loop and returns its stop function. stop cancels
// the loop and blocks until every in-flight poll has returned; it may be
// called any number of times. The loop also stops when ctx is cancelled.
// Start must be called at most once.
func (p *Poller) Start(ctx context.Context) (stop func()) {
	if !p.started.CompareAndSwap(false, true) {
		panic("poller: Start called twice")
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go p.loop(ctx, done)

	return sync.OnceFunc(func() {
		cancel()
		<-done
	})
}

func (p *Poller) loop(ctx context.Context, done chan<- struct{}) {
	defer close(done)
	defer close(p.out)

	slog.Info("poller: started",
		"users", len(p.Users()),
		"interval", p.opts.Interval,
		"timeout", p.opts.Timeout,
	)

	t := time.NewTicker(p.opts.Interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("poller: stopped", "ticks", p.ticks.Load(), "delivered", p.delivered.Load())
			return
		case <-t.C:
			p.tick(ctx)
		}
	}
}

// tick polls every user once and returns when all polls have finished.
func (p *Poller) tick(ctx context.Context) {
	p.ticks.Add(1)

	var g errgroup.Group
	g.SetLimit(p.opts.MaxConcurrent)

	for _, user := range p.Users() {
		if ctx.Err() != nil {
			break
		}
		user := user // per-iteration copy: toolchain is go1.21 (pre-1.22 loopvar semantics)
		g.Go(func() error {
			p.pollOne(ctx, user)
			return nil
		})
	}
	g.Wait() //nolint:errcheck
}

func (p *Poller) pollOne(ctx context.Context, user string) {
	pctx, cancel := context.WithTimeout(ctx, p.opts.Timeout)
	defer cancel()

	a, ok, err := p.client.Poll(pctx, user)
	switch {
	case ctx.Err() != nil:
		if ok {
			p.discarded.Add(1)
			slog.Warn("poller: answer arrived after stop, discarded", "user", user)
		}
		return
	case err != nil:
		p.failures.Add(1)
		slog.Warn("poller: poll failed", "user", user, "err", err)
		return
	case !ok:
		return
	}

	msg := Message{UserID: a.UserID, Answer: a.Answer, Timestamp: a.Timestamp}
	if msg.UserID == "" {
		msg.UserID = user
	}

	// A stop that lands after the Poll returned must still win over a free
	// buffer slot.
	select {
	case <-ctx.Done():
		p.discarded.Add(1)
		slog.Warn("poller: answer arrived after stop, discarded", "user", user)
		return
	default:
	}

	select {
	case p.out <- msg:
		p.delivered.Add(1)
		slog.Debug("poller: delivered answer", "user", user)
	case <-ctx.Done():
		p.discarded.Add(1)
		slog.Warn("poller: answer arrived after stop, discarded", "user", user)
	}
}

// Dispatch calls fn once for every message received from messages until the
// channel is closed (returns nil) or ctx is done (returns ctx.Err()).
func Dispatch(ctx context.Context, messages <-chan Message, fn func(Message)) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m, ok := <-messages:
			if !ok {
				return nil
			}
			fn(m)
		}
	}
}
