package poller

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// FetchFunc is one poll. Returned errors are logged and dropped.
type FetchFunc func(ctx context.Context) error

type Option func(*Poller)

// WithInitialDelay sets how long to wait before the first invocation.
func WithInitialDelay(d time.Duration) Option {
	return func(p *Poller) {
		if d >= 0 {
			p.initialDelay = d
		}
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(p *Poller) {
		if logger != nil {
			p.logger = logger
		}
	}
}

func WithName(name string) Option {
	return func(p *Poller) {
		p.name = name
	}
}

// Poller calls fetch on a fixed interval while enabled. At most one fetch runs at a
// time; a tick that finds one in flight is skipped, not queued.
type Poller struct {
	fetch        FetchFunc
	interval     time.Duration
	initialDelay time.Duration
	logger       *zap.Logger
	name         string

	inFlight atomic.Bool
	calls    atomic.Int64
	skipped  atomic.Int64

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running sync.WaitGroup
}

func New(fetch FetchFunc, interval time.Duration, opts ...Option) *Poller {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	p := &Poller{
		fetch:    fetch,
		interval: interval,
		logger:   zap.NewNop(),
		name:     "poller",
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start begins polling. Calling Start on a running poller does nothing.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return
	}
	loopCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	go p.loop(loopCtx, p.done)
}

// Stop cancels scheduled work and waits for the loop and any in-flight fetch to return.
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	p.running.Wait()
}

// SetEnabled starts or stops the poller.
func (p *Poller) SetEnabled(ctx context.Context, enabled bool) {
	if enabled {
		p.Start(ctx)
		return
	}
	p.Stop()
}

func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancel != nil
}

// Calls reports how many fetches were started.
func (p *Poller) Calls() int64 {
	return p.calls.Load()
}

// Skipped reports how many ticks were dropped because a fetch was still running.
func (p *Poller) Skipped() int64 {
	return p.skipped.Load()
}

func (p *Poller) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	initial := time.NewTimer(p.initialDelay)
	select {
	case <-ctx.Done():
		initial.Stop()
		return
	case <-initial.C:
	}
	p.tick(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.tick(ctx)
		}
	}
}

func (p *Poller) tick(ctx context.Context) {
	if !p.inFlight.CompareAndSwap(false, true) {
		p.skipped.Add(1)
		p.logger.Debug("poll skipped, previous fetch still running", zap.String("poller", p.name))
		return
	}
	p.calls.Add(1)
	p.running.Add(1)
	go func() {
		defer p.running.Done()
		defer p.inFlight.Store(false)
		if err := p.safeFetch(ctx); err != nil && ctx.Err() == nil {
			p.logger.Debug("polling error", zap.String("poller", p.name), zap.Error(err))
		}
	}()
}

func (p *Poller) safeFetch(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("fetch panicked: %v", r)
		}
	}()
	return p.fetch(ctx)
}
