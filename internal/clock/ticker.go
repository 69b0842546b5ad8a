package clock

import (
	"context"
	"errors"
	"sync"
	"time"
)

// DefaultInterval is the refresh cadence of a Clock.
const DefaultInterval = time.Second

// ErrAlreadyRunning is returned by Start when the clock is already ticking.
var ErrAlreadyRunning = errors.New("clock is already running")

// Clock drives a Spec on a fixed interval. The owner calls Start at mount and
// Stop at unmount.
type Clock struct {
	spec     Spec
	interval time.Duration
	now      func() time.Time

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// Option configures a Clock.
type Option func(*Clock)

// WithInterval overrides the tick interval.
func WithInterval(d time.Duration) Option {
	return func(c *Clock) {
		if d > 0 {
			c.interval = d
		}
	}
}

// WithNow overrides the time source.
func WithNow(now func() time.Time) Option {
	return func(c *Clock) {
		if now != nil {
			c.now = now
		}
	}
}

// New creates a stopped Clock.
func New(spec Spec, opts ...Option) *Clock {
	c := &Clock{
		spec:     spec,
		interval: DefaultInterval,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Spec returns the clock's configuration.
func (c *Clock) Spec() Spec {
	return c.spec
}

// Now computes a reading for the current time without starting the clock.
func (c *Clock) Now() Breakdown {
	return c.spec.Tick(c.now())
}

// Start calls fn immediately and then once per interval from a background
// goroutine until Stop is called or ctx is done. fn must not call Stop.
func (c *Clock) Start(ctx context.Context, fn func(Breakdown)) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cancel != nil {
		return ErrAlreadyRunning
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	c.cancel = cancel
	c.done = done

	go func() {
		defer close(done)
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()

		for {
			fn(c.spec.Tick(c.now()))
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
	return nil
}

// Stop halts the ticker and waits for the goroutine to exit. It is safe to
// call on a stopped clock.
func (c *Clock) Stop() {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.cancel, c.done = nil, nil
	c.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Running reports whether Start has been called without a matching Stop.
func (c *Clock) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cancel != nil
}
