// Package refresh runs background cache refreshes.
//
// Refreshes are keyed by "<entity>:<shape>:<id>" (for example
// "animals:scope:7"). While a refresh for a key is running, further requests
// for the same key attach to it instead of starting a second remote fetch.
// At most Workers refreshes run at once; the rest wait for a slot.
package refresh

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"
)

// ErrClosed is returned for work scheduled after Close.
var ErrClosed = errors.New("refresh coordinator is closed")

const (
	DefaultWorkers = 4
	DefaultTimeout = time.Minute
)

// Func performs one refresh. The context is owned by the coordinator, not by
// whoever asked for the refresh.
type Func func(ctx context.Context) error

type Config struct {
	Workers int
	Timeout time.Duration
	Metrics *Collector
}

type Coordinator struct {
	group   singleflight.Group
	sem     *semaphore.Weighted
	timeout time.Duration
	metrics *Collector

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

func NewCoordinator(cfg Config) *Coordinator {
	workers := cfg.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = NewMetricsCollector()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Coordinator{
		sem:     semaphore.NewWeighted(int64(workers)),
		timeout: timeout,
		metrics: metrics,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Pending tracks one scheduled refresh.
type Pending struct {
	done   chan struct{}
	err    error
	shared bool
}

// Done is closed once the refresh finished.
func (p *Pending) Done() <-chan struct{} {
	return p.done
}

// Err returns the refresh error. Only valid after Done is closed.
func (p *Pending) Err() error {
	return p.err
}

// Shared reports whether the result came from a refresh started by another caller.
func (p *Pending) Shared() bool {
	return p.shared
}

// Wait blocks until the refresh finishes or ctx is done. Giving up on ctx
// does not stop the refresh.
func (p *Pending) Wait(ctx context.Context) error {
	select {
	case <-p.done:
		return p.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Schedule starts fn for key unless a refresh for key is already running, in
// which case the returned Pending completes with that refresh.
func (c *Coordinator) Schedule(key string, fn Func) *Pending {
	p := &Pending{done: make(chan struct{})}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		p.err = ErrClosed
		close(p.done)
		return p
	}
	c.wg.Add(1)
	c.mu.Unlock()

	c.metrics.scheduled.WithLabelValues(entityOf(key)).Inc()

	results := c.group.DoChan(key, func() (interface{}, error) {
		return nil, c.execute(key, fn)
	})
	go func() {
		defer c.wg.Done()
		res := <-results
		p.err = res.Err
		p.shared = res.Shared
		close(p.done)
	}()
	return p
}

// Run schedules fn and waits for it.
func (c *Coordinator) Run(ctx context.Context, key string, fn Func) error {
	return c.Schedule(key, fn).Wait(ctx)
}

// Close stops accepting work and waits for running refreshes. If ctx ends
// first, running refreshes are cancelled and ctx.Err is returned.
func (c *Coordinator) Close(ctx context.Context) error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		c.cancel()
		return nil
	case <-ctx.Done():
		c.cancel()
		<-done
		return ctx.Err()
	}
}

func (c *Coordinator) execute(key string, fn Func) (err error) {
	entity := entityOf(key)

	if err := c.sem.Acquire(c.ctx, 1); err != nil {
		return fmt.Errorf("refresh %s not started: %w", key, err)
	}
	defer c.sem.Release(1)

	c.metrics.inFlight.Inc()
	defer c.metrics.inFlight.Dec()

	ctx, cancel := context.WithTimeout(c.ctx, c.timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("refresh %s panicked: %v", key, r)
		}
		c.metrics.executed.WithLabelValues(entity).Inc()
		if err != nil {
			c.metrics.failed.WithLabelValues(entity).Inc()
			log.Printf("Refresh: %s failed: %v", key, err)
		}
	}()

	return fn(ctx)
}

func entityOf(key string) string {
	entity, _, _ := strings.Cut(key, ":")
	return entity
}
