package refresh

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func newTestCoordinator(t *testing.T, workers int) (*Coordinator, *Collector) {
	t.Helper()
	metrics := NewMetricsCollector()
	c := NewCoordinator(Config{Workers: workers, Timeout: 5 * time.Second, Metrics: metrics})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = c.Close(ctx)
	})
	return c, metrics
}

func wait(t *testing.T, p *Pending) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := p.Wait(ctx)
	require.NotErrorIs(t, err, context.DeadlineExceeded, "refresh did not finish")
	return err
}

func TestCoordinator_CoalescesSameKey(t *testing.T) {
	defer goleak.VerifyNone(t)
	c, metrics := newTestCoordinator(t, 4)

	var calls atomic.Int32
	release := make(chan struct{})
	started := make(chan struct{})
	fn := func(ctx context.Context) error {
		if calls.Add(1) == 1 {
			close(started)
		}
		<-release
		return nil
	}

	first := c.Schedule("animals:scope:1", fn)
	<-started
	second := c.Schedule("animals:scope:1", fn)
	close(release)

	require.NoError(t, wait(t, first))
	require.NoError(t, wait(t, second))
	assert.Equal(t, int32(1), calls.Load())
	assert.True(t, second.Shared())

	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.scheduled.WithLabelValues("animals")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.executed.WithLabelValues("animals")))
}

func TestCoordinator_SequentialCallsRunAgain(t *testing.T) {
	defer goleak.VerifyNone(t)
	c, _ := newTestCoordinator(t, 4)

	var calls atomic.Int32
	fn := func(ctx context.Context) error {
		calls.Add(1)
		return nil
	}

	require.NoError(t, c.Run(context.Background(), "animals:scope:1", fn))
	require.NoError(t, c.Run(context.Background(), "animals:scope:1", fn))
	assert.Equal(t, int32(2), calls.Load())
}

func TestCoordinator_DifferentKeysDoNotCoalesce(t *testing.T) {
	defer goleak.VerifyNone(t)
	c, _ := newTestCoordinator(t, 4)

	var calls atomic.Int32
	fn := func(ctx context.Context) error {
		calls.Add(1)
		return nil
	}

	a := c.Schedule("animals:scope:1", fn)
	b := c.Schedule("animals:scope:2", fn)
	require.NoError(t, wait(t, a))
	require.NoError(t, wait(t, b))
	assert.Equal(t, int32(2), calls.Load())
}

func TestCoordinator_BoundsConcurrency(t *testing.T) {
	defer goleak.VerifyNone(t)
	c, _ := newTestCoordinator(t, 2)

	var running, peak atomic.Int32
	release := make(chan struct{})
	fn := func(ctx context.Context) error {
		n := running.Add(1)
		for {
			old := peak.Load()
			if n <= old || peak.CompareAndSwap(old, n) {
				break
			}
		}
		<-release
		running.Add(-1)
		return nil
	}

	var pending []*Pending
	for i := 0; i < 6; i++ {
		pending = append(pending, c.Schedule(fmt.Sprintf("exams:scope:%d", i), fn))
	}
	require.Eventually(t, func() bool { return running.Load() == 2 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(release)

	for _, p := range pending {
		require.NoError(t, wait(t, p))
	}
	assert.Equal(t, int32(2), peak.Load())
}

func TestCoordinator_Failure(t *testing.T) {
	defer goleak.VerifyNone(t)
	c, metrics := newTestCoordinator(t, 1)

	boom := errors.New("connection refused")
	err := c.Run(context.Background(), "vaccines:scope:3", func(ctx context.Context) error {
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.failed.WithLabelValues("vaccines")))
}

func TestCoordinator_RecoversPanic(t *testing.T) {
	defer goleak.VerifyNone(t)
	c, metrics := newTestCoordinator(t, 1)

	err := c.Run(context.Background(), "clinics:scope:0", func(ctx context.Context) error {
		panic("nil map")
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panicked")
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.failed.WithLabelValues("clinics")))

	require.NoError(t, c.Run(context.Background(), "clinics:scope:0", func(ctx context.Context) error {
		return nil
	}))
}

func TestCoordinator_WaitCancelDoesNotCancelRefresh(t *testing.T) {
	defer goleak.VerifyNone(t)
	c, _ := newTestCoordinator(t, 1)

	release := make(chan struct{})
	var refreshErr atomic.Value
	p := c.Schedule("users:scope:0", func(ctx context.Context) error {
		<-release
		refreshErr.Store(fmt.Sprint(ctx.Err()))
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, p.Wait(ctx), context.Canceled)

	close(release)
	require.NoError(t, wait(t, p))
	assert.Equal(t, "<nil>", refreshErr.Load())
}

func TestCoordinator_Closed(t *testing.T) {
	defer goleak.VerifyNone(t)
	c := NewCoordinator(Config{Workers: 1})

	var wg sync.WaitGroup
	wg.Add(1)
	p := c.Schedule("animals:scope:1", func(ctx context.Context) error {
		defer wg.Done()
		time.Sleep(20 * time.Millisecond)
		return nil
	})

	require.NoError(t, c.Close(context.Background()))
	wg.Wait()
	select {
	case <-p.Done():
	default:
		t.Fatal("close returned before the running refresh finished")
	}

	late := c.Schedule("animals:scope:1", func(ctx context.Context) error { return nil })
	assert.ErrorIs(t, wait(t, late), ErrClosed)
}

func TestCoordinator_CloseDeadlineCancelsRefresh(t *testing.T) {
	defer goleak.VerifyNone(t)
	c := NewCoordinator(Config{Workers: 1})

	p := c.Schedule("animals:scope:1", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, c.Close(ctx), context.DeadlineExceeded)
	assert.ErrorIs(t, wait(t, p), context.Canceled)
}

func TestEntityOf(t *testing.T) {
	assert.Equal(t, "animals", entityOf("animals:scope:1"))
	assert.Equal(t, "plain", entityOf("plain"))
}
