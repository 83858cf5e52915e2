package bridge

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/vetrecords/vetsync/internal/database"
)

type fakeSource struct {
	mu       sync.Mutex
	next     int
	watchers map[int]func(database.Change)
}

func newFakeSource() *fakeSource {
	return &fakeSource{watchers: make(map[int]func(database.Change))}
}

func (s *fakeSource) Watch(fn func(database.Change)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	id := s.next
	s.watchers[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.watchers, id)
	}
}

func (s *fakeSource) publish(ch database.Change) {
	s.mu.Lock()
	fns := make([]func(database.Change), 0, len(s.watchers))
	for _, fn := range s.watchers {
		fns = append(fns, fn)
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn(ch)
	}
}

func (s *fakeSource) active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.watchers)
}

type fakeQuery struct {
	mu    sync.Mutex
	value int
	err   error
	calls int
}

func (q *fakeQuery) set(v int, err error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.value = v
	q.err = err
}

func (q *fakeQuery) run(context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.calls++
	return q.value, q.err
}

func (q *fakeQuery) count() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.calls
}

func scopeMatch(scope uint) Match {
	return func(ch database.Change) bool { return ch.AffectsScope(scope) }
}

func next(t *testing.T, s *Stream[int]) int {
	t.Helper()
	select {
	case v, ok := <-s.C():
		require.True(t, ok, "stream closed")
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("no emission")
		return 0
	}
}

func TestBridge_FirstEmissionIsCurrentResult(t *testing.T) {
	defer goleak.VerifyNone(t)

	source := newFakeSource()
	query := &fakeQuery{value: 42}
	b := New[int](source, "animals")

	stream, cancel := b.Subscribe("scope:1", query.run, scopeMatch(1))
	defer cancel()

	assert.Equal(t, 42, next(t, stream))
}

func TestBridge_ReEmitsOnMatchingChange(t *testing.T) {
	defer goleak.VerifyNone(t)

	source := newFakeSource()
	query := &fakeQuery{value: 1}
	b := New[int](source, "animals")

	stream, cancel := b.Subscribe("scope:1", query.run, scopeMatch(1))
	defer cancel()
	require.Equal(t, 1, next(t, stream))

	query.set(2, nil)
	source.publish(database.Change{Scopes: []uint{1}})
	assert.Equal(t, 2, next(t, stream))

	calls := query.count()
	source.publish(database.Change{Scopes: []uint{9}})
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, calls, query.count(), "unrelated change must not re-run the query")
}

func TestBridge_SharesOneWatchPerKey(t *testing.T) {
	defer goleak.VerifyNone(t)

	source := newFakeSource()
	query := &fakeQuery{value: 5}
	b := New[int](source, "animals")

	first, cancelFirst := b.Subscribe("scope:1", query.run, scopeMatch(1))
	require.Equal(t, 5, next(t, first))
	second, cancelSecond := b.Subscribe("scope:1", query.run, scopeMatch(1))
	assert.Equal(t, 5, next(t, second), "late observer gets the last value")

	assert.Equal(t, 1, source.active())
	assert.Equal(t, 1, b.Len())

	query.set(6, nil)
	source.publish(database.Change{Scopes: []uint{1}})
	assert.Equal(t, 6, next(t, first))
	assert.Equal(t, 6, next(t, second))

	cancelFirst()
	_, ok := <-first.C()
	assert.False(t, ok, "cancelled stream is closed")
	assert.Equal(t, 1, source.active())

	query.set(7, nil)
	source.publish(database.Change{Scopes: []uint{1}})
	assert.Equal(t, 7, next(t, second))

	cancelSecond()
	assert.Equal(t, 0, source.active())
	assert.Equal(t, 0, b.Len())
}

func TestBridge_CancelIsIdempotent(t *testing.T) {
	defer goleak.VerifyNone(t)

	source := newFakeSource()
	query := &fakeQuery{}
	b := New[int](source, "animals")

	_, cancel := b.Subscribe("scope:1", query.run, nil)
	cancel()
	cancel()
	assert.Equal(t, 0, b.Len())
}

func TestBridge_NoEmissionAfterCancel(t *testing.T) {
	defer goleak.VerifyNone(t)

	source := newFakeSource()
	query := &fakeQuery{value: 1}
	b := New[int](source, "animals")

	stream, cancel := b.Subscribe("scope:1", query.run, nil)
	require.Equal(t, 1, next(t, stream))
	cancel()

	source.publish(database.Change{Scopes: []uint{1}})
	for v := range stream.C() {
		t.Fatalf("unexpected emission %d", v)
	}
}

func TestBridge_LatestValueForSlowObserver(t *testing.T) {
	defer goleak.VerifyNone(t)

	source := newFakeSource()
	query := &fakeQuery{value: 0}
	b := New[int](source, "animals")

	stream, cancel := b.Subscribe("scope:1", query.run, nil)
	defer cancel()

	for i := 1; i <= 5; i++ {
		query.set(i, nil)
		source.publish(database.Change{Scopes: []uint{1}})
	}

	require.Eventually(t, func() bool {
		select {
		case v := <-stream.C():
			return v == 5
		default:
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)
}

func TestBridge_QueryErrorKeepsStreamAlive(t *testing.T) {
	defer goleak.VerifyNone(t)

	source := newFakeSource()
	query := &fakeQuery{value: 1}
	b := New[int](source, "animals")

	stream, cancel := b.Subscribe("scope:1", query.run, nil)
	defer cancel()
	require.Equal(t, 1, next(t, stream))

	query.set(0, errors.New("database is locked"))
	source.publish(database.Change{Scopes: []uint{1}})
	require.Eventually(t, func() bool { return query.count() >= 2 }, time.Second, 5*time.Millisecond)

	query.set(3, nil)
	source.publish(database.Change{Scopes: []uint{1}})
	assert.Equal(t, 3, next(t, stream))
}

func TestBridge_Close(t *testing.T) {
	defer goleak.VerifyNone(t)

	source := newFakeSource()
	query := &fakeQuery{value: 1}
	b := New[int](source, "animals")

	a, cancelA := b.Subscribe("scope:1", query.run, nil)
	c, _ := b.Subscribe("scope:2", query.run, nil)

	b.Close()
	cancelA()

	for range a.C() {
	}
	for range c.C() {
	}
	assert.Equal(t, 0, source.active())
	assert.Equal(t, 0, b.Len())
}

func TestStream_Next(t *testing.T) {
	defer goleak.VerifyNone(t)

	source := newFakeSource()
	query := &fakeQuery{value: 9}
	b := New[int](source, "animals")

	stream, cancel := b.Subscribe("scope:1", query.run, nil)
	ctx, stop := context.WithTimeout(context.Background(), 2*time.Second)
	defer stop()

	v, ok := stream.Next(ctx)
	require.True(t, ok)
	assert.Equal(t, 9, v)

	cancel()
	_, ok = stream.Next(ctx)
	assert.False(t, ok)
}
