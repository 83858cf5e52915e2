// Package bridge turns store change notifications into cancellable read streams.
//
// One feed exists per key (for example "scope:7" on the animals table). A feed
// holds a single store watch and re-runs its query after every matching
// change; the result is fanned out to every observer of the key. Delivery is
// latest-value: each observer has a one-slot buffer, so a slow reader skips
// intermediate snapshots instead of blocking the feed.
package bridge

import (
	"context"
	"log"
	"sync"

	"github.com/vetrecords/vetsync/internal/database"
)

// Source is the store primitive a feed watches.
type Source interface {
	Watch(fn func(database.Change)) func()
}

// Query produces the current value of a feed.
type Query[T any] func(ctx context.Context) (T, error)

// Match reports whether a change may affect the query result.
type Match func(database.Change) bool

// CancelFunc detaches one observer. It is safe to call more than once.
type CancelFunc func()

// Stream is the read side handed to one observer. The channel is closed on cancel.
type Stream[T any] struct {
	c chan T
}

// C returns the channel of snapshots.
func (s *Stream[T]) C() <-chan T {
	return s.c
}

// Next blocks until the next snapshot, the stream is cancelled or ctx is done.
func (s *Stream[T]) Next(ctx context.Context) (T, bool) {
	select {
	case v, ok := <-s.c:
		return v, ok
	case <-ctx.Done():
		var zero T
		return zero, false
	}
}

// offer replaces any unread snapshot with v. Callers hold the feed lock.
func (s *Stream[T]) offer(v T) {
	select {
	case <-s.c:
	default:
	}
	select {
	case s.c <- v:
	default:
	}
}

type Bridge[T any] struct {
	source Source
	name   string

	mu    sync.Mutex
	feeds map[string]*feed[T]
}

// New creates a bridge over one store table; name is used in log lines.
func New[T any](source Source, name string) *Bridge[T] {
	return &Bridge[T]{
		source: source,
		name:   name,
		feeds:  make(map[string]*feed[T]),
	}
}

// Subscribe attaches an observer to the feed of key, creating it on first use.
// The first emission is the current query result. query and match are only
// used when the feed is created; later subscribers to the same key share it.
func (b *Bridge[T]) Subscribe(key string, query Query[T], match Match) (*Stream[T], CancelFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()

	f, ok := b.feeds[key]
	if !ok {
		f = b.start(key, query, match)
		b.feeds[key] = f
	}

	stream := &Stream[T]{c: make(chan T, 1)}
	f.mu.Lock()
	f.nextID++
	id := f.nextID
	f.observers[id] = stream
	if f.hasLast {
		stream.offer(f.last)
	}
	f.mu.Unlock()

	var once sync.Once
	return stream, func() {
		once.Do(func() { b.detach(key, f, id) })
	}
}

// Len returns the number of live feeds.
func (b *Bridge[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.feeds)
}

// Close tears down every feed and closes every stream.
func (b *Bridge[T]) Close() {
	b.mu.Lock()
	feeds := b.feeds
	b.feeds = make(map[string]*feed[T])
	for _, f := range feeds {
		f.mu.Lock()
		for id, stream := range f.observers {
			delete(f.observers, id)
			close(stream.c)
		}
		f.mu.Unlock()
	}
	b.mu.Unlock()

	for _, f := range feeds {
		f.shutdown()
	}
}

func (b *Bridge[T]) detach(key string, f *feed[T], id uint64) {
	b.mu.Lock()
	f.mu.Lock()
	stream, ok := f.observers[id]
	if ok {
		delete(f.observers, id)
		close(stream.c)
	}
	remaining := len(f.observers)
	f.mu.Unlock()

	last := remaining == 0 && b.feeds[key] == f
	if last {
		delete(b.feeds, key)
	}
	b.mu.Unlock()

	if last {
		f.shutdown()
	}
}

func (b *Bridge[T]) start(key string, query Query[T], match Match) *feed[T] {
	ctx, cancel := context.WithCancel(context.Background())
	f := &feed[T]{
		bridge:    b.name,
		key:       key,
		query:     query,
		ctx:       ctx,
		cancel:    cancel,
		notify:    make(chan struct{}, 1),
		done:      make(chan struct{}),
		observers: make(map[uint64]*Stream[T]),
	}
	// Watch before the first query so no commit falls between the two.
	f.unwatch = b.source.Watch(func(ch database.Change) {
		if match == nil || match(ch) {
			f.poke()
		}
	})
	go f.run()
	return f
}

type feed[T any] struct {
	bridge string
	key    string
	query  Query[T]

	ctx     context.Context
	cancel  context.CancelFunc
	unwatch func()
	notify  chan struct{}
	done    chan struct{}

	mu        sync.Mutex
	observers map[uint64]*Stream[T]
	nextID    uint64
	last      T
	hasLast   bool
}

func (f *feed[T]) poke() {
	select {
	case f.notify <- struct{}{}:
	default:
	}
}

func (f *feed[T]) run() {
	defer close(f.done)

	f.emit()
	for {
		select {
		case <-f.ctx.Done():
			return
		case <-f.notify:
			f.emit()
		}
	}
}

func (f *feed[T]) emit() {
	v, err := f.query(f.ctx)
	if err != nil {
		if f.ctx.Err() == nil {
			log.Printf("Bridge %s: query for %s failed, keeping last value: %v", f.bridge, f.key, err)
		}
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ctx.Err() != nil {
		return
	}
	f.last = v
	f.hasLast = true
	for _, stream := range f.observers {
		stream.offer(v)
	}
}

func (f *feed[T]) shutdown() {
	f.unwatch()
	f.cancel()
	<-f.done
}
