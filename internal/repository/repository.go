// Package repository implements the offline-first read and write paths of one
// entity type.
//
// Reads are stale-while-revalidate: Observe returns a live stream over the
// local store at once and schedules a background refresh of the scope. Writes
// are write-through: the remote API is called first and the local store is
// only touched with what the server returned.
//
//	repo := repository.New(repository.Config[entities.Animal, entities.AnimalRequest]{
//		Entity:    "animals",
//		Store:     animalsTable,
//		Source:    remote.NewResource[entities.Animal, entities.AnimalRequest](client, "/animais", "tutorId"),
//		Scheduler: coordinator,
//		Ledger:    ledger,
//	})
//	stream, cancel := repo.Observe(tutorID)
//	defer cancel()
package repository

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"

	"github.com/vetrecords/vetsync/internal/bridge"
	"github.com/vetrecords/vetsync/internal/database"
	"github.com/vetrecords/vetsync/internal/refresh"
)

// maxRefreshAttempts bounds how often a refresh re-fetches after losing to a
// local mutation.
const maxRefreshAttempts = 3

type Config[E database.Record, R any] struct {
	// Entity names the type in refresh keys, logs and the ledger.
	Entity    string
	Store     Store[E]
	Source    Source[E, R]
	Scheduler Scheduler
	// Ledger is optional.
	Ledger Ledger
}

type Repository[E database.Record, R any] struct {
	entity string
	store  Store[E]
	source Source[E, R]
	guard  *Guard[E]
	sched  Scheduler
	ledger Ledger
	gens   *generations

	lists *bridge.Bridge[[]E]
	items *bridge.Bridge[*E]
}

func New[E database.Record, R any](cfg Config[E, R]) *Repository[E, R] {
	return &Repository[E, R]{
		entity: cfg.Entity,
		store:  cfg.Store,
		source: cfg.Source,
		guard:  NewGuard[E](cfg.Store),
		sched:  cfg.Scheduler,
		ledger: cfg.Ledger,
		gens:   newGenerations(),
		lists:  bridge.New[[]E](cfg.Store, cfg.Entity),
		items:  bridge.New[*E](cfg.Store, cfg.Entity),
	}
}

func (r *Repository[E, R]) Entity() string {
	return r.entity
}

// Observe streams the rows of scope and schedules one background refresh of
// it. Refresh failures are logged; the stream keeps the cached rows.
func (r *Repository[E, R]) Observe(scope uint) (*bridge.Stream[[]E], bridge.CancelFunc) {
	stream, cancel := r.lists.Subscribe(
		scopeKey("scope", scope),
		func(ctx context.Context) ([]E, error) {
			return r.store.FindByScope(ctx, scope)
		},
		func(ch database.Change) bool {
			return ch.AffectsScope(scope)
		},
	)
	r.sched.Schedule(r.key("scope", scope), r.refreshScope(scope))
	return stream, cancel
}

// ObserveOne streams one row (nil while absent) and schedules a point refresh.
func (r *Repository[E, R]) ObserveOne(id uint) (*bridge.Stream[*E], bridge.CancelFunc) {
	stream, cancel := r.items.Subscribe(
		scopeKey("id", id),
		func(ctx context.Context) (*E, error) {
			return r.store.FindByID(ctx, id)
		},
		func(ch database.Change) bool {
			return ch.AffectsID(id)
		},
	)
	r.sched.Schedule(r.key("id", id), r.refreshOne(id))
	return stream, cancel
}

// Snapshot returns the cached rows of scope without contacting the server.
func (r *Repository[E, R]) Snapshot(ctx context.Context, scope uint) ([]E, error) {
	rows, err := r.store.FindByScope(ctx, scope)
	if err != nil {
		return nil, &StoreError{Entity: r.entity, Op: "read", Err: err}
	}
	return rows, nil
}

// Get returns the cached row or nil.
func (r *Repository[E, R]) Get(ctx context.Context, id uint) (*E, error) {
	row, err := r.store.FindByID(ctx, id)
	if err != nil {
		return nil, &StoreError{Entity: r.entity, Op: "read", Err: err}
	}
	return row, nil
}

// Create calls the server and stores the created row.
func (r *Repository[E, R]) Create(ctx context.Context, req R) (*E, error) {
	row, err := r.source.Create(ctx, req)
	if err != nil {
		return nil, &RemoteError{Entity: r.entity, Op: "create", Err: err}
	}
	err = r.gens.commit(func() ([]uint, error) {
		return []uint{(*row).ScopeKey()}, r.store.Upsert(ctx, *row)
	})
	if err != nil {
		return nil, &StoreError{Entity: r.entity, Op: "create", Err: err}
	}
	return row, nil
}

// Update calls the server, then re-fetches the row so server-computed fields
// are captured. If the re-fetch fails the update response is stored instead.
// When neither carries a row, the server-side update stands, the response is
// returned with ErrIncompleteResponse and a point refresh is scheduled.
func (r *Repository[E, R]) Update(ctx context.Context, id uint, req R) (*E, error) {
	updated, err := r.source.Update(ctx, id, req)
	if err != nil {
		return nil, &RemoteError{Entity: r.entity, Op: "update", Err: err}
	}

	fresh, err := r.source.FetchOne(ctx, id)
	switch {
	case err != nil:
		log.Printf("Repository %s: re-fetch of %d after update failed, storing update response: %v", r.entity, id, err)
		fresh = updated
	case fresh == nil:
		log.Printf("Repository %s: %d is gone right after update, removing it", r.entity, id)
		if err := r.deleteLocal(ctx, id); err != nil {
			return nil, &StoreError{Entity: r.entity, Op: "update", Err: err}
		}
		return updated, nil
	}

	if fresh == nil || (*fresh).PrimaryKey() == 0 {
		r.sched.Schedule(r.key("id", id), r.refreshOne(id))
		return updated, &RemoteError{
			Entity: r.entity,
			Op:     "update",
			Err:    fmt.Errorf("%w: no row for %d", ErrIncompleteResponse, id),
		}
	}

	err = r.gens.commit(func() ([]uint, error) {
		touched := []uint{(*fresh).ScopeKey()}
		if prev, err := r.store.FindByID(ctx, id); err == nil && prev != nil {
			touched = append(touched, (*prev).ScopeKey())
		}
		return touched, r.store.Upsert(ctx, *fresh)
	})
	if err != nil {
		return nil, &StoreError{Entity: r.entity, Op: "update", Err: err}
	}
	return fresh, nil
}

// Delete calls the server and removes the local row. A failed remote delete
// leaves the row in place.
func (r *Repository[E, R]) Delete(ctx context.Context, id, scope uint) error {
	if err := r.source.Delete(ctx, id); err != nil {
		log.Printf("Repository %s: delete of %d (scope %d) failed: %v", r.entity, id, scope, err)
		return &RemoteError{Entity: r.entity, Op: "delete", Err: err}
	}
	if err := r.deleteLocal(ctx, id, scope); err != nil {
		return &StoreError{Entity: r.entity, Op: "delete", Err: err}
	}
	return nil
}

// deleteLocal removes id and marks its stored scope, plus any hinted scopes,
// as written.
func (r *Repository[E, R]) deleteLocal(ctx context.Context, id uint, hints ...uint) error {
	return r.gens.commit(func() ([]uint, error) {
		touched := hints
		if prev, err := r.store.FindByID(ctx, id); err == nil && prev != nil {
			touched = append(touched, (*prev).ScopeKey())
		}
		return touched, r.store.DeleteByID(ctx, id)
	})
}

// RefreshScope replaces scope with the server list. It joins a refresh of the
// same scope already in flight; cancelling ctx stops waiting, not the refresh.
func (r *Repository[E, R]) RefreshScope(ctx context.Context, scope uint) error {
	return r.sched.Run(ctx, r.key("scope", scope), r.refreshScope(scope))
}

// RefreshOne re-fetches one row through the coordinator.
func (r *Repository[E, R]) RefreshOne(ctx context.Context, id uint) error {
	return r.sched.Run(ctx, r.key("id", id), r.refreshOne(id))
}

// Close ends every open stream.
func (r *Repository[E, R]) Close() {
	r.lists.Close()
	r.items.Close()
}

// refreshScope fetches the scope list and replaces the cached scope with it.
// A list fetched before a local mutation of the same scope committed is
// discarded and fetched again, so a stale list never undoes the mutation.
func (r *Repository[E, R]) refreshScope(scope uint) refresh.Func {
	return func(ctx context.Context) error {
		r.recordStart(scope)

		for attempt := 1; ; attempt++ {
			seen := r.gens.scope(scope)
			rows, err := r.source.FetchScope(ctx, scope)
			if err != nil {
				err = &RemoteError{Entity: r.entity, Op: "refresh", Err: err}
				r.recordFailure(scope, err)
				return err
			}

			applied, err := r.gens.applyScope(scope, seen, func() error {
				return r.guard.ReplaceScope(ctx, scope, rows)
			})
			if errors.Is(err, ErrScopeMismatch) {
				err = &RemoteError{Entity: r.entity, Op: "refresh", Err: err}
				r.recordFailure(scope, err)
				return err
			}
			if err != nil {
				err = &StoreError{Entity: r.entity, Op: "refresh", Err: err}
				r.recordFailure(scope, err)
				return err
			}
			if applied {
				r.recordSuccess(scope, len(rows))
				return nil
			}

			if attempt == maxRefreshAttempts {
				err := fmt.Errorf("%s scope %d: %w", r.entity, scope, ErrSuperseded)
				r.recordFailure(scope, err)
				return err
			}
			log.Printf("Repository %s: scope %d was written during refresh, fetching again", r.entity, scope)
		}
	}
}

func (r *Repository[E, R]) refreshOne(id uint) refresh.Func {
	return func(ctx context.Context) error {
		for attempt := 1; ; attempt++ {
			seen := r.gens.all()
			row, err := r.source.FetchOne(ctx, id)
			if err != nil {
				return &RemoteError{Entity: r.entity, Op: "refresh", Err: err}
			}

			applied, err := r.gens.applyAll(seen, func() error {
				if row == nil {
					return r.store.DeleteByID(ctx, id)
				}
				return r.store.Upsert(ctx, *row)
			})
			if err != nil {
				return &StoreError{Entity: r.entity, Op: "refresh", Err: err}
			}
			if applied {
				return nil
			}
			if attempt == maxRefreshAttempts {
				return fmt.Errorf("%s %d: %w", r.entity, id, ErrSuperseded)
			}
		}
	}
}

func (r *Repository[E, R]) recordStart(scope uint) {
	if r.ledger == nil {
		return
	}
	if err := r.ledger.Start(r.entity, scope); err != nil {
		log.Printf("Repository %s: failed to record refresh start of scope %d: %v", r.entity, scope, err)
	}
}

func (r *Repository[E, R]) recordSuccess(scope uint, rows int) {
	if r.ledger == nil {
		return
	}
	if err := r.ledger.Complete(r.entity, scope, rows); err != nil {
		log.Printf("Repository %s: failed to record refresh of scope %d: %v", r.entity, scope, err)
	}
}

func (r *Repository[E, R]) recordFailure(scope uint, cause error) {
	if r.ledger == nil {
		return
	}
	if err := r.ledger.Fail(r.entity, scope, cause); err != nil {
		log.Printf("Repository %s: failed to record refresh failure of scope %d: %v", r.entity, scope, err)
	}
}

func (r *Repository[E, R]) key(shape string, n uint) string {
	return r.entity + ":" + scopeKey(shape, n)
}

func scopeKey(shape string, n uint) string {
	return shape + ":" + strconv.FormatUint(uint64(n), 10)
}

// IsRemote reports whether err came from the remote API.
func IsRemote(err error) bool {
	var remoteErr *RemoteError
	return errors.As(err, &remoteErr)
}
