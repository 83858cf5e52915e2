package repository

import (
	"context"

	"github.com/vetrecords/vetsync/internal/database"
	"github.com/vetrecords/vetsync/internal/refresh"
)

// Source is the remote side of one entity type.
type Source[E any, R any] interface {
	FetchScope(ctx context.Context, scope uint) ([]E, error)
	// FetchOne returns nil, nil when the server reports the item gone.
	FetchOne(ctx context.Context, id uint) (*E, error)
	Create(ctx context.Context, req R) (*E, error)
	Update(ctx context.Context, id uint, req R) (*E, error)
	Delete(ctx context.Context, id uint) error
}

// Store is the local side of one entity type.
type Store[E database.Record] interface {
	database.Writer[E]
	Transaction(ctx context.Context, fn func(tx database.Writer[E]) error) error
	Watch(fn func(database.Change)) func()
}

// Scheduler runs coalesced background refreshes.
type Scheduler interface {
	Schedule(key string, fn refresh.Func) *refresh.Pending
	Run(ctx context.Context, key string, fn refresh.Func) error
}

// Ledger records scope refresh outcomes.
type Ledger interface {
	Start(entity string, scope uint) error
	Complete(entity string, scope uint, rows int) error
	Fail(entity string, scope uint, cause error) error
}
