package repository

import (
	"context"
	"fmt"

	"github.com/vetrecords/vetsync/internal/database"
)

// Guard replaces whole scopes atomically.
type Guard[E database.Record] struct {
	store Store[E]
}

func NewGuard[E database.Record](store Store[E]) *Guard[E] {
	return &Guard[E]{store: store}
}

// ReplaceScope makes rows the complete content of scope. Readers see either
// the old set or the new one; an empty rows still clears the scope. A row
// whose ScopeKey is not scope rejects the whole replace with ErrScopeMismatch.
func (g *Guard[E]) ReplaceScope(ctx context.Context, scope uint, rows []E) error {
	for _, row := range rows {
		if row.ScopeKey() != scope {
			return fmt.Errorf("%w: id %d has scope %d, want %d", ErrScopeMismatch, row.PrimaryKey(), row.ScopeKey(), scope)
		}
	}
	return g.store.Transaction(ctx, func(tx database.Writer[E]) error {
		if err := tx.DeleteWhere(ctx, scope); err != nil {
			return err
		}
		return tx.UpsertAll(ctx, rows)
	})
}
