package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/juju/pubsub/v2"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrMissingID is returned when a row without a server-assigned id is written.
var ErrMissingID = errors.New("row has no server id")

// Record is implemented by every cached entity.
type Record interface {
	// PrimaryKey returns the server-assigned id. Zero means "not from the server".
	PrimaryKey() uint
	// ScopeKey returns the partition value, 0 for unscoped tables.
	ScopeKey() uint
}

// Writer is the set of operations available both on a table and inside
// one of its transactions.
type Writer[E Record] interface {
	Upsert(ctx context.Context, row E) error
	UpsertAll(ctx context.Context, rows []E) error
	DeleteByID(ctx context.Context, id uint) error
	DeleteWhere(ctx context.Context, scope uint) error
	FindByID(ctx context.Context, id uint) (*E, error)
	FindByScope(ctx context.Context, scope uint) ([]E, error)
}

type TableConfig struct {
	// ScopeColumn is the partition column. Empty means the whole table is a
	// single scope (0).
	ScopeColumn string
	// Order is the ORDER BY clause of scope queries. Defaults to "id".
	Order string
}

const idChunk = 500

// Table is the local store of one entity type.
type Table[E Record] struct {
	db   *gorm.DB
	hub  *pubsub.SimpleHub
	name string
	cfg  TableConfig

	// pending collects the change of the surrounding transaction; nil
	// outside of Transaction.
	pending *Change
}

func NewTable[E Record](d *Database, cfg TableConfig) (*Table[E], error) {
	stmt := &gorm.Statement{DB: d.DB}
	if err := stmt.Parse(new(E)); err != nil {
		return nil, fmt.Errorf("failed to parse table schema: %w", err)
	}
	if cfg.Order == "" {
		cfg.Order = "id"
	}
	return &Table[E]{
		db:   d.DB,
		hub:  d.hub,
		name: stmt.Schema.Table,
		cfg:  cfg,
	}, nil
}

func (t *Table[E]) Name() string {
	return t.name
}

func (t *Table[E]) topic() string {
	return "table." + t.name
}

func (t *Table[E]) scoped() bool {
	return t.cfg.ScopeColumn != ""
}

// Upsert inserts the row or replaces the stored row with the same id.
func (t *Table[E]) Upsert(ctx context.Context, row E) error {
	return t.UpsertAll(ctx, []E{row})
}

// UpsertAll writes all rows in one statement batch. Duplicate ids collapse to
// the last occurrence.
func (t *Table[E]) UpsertAll(ctx context.Context, rows []E) error {
	if len(rows) == 0 {
		return nil
	}
	rows, err := dedupe(rows)
	if err != nil {
		return err
	}
	ids := make([]uint, len(rows))
	for i, row := range rows {
		ids[i] = row.PrimaryKey()
	}

	return t.write(ctx, func(tx *gorm.DB, ch *Change) error {
		prior, err := t.scopesOf(tx, ids)
		if err != nil {
			return err
		}
		err = tx.Clauses(clause.OnConflict{UpdateAll: true}).
			CreateInBatches(&rows, 100).Error
		if err != nil {
			return fmt.Errorf("failed to upsert %s: %w", t.name, err)
		}
		for _, row := range rows {
			prior = append(prior, row.ScopeKey())
		}
		ch.add(ids, prior)
		return nil
	})
}

// DeleteByID removes one row. Deleting a missing row is not an error.
func (t *Table[E]) DeleteByID(ctx context.Context, id uint) error {
	return t.write(ctx, func(tx *gorm.DB, ch *Change) error {
		prior, err := t.scopesOf(tx, []uint{id})
		if err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(new(E))
		if res.Error != nil {
			return fmt.Errorf("failed to delete %s %d: %w", t.name, id, res.Error)
		}
		if res.RowsAffected > 0 {
			ch.add([]uint{id}, prior)
		}
		return nil
	})
}

// DeleteWhere removes every row of the scope. On an unscoped table it
// empties the table.
func (t *Table[E]) DeleteWhere(ctx context.Context, scope uint) error {
	return t.write(ctx, func(tx *gorm.DB, ch *Change) error {
		var ids []uint
		q := tx.Model(new(E))
		if t.scoped() {
			q = q.Where(t.cfg.ScopeColumn+" = ?", scope)
		}
		if err := q.Pluck("id", &ids).Error; err != nil {
			return fmt.Errorf("failed to list %s scope %d: %w", t.name, scope, err)
		}

		del := tx.Session(&gorm.Session{AllowGlobalUpdate: true})
		if t.scoped() {
			del = del.Where(t.cfg.ScopeColumn+" = ?", scope)
		}
		if err := del.Delete(new(E)).Error; err != nil {
			return fmt.Errorf("failed to delete %s scope %d: %w", t.name, scope, err)
		}
		ch.add(ids, []uint{t.scopeOrZero(scope)})
		return nil
	})
}

// FindByID returns nil when the row is absent.
func (t *Table[E]) FindByID(ctx context.Context, id uint) (*E, error) {
	var row E
	err := t.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s %d: %w", t.name, id, err)
	}
	return &row, nil
}

func (t *Table[E]) FindByScope(ctx context.Context, scope uint) ([]E, error) {
	rows := []E{}
	q := t.db.WithContext(ctx)
	if t.scoped() {
		q = q.Where(t.cfg.ScopeColumn+" = ?", scope)
	}
	if err := q.Order(t.cfg.Order).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list %s scope %d: %w", t.name, scope, err)
	}
	return rows, nil
}

// Transaction runs fn against a writer bound to one database transaction.
// Changes are published once, after commit; a rollback publishes nothing.
// Nested calls join the outer transaction.
func (t *Table[E]) Transaction(ctx context.Context, fn func(tx Writer[E]) error) error {
	if t.pending != nil {
		return fn(t)
	}
	ch := &Change{Table: t.name}
	err := t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Table[E]{db: tx, hub: t.hub, name: t.name, cfg: t.cfg, pending: ch})
	})
	if err != nil {
		return err
	}
	t.publish(*ch)
	return nil
}

// Watch calls fn for every committed change of the table until the returned
// function is called. Calls happen on a hub goroutine, in commit order.
func (t *Table[E]) Watch(fn func(Change)) func() {
	return t.hub.Subscribe(t.topic(), func(_ string, data interface{}) {
		if ch, ok := data.(Change); ok {
			fn(ch)
		}
	})
}

func (t *Table[E]) write(ctx context.Context, fn func(tx *gorm.DB, ch *Change) error) error {
	if t.pending != nil {
		return fn(t.db.WithContext(ctx), t.pending)
	}
	ch := &Change{Table: t.name}
	err := t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(tx, ch)
	})
	if err != nil {
		return err
	}
	t.publish(*ch)
	return nil
}

func (t *Table[E]) publish(ch Change) {
	if ch.empty() {
		return
	}
	_ = t.hub.Publish(t.topic(), ch)
}

// scopesOf returns the stored scopes of the given ids.
func (t *Table[E]) scopesOf(tx *gorm.DB, ids []uint) ([]uint, error) {
	if !t.scoped() {
		return []uint{0}, nil
	}
	var scopes []uint
	for start := 0; start < len(ids); start += idChunk {
		end := min(start+idChunk, len(ids))
		var chunk []uint
		err := tx.Model(new(E)).
			Where("id IN ?", ids[start:end]).
			Distinct(t.cfg.ScopeColumn).
			Pluck(t.cfg.ScopeColumn, &chunk).Error
		if err != nil {
			return nil, fmt.Errorf("failed to read %s scopes: %w", t.name, err)
		}
		scopes = append(scopes, chunk...)
	}
	return scopes, nil
}

func (t *Table[E]) scopeOrZero(scope uint) uint {
	if !t.scoped() {
		return 0
	}
	return scope
}

func dedupe[E Record](rows []E) ([]E, error) {
	index := make(map[uint]int, len(rows))
	out := make([]E, 0, len(rows))
	for _, row := range rows {
		id := row.PrimaryKey()
		if id == 0 {
			return nil, ErrMissingID
		}
		if i, ok := index[id]; ok {
			out[i] = row
			continue
		}
		index[id] = len(out)
		out = append(out, row)
	}
	return out, nil
}
