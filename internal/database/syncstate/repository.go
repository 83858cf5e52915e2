// Package syncstate records the outcome of every scope refresh.
//
// A scope is the partition of one entity table (all animals of a tutor, all
// exams of an animal, ...). The ledger keeps one row per (entity, scope) with
// the time the scope was last replaced from the server (lastSyncedAt).
//
// # Interface Implementation
//
//	var _ repository.Ledger = (*Repository)(nil)
//
// # Usage
//
//	ledger := syncstate.NewRepository(db)
//	_ = ledger.Start("animals", 7)
//	_ = ledger.Complete("animals", 7, 12)
package syncstate

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/vetrecords/vetsync/internal/entities"
)

// StaleAfter is how long a running refresh may go without finishing before
// it is considered interrupted.
const StaleAfter = 10 * time.Minute

var errInterrupted = errors.New("sync was interrupted")

// Repository handles all scope ledger database operations.
type Repository struct {
	db  *gorm.DB
	now func() time.Time
}

// NewRepository creates a new ledger repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db, now: time.Now}
}

// Start marks a refresh of the scope as running.
func (r *Repository) Start(entity string, scope uint) error {
	now := r.now()
	record := entities.ScopeSync{
		Entity:    entity,
		Scope:     scope,
		Status:    entities.SyncStatusRunning,
		StartedAt: now,
		UpdatedAt: now,
	}
	err := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "entity"}, {Name: "scope"}},
		DoUpdates: clause.AssignmentColumns([]string{"status", "error", "started_at", "updated_at"}),
	}).Create(&record).Error
	if err != nil {
		return fmt.Errorf("failed to start sync of %s/%d: %w", entity, scope, err)
	}
	return nil
}

// Complete marks the scope as replaced from the server with the given number of rows.
func (r *Repository) Complete(entity string, scope uint, rows int) error {
	now := r.now()
	return r.finish(entity, scope, map[string]any{
		"status":     entities.SyncStatusCompleted,
		"rows":       rows,
		"error":      "",
		"updated_at": now,
		"synced_at":  now,
	})
}

// Fail records a failed refresh. The previous synced_at is kept.
func (r *Repository) Fail(entity string, scope uint, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	return r.finish(entity, scope, map[string]any{
		"status":     entities.SyncStatusFailed,
		"error":      msg,
		"updated_at": r.now(),
	})
}

func (r *Repository) finish(entity string, scope uint, updates map[string]any) error {
	res := r.db.Model(&entities.ScopeSync{}).
		Where("entity = ? AND scope = ?", entity, scope).
		Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("failed to finish sync of %s/%d: %w", entity, scope, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("sync of %s/%d was never started", entity, scope)
	}
	return nil
}

// Get returns the ledger entry, or nil if the scope was never refreshed.
func (r *Repository) Get(entity string, scope uint) (*entities.ScopeSync, error) {
	var record entities.ScopeSync
	err := r.db.Where("entity = ? AND scope = ?", entity, scope).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// LastSyncedAt returns when the scope was last replaced from the server.
func (r *Repository) LastSyncedAt(entity string, scope uint) (*time.Time, error) {
	record, err := r.Get(entity, scope)
	if err != nil || record == nil {
		return nil, err
	}
	return record.SyncedAt, nil
}

// List returns all ledger entries, optionally restricted to one entity.
func (r *Repository) List(entity string) ([]entities.ScopeSync, error) {
	var records []entities.ScopeSync
	q := r.db.Order("entity, scope")
	if entity != "" {
		q = q.Where("entity = ?", entity)
	}
	if err := q.Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// Scopes returns the tracked scopes of one entity.
func (r *Repository) Scopes(entity string) ([]uint, error) {
	var scopes []uint
	err := r.db.Model(&entities.ScopeSync{}).
		Where("entity = ?", entity).
		Order("scope").
		Pluck("scope", &scopes).Error
	return scopes, err
}

// ReleaseStale marks every running refresh older than StaleAfter as failed.
func (r *Repository) ReleaseStale() (int64, error) {
	now := r.now()
	res := r.db.Model(&entities.ScopeSync{}).
		Where("status = ? AND updated_at < ?", entities.SyncStatusRunning, now.Add(-StaleAfter)).
		Updates(map[string]any{
			"status":     entities.SyncStatusFailed,
			"error":      errInterrupted.Error(),
			"updated_at": now,
		})
	return res.RowsAffected, res.Error
}

// IsRunning checks if a refresh of the scope is in progress.
// A refresh is considered stale if not updated within StaleAfter.
func (r *Repository) IsRunning(entity string, scope uint) (bool, error) {
	record, err := r.Get(entity, scope)
	if err != nil || record == nil {
		return false, err
	}
	if record.Status != entities.SyncStatusRunning {
		return false, nil
	}
	if record.UpdatedAt.Before(r.now().Add(-StaleAfter)) {
		_ = r.Fail(entity, scope, errInterrupted)
		return false, nil
	}
	return true, nil
}
