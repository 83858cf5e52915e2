package entities

import (
	"time"
)

type SyncStatus string

const (
	SyncStatusRunning   SyncStatus = "running"
	SyncStatusCompleted SyncStatus = "completed"
	SyncStatusFailed    SyncStatus = "failed"
)

// ScopeSync records the outcome of the last refresh of one (entity, scope) pair.
// SyncedAt is the lastSyncedAt of the scope: the time its rows were last replaced
// from an authoritative remote list.
type ScopeSync struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	Entity    string     `gorm:"size:50;uniqueIndex:idx_scope_sync_entity_scope" json:"entity"`
	Scope     uint       `gorm:"uniqueIndex:idx_scope_sync_entity_scope" json:"scope"`
	Status    SyncStatus `gorm:"size:20" json:"status"`
	Rows      int        `json:"rows"`
	Error     string     `gorm:"type:text" json:"error,omitempty"`
	StartedAt time.Time  `json:"started_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	SyncedAt  *time.Time `json:"synced_at,omitempty"`
}

func (ScopeSync) TableName() string {
	return "scope_sync"
}
