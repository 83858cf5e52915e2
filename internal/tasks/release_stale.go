package tasks

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/mikestefanello/backlite"
)

// StaleSyncReleaser marks refreshes that never finished as failed.
type StaleSyncReleaser interface {
	ReleaseStale() (int64, error)
}

// ReleaseStaleSyncsTask clears "running" ledger entries left behind by a crash.
type ReleaseStaleSyncsTask struct{}

// Config returns the queue configuration for release tasks.
func (t ReleaseStaleSyncsTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        "release_stale_syncs",
		MaxAttempts: 1,
		Backoff:     time.Minute,
		Timeout:     time.Minute,
		Retention: &backlite.Retention{
			Duration:   24 * time.Hour,
			OnlyFailed: true,
		},
	}
}

// ReleaseStaleSyncsProcessor creates a processor function for ReleaseStaleSyncsTask.
func ReleaseStaleSyncsProcessor(releaser StaleSyncReleaser) backlite.QueueProcessor[ReleaseStaleSyncsTask] {
	return func(ctx context.Context, task ReleaseStaleSyncsTask) error {
		if releaser == nil {
			return fmt.Errorf("stale sync releaser not configured")
		}

		released, err := releaser.ReleaseStale()
		if err != nil {
			return fmt.Errorf("release stale syncs: %w", err)
		}

		if released > 0 {
			log.Printf("[TASK] Released %d stale scope syncs", released)
		}
		return nil
	}
}

// NewReleaseStaleSyncsQueue creates a backlite queue for release tasks.
func NewReleaseStaleSyncsQueue(releaser StaleSyncReleaser) backlite.Queue {
	return backlite.NewQueue(ReleaseStaleSyncsProcessor(releaser))
}
