package tasks

import (
	"context"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/mikestefanello/backlite"
)

// ScopeRefresher refreshes one scope of a named entity.
type ScopeRefresher interface {
	RefreshScope(ctx context.Context, entity string, scope uint) error
}

// RefreshScopeTask replaces one cached scope with the server list.
// Failures are not retried; the next scheduled run or observer covers them.
type RefreshScopeTask struct {
	Entity string `json:"entity"`
	Scope  uint   `json:"scope"`
}

// refreshScopeTimeout is the queue timeout of refresh_scope tasks. backlite
// reads QueueConfig from a zero task, so it lives here rather than on the task.
var refreshScopeTimeout atomic.Int64

func init() {
	setRefreshScopeTimeout(DefaultConfig().TaskTimeout)
}

func setRefreshScopeTimeout(d time.Duration) {
	refreshScopeTimeout.Store(int64(d))
}

// Config returns the queue configuration for scope refresh tasks. Timeout
// follows the one given to NewRefreshScopeQueue.
func (t RefreshScopeTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        "refresh_scope",
		MaxAttempts: 1,
		Backoff:     time.Minute,
		Timeout:     time.Duration(refreshScopeTimeout.Load()),
		Retention: &backlite.Retention{
			Duration:   24 * time.Hour,
			OnlyFailed: false,
			Data:       &backlite.RetainData{OnlyFailed: true},
		},
	}
}

// RefreshScopeProcessor creates a processor function for RefreshScopeTask.
// timeout, when positive, bounds how long the task waits for the refresh.
func RefreshScopeProcessor(refresher ScopeRefresher, timeout time.Duration) backlite.QueueProcessor[RefreshScopeTask] {
	return func(ctx context.Context, task RefreshScopeTask) error {
		if refresher == nil {
			return fmt.Errorf("scope refresher not configured")
		}
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}

		start := time.Now()
		if err := refresher.RefreshScope(ctx, task.Entity, task.Scope); err != nil {
			return fmt.Errorf("refresh %s scope %d: %w", task.Entity, task.Scope, err)
		}

		log.Printf("[TASK] Refreshed %s scope %d in %s", task.Entity, task.Scope, time.Since(start).Round(time.Millisecond))
		return nil
	}
}

// NewRefreshScopeQueue creates a backlite queue for scope refresh tasks.
// A positive timeout bounds both the refresh and the queue's hold on the task.
func NewRefreshScopeQueue(refresher ScopeRefresher, timeout time.Duration) backlite.Queue {
	if timeout > 0 {
		setRefreshScopeTimeout(timeout)
	}
	return backlite.NewQueue(RefreshScopeProcessor(refresher, timeout))
}
