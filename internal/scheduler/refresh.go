package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultSchedule re-validates tracked scopes every 15 minutes.
const DefaultSchedule = "*/15 * * * *"

// ScopeRefresher refreshes one scope of a named entity in the foreground.
type ScopeRefresher interface {
	Entities() []string
	RefreshScope(ctx context.Context, entity string, scope uint) error
}

// Ledger knows which scopes have been synced at least once.
type Ledger interface {
	Scopes(entity string) ([]uint, error)
	ReleaseStale() (int64, error)
}

// Enqueuer defers work to the durable task queue.
type Enqueuer interface {
	EnqueueRefresh(ctx context.Context, entity string, scope uint) (string, error)
	EnqueueReleaseStale(ctx context.Context) (string, error)
}

type Config struct {
	Enabled  bool
	Schedule string
}

// RunResult summarises one pass over the tracked scopes.
type RunResult struct {
	Scopes   int
	Queued   int
	Failed   int
	Duration time.Duration
}

// RefreshScheduler periodically re-validates every scope the ledger tracks.
// With an Enqueuer the refreshes go through the task queue, otherwise they
// run inline one after another.
type RefreshScheduler struct {
	config    Config
	refresher ScopeRefresher
	ledger    Ledger
	queue     Enqueuer

	cron       *cron.Cron
	entryID    cron.EntryID
	mu         sync.RWMutex
	isRunning  bool
	isSyncing  bool
	cancelFunc context.CancelFunc
	baseCtx    context.Context
}

// NewRefreshScheduler creates a scheduler. queue may be nil.
func NewRefreshScheduler(cfg Config, refresher ScopeRefresher, ledger Ledger, queue Enqueuer) *RefreshScheduler {
	if cfg.Schedule == "" {
		cfg.Schedule = DefaultSchedule
	}
	return &RefreshScheduler{
		config:    cfg,
		refresher: refresher,
		ledger:    ledger,
		queue:     queue,
		cron:      cron.New(cron.WithParser(newParser())),
		baseCtx:   context.Background(),
	}
}

// Start begins the scheduler if it is enabled.
func (s *RefreshScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return nil
	}

	if !s.config.Enabled {
		log.Printf("Refresh scheduler: disabled")
		return nil
	}

	if err := ValidateCronSchedule(s.config.Schedule); err != nil {
		return fmt.Errorf("invalid cron schedule '%s': %w", s.config.Schedule, err)
	}

	entryID, err := s.cron.AddFunc(s.config.Schedule, func() {
		s.runOnce()
	})
	if err != nil {
		return fmt.Errorf("failed to schedule refresh job: %w", err)
	}
	s.entryID = entryID

	var cancelCtx context.Context
	cancelCtx, s.cancelFunc = context.WithCancel(ctx)
	s.baseCtx = cancelCtx

	s.cron.Start()
	s.isRunning = true

	nextRun, _ := GetNextRunTime(s.config.Schedule)
	log.Printf("Refresh scheduler: started with schedule '%s' (%s). Next run: %v",
		s.config.Schedule, GetCronDescription(s.config.Schedule), nextRun)

	go func() {
		<-cancelCtx.Done()
		s.Stop()
	}()

	return nil
}

// Stop waits for a running pass and stops the scheduler.
func (s *RefreshScheduler) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = false
	cancel := s.cancelFunc
	s.cancelFunc = nil
	entryID := s.entryID
	s.mu.Unlock()

	// A running pass takes mu to finish, so wait outside of it.
	cancel()
	<-s.cron.Stop().Done()
	s.cron.Remove(entryID)

	log.Printf("Refresh scheduler: stopped")
}

// RunNow runs one pass synchronously. It returns ErrAlreadySyncing while
// another pass is in progress.
func (s *RefreshScheduler) RunNow(ctx context.Context) (RunResult, error) {
	if !s.beginSync() {
		return RunResult{}, ErrAlreadySyncing
	}
	defer s.endSync()
	return s.run(ctx), nil
}

func (s *RefreshScheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// IsSyncing reports whether a pass is in progress.
func (s *RefreshScheduler) IsSyncing() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isSyncing
}

// GetNextRunTime returns when the next pass will occur.
func (s *RefreshScheduler) GetNextRunTime() *time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.isRunning {
		return nil
	}

	for _, entry := range s.cron.Entries() {
		if entry.ID == s.entryID {
			t := entry.Next
			return &t
		}
	}
	return nil
}

func (s *RefreshScheduler) runOnce() {
	if !s.beginSync() {
		log.Printf("Refresh scheduler: skipped, previous pass still running")
		return
	}
	defer s.endSync()

	s.mu.RLock()
	ctx := s.baseCtx
	s.mu.RUnlock()
	s.run(ctx)
}

func (s *RefreshScheduler) beginSync() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isSyncing {
		return false
	}
	s.isSyncing = true
	return true
}

func (s *RefreshScheduler) endSync() {
	s.mu.Lock()
	s.isSyncing = false
	s.mu.Unlock()
}

func (s *RefreshScheduler) run(ctx context.Context) RunResult {
	start := time.Now()
	var result RunResult

	s.releaseStale(ctx)

	for _, entity := range s.refresher.Entities() {
		scopes, err := s.ledger.Scopes(entity)
		if err != nil {
			log.Printf("Refresh scheduler: failed to list %s scopes: %v", entity, err)
			result.Failed++
			continue
		}
		for _, scope := range scopes {
			if ctx.Err() != nil {
				result.Duration = time.Since(start)
				return result
			}
			result.Scopes++
			if err := s.refreshScope(ctx, entity, scope); err != nil {
				log.Printf("Refresh scheduler: %s scope %d: %v", entity, scope, err)
				result.Failed++
				continue
			}
			if s.queue != nil {
				result.Queued++
			}
		}
	}

	result.Duration = time.Since(start)
	log.Printf("Refresh scheduler: pass over %d scopes done in %v (%d queued, %d failed)",
		result.Scopes, result.Duration.Round(time.Millisecond), result.Queued, result.Failed)
	return result
}

func (s *RefreshScheduler) refreshScope(ctx context.Context, entity string, scope uint) error {
	if s.queue != nil {
		_, err := s.queue.EnqueueRefresh(ctx, entity, scope)
		return err
	}
	return s.refresher.RefreshScope(ctx, entity, scope)
}

func (s *RefreshScheduler) releaseStale(ctx context.Context) {
	if s.queue != nil {
		if _, err := s.queue.EnqueueReleaseStale(ctx); err != nil {
			log.Printf("Refresh scheduler: %v", err)
		}
		return
	}
	released, err := s.ledger.ReleaseStale()
	if err != nil {
		log.Printf("Refresh scheduler: failed to release stale syncs: %v", err)
		return
	}
	if released > 0 {
		log.Printf("Refresh scheduler: released %d stale syncs", released)
	}
}
