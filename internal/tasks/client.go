package tasks

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/juju/loggo"
	_ "github.com/mattn/go-sqlite3"
	"github.com/mikestefanello/backlite"
)

// Client wraps backlite to provide deferred refresh queues.
type Client struct {
	client *backlite.Client
	db     *sql.DB
	config Config

	mu      sync.RWMutex
	started bool
}

// TasksDBPath returns the queue database that sits next to the cache database,
// e.g. vetsync.db -> vetsync-tasks.db.
func TasksDBPath(mainDBPath string) string {
	dir := filepath.Dir(mainDBPath)
	base := filepath.Base(mainDBPath)
	ext := filepath.Ext(base)
	return filepath.Join(dir, strings.TrimSuffix(base, ext)+"-tasks"+ext)
}

// NewClient creates a task queue client with its own SQLite database so queue
// polling never contends with the single cache connection.
func NewClient(mainDBPath string, cfg Config) (*Client, error) {
	db, err := sql.Open("sqlite3", TasksDBPath(mainDBPath)+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open tasks database: %w", err)
	}

	db.SetMaxOpenConns(cfg.Workers + 2)
	db.SetMaxIdleConns(cfg.Workers + 1)
	db.SetConnMaxLifetime(time.Hour)

	client, err := backlite.NewClient(backlite.ClientConfig{
		DB:              db,
		NumWorkers:      cfg.Workers,
		ReleaseAfter:    cfg.ReleaseAfter,
		CleanupInterval: cfg.CleanupInterval,
		Logger:          queueLogger{logger: loggo.GetLogger("vetsync.tasks")},
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create backlite client: %w", err)
	}

	if err := client.Install(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to install backlite schema: %w", err)
	}

	return &Client{
		client: client,
		db:     db,
		config: cfg,
	}, nil
}

// Register registers task queues with the client.
// Must be called before Start().
func (c *Client) Register(queues ...backlite.Queue) {
	for _, q := range queues {
		c.client.Register(q)
	}
}

// Start begins processing tasks. It does not block.
func (c *Client) Start(ctx context.Context) {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return
	}
	c.started = true
	c.mu.Unlock()

	log.Printf("Task queue started with %d workers", c.config.Workers)
	c.client.Start(ctx)
}

// Stop waits for running tasks. Returns true if all workers finished before
// the context deadline.
func (c *Client) Stop(ctx context.Context) bool {
	c.mu.RLock()
	if !c.started {
		c.mu.RUnlock()
		return true
	}
	c.mu.RUnlock()

	log.Println("Stopping task queue...")
	success := c.client.Stop(ctx)
	if success {
		log.Println("Task queue stopped gracefully")
	} else {
		log.Println("Task queue stopped with timeout (some tasks may not have completed)")
	}
	return success
}

// Close releases the queue database. Should be called after Stop().
func (c *Client) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Add starts an operation to enqueue one or more tasks.
func (c *Client) Add(tasks ...backlite.Task) *backlite.TaskAddOp {
	return c.client.Add(tasks...)
}

// EnqueueRefresh defers a refresh of one scope to the queue.
func (c *Client) EnqueueRefresh(ctx context.Context, entity string, scope uint) (string, error) {
	ids, err := c.client.Add(RefreshScopeTask{Entity: entity, Scope: scope}).Ctx(ctx).Save()
	if err != nil {
		return "", fmt.Errorf("failed to enqueue refresh of %s scope %d: %w", entity, scope, err)
	}
	return ids[0], nil
}

// EnqueueReleaseStale defers a sweep of interrupted ledger entries.
func (c *Client) EnqueueReleaseStale(ctx context.Context) (string, error) {
	ids, err := c.client.Add(ReleaseStaleSyncsTask{}).Ctx(ctx).Save()
	if err != nil {
		return "", fmt.Errorf("failed to enqueue stale sync release: %w", err)
	}
	return ids[0], nil
}

// Status returns the status of a task by ID.
func (c *Client) Status(ctx context.Context, taskID string) (backlite.TaskStatus, error) {
	return c.client.Status(ctx, taskID)
}

// queueLogger forwards backlite messages to the vetsync.tasks logger, so
// LOG_LEVEL=WARNING silences the per-task chatter.
type queueLogger struct {
	logger loggo.Logger
}

func (l queueLogger) Info(message string, params ...any) {
	l.logger.Infof(message+formatParams(params), params...)
}

func (l queueLogger) Error(message string, params ...any) {
	l.logger.Errorf(message+formatParams(params), params...)
}

// backlite passes key/value pairs rather than format arguments.
func formatParams(params []any) string {
	return strings.Repeat(" %v=%v", len(params)/2) + strings.Repeat(" %v", len(params)%2)
}
