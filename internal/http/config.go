package http

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/vetrecords/vetsync/internal/catalog"
	"github.com/vetrecords/vetsync/internal/database"
	"github.com/vetrecords/vetsync/internal/scheduler"
	"github.com/vetrecords/vetsync/internal/tasks"
)

// RouterConfig contains all dependencies and configuration needed
// to create the HTTP router.
type RouterConfig struct {
	// Core dependencies
	Database *database.Database
	Catalog  *catalog.Catalog

	// Session token storage (optional)
	Sessions SessionStore

	// Task queue client (optional)
	TaskClient *tasks.Client

	// Periodic refresh (optional)
	Scheduler *scheduler.RefreshScheduler

	// Metrics served at /metrics (optional)
	Metrics prometheus.Gatherer

	// Application info
	Version string
}
