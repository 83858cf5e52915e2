package interfaces

// Compile-time interface implementation checks.
//
// To verify all checks pass: go build ./internal/interfaces/...

import (
	"github.com/vetrecords/vetsync/internal/bridge"
	"github.com/vetrecords/vetsync/internal/catalog"
	"github.com/vetrecords/vetsync/internal/database"
	"github.com/vetrecords/vetsync/internal/database/syncstate"
	"github.com/vetrecords/vetsync/internal/entities"
	"github.com/vetrecords/vetsync/internal/http"
	"github.com/vetrecords/vetsync/internal/refresh"
	"github.com/vetrecords/vetsync/internal/remote"
	"github.com/vetrecords/vetsync/internal/repository"
	"github.com/vetrecords/vetsync/internal/scheduler"
	"github.com/vetrecords/vetsync/internal/session"
	"github.com/vetrecords/vetsync/internal/tasks"
)

// =============================================================================
// Local Store
// =============================================================================

var _ repository.Store[entities.Animal] = (*database.Table[entities.Animal])(nil)
var _ repository.Store[entities.Clinic] = (*database.Table[entities.Clinic])(nil)
var _ bridge.Source = (*database.Table[entities.Exam])(nil)

// Scope ledger
var _ repository.Ledger = (*syncstate.Repository)(nil)
var _ scheduler.Ledger = (*syncstate.Repository)(nil)
var _ tasks.StaleSyncReleaser = (*syncstate.Repository)(nil)
var _ http.ScopeLedger = (*syncstate.Repository)(nil)
var _ http.SyncClock = (*syncstate.Repository)(nil)

// =============================================================================
// Remote API
// =============================================================================

var _ repository.Source[entities.Animal, entities.AnimalRequest] = (*remote.Resource[entities.Animal, entities.AnimalRequest])(nil)
var _ repository.Source[entities.Vaccine, entities.VaccineRequest] = (*remote.Resource[entities.Vaccine, entities.VaccineRequest])(nil)

var _ remote.Credentials = (*session.Store)(nil)
var _ http.SessionStore = (*session.Store)(nil)

// =============================================================================
// Refresh Pipeline
// =============================================================================

var _ repository.Scheduler = (*refresh.Coordinator)(nil)

var _ http.EntityRepository[entities.Animal, entities.AnimalRequest] = (*repository.Repository[entities.Animal, entities.AnimalRequest])(nil)
var _ catalog.Refresher = (*repository.Repository[entities.Consultation, entities.ConsultationRequest])(nil)

var _ scheduler.ScopeRefresher = (*catalog.Catalog)(nil)
var _ tasks.ScopeRefresher = (*catalog.Catalog)(nil)

// =============================================================================
// Task Queue
// =============================================================================

var _ scheduler.Enqueuer = (*tasks.Client)(nil)
var _ http.RefreshEnqueuer = (*tasks.Client)(nil)
var _ http.TaskQueue = (*tasks.Client)(nil)
