// Package interfaces documents the core abstractions of the sync core.
//
// # Interface Categories
//
// ## Local Store
//
//   - database.Record: a cached row with a primary key and a scope key (internal/database/table.go)
//   - database.Writer: upsert, delete and lookup of one entity table (internal/database/table.go)
//   - repository.Store: a Writer with transactions and change notification (internal/repository/interfaces.go)
//   - bridge.Source: anything a feed can watch for changes (internal/bridge/bridge.go)
//
// ## Remote API
//
//   - repository.Source: list, get, create, update and delete of one remote collection (internal/repository/interfaces.go)
//   - remote.Credentials: supplies the bearer token (internal/remote/client.go)
//
// ## Refresh Pipeline
//
//   - repository.Scheduler: coalesced background refreshes (internal/repository/interfaces.go)
//   - repository.Ledger: records scope refresh outcomes (internal/repository/interfaces.go)
//   - catalog.Refresher: the entity-agnostic part of a repository (internal/catalog/catalog.go)
//   - scheduler.ScopeRefresher, scheduler.Ledger, scheduler.Enqueuer: inputs of the periodic pass (internal/scheduler/refresh.go)
//
// ## HTTP Layer
//
//   - http.EntityRepository: what the generic entity controller needs (internal/http/entities.go)
//   - http.SessionStore, http.ScopeLedger, http.TaskQueue: the other controllers' stores
//
// # Adding an Entity
//
//  1. Add the row and request types to internal/entities with PrimaryKey and ScopeKey.
//  2. Add a catalog.Spec and a field on catalog.Catalog, then build it in catalog.New.
//  3. Register its routes in http.registerCatalogRoutes.
//  4. Add a check to checks.go.
package interfaces
