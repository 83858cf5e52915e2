package entrypoint

import (
	"context"
	"fmt"
	"log"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/vetrecords/vetsync/internal/catalog"
	"github.com/vetrecords/vetsync/internal/config"
	"github.com/vetrecords/vetsync/internal/database"
	"github.com/vetrecords/vetsync/internal/refresh"
	"github.com/vetrecords/vetsync/internal/remote"
	"github.com/vetrecords/vetsync/internal/session"
)

// App holds the sync core shared by the server and the one-shot commands.
type App struct {
	DB          *database.Database
	Sessions    *session.Store
	Client      *remote.Client
	Coordinator *refresh.Coordinator
	Catalog     *catalog.Catalog
	Registry    *prometheus.Registry
}

// Build opens the cache and wires the repositories. Close must be called.
func Build(cfg *config.Config) (*App, error) {
	db, err := database.NewDatabase(cfg.Database.Path, database.Options{Debug: cfg.Database.Debug})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	keyFile := cfg.Session.KeyFilePath
	if keyFile == "" {
		keyFile = filepath.Join(filepath.Dir(cfg.Database.Path), session.DefaultKeyFileName)
	}
	sessions, err := session.New(db.DB, session.Config{
		Secret:      cfg.Session.Secret,
		KeyFilePath: keyFile,
		StaticToken: cfg.Session.Token,
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize session store: %w", err)
	}
	if cfg.Session.Token != "" {
		log.Printf("Session: using static token from SESSION_TOKEN")
	}

	client, err := remote.NewClient(remote.Config{
		BaseURL: cfg.API.BaseURL,
		Timeout: cfg.API.Timeout,
	}, sessions)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create API client: %w", err)
	}

	metrics := refresh.NewMetricsCollector()
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		metrics,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	coord := refresh.NewCoordinator(refresh.Config{
		Workers: cfg.Refresh.Workers,
		Timeout: cfg.Refresh.Timeout,
		Metrics: metrics,
	})

	cat, err := catalog.New(db, client, coord)
	if err != nil {
		_ = coord.Close(context.Background())
		db.Close()
		return nil, fmt.Errorf("failed to build repositories: %w", err)
	}

	log.Printf("Sync core ready: %d entities against %s", len(cat.Entities()), cfg.API.BaseURL)

	return &App{
		DB:          db,
		Sessions:    sessions,
		Client:      client,
		Coordinator: coord,
		Catalog:     cat,
		Registry:    registry,
	}, nil
}

// Close ends all streams, waits for in-flight refreshes until ctx is done and
// closes the database.
func (a *App) Close(ctx context.Context) {
	a.Catalog.Close()
	if err := a.Coordinator.Close(ctx); err != nil {
		log.Printf("Refresh coordinator: %v", err)
	}
	if err := a.DB.Close(); err != nil {
		log.Printf("Error closing database: %v", err)
	}
}
