package entrypoint

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vetrecords/vetsync/internal/config"
	http_controllers "github.com/vetrecords/vetsync/internal/http"
	"github.com/vetrecords/vetsync/internal/scheduler"
	"github.com/vetrecords/vetsync/internal/tasks"
)

// ShutdownFunc is called during graceful shutdown to clean up resources.
type ShutdownFunc func(ctx context.Context)

func Serve(router *gin.Engine, cfg *config.Config, onShutdown ShutdownFunc) error {
	timeout := time.Duration(cfg.Global.ShutdownTimeoutInSeconds) * time.Second

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler: router,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Printf("Starting server at %s:%d", cfg.HTTP.Host, cfg.HTTP.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
	}()

	// kill (no param) sends SIGTERM, kill -2 is SIGINT
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	var listenErr error
	select {
	case <-quit:
	case listenErr = <-serveErr:
		log.Printf("listen: %v", listenErr)
	}
	log.Printf("Shutdown Server, waiting %v before killing", timeout)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	// Stop accepting requests first so no new refresh is scheduled while the
	// background workers drain.
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Server Shutdown: %v", err)
	}

	if onShutdown != nil {
		onShutdown(ctx)
	}

	log.Println("Server exiting")
	return listenErr
}

func Run(cfg *config.Config, version string) error {
	log.Printf("Starting vetsync v%s", version)

	app, err := Build(cfg)
	if err != nil {
		return err
	}

	// Initialize task queue if enabled
	var taskClient *tasks.Client
	var taskCtxCancel context.CancelFunc
	if cfg.Tasks.Enabled {
		taskClient, err = tasks.NewClient(cfg.Database.Path, tasks.Config{
			Workers:         cfg.Tasks.Workers,
			TaskTimeout:     cfg.Tasks.TaskTimeout,
			ReleaseAfter:    cfg.Tasks.ReleaseAfter,
			CleanupInterval: cfg.Tasks.CleanupInterval,
		})
		if err != nil {
			app.Close(context.Background())
			return fmt.Errorf("failed to initialize task queue: %w", err)
		}

		taskClient.Register(
			tasks.NewRefreshScopeQueue(app.Catalog, cfg.Tasks.TaskTimeout),
			tasks.NewReleaseStaleSyncsQueue(app.Catalog.Ledger),
		)

		var taskCtx context.Context
		taskCtx, taskCtxCancel = context.WithCancel(context.Background())
		go taskClient.Start(taskCtx)
	} else {
		log.Printf("Task queue: disabled, scheduled refreshes run inline")
	}

	// Periodic re-validation of every tracked scope
	var enqueuer scheduler.Enqueuer
	if taskClient != nil {
		enqueuer = taskClient
	}
	refreshScheduler := scheduler.NewRefreshScheduler(scheduler.Config{
		Enabled:  cfg.Schedule.Enabled,
		Schedule: cfg.Schedule.Schedule,
	}, app.Catalog, app.Catalog.Ledger, enqueuer)

	schedCtx, schedCancel := context.WithCancel(context.Background())
	if err := refreshScheduler.Start(schedCtx); err != nil {
		log.Printf("WARNING: refresh scheduler not started: %v", err)
	}

	router := http_controllers.NewRouter(http_controllers.RouterConfig{
		Database:   app.DB,
		Catalog:    app.Catalog,
		Sessions:   app.Sessions,
		TaskClient: taskClient,
		Scheduler:  refreshScheduler,
		Metrics:    app.Registry,
		Version:    version,
	})

	// Shutdown callback for graceful cleanup
	onShutdown := func(ctx context.Context) {
		schedCancel()
		refreshScheduler.Stop()
		if taskClient != nil {
			taskClient.Stop(ctx)
			taskCtxCancel()
			if err := taskClient.Close(); err != nil {
				log.Printf("Error closing task client: %v", err)
			}
		}
		app.Close(ctx)
	}

	return Serve(router, cfg, onShutdown)
}
