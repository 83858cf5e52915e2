package http

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vetrecords/vetsync/internal/catalog"
	"github.com/vetrecords/vetsync/internal/entities"
)

// NewRouter creates and configures the HTTP router with all endpoints.
func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(RequestIDMiddleware())
	router.Use(SecurityHeadersMiddleware())

	health := NewHealthController(cfg.Database, cfg.Sessions, cfg.Version)

	// Health endpoints
	router.GET("/health", health.Status)
	router.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"message": "pong",
		})
	})

	if cfg.Metrics != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(cfg.Metrics, promhttp.HandlerOpts{})))
	}

	// Cached entity endpoints
	if cfg.Catalog != nil {
		var queue RefreshEnqueuer
		if cfg.TaskClient != nil {
			queue = cfg.TaskClient
		}
		registerCatalogRoutes(router, cfg.Catalog, queue)

		syncController := NewSyncController(cfg.Catalog.Ledger, cfg.Scheduler)
		router.GET("/api/sync/scopes", syncController.ListScopes)
		router.GET("/api/sync/status", syncController.GetStatus)
		router.POST("/api/sync/run", syncController.RunNow)
	}

	// Session endpoints
	if cfg.Sessions != nil {
		sessionController := NewSessionController(cfg.Sessions)
		router.GET("/api/session", sessionController.GetSession)
		router.PUT("/api/session", sessionController.PutSession)
		router.DELETE("/api/session", sessionController.DeleteSession)
	}

	// Task management endpoints
	if cfg.TaskClient != nil {
		tasksController := NewTasksController(cfg.TaskClient)
		router.GET("/api/tasks/types", tasksController.ListTaskTypes)
		router.GET("/api/tasks/:id", tasksController.GetTaskStatus)
		router.POST("/api/tasks/:type/run", tasksController.RunTask)
	}

	return router
}

func registerCatalogRoutes(router gin.IRouter, c *catalog.Catalog, queue RefreshEnqueuer) {
	NewEntityController[entities.Animal, entities.AnimalRequest](catalog.AnimalSpec, c.Animals, queue, c.Ledger).RegisterRoutes(router)
	NewEntityController[entities.Exam, entities.ExamRequest](catalog.ExamSpec, c.Exams, queue, c.Ledger).RegisterRoutes(router)
	NewEntityController[entities.Vaccine, entities.VaccineRequest](catalog.VaccineSpec, c.Vaccines, queue, c.Ledger).RegisterRoutes(router)
	NewEntityController[entities.Consultation, entities.ConsultationRequest](catalog.ConsultationSpec, c.Consultations, queue, c.Ledger).RegisterRoutes(router)
	NewEntityController[entities.Clinic, entities.ClinicRequest](catalog.ClinicSpec, c.Clinics, queue, c.Ledger).RegisterRoutes(router)
	NewEntityController[entities.Veterinarian, entities.VeterinarianRequest](catalog.VeterinarianSpec, c.Veterinarians, queue, c.Ledger).RegisterRoutes(router)
	NewEntityController[entities.User, entities.UserRequest](catalog.UserSpec, c.Users, queue, c.Ledger).RegisterRoutes(router)
}
