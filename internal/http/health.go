package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vetrecords/vetsync/internal/database"
)

type HealthResponse struct {
	Status  string            `json:"status"`
	Time    string            `json:"time"`
	Version string            `json:"version,omitempty"`
	Checks  map[string]string `json:"checks"`
}

type HealthController struct {
	db       *database.Database
	sessions SessionStore
	version  string
}

// NewHealthController creates a controller. sessions may be nil.
func NewHealthController(db *database.Database, sessions SessionStore, version string) *HealthController {
	return &HealthController{
		db:       db,
		sessions: sessions,
		version:  version,
	}
}

func (h *HealthController) Status(c *gin.Context) {
	checks := make(map[string]string)
	status := "healthy"

	// Check database connectivity
	if h.db != nil {
		sqlDB, err := h.db.DB.DB()
		if err != nil {
			checks["database"] = "error: " + err.Error()
			status = "unhealthy"
		} else if err := sqlDB.PingContext(c.Request.Context()); err != nil {
			checks["database"] = "error: " + err.Error()
			status = "unhealthy"
		} else {
			checks["database"] = "ok"
		}
	} else {
		checks["database"] = "not configured"
	}

	// A missing session is not unhealthy: cached data stays readable.
	if h.sessions != nil {
		current, err := h.sessions.Current()
		switch {
		case err != nil:
			checks["session"] = "error: " + err.Error()
		case current == nil:
			checks["session"] = "none"
		case current.ExpiresAt != nil && time.Now().After(*current.ExpiresAt):
			checks["session"] = "expired"
		default:
			checks["session"] = "ok"
		}
	}

	health := HealthResponse{
		Status:  status,
		Time:    time.Now().Format(time.RFC3339),
		Version: h.version,
		Checks:  checks,
	}

	statusCode := http.StatusOK
	if status != "healthy" {
		statusCode = http.StatusServiceUnavailable
	}

	c.IndentedJSON(statusCode, health)
}
