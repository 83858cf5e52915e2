package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vetrecords/vetsync/internal/entities"
	"github.com/vetrecords/vetsync/internal/scheduler"
)

// ScopeLedger lists the refresh outcome of every tracked scope.
type ScopeLedger interface {
	List(entity string) ([]entities.ScopeSync, error)
}

// SyncController exposes the scope ledger and the periodic refresh pass.
type SyncController struct {
	ledger    ScopeLedger
	scheduler *scheduler.RefreshScheduler
}

// NewSyncController creates a controller. sched may be nil.
func NewSyncController(ledger ScopeLedger, sched *scheduler.RefreshScheduler) *SyncController {
	return &SyncController{ledger: ledger, scheduler: sched}
}

// ListScopes handles GET /api/sync/scopes[?entity=animals]
func (sc *SyncController) ListScopes(c *gin.Context) {
	records, err := sc.ledger.List(c.Query("entity"))
	if err != nil {
		respondInternalError(c, err, "list sync scopes")
		return
	}
	if records == nil {
		records = []entities.ScopeSync{}
	}
	c.JSON(http.StatusOK, gin.H{
		"scopes": records,
		"count":  len(records),
	})
}

// GetStatus handles GET /api/sync/status
func (sc *SyncController) GetStatus(c *gin.Context) {
	if sc.scheduler == nil {
		c.JSON(http.StatusOK, gin.H{"scheduler": "disabled"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"scheduler": "enabled",
		"running":   sc.scheduler.IsRunning(),
		"syncing":   sc.scheduler.IsSyncing(),
		"next_run":  sc.scheduler.GetNextRunTime(),
	})
}

// RunNow handles POST /api/sync/run
// Runs one pass over every tracked scope and waits for it.
func (sc *SyncController) RunNow(c *gin.Context) {
	if sc.scheduler == nil {
		respondError(c, http.StatusServiceUnavailable, "refresh scheduler is not configured")
		return
	}
	result, err := sc.scheduler.RunNow(c.Request.Context())
	if errors.Is(err, scheduler.ErrAlreadySyncing) {
		respondError(c, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		respondInternalError(c, err, "run refresh pass")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"scopes":      result.Scopes,
		"queued":      result.Queued,
		"failed":      result.Failed,
		"duration_ms": result.Duration.Milliseconds(),
	})
}
