package http

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vetrecords/vetsync/internal/bridge"
	"github.com/vetrecords/vetsync/internal/catalog"
	"github.com/vetrecords/vetsync/internal/repository"
)

// EntityRepository is the part of a sync repository the entity routes use.
type EntityRepository[E, R any] interface {
	Observe(scope uint) (*bridge.Stream[[]E], bridge.CancelFunc)
	ObserveOne(id uint) (*bridge.Stream[*E], bridge.CancelFunc)
	Snapshot(ctx context.Context, scope uint) ([]E, error)
	Create(ctx context.Context, req R) (*E, error)
	Update(ctx context.Context, id uint, req R) (*E, error)
	Delete(ctx context.Context, id, scope uint) error
	RefreshScope(ctx context.Context, scope uint) error
}

// RefreshEnqueuer defers a scope refresh to the task queue.
type RefreshEnqueuer interface {
	EnqueueRefresh(ctx context.Context, entity string, scope uint) (string, error)
}

// SyncClock reports when a scope was last replaced from the server.
type SyncClock interface {
	LastSyncedAt(entity string, scope uint) (*time.Time, error)
}

// EntityController serves one cached entity type under /api/<entity>.
type EntityController[E, R any] struct {
	spec  catalog.Spec
	repo  EntityRepository[E, R]
	queue RefreshEnqueuer
	clock SyncClock
}

// NewEntityController creates a controller. queue may be nil, which disables
// async refreshes; clock may be nil, which leaves synced_at out of lists.
func NewEntityController[E, R any](spec catalog.Spec, repo EntityRepository[E, R], queue RefreshEnqueuer, clock SyncClock) *EntityController[E, R] {
	return &EntityController[E, R]{spec: spec, repo: repo, queue: queue, clock: clock}
}

// RegisterRoutes mounts the entity routes on router.
func (ec *EntityController[E, R]) RegisterRoutes(router gin.IRouter) {
	g := router.Group("/api/" + ec.spec.Name)
	g.GET("", ec.List)
	g.GET("/stream", ec.StreamList)
	g.POST("/refresh", ec.Refresh)
	g.POST("", ec.Create)
	g.GET("/:id", ec.Get)
	g.GET("/:id/stream", ec.StreamOne)
	g.PUT("/:id", ec.Update)
	g.DELETE("/:id", ec.Delete)
}

// List handles GET /api/<entity>?scope=N
// Answers with the cached rows at once and revalidates in the background.
func (ec *EntityController[E, R]) List(c *gin.Context) {
	scope, ok := parseScope(c, ec.spec.Scoped())
	if !ok {
		return
	}

	stream, cancel := ec.repo.Observe(scope)
	defer cancel()

	rows, ok := stream.Next(c.Request.Context())
	if !ok {
		respondError(c, http.StatusServiceUnavailable, "stream closed before first snapshot")
		return
	}
	c.JSON(http.StatusOK, ec.listBody(rows, scope))
}

// Get handles GET /api/<entity>/:id
func (ec *EntityController[E, R]) Get(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	stream, cancel := ec.repo.ObserveOne(id)
	defer cancel()

	row, ok := stream.Next(c.Request.Context())
	if !ok {
		respondError(c, http.StatusServiceUnavailable, "stream closed before first snapshot")
		return
	}
	if row == nil {
		respondNotFound(c, ec.spec.Name+" "+strconv.FormatUint(uint64(id), 10))
		return
	}
	c.JSON(http.StatusOK, row)
}

// StreamList handles GET /api/<entity>/stream?scope=N
// Sends every snapshot of the scope as a server-sent event.
func (ec *EntityController[E, R]) StreamList(c *gin.Context) {
	scope, ok := parseScope(c, ec.spec.Scoped())
	if !ok {
		return
	}

	stream, cancel := ec.repo.Observe(scope)
	defer cancel()
	streamSnapshots(c, stream)
}

// StreamOne handles GET /api/<entity>/:id/stream
func (ec *EntityController[E, R]) StreamOne(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	stream, cancel := ec.repo.ObserveOne(id)
	defer cancel()
	streamSnapshots(c, stream)
}

func streamSnapshots[T any](c *gin.Context, stream *bridge.Stream[T]) {
	ctx := c.Request.Context()
	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.Stream(func(w io.Writer) bool {
		select {
		case v, ok := <-stream.C():
			if !ok {
				return false
			}
			c.SSEvent("snapshot", v)
			return true
		case <-ctx.Done():
			return false
		}
	})
}

// Create handles POST /api/<entity>
func (ec *EntityController[E, R]) Create(c *gin.Context) {
	var req R
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body: "+err.Error())
		return
	}

	row, err := ec.repo.Create(c.Request.Context(), req)
	if err != nil {
		respondSyncError(c, err, "create "+ec.spec.Name)
		return
	}
	respondCreated(c, row)
}

// Update handles PUT /api/<entity>/:id
func (ec *EntityController[E, R]) Update(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req R
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body: "+err.Error())
		return
	}

	row, err := ec.repo.Update(c.Request.Context(), id, req)
	if errors.Is(err, repository.ErrIncompleteResponse) {
		respondAccepted(c, ec.spec.Name+" updated, refresh pending", gin.H{"id": id})
		return
	}
	if err != nil {
		respondSyncError(c, err, "update "+ec.spec.Name)
		return
	}
	c.JSON(http.StatusOK, row)
}

// Delete handles DELETE /api/<entity>/:id[?scope=N]
func (ec *EntityController[E, R]) Delete(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var scope uint
	if c.Query("scope") != "" {
		if scope, ok = parseQueryID(c, "scope"); !ok {
			return
		}
	}

	if err := ec.repo.Delete(c.Request.Context(), id, scope); err != nil {
		respondSyncError(c, err, "delete "+ec.spec.Name)
		return
	}
	respondSuccess(c, ec.spec.Name+" deleted")
}

// Refresh handles POST /api/<entity>/refresh?scope=N[&async=true]
// The synchronous form waits for the refresh and answers with the new rows;
// the async form enqueues it and answers with the task id.
func (ec *EntityController[E, R]) Refresh(c *gin.Context) {
	scope, ok := parseScope(c, ec.spec.Scoped())
	if !ok {
		return
	}

	if c.Query("async") == "true" {
		if ec.queue == nil {
			respondError(c, http.StatusServiceUnavailable, "task queue is disabled")
			return
		}
		taskID, err := ec.queue.EnqueueRefresh(c.Request.Context(), ec.spec.Name, scope)
		if err != nil {
			respondInternalError(c, err, "enqueue refresh "+ec.spec.Name)
			return
		}
		respondAccepted(c, "refresh enqueued", gin.H{"task_id": taskID})
		return
	}

	ctx := c.Request.Context()
	if err := ec.repo.RefreshScope(ctx, scope); err != nil {
		respondSyncError(c, err, "refresh "+ec.spec.Name)
		return
	}
	rows, err := ec.repo.Snapshot(ctx, scope)
	if err != nil {
		respondSyncError(c, err, "refresh "+ec.spec.Name)
		return
	}
	c.JSON(http.StatusOK, ec.listBody(rows, scope))
}

// listBody wraps rows with their scope and, when known, the time the scope
// was last synced. A null synced_at means the rows never came from a refresh.
func (ec *EntityController[E, R]) listBody(rows []E, scope uint) gin.H {
	body := gin.H{
		"data":  rows,
		"scope": scope,
		"count": len(rows),
	}
	if ec.clock == nil {
		return body
	}
	syncedAt, err := ec.clock.LastSyncedAt(ec.spec.Name, scope)
	if err != nil {
		log.Printf("Failed to read sync time of %s scope %d: %v", ec.spec.Name, scope, err)
		return body
	}
	body["synced_at"] = syncedAt
	return body
}
