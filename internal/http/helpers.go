package http

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/vetrecords/vetsync/internal/catalog"
	"github.com/vetrecords/vetsync/internal/remote"
	"github.com/vetrecords/vetsync/internal/repository"
)

// --- Response Types ---

// ErrorResponse is the standard error response format for all API errors.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`    // machine-readable error code
	Details any    `json:"details,omitempty"` // additional context (validation errors, etc.)
}

// SuccessResponse is a standard success response with optional data.
type SuccessResponse struct {
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// --- Error Response Helpers ---

// respondBadRequest sends a 400 Bad Request response.
func respondBadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: message})
}

// respondNotFound sends a 404 Not Found response.
func respondNotFound(c *gin.Context, resource string) {
	c.JSON(http.StatusNotFound, ErrorResponse{Error: resource + " not found"})
}

// respondInternalError logs the error and sends a 500 Internal Server Error response.
// The actual error is logged but not exposed to the client; the request id
// is, so the two can be matched.
func respondInternalError(c *gin.Context, err error, context string) {
	id := GetRequestID(c)
	log.Printf("Internal error (%s) request=%s: %v", context, id, err)
	resp := ErrorResponse{Error: "internal server error"}
	if id != "" {
		resp.Details = gin.H{"request_id": id}
	}
	c.JSON(http.StatusInternalServerError, resp)
}

// respondError sends an error response with the given status code.
// Use the specific helpers (respondBadRequest, respondNotFound, etc.) when possible.
func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, ErrorResponse{Error: message})
}

// respondSyncError maps repository, remote and catalog errors to a status.
// Remote failures are reported with their message; store failures are not.
func respondSyncError(c *gin.Context, err error, context string) {
	switch {
	case errors.Is(err, remote.ErrNoCredentials):
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: err.Error(), Code: "no_session"})
	case errors.Is(err, remote.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: err.Error(), Code: "unauthorized"})
	case errors.Is(err, remote.ErrNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error(), Code: "not_found"})
	case errors.Is(err, remote.ErrRateLimited):
		c.JSON(http.StatusTooManyRequests, ErrorResponse{Error: err.Error(), Code: "rate_limited"})
	case errors.Is(err, catalog.ErrUnknownEntity):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error(), Code: "unknown_entity"})
	case repository.IsRemote(err):
		log.Printf("Remote error (%s): %v", context, err)
		c.JSON(http.StatusBadGateway, ErrorResponse{Error: err.Error(), Code: "remote_error"})
	default:
		respondInternalError(c, err, context)
	}
}

// --- Success Response Helpers ---

// respondSuccess sends a 200 OK response with a message.
func respondSuccess(c *gin.Context, message string) {
	c.JSON(http.StatusOK, SuccessResponse{Message: message})
}

// respondCreated sends a 201 Created response with data.
func respondCreated(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, data)
}

// respondAccepted sends a 202 Accepted response (for async operations).
func respondAccepted(c *gin.Context, message string, data any) {
	c.JSON(http.StatusAccepted, SuccessResponse{Message: message, Data: data})
}

// --- Parameter Parsing ---

// parseIDParam extracts and validates an unsigned integer ID from URL parameters.
// Returns the parsed ID or responds with a 400 error and returns 0, false.
func parseIDParam(c *gin.Context, paramName string) (uint, bool) {
	idStr := c.Param(paramName)
	id, err := strconv.ParseUint(idStr, 10, 32)
	if err != nil {
		respondBadRequest(c, "invalid "+paramName)
		return 0, false
	}
	return uint(id), true
}

// parseQueryID extracts and validates an unsigned integer ID from query parameters.
// Returns the parsed ID or responds with a 400 error and returns 0, false.
func parseQueryID(c *gin.Context, paramName string) (uint, bool) {
	idStr := c.Query(paramName)
	if idStr == "" {
		respondBadRequest(c, paramName+" is required")
		return 0, false
	}
	id, err := strconv.ParseUint(idStr, 10, 32)
	if err != nil {
		respondBadRequest(c, "invalid "+paramName)
		return 0, false
	}
	return uint(id), true
}

// parseScope reads the scope query parameter. Unscoped entities always use
// scope 0 and ignore the parameter.
func parseScope(c *gin.Context, scoped bool) (uint, bool) {
	if !scoped {
		return 0, true
	}
	return parseQueryID(c, "scope")
}
