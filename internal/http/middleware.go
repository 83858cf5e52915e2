package http

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/vetrecords/vetsync/internal/remote"
)

const contextKeyRequestID = "request_id"

// RequestIDMiddleware tags every request with an id, taken from the incoming
// X-Request-ID header or generated. The id is echoed in the response and
// forwarded on the API calls the request makes.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(remote.RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(contextKeyRequestID, id)
		c.Header(remote.RequestIDHeader, id)
		c.Request = c.Request.WithContext(remote.WithRequestID(c.Request.Context(), id))
		c.Next()
	}
}

// GetRequestID returns the id assigned by RequestIDMiddleware.
func GetRequestID(c *gin.Context) string {
	return c.GetString(contextKeyRequestID)
}

// SecurityHeadersMiddleware adds the response headers a JSON-only API needs.
// Nothing served here is meant to be framed or rendered as a page.
func SecurityHeadersMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "no-referrer")
		c.Header("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		c.Header("Cache-Control", "no-store")
		c.Next()
	}
}
