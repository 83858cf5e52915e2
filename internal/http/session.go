package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vetrecords/vetsync/internal/entities"
)

// SessionStore keeps the bearer token used against the records API.
type SessionStore interface {
	Current() (*entities.DecryptedSession, error)
	Save(account, token string, expiresAt *time.Time) error
	Clear() error
}

// SessionRequest is the body of PUT /api/session. The token is obtained from
// the records API login by the caller.
type SessionRequest struct {
	Account   string     `json:"account"`
	Token     string     `json:"token" binding:"required"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

type SessionController struct {
	store SessionStore
}

func NewSessionController(store SessionStore) *SessionController {
	return &SessionController{store: store}
}

// GetSession handles GET /api/session
// Never returns the token itself.
func (sc *SessionController) GetSession(c *gin.Context) {
	current, err := sc.store.Current()
	if err != nil {
		respondInternalError(c, err, "load session")
		return
	}
	if current == nil {
		c.JSON(http.StatusOK, gin.H{"authenticated": false})
		return
	}
	expired := current.ExpiresAt != nil && time.Now().After(*current.ExpiresAt)
	c.JSON(http.StatusOK, gin.H{
		"authenticated": !expired,
		"account":       current.Account,
		"expires_at":    current.ExpiresAt,
		"expired":       expired,
	})
}

// PutSession handles PUT /api/session
func (sc *SessionController) PutSession(c *gin.Context) {
	var req SessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body: "+err.Error())
		return
	}
	token := strings.TrimSpace(strings.TrimPrefix(req.Token, "Bearer "))
	if token == "" {
		respondBadRequest(c, "token is required")
		return
	}
	if req.ExpiresAt != nil && time.Now().After(*req.ExpiresAt) {
		respondBadRequest(c, "token is already expired")
		return
	}

	if err := sc.store.Save(req.Account, token, req.ExpiresAt); err != nil {
		respondInternalError(c, err, "save session")
		return
	}
	respondSuccess(c, "session saved")
}

// DeleteSession handles DELETE /api/session
// Cached records are kept; they remain readable offline.
func (sc *SessionController) DeleteSession(c *gin.Context) {
	if err := sc.store.Clear(); err != nil {
		respondInternalError(c, err, "clear session")
		return
	}
	respondSuccess(c, "session cleared")
}
