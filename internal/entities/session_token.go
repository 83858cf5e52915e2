package entities

import (
	"time"
)

// SessionToken stores the encrypted credential issued by the remote API at login.
type SessionToken struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Account identifies whose session this is (e-mail or remote user id)
	Account string `gorm:"type:varchar(255);not null;uniqueIndex" json:"account"`

	// Token is the encrypted bearer token.
	// Stored as base64-encoded AES-256-GCM ciphertext
	Token string `gorm:"type:text;not null" json:"-"`

	// ExpiresAt is when the remote API stops accepting the token (nullable when unknown)
	ExpiresAt *time.Time `json:"expires_at,omitempty"`

	// LastUsedAt tracks when the token was last handed to the remote client
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
}

// TableName specifies the table name for GORM
func (SessionToken) TableName() string {
	return "session_tokens"
}

// IsExpired checks if the token has expired
func (t *SessionToken) IsExpired() bool {
	if t.ExpiresAt == nil {
		return false
	}
	return time.Now().After(*t.ExpiresAt)
}

// DecryptedSession holds the decrypted token for use in memory.
// This is never stored directly in the database
type DecryptedSession struct {
	Account   string
	Token     string
	ExpiresAt *time.Time
}
