// Package session persists the API session token, encrypted at rest.
//
// The store is the credential source of the remote client: every outgoing
// request asks it for the current token. It holds at most one session; saving
// a new one replaces the previous.
package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/vetrecords/vetsync/internal/entities"
	"github.com/vetrecords/vetsync/internal/remote"
)

// DefaultKeyFileName is the secret file created next to the database when
// no secret is configured.
const DefaultKeyFileName = ".vetsync-session-key"

// ErrExpired indicates the stored session is past its expiry.
var ErrExpired = fmt.Errorf("%w: session expired", remote.ErrNoCredentials)

type Config struct {
	// Secret derives the encryption key. If empty, KeyFilePath is read or
	// created.
	Secret      string
	KeyFilePath string
	// StaticToken, when set, is returned by Token and nothing is persisted.
	StaticToken string
}

// Store provides encrypted storage of the session token.
type Store struct {
	db     *gorm.DB
	sealer *sealer
	static string

	mu     sync.RWMutex
	cached *entities.DecryptedSession
	loaded bool
}

var _ remote.Credentials = (*Store)(nil)

func New(db *gorm.DB, cfg Config) (*Store, error) {
	secret, err := resolveSecret(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve session secret: %w", err)
	}
	sealer, err := newSealer(secret)
	if err != nil {
		return nil, err
	}
	return &Store{db: db, sealer: sealer, static: cfg.StaticToken}, nil
}

func resolveSecret(cfg Config) (string, error) {
	if cfg.Secret != "" {
		return cfg.Secret, nil
	}
	if cfg.KeyFilePath == "" {
		return "", ErrEmptySecret
	}

	if data, err := os.ReadFile(cfg.KeyFilePath); err == nil {
		return strings.TrimSpace(string(data)), nil
	}

	secret, err := GenerateSecret()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(cfg.KeyFilePath), 0o700); err != nil {
		return "", fmt.Errorf("failed to create key directory: %w", err)
	}
	if err := os.WriteFile(cfg.KeyFilePath, []byte(secret), 0o600); err != nil {
		return "", fmt.Errorf("failed to save session secret to %s: %w", cfg.KeyFilePath, err)
	}
	log.Printf("Session: generated new secret at %s", cfg.KeyFilePath)
	return secret, nil
}

// Token implements remote.Credentials.
func (s *Store) Token(ctx context.Context) (string, error) {
	if s.static != "" {
		return s.static, nil
	}

	current, err := s.Current()
	if err != nil {
		return "", err
	}
	if current == nil {
		return "", remote.ErrNoCredentials
	}
	if current.ExpiresAt != nil && time.Now().After(*current.ExpiresAt) {
		return "", ErrExpired
	}
	return current.Token, nil
}

// Current returns the stored session, or nil when logged out.
func (s *Store) Current() (*entities.DecryptedSession, error) {
	s.mu.RLock()
	if s.loaded {
		defer s.mu.RUnlock()
		return s.cached, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loaded {
		return s.cached, nil
	}

	var row entities.SessionToken
	err := s.db.Order("updated_at DESC").First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		s.loaded = true
		s.cached = nil
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	token, err := s.sealer.open(row.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt session token: %w", err)
	}

	now := time.Now()
	if err := s.db.Model(&row).Update("last_used_at", now).Error; err != nil {
		log.Printf("Session: failed to update last used: %v", err)
	}

	s.cached = &entities.DecryptedSession{Account: row.Account, Token: token, ExpiresAt: row.ExpiresAt}
	s.loaded = true
	return s.cached, nil
}

// Save stores a new session, replacing any previous one.
func (s *Store) Save(account, token string, expiresAt *time.Time) error {
	if token == "" {
		return errors.New("session token must not be empty")
	}
	sealed, err := s.sealer.seal(token)
	if err != nil {
		return fmt.Errorf("failed to encrypt session token: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&entities.SessionToken{}).Error; err != nil {
			return err
		}
		return tx.Create(&entities.SessionToken{
			Account:   account,
			Token:     sealed,
			ExpiresAt: expiresAt,
		}).Error
	})
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	s.cached = &entities.DecryptedSession{Account: account, Token: token, ExpiresAt: expiresAt}
	s.loaded = true
	return nil
}

// Clear removes the stored session (logout).
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.db.Where("1 = 1").Delete(&entities.SessionToken{}).Error; err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	s.cached = nil
	s.loaded = true
	return nil
}
