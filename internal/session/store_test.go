package session

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/vetrecords/vetsync/internal/entities"
	"github.com/vetrecords/vetsync/internal/remote"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&entities.SessionToken{}))
	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
	})
	return db
}

func setupTestStore(t *testing.T) (*Store, *gorm.DB) {
	t.Helper()
	db := setupTestDB(t)
	store, err := New(db, Config{Secret: "test-secret"})
	require.NoError(t, err)
	return store, db
}

func TestStore_NoSession(t *testing.T) {
	store, _ := setupTestStore(t)

	_, err := store.Token(context.Background())
	assert.ErrorIs(t, err, remote.ErrNoCredentials)
}

func TestStore_SaveAndToken(t *testing.T) {
	store, db := setupTestStore(t)

	require.NoError(t, store.Save("ana@example.com", "secret-token", nil))

	token, err := store.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "secret-token", token)

	var row entities.SessionToken
	require.NoError(t, db.First(&row).Error)
	assert.NotEqual(t, "secret-token", row.Token)
	assert.NotContains(t, row.Token, "secret-token")
}

func TestStore_PersistsAcrossInstances(t *testing.T) {
	db := setupTestDB(t)

	first, err := New(db, Config{Secret: "test-secret"})
	require.NoError(t, err)
	require.NoError(t, first.Save("ana@example.com", "secret-token", nil))

	second, err := New(db, Config{Secret: "test-secret"})
	require.NoError(t, err)
	current, err := second.Current()
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, "ana@example.com", current.Account)
	assert.Equal(t, "secret-token", current.Token)

	wrong, err := New(db, Config{Secret: "other-secret"})
	require.NoError(t, err)
	_, err = wrong.Current()
	assert.ErrorIs(t, err, ErrDecryptionFailed)
}

func TestStore_SaveReplacesPrevious(t *testing.T) {
	store, db := setupTestStore(t)

	require.NoError(t, store.Save("ana@example.com", "one", nil))
	require.NoError(t, store.Save("bia@example.com", "two", nil))

	var count int64
	require.NoError(t, db.Model(&entities.SessionToken{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	token, err := store.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "two", token)
}

func TestStore_Expired(t *testing.T) {
	store, _ := setupTestStore(t)

	past := time.Now().Add(-time.Minute)
	require.NoError(t, store.Save("ana@example.com", "old", &past))

	_, err := store.Token(context.Background())
	assert.ErrorIs(t, err, ErrExpired)
	assert.ErrorIs(t, err, remote.ErrNoCredentials)
}

func TestStore_Clear(t *testing.T) {
	store, _ := setupTestStore(t)

	require.NoError(t, store.Save("ana@example.com", "token", nil))
	require.NoError(t, store.Clear())

	_, err := store.Token(context.Background())
	assert.ErrorIs(t, err, remote.ErrNoCredentials)
}

func TestStore_StaticToken(t *testing.T) {
	db := setupTestDB(t)
	store, err := New(db, Config{Secret: "s", StaticToken: "fixed"})
	require.NoError(t, err)

	token, err := store.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "fixed", token)
}

func TestStore_RejectsEmptyToken(t *testing.T) {
	store, _ := setupTestStore(t)
	assert.Error(t, store.Save("ana@example.com", "", nil))
}

func TestResolveSecret(t *testing.T) {
	t.Run("explicit secret wins", func(t *testing.T) {
		secret, err := resolveSecret(Config{Secret: "abc", KeyFilePath: "/nonexistent/key"})
		require.NoError(t, err)
		assert.Equal(t, "abc", secret)
	})

	t.Run("generates and reuses a key file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "keys", DefaultKeyFileName)

		first, err := resolveSecret(Config{KeyFilePath: path})
		require.NoError(t, err)
		assert.NotEmpty(t, first)

		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

		second, err := resolveSecret(Config{KeyFilePath: path})
		require.NoError(t, err)
		assert.Equal(t, first, second)
	})

	t.Run("no source is an error", func(t *testing.T) {
		_, err := resolveSecret(Config{})
		assert.ErrorIs(t, err, ErrEmptySecret)
	})
}

func TestSealer(t *testing.T) {
	s, err := newSealer("secret")
	require.NoError(t, err)

	a, err := s.seal("token")
	require.NoError(t, err)
	b, err := s.seal("token")
	require.NoError(t, err)
	assert.NotEqual(t, a, b, "nonces must differ")

	plain, err := s.open(a)
	require.NoError(t, err)
	assert.Equal(t, "token", plain)

	_, err = s.open("AAAA")
	assert.ErrorIs(t, err, ErrCiphertextTooShort)

	_, err = s.open("not base64!")
	assert.Error(t, err)

	_, err = newSealer("")
	assert.ErrorIs(t, err, ErrEmptySecret)
}
