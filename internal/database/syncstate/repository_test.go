package syncstate

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/vetrecords/vetsync/internal/entities"
)

func setupTestDB(t *testing.T) (*Repository, func()) {
	dbPath := filepath.Join(t.TempDir(), "test_syncstate.db")

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	err = db.AutoMigrate(&entities.ScopeSync{})
	require.NoError(t, err)

	repo := NewRepository(db)

	cleanup := func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
	}

	return repo, cleanup
}

func TestRepository_Start(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	require.NoError(t, repo.Start("animals", 7))

	record, err := repo.Get("animals", 7)
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, entities.SyncStatusRunning, record.Status)
	assert.Nil(t, record.SyncedAt)

	running, err := repo.IsRunning("animals", 7)
	require.NoError(t, err)
	assert.True(t, running)
}

func TestRepository_Complete(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	require.NoError(t, repo.Start("animals", 7))
	require.NoError(t, repo.Complete("animals", 7, 3))

	record, err := repo.Get("animals", 7)
	require.NoError(t, err)
	assert.Equal(t, entities.SyncStatusCompleted, record.Status)
	assert.Equal(t, 3, record.Rows)
	assert.NotNil(t, record.SyncedAt)

	synced, err := repo.LastSyncedAt("animals", 7)
	require.NoError(t, err)
	require.NotNil(t, synced)
}

func TestRepository_Fail_KeepsLastSyncedAt(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	require.NoError(t, repo.Start("exams", 1))
	require.NoError(t, repo.Complete("exams", 1, 2))
	before, err := repo.LastSyncedAt("exams", 1)
	require.NoError(t, err)

	require.NoError(t, repo.Start("exams", 1))
	require.NoError(t, repo.Fail("exams", 1, errors.New("connection refused")))

	record, err := repo.Get("exams", 1)
	require.NoError(t, err)
	assert.Equal(t, entities.SyncStatusFailed, record.Status)
	assert.Equal(t, "connection refused", record.Error)
	require.NotNil(t, record.SyncedAt)
	assert.True(t, before.Equal(*record.SyncedAt))
}

func TestRepository_Finish_NotStarted(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	assert.Error(t, repo.Complete("animals", 1, 0))
}

func TestRepository_Get_Missing(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	record, err := repo.Get("animals", 99)
	require.NoError(t, err)
	assert.Nil(t, record)

	synced, err := repo.LastSyncedAt("animals", 99)
	require.NoError(t, err)
	assert.Nil(t, synced)
}

func TestRepository_ListAndScopes(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	require.NoError(t, repo.Start("animals", 2))
	require.NoError(t, repo.Start("animals", 1))
	require.NoError(t, repo.Start("clinics", 0))

	all, err := repo.List("")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	animals, err := repo.List("animals")
	require.NoError(t, err)
	assert.Len(t, animals, 2)

	scopes, err := repo.Scopes("animals")
	require.NoError(t, err)
	assert.Equal(t, []uint{1, 2}, scopes)
}

func TestRepository_IsRunning_Stale(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	past := time.Now().Add(-time.Hour)
	repo.now = func() time.Time { return past }
	require.NoError(t, repo.Start("animals", 1))
	repo.now = time.Now

	running, err := repo.IsRunning("animals", 1)
	require.NoError(t, err)
	assert.False(t, running)

	record, err := repo.Get("animals", 1)
	require.NoError(t, err)
	assert.Equal(t, entities.SyncStatusFailed, record.Status)
	assert.Equal(t, "sync was interrupted", record.Error)
}

func TestRepository_ReleaseStale(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	past := time.Now().Add(-time.Hour)
	repo.now = func() time.Time { return past }
	require.NoError(t, repo.Start("animals", 1))
	repo.now = time.Now
	require.NoError(t, repo.Start("animals", 2))

	released, err := repo.ReleaseStale()
	require.NoError(t, err)
	assert.Equal(t, int64(1), released)

	stale, err := repo.Get("animals", 1)
	require.NoError(t, err)
	assert.Equal(t, entities.SyncStatusFailed, stale.Status)

	fresh, err := repo.Get("animals", 2)
	require.NoError(t, err)
	assert.Equal(t, entities.SyncStatusRunning, fresh.Status)
}
