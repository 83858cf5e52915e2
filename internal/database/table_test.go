package database

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vetrecords/vetsync/internal/entities"
)

// setupTestDB creates a fresh test database
func setupTestDB(t *testing.T) (*Database, func()) {
	t.Helper()
	db, err := NewDatabase(filepath.Join(t.TempDir(), "test.db"), Options{})
	require.NoError(t, err)

	cleanup := func() {
		db.Close()
	}
	return db, cleanup
}

func animalTable(t *testing.T, db *Database) *Table[entities.Animal] {
	t.Helper()
	table, err := NewTable[entities.Animal](db, TableConfig{ScopeColumn: entities.AnimalScopeColumn})
	require.NoError(t, err)
	return table
}

func collectChanges(t *testing.T, table interface{ Watch(func(Change)) func() }) (<-chan Change, func()) {
	t.Helper()
	changes := make(chan Change, 16)
	unsub := table.Watch(func(ch Change) {
		changes <- ch
	})
	return changes, unsub
}

func waitChange(t *testing.T, changes <-chan Change) Change {
	t.Helper()
	select {
	case ch := <-changes:
		return ch
	case <-time.After(2 * time.Second):
		t.Fatal("no change published")
		return Change{}
	}
}

func assertNoChange(t *testing.T, changes <-chan Change) {
	t.Helper()
	select {
	case ch := <-changes:
		t.Fatalf("unexpected change %+v", ch)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestTable_Name(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	assert.Equal(t, "animals", animalTable(t, db).Name())
}

func TestTable_UpsertAll(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()
	table := animalTable(t, db)

	t.Run("stores rows by scope in id order", func(t *testing.T) {
		err := table.UpsertAll(ctx, []entities.Animal{
			{ID: 2, TutorID: 7, Name: "Rex"},
			{ID: 1, TutorID: 7, Name: "Mia"},
			{ID: 3, TutorID: 8, Name: "Bob"},
		})
		require.NoError(t, err)

		rows, err := table.FindByScope(ctx, 7)
		require.NoError(t, err)
		require.Len(t, rows, 2)
		assert.Equal(t, uint(1), rows[0].ID)
		assert.Equal(t, uint(2), rows[1].ID)
	})

	t.Run("upsert replaces the row with the same id", func(t *testing.T) {
		require.NoError(t, table.Upsert(ctx, entities.Animal{ID: 2, TutorID: 7, Name: "Rex II"}))

		row, err := table.FindByID(ctx, 2)
		require.NoError(t, err)
		require.NotNil(t, row)
		assert.Equal(t, "Rex II", row.Name)

		rows, err := table.FindByScope(ctx, 7)
		require.NoError(t, err)
		assert.Len(t, rows, 2)
	})

	t.Run("duplicate ids collapse to the last occurrence", func(t *testing.T) {
		err := table.UpsertAll(ctx, []entities.Animal{
			{ID: 10, TutorID: 9, Name: "first"},
			{ID: 10, TutorID: 9, Name: "last"},
		})
		require.NoError(t, err)

		rows, err := table.FindByScope(ctx, 9)
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, "last", rows[0].Name)
	})

	t.Run("rows without id are rejected", func(t *testing.T) {
		err := table.UpsertAll(ctx, []entities.Animal{{ID: 11, TutorID: 9}, {TutorID: 9, Name: "local"}})
		assert.True(t, errors.Is(err, ErrMissingID))

		row, err := table.FindByID(ctx, 11)
		require.NoError(t, err)
		assert.Nil(t, row)
	})

	t.Run("empty input is a no-op", func(t *testing.T) {
		assert.NoError(t, table.UpsertAll(ctx, nil))
	})
}

func TestTable_FindByID_Missing(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	row, err := animalTable(t, db).FindByID(context.Background(), 404)
	require.NoError(t, err)
	assert.Nil(t, row)
}

func TestTable_FindByScope_Empty(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	rows, err := animalTable(t, db).FindByScope(context.Background(), 1)
	require.NoError(t, err)
	assert.NotNil(t, rows)
	assert.Empty(t, rows)
}

func TestTable_DeleteWhere(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	t.Run("scoped table keeps other scopes", func(t *testing.T) {
		table := animalTable(t, db)
		require.NoError(t, table.UpsertAll(ctx, []entities.Animal{
			{ID: 1, TutorID: 1}, {ID: 2, TutorID: 1}, {ID: 3, TutorID: 2},
		}))

		require.NoError(t, table.DeleteWhere(ctx, 1))

		rows, err := table.FindByScope(ctx, 1)
		require.NoError(t, err)
		assert.Empty(t, rows)
		rows, err = table.FindByScope(ctx, 2)
		require.NoError(t, err)
		assert.Len(t, rows, 1)
	})

	t.Run("unscoped table is emptied", func(t *testing.T) {
		table, err := NewTable[entities.Clinic](db, TableConfig{})
		require.NoError(t, err)
		require.NoError(t, table.UpsertAll(ctx, []entities.Clinic{{ID: 1, Name: "A"}, {ID: 2, Name: "B"}}))

		require.NoError(t, table.DeleteWhere(ctx, 0))

		rows, err := table.FindByScope(ctx, 0)
		require.NoError(t, err)
		assert.Empty(t, rows)
	})
}

func TestTable_DeleteByID(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()
	table := animalTable(t, db)

	require.NoError(t, table.UpsertAll(ctx, []entities.Animal{{ID: 1, TutorID: 1}, {ID: 2, TutorID: 1}}))
	require.NoError(t, table.DeleteByID(ctx, 1))
	require.NoError(t, table.DeleteByID(ctx, 1))

	rows, err := table.FindByScope(ctx, 1)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, uint(2), rows[0].ID)
}

func TestTable_Transaction(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()
	table := animalTable(t, db)

	require.NoError(t, table.UpsertAll(ctx, []entities.Animal{{ID: 1, TutorID: 1, Name: "old"}}))

	changes, unsub := collectChanges(t, table)
	defer unsub()

	t.Run("rollback leaves store untouched and publishes nothing", func(t *testing.T) {
		boom := errors.New("boom")
		err := table.Transaction(ctx, func(tx Writer[entities.Animal]) error {
			if err := tx.DeleteWhere(ctx, 1); err != nil {
				return err
			}
			if err := tx.UpsertAll(ctx, []entities.Animal{{ID: 5, TutorID: 1}}); err != nil {
				return err
			}
			return boom
		})
		assert.ErrorIs(t, err, boom)

		rows, err := table.FindByScope(ctx, 1)
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, "old", rows[0].Name)
		assertNoChange(t, changes)
	})

	t.Run("commit publishes one change", func(t *testing.T) {
		err := table.Transaction(ctx, func(tx Writer[entities.Animal]) error {
			if err := tx.DeleteWhere(ctx, 1); err != nil {
				return err
			}
			return tx.UpsertAll(ctx, []entities.Animal{{ID: 5, TutorID: 1}, {ID: 6, TutorID: 1}})
		})
		require.NoError(t, err)

		ch := waitChange(t, changes)
		assert.Equal(t, "animals", ch.Table)
		assert.ElementsMatch(t, []uint{1, 5, 6}, ch.IDs)
		assert.True(t, ch.AffectsScope(1))
		assertNoChange(t, changes)
	})
}

func TestTable_Watch(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()
	table := animalTable(t, db)

	changes, unsub := collectChanges(t, table)

	t.Run("moving a row notifies old and new scope", func(t *testing.T) {
		require.NoError(t, table.Upsert(ctx, entities.Animal{ID: 1, TutorID: 1}))
		ch := waitChange(t, changes)
		assert.True(t, ch.AffectsID(1))
		assert.True(t, ch.AffectsScope(1))

		require.NoError(t, table.Upsert(ctx, entities.Animal{ID: 1, TutorID: 2}))
		ch = waitChange(t, changes)
		assert.True(t, ch.AffectsScope(1))
		assert.True(t, ch.AffectsScope(2))
		assert.False(t, ch.AffectsScope(3))
	})

	t.Run("deleting a missing row publishes nothing", func(t *testing.T) {
		require.NoError(t, table.DeleteByID(ctx, 999))
		assertNoChange(t, changes)
	})

	t.Run("no calls after unsubscribe", func(t *testing.T) {
		unsub()
		require.NoError(t, table.Upsert(ctx, entities.Animal{ID: 2, TutorID: 1}))
		assertNoChange(t, changes)
	})
}

func TestDSN(t *testing.T) {
	assert.Equal(t, "a.db?_busy_timeout=5000&_journal_mode=WAL", dsn("a.db"))
	assert.Equal(t, "a.db?mode=rwc&_busy_timeout=5000&_journal_mode=WAL", dsn("a.db?mode=rwc"))
}
