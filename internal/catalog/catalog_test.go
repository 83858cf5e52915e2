package catalog

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vetrecords/vetsync/internal/database"
	"github.com/vetrecords/vetsync/internal/entities"
	"github.com/vetrecords/vetsync/internal/refresh"
	"github.com/vetrecords/vetsync/internal/remote"
)

type staticToken string

func (s staticToken) Token(context.Context) (string, error) { return string(s), nil }

func setupTestCatalog(t *testing.T, handler http.HandlerFunc) (*Catalog, *database.Database) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	db, err := database.NewDatabase(filepath.Join(t.TempDir(), "test.db"), database.Options{})
	require.NoError(t, err)

	client, err := remote.NewClient(remote.Config{BaseURL: server.URL}, staticToken("token"))
	require.NoError(t, err)

	coord := refresh.NewCoordinator(refresh.Config{Workers: 2, Timeout: 5 * time.Second})
	cat, err := New(db, client, coord)
	require.NoError(t, err)

	t.Cleanup(func() {
		cat.Close()
		_ = coord.Close(context.Background())
		db.Close()
	})
	return cat, db
}

func TestCatalog_Entities(t *testing.T) {
	cat, _ := setupTestCatalog(t, func(w http.ResponseWriter, r *http.Request) {})

	assert.Equal(t, []string{"animals", "clinics", "consultations", "exams", "users", "vaccines", "veterinarians"}, cat.Entities())
}

func TestCatalog_SpecNamesMatchTables(t *testing.T) {
	db, err := database.NewDatabase(filepath.Join(t.TempDir(), "test.db"), database.Options{})
	require.NoError(t, err)
	defer db.Close()

	names := map[string]func() (string, error){
		AnimalSpec.Name:       tableName[entities.Animal](db),
		ExamSpec.Name:         tableName[entities.Exam](db),
		VaccineSpec.Name:      tableName[entities.Vaccine](db),
		ConsultationSpec.Name: tableName[entities.Consultation](db),
		ClinicSpec.Name:       tableName[entities.Clinic](db),
		VeterinarianSpec.Name: tableName[entities.Veterinarian](db),
		UserSpec.Name:         tableName[entities.User](db),
	}
	for want, get := range names {
		got, err := get()
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func tableName[E database.Record](db *database.Database) func() (string, error) {
	return func() (string, error) {
		table, err := database.NewTable[E](db, database.TableConfig{})
		if err != nil {
			return "", err
		}
		return table.Name(), nil
	}
}

func TestCatalog_RefreshScope(t *testing.T) {
	cat, _ := setupTestCatalog(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/animais":
			assert.Equal(t, "3", r.URL.Query().Get("tutorId"))
			_ = json.NewEncoder(w).Encode([]entities.Animal{{ID: 1, TutorID: 3, Name: "Rex"}})
		case "/clinicas":
			assert.Empty(t, r.URL.RawQuery)
			_ = json.NewEncoder(w).Encode([]entities.Clinic{{ID: 4, Name: "Centro"}, {ID: 5, Name: "Norte"}})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	ctx := context.Background()

	require.NoError(t, cat.RefreshScope(ctx, "animals", 3))
	animals, err := cat.Animals.Snapshot(ctx, 3)
	require.NoError(t, err)
	require.Len(t, animals, 1)
	assert.Equal(t, "Rex", animals[0].Name)

	require.NoError(t, cat.RefreshScope(ctx, "clinics", 0))
	clinics, err := cat.Clinics.Snapshot(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, clinics, 2)

	scopes, err := cat.Ledger.List("")
	require.NoError(t, err)
	assert.Len(t, scopes, 2)

	err = cat.RefreshScope(ctx, "exams", 1)
	assert.ErrorIs(t, err, remote.ErrNotFound)
}

func TestCatalog_UnknownEntity(t *testing.T) {
	cat, _ := setupTestCatalog(t, func(w http.ResponseWriter, r *http.Request) {})

	err := cat.RefreshScope(context.Background(), "horses", 1)
	assert.ErrorIs(t, err, ErrUnknownEntity)
}

func TestSpecFor(t *testing.T) {
	spec, ok := SpecFor("veterinarians")
	require.True(t, ok)
	assert.Equal(t, "/veterinarios", spec.Path)
	assert.True(t, spec.Scoped())

	spec, ok = SpecFor("users")
	require.True(t, ok)
	assert.False(t, spec.Scoped())

	_, ok = SpecFor("horses")
	assert.False(t, ok)
}
