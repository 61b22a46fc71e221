package postgres

import (
	"context"
	"os"
	"testing"
	"testing/fstest"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jakechorley/study-scheduler/pkg/db"
)

func TestMigrationFiles_SortedSQLOnly(t *testing.T) {
	fsys := fstest.MapFS{
		"migrations/002_b.sql":   {Data: []byte("SELECT 2")},
		"migrations/001_a.sql":   {Data: []byte("SELECT 1")},
		"migrations/README.md":   {Data: []byte("notes")},
		"migrations/old/003.sql": {Data: []byte("SELECT 3")},
	}

	files, err := migrationFiles(fsys)
	require.NoError(t, err)
	assert.Equal(t, []string{"001_a.sql", "002_b.sql"}, files)
}

func TestPendingMigrations(t *testing.T) {
	pending := pendingMigrations([]string{"001_a.sql", "002_b.sql"}, map[string]bool{"001_a.sql": true})
	assert.Equal(t, []string{"002_b.sql"}, pending)
}

func TestEmbeddedMigrations(t *testing.T) {
	files, err := migrationFiles(migrationsFS)
	require.NoError(t, err)
	assert.Contains(t, files, "001_reconciliation_warning.sql")
}

func TestWarningJournal(t *testing.T) {
	connString := os.Getenv("STUDY_SCHEDULER_TEST_DATABASE_URL")
	if connString == "" {
		t.Skip("STUDY_SCHEDULER_TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	d, err := NewDB(ctx, connString)
	require.NoError(t, err)
	defer d.Close()

	require.NoError(t, d.RunMigrations(ctx))
	// Second run is a no-op
	require.NoError(t, d.RunMigrations(ctx))

	w := &db.Warning{
		ID:            uuid.NewString(),
		StudyID:       1,
		VolunteerID:   7,
		AppointmentID: 3,
		Operation:     db.OperationUnassign,
		Message:       "record persists",
		Attempted:     []string{"clear-volunteer", "reset-subject-number"},
		CreatedAt:     time.Now(),
	}
	require.NoError(t, d.InsertWarning(ctx, w))

	warnings, err := d.GetWarnings(ctx, false)
	require.NoError(t, err)
	var found *db.Warning
	for i := range warnings {
		if warnings[i].ID == w.ID {
			found = &warnings[i]
		}
	}
	require.NotNil(t, found)
	assert.Equal(t, w.Attempted, found.Attempted)

	require.NoError(t, d.ResolveWarning(ctx, w.ID, time.Now()))
	assert.ErrorIs(t, d.ResolveWarning(ctx, uuid.NewString(), time.Now()), db.ErrWarningNotFound)
}

var _ db.WarningStore = (*DB)(nil)
