package db

import (
	"net/http"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cafesense/occupancy.report/internal/vision"
)

const migrationsDir = "../../migrations"

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewDB(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.MigrateUp(migrationsDir))
	return db
}

func TestMigrateUpAndVersion(t *testing.T) {
	db := newTestDB(t)

	version, dirty, err := db.MigrateVersion(migrationsDir)
	require.NoError(t, err)
	assert.False(t, dirty)
	assert.GreaterOrEqual(t, version, uint(1))

	// Re-running is a no-op.
	require.NoError(t, db.MigrateUp(migrationsDir))
}

func TestRunLifecycle(t *testing.T) {
	db := newTestDB(t)

	runID, err := db.CreateRun("clip.jsonl", 30, 1920, 1080)
	require.NoError(t, err)
	require.NotEmpty(t, runID)

	require.NoError(t, db.FinishRun(runID, 900, 30.0))

	err = db.FinishRun("no-such-run", 1, 1.0)
	assert.Error(t, err)
}

func TestRecordAndQuerySessions(t *testing.T) {
	db := newTestDB(t)

	runID, err := db.CreateRun("clip.jsonl", 30, 1920, 1080)
	require.NoError(t, err)

	records := []vision.SessionRecord{
		{IdentityID: 1, Table: "Table-1", EntryTime: 10.0, ExitTime: 16.0},
		{IdentityID: 2, Table: "Table-2", EntryTime: 12.0, ExitTime: 30.0},
		{IdentityID: 1, Table: "Table-2", EntryTime: 40.0, ExitTime: 45.0},
	}
	for _, rec := range records {
		require.NoError(t, db.RecordSession(runID, rec))
	}

	t.Run("sessions for run in entry order", func(t *testing.T) {
		rows, err := db.SessionsForRun(runID)
		require.NoError(t, err)
		require.Len(t, rows, 3)
		assert.Equal(t, int64(1), rows[0].IdentityID)
		assert.Equal(t, 10.0, rows[0].EntrySeconds)
		assert.Equal(t, 6.0, rows[0].DurationSeconds)
		assert.Equal(t, 40.0, rows[2].EntrySeconds)
	})

	t.Run("recent sessions newest first", func(t *testing.T) {
		rows, err := db.RecentSessions(2)
		require.NoError(t, err)
		require.Len(t, rows, 2)
		assert.Equal(t, 40.0, rows[0].EntrySeconds)
	})

	t.Run("table totals busiest first", func(t *testing.T) {
		totals, err := db.TableTotals(runID)
		require.NoError(t, err)
		require.Len(t, totals, 2)
		assert.Equal(t, "Table-2", totals[0].TableName)
		assert.Equal(t, 23.0, totals[0].TotalSeconds)
		assert.Equal(t, 2, totals[0].SessionCount)
		assert.Equal(t, "Table-1", totals[1].TableName)
		assert.Equal(t, 1, totals[1].SessionCount)
	})
}

func TestRecordSessionUnknownRun(t *testing.T) {
	db := newTestDB(t)

	err := db.RecordSession("no-such-run", vision.SessionRecord{
		IdentityID: 1, Table: "Table-1", EntryTime: 1, ExitTime: 2,
	})
	assert.Error(t, err, "foreign key on run_id should reject orphan sessions")
}

func TestRecordIdentitySummaryUpsert(t *testing.T) {
	db := newTestDB(t)

	runID, err := db.CreateRun("clip.jsonl", 30, 1920, 1080)
	require.NoError(t, err)

	sum := &vision.IdentitySummary{
		ID:        1,
		FirstSeen: 10.0,
		LastSeen:  20.0,
		TableSeconds: map[string]float64{
			"Table-1": 6.0,
		},
	}
	require.NoError(t, db.RecordIdentitySummary(runID, sum))

	// Second write for the same identity replaces, not duplicates.
	sum.LastSeen = 30.0
	sum.TableSeconds["Table-2"] = 4.0
	require.NoError(t, db.RecordIdentitySummary(runID, sum))

	var count int
	var lastSeen, tableSeconds float64
	row := db.QueryRow(`SELECT COUNT(*), MAX(last_seen), MAX(table_seconds) FROM identity_summaries WHERE run_id = ?`, runID)
	require.NoError(t, row.Scan(&count, &lastSeen, &tableSeconds))
	assert.Equal(t, 1, count)
	assert.Equal(t, 30.0, lastSeen)
	assert.Equal(t, 10.0, tableSeconds)
}

func TestAttachAdminRoutes(t *testing.T) {
	db := newTestDB(t)

	mux := http.NewServeMux()
	require.NoError(t, db.AttachAdminRoutes(mux))
}
