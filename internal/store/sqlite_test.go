package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osmtools/bridgematch/internal/ledger"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func TestSQLite_RunLifecycle(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, "kentucky")
	require.NoError(t, err)
	require.NotEmpty(t, run.ID)
	assert.Equal(t, RunStatusRunning, run.Status)

	require.NoError(t, st.CompleteRun(ctx, run.ID, 14000))

	got, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, RunStatusComplete, got.Status)
	assert.Equal(t, 14000, got.TotalBridges)
	assert.Equal(t, "kentucky", got.Region)
}

func TestSQLite_UpdateRunStatus_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)

	err := st.UpdateRunStatus(context.Background(), "no-such-run", RunStatusFailed)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestSQLite_ListRuns_Filtered(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	ky, err := st.CreateRun(ctx, "kentucky")
	require.NoError(t, err)
	_, err = st.CreateRun(ctx, "ohio")
	require.NoError(t, err)
	require.NoError(t, st.UpdateRunStatus(ctx, ky.ID, RunStatusFailed))

	runs, err := st.ListRuns(ctx, RunFilter{Region: "kentucky"})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, ky.ID, runs[0].ID)

	runs, err = st.ListRuns(ctx, RunFilter{Status: RunStatusRunning})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "ohio", runs[0].Region)
}

func TestSQLite_LedgerRoundTrip(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, "kentucky")
	require.NoError(t, err)

	entries := []ledger.Entry{
		{Category: "non-posted culvert", Count: 17},
		{Category: "Automated edit", Count: 40},
	}
	require.NoError(t, st.SaveLedger(ctx, run.ID, entries))

	got, err := st.LedgerFor(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, entries, got)

	// Re-saving replaces, not appends.
	require.NoError(t, st.SaveLedger(ctx, run.ID, entries[:1]))
	got, err = st.LedgerFor(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "non-posted culvert", got[0].Category)
}

func TestSQLite_LedgerFor_EmptyRun(t *testing.T) {
	st := newTestSQLiteStore(t)

	got, err := st.LedgerFor(context.Background(), "no-such-run")
	require.NoError(t, err)
	assert.Empty(t, got)
}
