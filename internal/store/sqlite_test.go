package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/urban95/accessmap-cli/internal/model"
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

	params := model.RunParams{
		RadiusM:        100,
		DataDir:        "data",
		OutputDir:      "out",
		InputChecksums: map[string]string{"buildings.geojson": "abc123"},
	}
	run, err := st.CreateRun(ctx, "preprocess", params)
	require.NoError(t, err)
	require.NotEmpty(t, run.ID)
	assert.Equal(t, model.RunStatusQueued, run.Status)

	require.NoError(t, st.UpdateRunStatus(ctx, run.ID, model.RunStatusRunning))

	result := &model.RunResult{
		Buildings:  42,
		Amenities:  10,
		Trees:      7,
		RadiusM:    100,
		TypeTotals: map[string]int{"healthcare": 4, "education": 6},
		Layers:     []string{"buildings_accessibility", "trees"},
		DurationMS: 1200,
	}
	require.NoError(t, st.CompleteRun(ctx, run.ID, result))

	got, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, "preprocess", got.Command)
	assert.Equal(t, model.RunStatusComplete, got.Status)
	assert.Equal(t, params, got.Params)
	require.NotNil(t, got.Result)
	assert.Equal(t, 42, got.Result.Buildings)
	assert.Equal(t, map[string]int{"healthcare": 4, "education": 6}, got.Result.TypeTotals)
}

func TestSQLite_FailRun(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, "filter", model.RunParams{MaxDistanceKM: 10})
	require.NoError(t, err)

	require.NoError(t, st.FailRun(ctx, run.ID, eris.New("boundary layer missing")))

	got, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusFailed, got.Status)
	assert.Contains(t, got.Error, "boundary layer missing")
	assert.Nil(t, got.Result)
}

func TestSQLite_GetRun_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)

	_, err := st.GetRun(context.Background(), "no-such-run")
	require.Error(t, err)
}

func TestSQLite_UpdateRunStatus_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)

	err := st.UpdateRunStatus(context.Background(), "no-such-run", model.RunStatusRunning)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestSQLite_ListRuns(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	r1, err := st.CreateRun(ctx, "preprocess", model.RunParams{})
	require.NoError(t, err)
	_, err = st.CreateRun(ctx, "filter", model.RunParams{})
	require.NoError(t, err)
	require.NoError(t, st.CompleteRun(ctx, r1.ID, &model.RunResult{}))

	all, err := st.ListRuns(ctx, RunFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	complete, err := st.ListRuns(ctx, RunFilter{Status: model.RunStatusComplete})
	require.NoError(t, err)
	require.Len(t, complete, 1)
	assert.Equal(t, r1.ID, complete[0].ID)

	filters, err := st.ListRuns(ctx, RunFilter{Command: "filter"})
	require.NoError(t, err)
	require.Len(t, filters, 1)
	assert.Equal(t, "filter", filters[0].Command)

	limited, err := st.ListRuns(ctx, RunFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestSQLite_LayerChecksums(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.SetLayerChecksums(ctx, []model.LayerChecksum{
		{Name: "buildings_accessibility", SHA256: "aaa", FeatureCount: 42},
		{Name: "trees", SHA256: "bbb", FeatureCount: 7},
	}))

	got, err := st.GetLayerChecksum(ctx, "trees")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "bbb", got.SHA256)
	assert.Equal(t, 7, got.FeatureCount)

	// Upsert replaces the existing row.
	require.NoError(t, st.SetLayerChecksums(ctx, []model.LayerChecksum{
		{Name: "trees", SHA256: "ccc", FeatureCount: 8},
	}))

	got, err = st.GetLayerChecksum(ctx, "trees")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "ccc", got.SHA256)

	all, err := st.ListLayerChecksums(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "buildings_accessibility", all[0].Name)
	assert.Equal(t, "trees", all[1].Name)
}

func TestSQLite_LayerChecksum_Missing(t *testing.T) {
	st := newTestSQLiteStore(t)

	got, err := st.GetLayerChecksum(context.Background(), "nonexistent")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSQLite_Open(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "open.db")

	st, err := Open(context.Background(), testStoreConfig("sqlite", dbPath))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck

	_, err = st.CreateRun(context.Background(), "preprocess", model.RunParams{})
	require.NoError(t, err)
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), testStoreConfig("oracle", ""))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown driver")
}
