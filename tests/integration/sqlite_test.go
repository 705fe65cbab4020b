package integration

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ersonp/trustbim/internal/application/handlers"
	"github.com/ersonp/trustbim/internal/domain/entities"
	"github.com/ersonp/trustbim/internal/infrastructure/config"
	"github.com/ersonp/trustbim/internal/infrastructure/relationaldb/sqlite"
)

func TestSQLiteIntegration_RunAndReview(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	dbPath := filepath.Join(t.TempDir(), "runs.db")

	repo, err := sqlite.NewRepository(config.StoreConfig{Path: dbPath})
	require.NoError(t, err)
	defer repo.Close()
	require.NoError(t, repo.EnsureSchema(t.Context()))

	result := runIntoStore(t, repo)
	assert.Equal(t, 5, result.Report.RecordsRead)
	assert.Equal(t, 1, result.Report.RecordErrors)
	assert.Equal(t, 4, result.Report.Entities)

	// Verify file was created
	_, err = os.Stat(dbPath)
	require.NoError(t, err, "database file should exist")

	review := handlers.NewReviewHandler(repo)

	runs, err := review.Runs(t.Context(), 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, result.Report.RunID, runs[0].RunID)
	assert.Equal(t, 4, runs[0].Assets)
	assert.Equal(t, len(result.Tables.Flags), runs[0].Flags)

	queue, err := review.Queue(t.Context(), "", 0)
	require.NoError(t, err)
	assert.Equal(t, result.Report.RunID, queue.RunID)
	assert.Len(t, queue.Rows, len(result.Tables.Review))

	flags, err := review.Flags(t.Context(), "", "pump-2")
	require.NoError(t, err)
	var kinds []string
	for _, f := range flags {
		kinds = append(kinds, f.Kind)
	}
	assert.Contains(t, kinds, string(entities.FlagOutOfRange))
}

func TestSQLiteIntegration_Reopen(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	dbPath := filepath.Join(t.TempDir(), "runs.db")

	repo, err := sqlite.NewRepository(config.StoreConfig{Path: dbPath})
	require.NoError(t, err)
	require.NoError(t, repo.EnsureSchema(t.Context()))
	first := runIntoStore(t, repo)
	second := runIntoStore(t, repo)
	require.NoError(t, repo.Close())

	// Close and reopen
	repo, err = sqlite.NewRepository(config.StoreConfig{Path: dbPath})
	require.NoError(t, err)
	defer repo.Close()
	require.NoError(t, repo.EnsureSchema(t.Context()))

	runs, err := repo.ListRuns(t.Context(), 0)
	require.NoError(t, err)
	assert.Len(t, runs, 2)

	require.NoError(t, repo.DeleteRun(t.Context(), second.Report.RunID))

	latest, err := repo.LatestRunID(t.Context())
	require.NoError(t, err)
	assert.Equal(t, first.Report.RunID, latest)
}
