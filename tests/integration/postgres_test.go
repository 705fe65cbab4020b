package integration

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ersonp/trustbim/internal/application/handlers"
	"github.com/ersonp/trustbim/internal/infrastructure/config"
	"github.com/ersonp/trustbim/internal/infrastructure/relationaldb/postgres"
)

func TestPostgresIntegration_RunAndReview(t *testing.T) {
	dsn := os.Getenv("TRUSTBIM_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TRUSTBIM_POSTGRES_DSN not set")
	}

	repo, err := postgres.NewRepository(t.Context(), config.StoreConfig{DSN: dsn})
	require.NoError(t, err)
	defer repo.Close()
	require.NoError(t, repo.EnsureSchema(t.Context()))

	result := runIntoStore(t, repo)
	runID := result.Report.RunID
	t.Cleanup(func() { _ = repo.DeleteRun(t.Context(), runID) })

	review := handlers.NewReviewHandler(repo)
	queue, err := review.Queue(t.Context(), runID, 0)
	require.NoError(t, err)
	assert.Len(t, queue.Rows, len(result.Tables.Review))

	flags, err := review.Flags(t.Context(), runID, "pump-2")
	require.NoError(t, err)
	assert.NotEmpty(t, flags)

	require.NoError(t, repo.DeleteRun(t.Context(), runID))
	runs, err := review.Runs(t.Context(), 0)
	require.NoError(t, err)
	for _, r := range runs {
		assert.NotEqual(t, runID, r.RunID)
	}
}
