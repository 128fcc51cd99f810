package postgresql

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"media-job-service/internal/apperr"
	"media-job-service/internal/entity"
	"media-job-service/internal/repository/storetest"
)

// Runs against a real database only when TEST_POSTGRES_DSN is set.
func newTestRepository(t *testing.T) *JobRepository {
	t.Helper()
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := NewPool(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, Migrate(ctx, pool))
	// Migrate is idempotent.
	require.NoError(t, Migrate(ctx, pool))

	return NewJobRepository(pool)
}

func TestJobRepository(t *testing.T) {
	storetest.Run(t, newTestRepository(t))
}

func TestJobRepository_TriggerGuardsTerminalRows(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	id := uuid.New()
	createdAt := time.Now().UTC().Truncate(time.Microsecond)
	videoID := entity.BuildVideoID(createdAt, id, "clip.mp4")
	require.NoError(t, repo.Put(ctx, entity.NewJob(id, videoID, "gs://uploads/"+videoID, createdAt)))
	_, err := repo.AdvanceStatus(ctx, id, entity.StatusUpdate{Expected: entity.StatusPendingUpload, To: entity.StatusFailed, Error: "gone"})
	require.NoError(t, err)

	// A write that bypasses the repository still cannot revive the job.
	_, err = repo.pool.Exec(ctx, `UPDATE jobs SET status = 'queued' WHERE job_id = $1`, id)
	require.Error(t, err)
	assert.True(t, apperr.IsInvalidTransition(apperr.MapDBError(err, "raw update")))

	_, err = repo.pool.Exec(ctx, `UPDATE jobs SET video_id = 'other' WHERE job_id = $1`, id)
	assert.Error(t, err)
}

func TestJobRepository_DuplicateVideoIDConflicts(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	createdAt := time.Now().UTC().Truncate(time.Microsecond)
	videoID := "fixed_" + uuid.NewString()
	require.NoError(t, repo.Put(ctx, entity.NewJob(uuid.New(), videoID, "gs://uploads/"+videoID, createdAt)))

	err := repo.Put(ctx, entity.NewJob(uuid.New(), videoID, "gs://uploads/other-"+videoID, createdAt))
	assert.True(t, apperr.IsConflict(err), "got %v", err)
}
