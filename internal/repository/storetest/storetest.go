// Package storetest is a behaviour suite every JobStore backend must pass.
package storetest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"media-job-service/internal/apperr"
	"media-job-service/internal/entity"
	"media-job-service/internal/service"
)

func newJob(createdAt time.Time) *entity.Job {
	id := uuid.New()
	createdAt = createdAt.UTC().Truncate(time.Microsecond)
	videoID := entity.BuildVideoID(createdAt, id, "clip.mp4")
	return entity.NewJob(id, videoID, entity.BuildBucketPath("gs", "uploads", videoID), createdAt)
}

func Run(t *testing.T, store service.JobStore) {
	t.Helper()

	t.Run("put then get", func(t *testing.T) {
		ctx := context.Background()
		job := newJob(time.Now())
		require.NoError(t, store.Put(ctx, job))

		got, err := store.Get(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, job.ID, got.ID)
		assert.Equal(t, job.VideoID, got.VideoID)
		assert.Equal(t, job.BucketPath, got.BucketPath)
		assert.Equal(t, entity.StatusPendingUpload, got.Status)
		assert.True(t, job.CreatedAt.Equal(got.CreatedAt), "created_at %s != %s", job.CreatedAt, got.CreatedAt)
		assert.Nil(t, got.ResultURL)
		assert.Nil(t, got.Error)
	})

	t.Run("duplicate put conflicts", func(t *testing.T) {
		ctx := context.Background()
		job := newJob(time.Now())
		require.NoError(t, store.Put(ctx, job))
		assert.True(t, apperr.IsConflict(store.Put(ctx, job)))
	})

	t.Run("unknown id", func(t *testing.T) {
		ctx := context.Background()
		_, err := store.Get(ctx, uuid.New())
		assert.True(t, apperr.IsNotFound(err))

		_, err = store.AdvanceStatus(ctx, uuid.New(), entity.StatusUpdate{Expected: entity.StatusPendingUpload, To: entity.StatusQueued})
		assert.True(t, apperr.IsNotFound(err))
	})

	t.Run("full lifecycle", func(t *testing.T) {
		ctx := context.Background()
		job := newJob(time.Now())
		require.NoError(t, store.Put(ctx, job))

		for _, upd := range []entity.StatusUpdate{
			{Expected: entity.StatusPendingUpload, To: entity.StatusQueued},
			{Expected: entity.StatusQueued, To: entity.StatusProcessing},
			{Expected: entity.StatusProcessing, To: entity.StatusCompleted, ResultURL: "gs://results/clip.mp4"},
		} {
			got, err := store.AdvanceStatus(ctx, job.ID, upd)
			require.NoError(t, err)
			assert.Equal(t, upd.To, got.Status)
			assert.False(t, got.UpdatedAt.Before(got.CreatedAt))
		}

		got, err := store.Get(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, entity.StatusCompleted, got.Status)
		require.NotNil(t, got.ResultURL)
		assert.Equal(t, "gs://results/clip.mp4", *got.ResultURL)
		assert.Equal(t, job.VideoID, got.VideoID)
		assert.True(t, job.CreatedAt.Equal(got.CreatedAt))
	})

	t.Run("stale expectation conflicts", func(t *testing.T) {
		ctx := context.Background()
		job := newJob(time.Now())
		require.NoError(t, store.Put(ctx, job))

		_, err := store.AdvanceStatus(ctx, job.ID, entity.StatusUpdate{Expected: entity.StatusQueued, To: entity.StatusProcessing})
		assert.True(t, apperr.IsConflict(err), "got %v", err)

		got, err := store.Get(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, entity.StatusPendingUpload, got.Status)
	})

	t.Run("backward transition rejected", func(t *testing.T) {
		ctx := context.Background()
		job := newJob(time.Now())
		require.NoError(t, store.Put(ctx, job))

		_, err := store.AdvanceStatus(ctx, job.ID, entity.StatusUpdate{Expected: entity.StatusPendingUpload, To: entity.StatusPendingUpload})
		assert.True(t, apperr.IsInvalidTransition(err))
	})

	t.Run("concurrent writers, one winner", func(t *testing.T) {
		ctx := context.Background()
		job := newJob(time.Now())
		require.NoError(t, store.Put(ctx, job))

		const writers = 8
		results := make(chan error, writers)
		var wg sync.WaitGroup
		for i := 0; i < writers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := store.AdvanceStatus(ctx, job.ID, entity.StatusUpdate{Expected: entity.StatusPendingUpload, To: entity.StatusQueued})
				results <- err
			}()
		}
		wg.Wait()
		close(results)

		wins := 0
		for err := range results {
			if err == nil {
				wins++
				continue
			}
			assert.True(t, apperr.IsConflict(err), "got %v", err)
		}
		assert.Equal(t, 1, wins)
	})

	t.Run("list by status", func(t *testing.T) {
		ctx := context.Background()
		base := time.Now().Add(-48 * time.Hour)
		older := newJob(base)
		newer := newJob(base.Add(time.Minute))
		recent := newJob(time.Now())
		for _, j := range []*entity.Job{newer, recent, older} {
			require.NoError(t, store.Put(ctx, j))
		}

		listed, err := store.ListByStatus(ctx, entity.StatusPendingUpload, base.Add(2*time.Minute), 1000)
		require.NoError(t, err)

		var ids []uuid.UUID
		for _, j := range listed {
			ids = append(ids, j.ID)
			assert.Equal(t, entity.StatusPendingUpload, j.Status)
		}
		assert.Contains(t, ids, older.ID)
		assert.Contains(t, ids, newer.ID)
		assert.NotContains(t, ids, recent.ID)

		// Oldest first.
		var posOlder, posNewer int
		for i, id := range ids {
			switch id {
			case older.ID:
				posOlder = i
			case newer.ID:
				posNewer = i
			}
		}
		assert.Less(t, posOlder, posNewer)
	})
}
