package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap/zaptest"

	"media-job-service/internal/apperr"
	"media-job-service/internal/entity"
	"media-job-service/internal/mocks"
	"media-job-service/internal/repository/memory"
)

func TestReaper_FailsOnlyExpiredPendingJobs(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)
	store := memory.NewJobStore()

	stale := seedJob(t, store, now.Add(-2*time.Hour))
	fresh := seedJob(t, store, now.Add(-10*time.Minute))
	moved := seedJob(t, store, now.Add(-3*time.Hour))
	_, err := store.AdvanceStatus(ctx, moved.ID, entity.StatusUpdate{Expected: entity.StatusPendingUpload, To: entity.StatusQueued})
	require.NoError(t, err)

	r := NewReaper(store, store, zaptest.NewLogger(t), ReaperOptions{
		Grace: time.Hour,
		Now:   func() time.Time { return now },
	})

	n, err := r.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := store.Get(ctx, stale.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusFailed, got.Status)
	require.NotNil(t, got.Error)
	assert.Equal(t, "upload window expired", *got.Error)

	got, err = store.Get(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusPendingUpload, got.Status)

	got, err = store.Get(ctx, moved.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusQueued, got.Status)

	n, err = r.RunOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestReaper_Cutoff(t *testing.T) {
	now := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)
	r := NewReaper(memory.NewJobStore(), memory.NewJobStore(), nil, ReaperOptions{
		Grace: 30 * time.Minute,
		Now:   func() time.Time { return now },
	})
	assert.Equal(t, now.Add(-45*time.Minute), r.Cutoff())
}

func TestReaper_SkipsJobsTheWorkerWon(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockJobStore(ctrl)
	a, b := uuid.New(), uuid.New()

	store.EXPECT().
		ListByStatus(gomock.Any(), entity.StatusPendingUpload, gomock.Any(), 10).
		Return([]*entity.Job{jobIn(a, entity.StatusPendingUpload), jobIn(b, entity.StatusPendingUpload)}, nil)
	store.EXPECT().AdvanceStatus(gomock.Any(), a, gomock.Any()).Return(nil, apperr.Conflict("job is queued"))
	store.EXPECT().AdvanceStatus(gomock.Any(), b, gomock.Any()).Return(jobIn(b, entity.StatusFailed), nil)

	r := NewReaper(store, store, zaptest.NewLogger(t), ReaperOptions{Batch: 10})
	n, err := r.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestReaper_StopsOnStoreOutage(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockJobStore(ctrl)

	store.EXPECT().
		ListByStatus(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, apperr.Persistence(errors.New("down"), "list jobs"))

	r := NewReaper(store, store, zaptest.NewLogger(t), ReaperOptions{})
	_, err := r.RunOnce(context.Background())
	assert.True(t, apperr.IsPersistence(err))
}

func TestReaper_RunReturnsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	store := memory.NewJobStore()
	r := NewReaper(store, store, zaptest.NewLogger(t), ReaperOptions{Interval: time.Millisecond})

	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("reaper did not stop")
	}
}
