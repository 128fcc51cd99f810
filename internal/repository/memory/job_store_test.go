package memory

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"media-job-service/internal/apperr"
	"media-job-service/internal/entity"
	"media-job-service/internal/repository/storetest"
)

func TestJobStore(t *testing.T) {
	storetest.Run(t, NewJobStore())
}

func TestJobStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewJobStore()
	job := entity.NewJob(uuid.New(), "v", "gs://b/v", time.Now().UTC())
	require.NoError(t, s.Put(ctx, job))

	job.Status = entity.StatusFailed
	got, err := s.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusPendingUpload, got.Status)

	got.VideoID = "mutated"
	again, err := s.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, "v", again.VideoID)
}

func TestJobStore_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := NewJobStore()
	err := s.Put(ctx, entity.NewJob(uuid.New(), "v", "gs://b/v", time.Now().UTC()))
	assert.True(t, apperr.IsPersistence(err))
}

func TestJobStore_ListLimit(t *testing.T) {
	ctx := context.Background()
	s := NewJobStore()
	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		require.NoError(t, s.Put(ctx, entity.NewJob(uuid.New(), "v", "gs://b/v", base.Add(time.Duration(i)*time.Second))))
	}

	listed, err := s.ListByStatus(ctx, entity.StatusPendingUpload, time.Now(), 3)
	require.NoError(t, err)
	require.Len(t, listed, 3)
	assert.Equal(t, base, listed[0].CreatedAt)
}
