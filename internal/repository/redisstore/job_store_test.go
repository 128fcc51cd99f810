package redisstore

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"media-job-service/internal/apperr"
	"media-job-service/internal/entity"
	"media-job-service/internal/repository/storetest"
)

// Uses an in-process miniredis unless TEST_REDIS_ADDR points at a real
// server. Keys live under a random prefix and are removed afterwards.
func newTestStore(t *testing.T) (*JobStore, *redis.Client) {
	t.Helper()
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		addr = miniredis.RunT(t).Addr()
	}

	rdb := redis.NewClient(&redis.Options{Addr: addr})
	ctx := context.Background()
	require.NoError(t, rdb.Ping(ctx).Err())

	prefix := "test-" + uuid.NewString()
	t.Cleanup(func() {
		keys, err := rdb.Keys(ctx, prefix+":*").Result()
		if err == nil && len(keys) > 0 {
			rdb.Del(ctx, keys...)
		}
		_ = rdb.Close()
	})
	return NewJobStore(rdb, prefix), rdb
}

// failCommands makes every command with one of the given names fail before
// it reaches the server.
type failCommands map[string]bool

func (f failCommands) DialHook(next redis.DialHook) redis.DialHook { return next }

func (f failCommands) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		if f[cmd.Name()] {
			err := errors.New("connection reset by peer")
			cmd.SetErr(err)
			return err
		}
		return next(ctx, cmd)
	}
}

func (f failCommands) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return next
}

func TestJobStore(t *testing.T) {
	store, _ := newTestStore(t)
	storetest.Run(t, store)
}

func TestJobStore_IndexFollowsStatus(t *testing.T) {
	store, rdb := newTestStore(t)
	ctx := context.Background()

	createdAt := time.Now().UTC().Truncate(time.Microsecond)
	id := uuid.New()
	videoID := entity.BuildVideoID(createdAt, id, "clip.mp4")
	require.NoError(t, store.Put(ctx, entity.NewJob(id, videoID, "gs://uploads/"+videoID, createdAt)))

	_, err := store.AdvanceStatus(ctx, id, entity.StatusUpdate{Expected: entity.StatusPendingUpload, To: entity.StatusQueued})
	require.NoError(t, err)

	pending, err := rdb.ZScore(ctx, store.indexKey(entity.StatusPendingUpload), id.String()).Result()
	assert.ErrorIs(t, err, redis.Nil)
	assert.Zero(t, pending)

	score, err := rdb.ZScore(ctx, store.indexKey(entity.StatusQueued), id.String()).Result()
	require.NoError(t, err)
	assert.Equal(t, float64(createdAt.UnixMicro()), score)
}

func TestJobStore_AdvanceReturnsWrittenRecord(t *testing.T) {
	store, rdb := newTestStore(t)
	ctx := context.Background()

	createdAt := time.Now().UTC().Truncate(time.Microsecond)
	id := uuid.New()
	videoID := entity.BuildVideoID(createdAt, id, "clip.mp4")
	require.NoError(t, store.Put(ctx, entity.NewJob(id, videoID, "gs://uploads/"+videoID, createdAt)))

	// A separate read after the write would fail here.
	rdb.AddHook(failCommands{"hgetall": true})

	job, err := store.AdvanceStatus(ctx, id, entity.StatusUpdate{Expected: entity.StatusPendingUpload, To: entity.StatusQueued})
	require.NoError(t, err)
	assert.Equal(t, entity.StatusQueued, job.Status)
	assert.Equal(t, id, job.ID)
	assert.Equal(t, videoID, job.VideoID)
	assert.True(t, createdAt.Equal(job.CreatedAt))

	status, err := rdb.HGet(ctx, store.jobKey(id), "status").Result()
	require.NoError(t, err)
	assert.Equal(t, string(entity.StatusQueued), status)

	_, err = store.AdvanceStatus(ctx, id, entity.StatusUpdate{Expected: entity.StatusPendingUpload, To: entity.StatusQueued})
	assert.True(t, apperr.IsConflict(err), "got %v", err)
	assert.Contains(t, err.Error(), string(entity.StatusQueued))
}

func TestJobStore_AdvanceUnknownJob(t *testing.T) {
	store, _ := newTestStore(t)

	_, err := store.AdvanceStatus(context.Background(), uuid.New(), entity.StatusUpdate{Expected: entity.StatusPendingUpload, To: entity.StatusQueued})
	assert.True(t, apperr.IsNotFound(err), "got %v", err)
}

func TestPairs(t *testing.T) {
	assert.Equal(t,
		map[string]string{"status": "queued", "video_id": "v"},
		pairs([]any{"status", "queued", "video_id", "v"}),
	)
	assert.Empty(t, pairs(nil))
}

func TestEncodeDecode(t *testing.T) {
	createdAt := time.Date(2026, 10, 17, 8, 30, 0, 123456000, time.UTC)
	job := entity.NewJob(uuid.New(), "v", "gs://b/v", createdAt)
	entity.StatusUpdate{Expected: entity.StatusProcessing, To: entity.StatusFailed, Error: "codec"}.Apply(job, createdAt.Add(time.Minute))

	got, err := decode(encode(job))
	require.NoError(t, err)
	assert.Equal(t, job, got)

	_, err = decode(map[string]string{"job_id": "nope"})
	assert.Error(t, err)
}
