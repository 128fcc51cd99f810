// Package redisstore keeps job records as redis hashes.
//
// Layout, for prefix P:
//
//	P:job:{id}             hash of the record fields
//	P:jobs:status:{status} sorted set of job ids scored by created_at (unix µs)
//
// Put and AdvanceStatus run as Lua scripts, so each is atomic with respect
// to every other client of the same redis. The keys of one call are not
// hash-tagged; run against a single node or a sentinel setup, not a cluster.
package redisstore

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"media-job-service/internal/apperr"
	"media-job-service/internal/entity"
	"media-job-service/internal/repository"
)

// KEYS[1] job hash, KEYS[2] status index. ARGV[1] score, ARGV[2] id,
// ARGV[3..] field/value pairs.
var putScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
  return 0
end
redis.call('HSET', KEYS[1], unpack(ARGV, 3))
redis.call('ZADD', KEYS[2], ARGV[1], ARGV[2])
return 1
`)

// KEYS[1] job hash, KEYS[2] index of the expected status, KEYS[3] index of
// the new status. ARGV: expected, next, updated_at, result_url, error, id.
// Returns -1 for an unknown job, the stored status on a stale expectation,
// and the record as written otherwise.
var advanceScript = redis.NewScript(`
local cur = redis.call('HGET', KEYS[1], 'status')
if not cur then
  return -1
end
if cur ~= ARGV[1] then
  return cur
end
redis.call('HSET', KEYS[1], 'status', ARGV[2], 'updated_at', ARGV[3])
if ARGV[4] ~= '' then
  redis.call('HSET', KEYS[1], 'result_url', ARGV[4])
end
if ARGV[5] ~= '' then
  redis.call('HSET', KEYS[1], 'error', ARGV[5])
end
local score = redis.call('ZSCORE', KEYS[2], ARGV[6])
redis.call('ZREM', KEYS[2], ARGV[6])
if score then
  redis.call('ZADD', KEYS[3], score, ARGV[6])
end
return redis.call('HGETALL', KEYS[1])
`)

type JobStore struct {
	rdb    redis.UniversalClient
	prefix string
	now    func() time.Time
}

func NewJobStore(rdb redis.UniversalClient, prefix string) *JobStore {
	if prefix == "" {
		prefix = "media-jobs"
	}
	return &JobStore{rdb: rdb, prefix: prefix, now: time.Now}
}

func (s *JobStore) jobKey(id uuid.UUID) string {
	return s.prefix + ":job:" + id.String()
}

func (s *JobStore) indexKey(st entity.JobStatus) string {
	return s.prefix + ":jobs:status:" + string(st)
}

func (s *JobStore) Put(ctx context.Context, job *entity.Job) error {
	if err := repository.ValidateNew(job); err != nil {
		return err
	}

	args := []any{score(job.CreatedAt), job.ID.String()}
	for k, v := range encode(job) {
		args = append(args, k, v)
	}

	created, err := putScript.Run(ctx, s.rdb,
		[]string{s.jobKey(job.ID), s.indexKey(job.Status)},
		args...,
	).Int()
	if err != nil {
		return apperr.Persistence(err, "put job "+job.ID.String())
	}
	if created == 0 {
		return apperr.Conflict("job " + job.ID.String() + " already exists")
	}
	return nil
}

func (s *JobStore) Get(ctx context.Context, id uuid.UUID) (*entity.Job, error) {
	fields, err := s.rdb.HGetAll(ctx, s.jobKey(id)).Result()
	if err != nil {
		return nil, apperr.Persistence(err, "get job "+id.String())
	}
	if len(fields) == 0 {
		return nil, repository.NotFound(id)
	}
	job, err := decode(fields)
	if err != nil {
		return nil, apperr.Persistence(err, "decode job "+id.String())
	}
	return job, nil
}

func (s *JobStore) AdvanceStatus(ctx context.Context, id uuid.UUID, upd entity.StatusUpdate) (*entity.Job, error) {
	if err := repository.ValidateUpdate(upd); err != nil {
		return nil, err
	}

	at := s.now().UTC().Truncate(time.Microsecond)
	res, err := advanceScript.Run(ctx, s.rdb,
		[]string{s.jobKey(id), s.indexKey(upd.Expected), s.indexKey(upd.To)},
		string(upd.Expected),
		string(upd.To),
		at.Format(time.RFC3339Nano),
		upd.ResultURL,
		upd.Error,
		id.String(),
	).Result()
	if err != nil {
		return nil, apperr.Persistence(err, "advance job "+id.String())
	}

	switch v := res.(type) {
	case int64:
		return nil, repository.NotFound(id)
	case string:
		return nil, repository.StaleExpectation(id, upd.Expected, entity.JobStatus(v))
	case []any:
		job, err := decode(pairs(v))
		if err != nil {
			return nil, apperr.Persistence(err, "decode job "+id.String())
		}
		return job, nil
	default:
		return nil, apperr.Persistence(fmt.Errorf("unexpected script reply %T", res), "advance job "+id.String())
	}
}

func (s *JobStore) ListByStatus(ctx context.Context, status entity.JobStatus, createdBefore time.Time, limit int) ([]*entity.Job, error) {
	if limit <= 0 {
		limit = 100
	}
	ids, err := s.rdb.ZRangeByScore(ctx, s.indexKey(status), &redis.ZRangeBy{
		Min:   "-inf",
		Max:   "(" + strconv.FormatInt(score(createdBefore), 10),
		Count: int64(limit),
	}).Result()
	if err != nil {
		return nil, apperr.Persistence(err, "list jobs")
	}
	if len(ids) == 0 {
		return nil, nil
	}

	pipe := s.rdb.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, 0, len(ids))
	for _, raw := range ids {
		id, err := uuid.Parse(raw)
		if err != nil {
			continue
		}
		cmds = append(cmds, pipe.HGetAll(ctx, s.jobKey(id)))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, apperr.Persistence(err, "list jobs")
	}

	out := make([]*entity.Job, 0, len(cmds))
	for _, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			continue
		}
		job, err := decode(fields)
		if err != nil {
			return nil, apperr.Persistence(err, "decode job")
		}
		// The index and the hash are written by the same script; this only
		// guards against hand-edited keys.
		if job.Status == status {
			out = append(out, job)
		}
	}
	return out, nil
}

// pairs turns a flat HGETALL reply into a field map.
func pairs(flat []any) map[string]string {
	m := make(map[string]string, len(flat)/2)
	for i := 0; i+1 < len(flat); i += 2 {
		k, _ := flat[i].(string)
		v, _ := flat[i+1].(string)
		m[k] = v
	}
	return m
}

func score(t time.Time) int64 {
	return t.UTC().UnixMicro()
}

func encode(job *entity.Job) map[string]string {
	m := map[string]string{
		"job_id":      job.ID.String(),
		"video_id":    job.VideoID,
		"status":      string(job.Status),
		"created_at":  job.CreatedAt.UTC().Format(time.RFC3339Nano),
		"updated_at":  job.UpdatedAt.UTC().Format(time.RFC3339Nano),
		"bucket_path": job.BucketPath,
	}
	if job.ResultURL != nil {
		m["result_url"] = *job.ResultURL
	}
	if job.Error != nil {
		m["error"] = *job.Error
	}
	return m
}

func decode(m map[string]string) (*entity.Job, error) {
	id, err := uuid.Parse(m["job_id"])
	if err != nil {
		return nil, err
	}
	st, err := entity.ParseJobStatus(m["status"])
	if err != nil {
		return nil, err
	}
	createdAt, err := time.Parse(time.RFC3339Nano, m["created_at"])
	if err != nil {
		return nil, err
	}
	updatedAt, err := time.Parse(time.RFC3339Nano, m["updated_at"])
	if err != nil {
		return nil, err
	}

	job := &entity.Job{
		ID:         id,
		VideoID:    m["video_id"],
		Status:     st,
		CreatedAt:  createdAt.UTC(),
		UpdatedAt:  updatedAt.UTC(),
		BucketPath: m["bucket_path"],
	}
	if v, ok := m["result_url"]; ok {
		job.ResultURL = &v
	}
	if v, ok := m["error"]; ok {
		job.Error = &v
	}
	return job, nil
}
