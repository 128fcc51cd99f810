package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"media-job-service/internal/apperr"
	"media-job-service/internal/entity"
	"media-job-service/internal/repository"
)

// The mutex stands in for the per-record compare-and-set of a real backend.
type JobStore struct {
	mu   sync.RWMutex
	jobs map[uuid.UUID]*entity.Job
	now  func() time.Time
}

func NewJobStore() *JobStore {
	return &JobStore{
		jobs: make(map[uuid.UUID]*entity.Job),
		now:  time.Now,
	}
}

func (s *JobStore) Put(ctx context.Context, job *entity.Job) error {
	if err := ctx.Err(); err != nil {
		return apperr.Persistence(err, "put job")
	}
	if err := repository.ValidateNew(job); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[job.ID]; ok {
		return apperr.Conflict("job " + job.ID.String() + " already exists")
	}
	s.jobs[job.ID] = job.Clone()
	return nil
}

func (s *JobStore) Get(ctx context.Context, id uuid.UUID) (*entity.Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperr.Persistence(err, "get job")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	j, ok := s.jobs[id]
	if !ok {
		return nil, repository.NotFound(id)
	}
	return j.Clone(), nil
}

func (s *JobStore) AdvanceStatus(ctx context.Context, id uuid.UUID, upd entity.StatusUpdate) (*entity.Job, error) {
	if err := repository.ValidateUpdate(upd); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, apperr.Persistence(err, "advance job status")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok {
		return nil, repository.NotFound(id)
	}
	if j.Status != upd.Expected {
		return nil, repository.StaleExpectation(id, upd.Expected, j.Status)
	}

	upd.Apply(j, s.now().UTC().Truncate(time.Microsecond))
	return j.Clone(), nil
}

func (s *JobStore) ListByStatus(ctx context.Context, status entity.JobStatus, createdBefore time.Time, limit int) ([]*entity.Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperr.Persistence(err, "list jobs")
	}

	s.mu.RLock()
	out := make([]*entity.Job, 0)
	for _, j := range s.jobs {
		if j.Status == status && j.CreatedAt.Before(createdBefore) {
			out = append(out, j.Clone())
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, k int) bool {
		return out[i].CreatedAt.Before(out[k].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
