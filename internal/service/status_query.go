package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"media-job-service/internal/apperr"
	"media-job-service/internal/entity"
)

type StatusQuery struct {
	store     JobStore
	opTimeout time.Duration
}

func NewStatusQuery(store JobStore, opTimeout time.Duration) *StatusQuery {
	if opTimeout <= 0 {
		opTimeout = 5 * time.Second
	}
	return &StatusQuery{store: store, opTimeout: opTimeout}
}

// GetJob treats an id that does not parse as one that was never created.
func (q *StatusQuery) GetJob(ctx context.Context, jobID string) (*entity.Job, error) {
	id, err := uuid.Parse(jobID)
	if err != nil {
		return nil, apperr.NotFound("job " + jobID + " not found")
	}

	ctx, cancel := context.WithTimeout(ctx, q.opTimeout)
	defer cancel()

	job, err := q.store.Get(ctx, id)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodePersistence, "get job")
	}
	return job, nil
}
