package worker

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"media-job-service/internal/apperr"
	"media-job-service/internal/entity"
)

type JobReader interface {
	Get(ctx context.Context, id uuid.UUID) (*entity.Job, error)
}

type StatusWriter interface {
	AdvanceStatus(ctx context.Context, id uuid.UUID, upd entity.StatusUpdate) (*entity.Job, error)
}

type AdvanceOptions struct {
	ResultURL string
	Error     string
}

type Advancer struct {
	reader JobReader
	writer StatusWriter
	logger *zap.Logger

	maxAttempts int
	baseDelay   time.Duration
}

func NewAdvancer(reader JobReader, writer StatusWriter, logger *zap.Logger) *Advancer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Advancer{
		reader:      reader,
		writer:      writer,
		logger:      logger,
		maxAttempts: 5,
		baseDelay:   100 * time.Millisecond,
	}
}

// Conflicts re-read the job, retryable errors back off.
func (a *Advancer) Advance(ctx context.Context, id uuid.UUID, to entity.JobStatus, opts AdvanceOptions) (*entity.Job, error) {
	if !to.Valid() {
		return nil, apperr.Validation("status", "unknown status "+string(to))
	}

	delay := a.baseDelay
	var lastErr error
	for attempt := 1; attempt <= a.maxAttempts; attempt++ {
		job, err := a.reader.Get(ctx, id)
		if err == nil {
			if job.Status == to {
				return job, nil
			}
			if !entity.CanTransition(job.Status, to) {
				return nil, apperr.InvalidTransition(job.Status, to)
			}
			job, err = a.writer.AdvanceStatus(ctx, id, entity.StatusUpdate{
				Expected:  job.Status,
				To:        to,
				ResultURL: opts.ResultURL,
				Error:     opts.Error,
			})
			if err == nil {
				return job, nil
			}
		}
		lastErr = err

		switch {
		case apperr.IsConflict(err):
			a.logger.Debug("advance lost a race, re-reading",
				zap.String("job_id", id.String()),
				zap.Int("attempt", attempt),
			)
			continue
		case apperr.Retryable(err):
			if attempt == a.maxAttempts {
				continue
			}
			a.logger.Warn("advance failed, backing off",
				zap.String("job_id", id.String()),
				zap.Int("attempt", attempt),
				zap.Duration("backoff", delay),
				zap.Error(err),
			)
			if err := sleep(ctx, delay); err != nil {
				return nil, apperr.Persistence(err, "advance job "+id.String())
			}
			delay *= 2
		default:
			return nil, err
		}
	}
	return nil, lastErr
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
