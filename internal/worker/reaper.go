package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"media-job-service/internal/apperr"
	"media-job-service/internal/entity"
)

const expiredUploadError = "upload window expired"

type PendingLister interface {
	ListByStatus(ctx context.Context, status entity.JobStatus, createdBefore time.Time, limit int) ([]*entity.Job, error)
}

// Reaper fails pending_upload jobs whose upload window closed long ago.
type Reaper struct {
	lister PendingLister
	writer StatusWriter
	logger *zap.Logger

	grace    time.Duration
	interval time.Duration
	batch    int
	now      func() time.Time
}

type ReaperOptions struct {
	Grace    time.Duration
	Interval time.Duration
	Batch    int
	Now      func() time.Time
}

func NewReaper(lister PendingLister, writer StatusWriter, logger *zap.Logger, opts ReaperOptions) *Reaper {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Reaper{
		lister:   lister,
		writer:   writer,
		logger:   logger,
		grace:    opts.Grace,
		interval: opts.Interval,
		batch:    opts.Batch,
		now:      opts.Now,
	}
	if r.grace < 0 {
		r.grace = 0
	}
	if r.interval <= 0 {
		r.interval = 5 * time.Minute
	}
	if r.batch <= 0 {
		r.batch = 100
	}
	if r.now == nil {
		r.now = time.Now
	}
	return r
}

func (r *Reaper) Cutoff() time.Time {
	return r.now().UTC().Add(-(entity.UploadGrantTTL + r.grace))
}

func (r *Reaper) RunOnce(ctx context.Context) (int, error) {
	jobs, err := r.lister.ListByStatus(ctx, entity.StatusPendingUpload, r.Cutoff(), r.batch)
	if err != nil {
		return 0, err
	}

	reaped := 0
	for _, j := range jobs {
		_, err := r.writer.AdvanceStatus(ctx, j.ID, entity.StatusUpdate{
			Expected: entity.StatusPendingUpload,
			To:       entity.StatusFailed,
			Error:    expiredUploadError,
		})
		switch {
		case err == nil:
			reaped++
			r.logger.Info("reaped abandoned upload",
				zap.String("job_id", j.ID.String()),
				zap.String("video_id", j.VideoID),
				zap.Time("created_at", j.CreatedAt),
			)
		case apperr.IsConflict(err), apperr.IsNotFound(err):
			r.logger.Debug("job left pending_upload before reaping", zap.String("job_id", j.ID.String()))
		default:
			return reaped, err
		}
	}
	return reaped, nil
}

func (r *Reaper) Run(ctx context.Context) {
	r.logger.Info("reaper started",
		zap.Duration("interval", r.interval),
		zap.Duration("grace", r.grace),
		zap.Int("batch", r.batch),
	)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		n, err := r.RunOnce(ctx)
		if err != nil && ctx.Err() == nil {
			r.logger.Error("reap failed", zap.Error(err))
		}
		if n > 0 {
			r.logger.Info("reaped jobs", zap.Int("count", n))
		}

		select {
		case <-ctx.Done():
			r.logger.Info("reaper stopped")
			return
		case <-ticker.C:
		}
	}
}
