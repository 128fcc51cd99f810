package service

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"media-job-service/internal/apperr"
	"media-job-service/internal/entity"
	"media-job-service/internal/events"
)

// Every method returns copies.
type JobStore interface {
	Put(ctx context.Context, job *entity.Job) error
	Get(ctx context.Context, id uuid.UUID) (*entity.Job, error)
	AdvanceStatus(ctx context.Context, id uuid.UUID, upd entity.StatusUpdate) (*entity.Job, error)
	ListByStatus(ctx context.Context, status entity.JobStatus, createdBefore time.Time, limit int) ([]*entity.Job, error)
}

type UploadAuthority interface {
	IssueUploadGrant(ctx context.Context, req entity.GrantRequest) (entity.UploadGrant, error)
}

type Options struct {
	ProjectID      string
	Bucket         string
	URIScheme      string
	OpTimeout      time.Duration
	MaxUploadBytes int64 // 0 disables the cap

	Events events.Publisher
	Logger *zap.Logger

	Now   func() time.Time
	NewID func() uuid.UUID
}

type JobService struct {
	store     JobStore
	authority UploadAuthority
	events    events.Publisher
	logger    *zap.Logger

	projectID      string
	bucket         string
	scheme         string
	opTimeout      time.Duration
	maxUploadBytes int64

	now   func() time.Time
	newID func() uuid.UUID
}

func NewJobService(store JobStore, authority UploadAuthority, opts Options) *JobService {
	s := &JobService{
		store:          store,
		authority:      authority,
		events:         opts.Events,
		logger:         opts.Logger,
		projectID:      opts.ProjectID,
		bucket:         opts.Bucket,
		scheme:         opts.URIScheme,
		opTimeout:      opts.OpTimeout,
		maxUploadBytes: opts.MaxUploadBytes,
		now:            opts.Now,
		newID:          opts.NewID,
	}
	if s.events == nil {
		s.events = events.Nop{}
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.scheme == "" {
		s.scheme = "gs"
	}
	if s.opTimeout <= 0 {
		s.opTimeout = 5 * time.Second
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newID == nil {
		s.newID = uuid.New
	}
	return s
}

const fallbackStem = "upload"

type CreateJobRequest struct {
	Filename    string
	ContentType string
	SizeBytes   int64
}

type CreateJobResult struct {
	JobID           uuid.UUID
	UploadURL       string
	Status          entity.JobStatus
	CreatedAt       time.Time
	UploadExpiresAt time.Time
}

// The record is written before the grant is issued. If signing fails it stays
// in pending_upload for the reaper.
func (s *JobService) CreateJob(ctx context.Context, req CreateJobRequest) (*CreateJobResult, error) {
	filename, contentType, err := s.validate(req)
	if err != nil {
		return nil, err
	}
	if s.authority == nil {
		return nil, apperr.Authority(errors.New("no upload authority configured"), "issue upload grant")
	}

	id := s.newID()
	createdAt := s.now().UTC().Truncate(time.Microsecond)
	videoID := entity.BuildVideoID(createdAt, id, filename)
	job := entity.NewJob(id, videoID, entity.BuildBucketPath(s.scheme, s.bucket, videoID), createdAt)

	putCtx, cancel := context.WithTimeout(ctx, s.opTimeout)
	err = s.store.Put(putCtx, job)
	cancel()
	if err != nil {
		s.logger.Error("persist job failed",
			zap.String("job_id", id.String()),
			zap.String("video_id", videoID),
			zap.Error(err),
		)
		return nil, apperr.Wrap(err, apperr.CodePersistence, "persist job")
	}

	grantCtx, cancel := context.WithTimeout(ctx, s.opTimeout)
	grant, err := s.authority.IssueUploadGrant(grantCtx, entity.GrantRequest{
		ObjectKey:   videoID,
		ContentType: contentType,
		Method:      http.MethodPut,
		TTL:         entity.UploadGrantTTL,
	})
	cancel()
	if err != nil {
		s.logger.Warn("upload grant failed, job left in pending_upload",
			zap.String("job_id", id.String()),
			zap.String("video_id", videoID),
			zap.Error(err),
		)
		return nil, apperr.Wrap(err, apperr.CodeAuthority, "issue upload grant")
	}

	s.logger.Info("job created",
		zap.String("job_id", id.String()),
		zap.String("video_id", videoID),
		zap.String("content_type", contentType),
		zap.Int64("size_bytes", req.SizeBytes),
	)
	s.publish(ctx, events.JobCreated(s.projectID, job))

	return &CreateJobResult{
		JobID:           id,
		UploadURL:       grant.URL,
		Status:          job.Status,
		CreatedAt:       job.CreatedAt,
		UploadExpiresAt: grant.ExpiresAt,
	}, nil
}

func (s *JobService) validate(req CreateJobRequest) (filename, contentType string, err error) {
	if req.SizeBytes <= 0 {
		return "", "", apperr.Validation("size_bytes", "size_bytes must be greater than 0")
	}
	if s.maxUploadBytes > 0 && req.SizeBytes > s.maxUploadBytes {
		return "", "", apperr.Validation("size_bytes", "size_bytes exceeds the upload limit")
	}
	if strings.TrimSpace(req.Filename) == "" {
		return "", "", apperr.Validation("filename", "filename is required")
	}
	contentType = strings.TrimSpace(req.ContentType)
	if contentType == "" {
		return "", "", apperr.Validation("content_type", "content_type is required")
	}
	// job_id keeps the key unique, so a name with nothing usable left gets a fixed stem.
	filename = entity.SanitizeFilename(req.Filename)
	if filename == "" {
		filename = fallbackStem
	}
	return filename, contentType, nil
}

// No retries here; worker.Advancer owns those.
func (s *JobService) AdvanceStatus(ctx context.Context, id uuid.UUID, upd entity.StatusUpdate) (*entity.Job, error) {
	opCtx, cancel := context.WithTimeout(ctx, s.opTimeout)
	job, err := s.store.AdvanceStatus(opCtx, id, upd)
	cancel()
	if err != nil {
		s.logger.Info("advance status rejected",
			zap.String("job_id", id.String()),
			zap.Stringer("expected", upd.Expected),
			zap.Stringer("to", upd.To),
			zap.String("code", string(apperr.CodeOf(err))),
			zap.Error(err),
		)
		return nil, apperr.Wrap(err, apperr.CodePersistence, "advance job status")
	}

	s.logger.Info("job status advanced",
		zap.String("job_id", id.String()),
		zap.Stringer("from", upd.Expected),
		zap.Stringer("to", job.Status),
	)
	s.publish(ctx, events.JobStatusChanged(s.projectID, upd.Expected, job))
	return job, nil
}

// Best effort: the job is already committed.
func (s *JobService) publish(ctx context.Context, evt events.Event) {
	pubCtx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()
	if err := s.events.Publish(pubCtx, evt); err != nil {
		s.logger.Error("publish event failed",
			zap.String("type", string(evt.Type)),
			zap.String("job_id", evt.JobID),
			zap.Error(err),
		)
	}
}
