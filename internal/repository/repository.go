package repository

import (
	"fmt"

	"github.com/google/uuid"

	"media-job-service/internal/apperr"
	"media-job-service/internal/entity"
)

func ValidateNew(job *entity.Job) error {
	switch {
	case job == nil:
		return apperr.Validation("job", "job is required")
	case job.ID == uuid.Nil:
		return apperr.Validation("job_id", "job id is required")
	case job.VideoID == "":
		return apperr.Validation("video_id", "video id is required")
	case job.BucketPath == "":
		return apperr.Validation("bucket_path", "bucket path is required")
	case job.CreatedAt.IsZero():
		return apperr.Validation("created_at", "created_at is required")
	case job.Status != entity.StatusPendingUpload:
		return apperr.Validation("status", fmt.Sprintf("new jobs start in %s, got %q", entity.StatusPendingUpload, job.Status))
	}
	return nil
}

// Backward moves fail the same way whatever is stored.
func ValidateUpdate(upd entity.StatusUpdate) error {
	if !upd.Expected.Valid() {
		return apperr.Validation("expected_status", fmt.Sprintf("unknown status %q", upd.Expected))
	}
	if !upd.To.Valid() {
		return apperr.Validation("status", fmt.Sprintf("unknown status %q", upd.To))
	}
	if !entity.CanTransition(upd.Expected, upd.To) {
		return apperr.InvalidTransition(upd.Expected, upd.To)
	}
	if upd.ResultURL != "" && upd.To != entity.StatusCompleted {
		return apperr.Validation("result_url", "result_url may only be set when completing a job")
	}
	if upd.Error != "" && upd.To != entity.StatusFailed {
		return apperr.Validation("error", "error may only be set when failing a job")
	}
	return nil
}

func NotFound(id uuid.UUID) error {
	return apperr.NotFound("job " + id.String() + " not found")
}

func StaleExpectation(id uuid.UUID, expected, actual entity.JobStatus) error {
	return apperr.Conflict(fmt.Sprintf("job %s is %s, expected %s", id, actual, expected))
}
