package postgresql

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"media-job-service/internal/apperr"
	"media-job-service/internal/entity"
	"media-job-service/internal/repository"
)

const jobColumns = `job_id, video_id, status, created_at, updated_at, bucket_path, result_url, error`

type JobRepository struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

func NewJobRepository(pool *pgxpool.Pool) *JobRepository {
	return &JobRepository{pool: pool, now: time.Now}
}

func (r *JobRepository) Put(ctx context.Context, job *entity.Job) error {
	if err := repository.ValidateNew(job); err != nil {
		return err
	}

	const q = `
INSERT INTO jobs (job_id, video_id, status, created_at, updated_at, bucket_path, result_url, error)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8);
`
	_, err := r.pool.Exec(ctx, q,
		job.ID,
		job.VideoID,
		string(job.Status),
		job.CreatedAt,
		job.UpdatedAt,
		job.BucketPath,
		job.ResultURL,
		job.Error,
	)
	return apperr.MapDBError(err, "put job "+job.ID.String())
}

func (r *JobRepository) Get(ctx context.Context, id uuid.UUID) (*entity.Job, error) {
	q := `SELECT ` + jobColumns + ` FROM jobs WHERE job_id = $1;`

	job, err := scanJob(r.pool.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.NotFound(id)
		}
		return nil, apperr.MapDBError(err, "get job "+id.String())
	}
	return job, nil
}

// One conditional UPDATE: the row lock makes compare and write atomic.
func (r *JobRepository) AdvanceStatus(ctx context.Context, id uuid.UUID, upd entity.StatusUpdate) (*entity.Job, error) {
	if err := repository.ValidateUpdate(upd); err != nil {
		return nil, err
	}

	q := `
UPDATE jobs
SET status = $3,
    updated_at = $4,
    result_url = COALESCE($5, result_url),
    error = COALESCE($6, error)
WHERE job_id = $1 AND status = $2
RETURNING ` + jobColumns + `;`

	at := r.now().UTC().Truncate(time.Microsecond)
	job, err := scanJob(r.pool.QueryRow(ctx, q,
		id,
		string(upd.Expected),
		string(upd.To),
		at,
		nullIfEmpty(upd.ResultURL),
		nullIfEmpty(upd.Error),
	))
	if err == nil {
		return job, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.MapDBError(err, "advance job "+id.String())
	}

	// No row matched: either the job is unknown or its status moved on.
	var current string
	err = r.pool.QueryRow(ctx, `SELECT status FROM jobs WHERE job_id = $1;`, id).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.NotFound(id)
	}
	if err != nil {
		return nil, apperr.MapDBError(err, "advance job "+id.String())
	}
	return nil, repository.StaleExpectation(id, upd.Expected, entity.JobStatus(current))
}

func (r *JobRepository) ListByStatus(ctx context.Context, status entity.JobStatus, createdBefore time.Time, limit int) ([]*entity.Job, error) {
	if limit <= 0 {
		limit = 100
	}
	q := `
SELECT ` + jobColumns + `
FROM jobs
WHERE status = $1 AND created_at < $2
ORDER BY created_at
LIMIT $3;
`
	rows, err := r.pool.Query(ctx, q, string(status), createdBefore, limit)
	if err != nil {
		return nil, apperr.MapDBError(err, "list jobs")
	}
	defer rows.Close()

	var out []*entity.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, apperr.MapDBError(err, "list jobs")
		}
		out = append(out, job)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.MapDBError(err, "list jobs")
	}
	return out, nil
}

func scanJob(row pgx.Row) (*entity.Job, error) {
	var (
		job        entity.Job
		statusText string
		resultURL  *string // NULL => nil
		errText    *string // NULL => nil
	)
	if err := row.Scan(
		&job.ID,
		&job.VideoID,
		&statusText,
		&job.CreatedAt,
		&job.UpdatedAt,
		&job.BucketPath,
		&resultURL,
		&errText,
	); err != nil {
		return nil, err
	}

	st, err := entity.ParseJobStatus(statusText)
	if err != nil {
		return nil, apperr.Persistence(err, "scan job")
	}
	job.Status = st
	job.CreatedAt = job.CreatedAt.UTC()
	job.UpdatedAt = job.UpdatedAt.UTC()
	job.ResultURL = resultURL
	job.Error = errText
	return &job, nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
