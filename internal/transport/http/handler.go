package httptransport

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"media-job-service/internal/entity"
	"media-job-service/internal/service"
)

const maxBodyBytes = 1 << 20

type Handler struct {
	jobSvc *service.JobService
	query  *service.StatusQuery
	logger *zap.Logger
}

func NewHandler(jobSvc *service.JobService, query *service.StatusQuery, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{jobSvc: jobSvc, query: query, logger: logger}
}

type createJobDTO struct {
	Filename    string `json:"filename" example:"video.mp4"`
	ContentType string `json:"content_type" example:"video/mp4"`
	SizeBytes   int64  `json:"size_bytes" example:"1048576"`
}

type createJobResp struct {
	JobID           string           `json:"job_id"`
	UploadURL       string           `json:"upload_url"`
	Status          entity.JobStatus `json:"status" swaggertype:"string" example:"pending_upload"`
	CreatedAt       time.Time        `json:"created_at"`
	UploadExpiresAt time.Time        `json:"upload_expires_at"`
}

// CreateJob godoc
// @Summary Create an upload job
// @Description Persists a pending_upload job and returns a presigned PUT URL, valid for 900 seconds and bound to the given content type.
// @Tags jobs
// @Accept json
// @Produce json
// @Param request body createJobDTO true "upload metadata"
// @Success 201 {object} createJobResp
// @Failure 400 {object} apiError
// @Failure 409 {object} apiError
// @Failure 502 {object} apiError
// @Failure 503 {object} apiError
// @Router /v1/jobs [post]
func (h *Handler) CreateJob(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var dto createJobDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeErr(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}

	res, err := h.jobSvc.CreateJob(r.Context(), service.CreateJobRequest{
		Filename:    dto.Filename,
		ContentType: dto.ContentType,
		SizeBytes:   dto.SizeBytes,
	})
	if err != nil {
		writeAppErr(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, createJobResp{
		JobID:           res.JobID.String(),
		UploadURL:       res.UploadURL,
		Status:          res.Status,
		CreatedAt:       res.CreatedAt,
		UploadExpiresAt: res.UploadExpiresAt,
	})
}

// GetJob godoc
// @Summary Get job by id
// @Description Returns the last committed state of the job. Ids that are not UUIDs are reported as not found.
// @Tags jobs
// @Produce json
// @Param job_id path string true "job id (uuid)"
// @Success 200 {object} entity.Job
// @Failure 404 {object} apiError
// @Failure 503 {object} apiError
// @Router /v1/jobs/{job_id} [get]
func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	j, err := h.query.GetJob(r.Context(), chi.URLParam(r, "job_id"))
	if err != nil {
		writeAppErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, j)
}
