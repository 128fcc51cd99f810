package entity

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type JobStatus string

const (
	StatusPendingUpload JobStatus = "pending_upload"
	StatusQueued        JobStatus = "queued"
	StatusProcessing    JobStatus = "processing"
	StatusCompleted     JobStatus = "completed"
	StatusFailed        JobStatus = "failed"
)

// transitions is the only place that decides which status may follow which.
// Terminal states map to an empty set.
var transitions = map[JobStatus][]JobStatus{
	StatusPendingUpload: {StatusQueued, StatusFailed},
	StatusQueued:        {StatusProcessing, StatusFailed},
	StatusProcessing:    {StatusCompleted, StatusFailed},
	StatusCompleted:     nil,
	StatusFailed:        nil,
}

func ParseJobStatus(s string) (JobStatus, error) {
	st := JobStatus(s)
	if !st.Valid() {
		return "", fmt.Errorf("unknown job status %q", s)
	}
	return st, nil
}

func (s JobStatus) Valid() bool {
	_, ok := transitions[s]
	return ok
}

func (s JobStatus) IsTerminal() bool {
	return s.Valid() && len(transitions[s]) == 0
}

func (s JobStatus) String() string { return string(s) }

func (s JobStatus) Next() []JobStatus {
	out := make([]JobStatus, len(transitions[s]))
	copy(out, transitions[s])
	return out
}

func CanTransition(from, to JobStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func (s JobStatus) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("unknown job status %q", string(s))
	}
	return []byte(s), nil
}

func (s *JobStatus) UnmarshalText(b []byte) error {
	st, err := ParseJobStatus(string(b))
	if err != nil {
		return err
	}
	*s = st
	return nil
}

type Job struct {
	ID         uuid.UUID `json:"job_id"`
	VideoID    string    `json:"video_id"`
	Status     JobStatus `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	BucketPath string    `json:"bucket_path"`
	ResultURL  *string   `json:"result_url,omitempty"`
	Error      *string   `json:"error,omitempty"`
}

// createdAt must already be truncated to the store's precision.
func NewJob(id uuid.UUID, videoID, bucketPath string, createdAt time.Time) *Job {
	return &Job{
		ID:         id,
		VideoID:    videoID,
		Status:     StatusPendingUpload,
		CreatedAt:  createdAt,
		UpdatedAt:  createdAt,
		BucketPath: bucketPath,
	}
}

func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}
	c := *j
	if j.ResultURL != nil {
		v := *j.ResultURL
		c.ResultURL = &v
	}
	if j.Error != nil {
		v := *j.Error
		c.Error = &v
	}
	return &c
}

// StatusUpdate is a compare-and-set request: the write applies only while the
// stored status still equals Expected.
type StatusUpdate struct {
	Expected  JobStatus
	To        JobStatus
	ResultURL string
	Error     string
}

func (u StatusUpdate) Apply(j *Job, at time.Time) {
	j.Status = u.To
	j.UpdatedAt = at
	if u.ResultURL != "" {
		v := u.ResultURL
		j.ResultURL = &v
	}
	if u.Error != "" {
		v := u.Error
		j.Error = &v
	}
}
