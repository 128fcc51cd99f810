package entity

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	all := []JobStatus{StatusPendingUpload, StatusQueued, StatusProcessing, StatusCompleted, StatusFailed}
	allowed := map[[2]JobStatus]bool{
		{StatusPendingUpload, StatusQueued}:  true,
		{StatusPendingUpload, StatusFailed}:  true,
		{StatusQueued, StatusProcessing}:     true,
		{StatusQueued, StatusFailed}:         true,
		{StatusProcessing, StatusCompleted}:  true,
		{StatusProcessing, StatusFailed}:     true,
	}

	for _, from := range all {
		for _, to := range all {
			assert.Equal(t, allowed[[2]JobStatus{from, to}], CanTransition(from, to), "%s -> %s", from, to)
		}
	}
	assert.False(t, CanTransition("done", StatusQueued))
}

func TestJobStatus_Terminal(t *testing.T) {
	assert.True(t, StatusCompleted.IsTerminal())
	assert.True(t, StatusFailed.IsTerminal())
	assert.False(t, StatusPendingUpload.IsTerminal())
	assert.False(t, JobStatus("bogus").IsTerminal())
	assert.Empty(t, StatusFailed.Next())
}

func TestJobStatus_TextRejectsUnknown(t *testing.T) {
	var st JobStatus
	require.NoError(t, json.Unmarshal([]byte(`"queued"`), &st))
	assert.Equal(t, StatusQueued, st)

	assert.Error(t, json.Unmarshal([]byte(`"done"`), &st))

	_, err := json.Marshal(JobStatus("done"))
	assert.Error(t, err)
}

func TestJob_CloneIsDeep(t *testing.T) {
	j := NewJob(uuid.New(), "v", "gs://b/v", time.Now().UTC())
	StatusUpdate{Expected: StatusProcessing, To: StatusCompleted, ResultURL: "gs://r/v"}.Apply(j, time.Now().UTC())

	c := j.Clone()
	*c.ResultURL = "changed"
	c.Status = StatusFailed

	assert.Equal(t, "gs://r/v", *j.ResultURL)
	assert.Equal(t, StatusCompleted, j.Status)
	assert.Nil(t, (*Job)(nil).Clone())
}

func TestJob_JSONOmitsUnsetOptionals(t *testing.T) {
	j := NewJob(uuid.New(), "v", "gs://b/v", time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC))
	raw, err := json.Marshal(j)
	require.NoError(t, err)

	s := string(raw)
	assert.Contains(t, s, `"status":"pending_upload"`)
	assert.NotContains(t, s, "result_url")
	assert.NotContains(t, s, `"error"`)
}
