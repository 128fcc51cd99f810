package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"

	"media-job-service/internal/entity"
)

type Type string

const (
	TypeJobCreated       Type = "job.created"
	TypeJobStatusChanged Type = "job.status_changed"
)

// Keyed by job id, so one job's events stay ordered on a partition.
type Event struct {
	Type           Type             `json:"type"`
	ProjectID      string           `json:"project_id"`
	JobID          string           `json:"job_id"`
	VideoID        string           `json:"video_id"`
	Status         entity.JobStatus `json:"status"`
	PreviousStatus entity.JobStatus `json:"previous_status,omitempty"`
	OccurredAt     time.Time        `json:"occurred_at"`
}

func JobCreated(projectID string, job *entity.Job) Event {
	return Event{
		Type:       TypeJobCreated,
		ProjectID:  projectID,
		JobID:      job.ID.String(),
		VideoID:    job.VideoID,
		Status:     job.Status,
		OccurredAt: job.CreatedAt,
	}
}

func JobStatusChanged(projectID string, previous entity.JobStatus, job *entity.Job) Event {
	return Event{
		Type:           TypeJobStatusChanged,
		ProjectID:      projectID,
		JobID:          job.ID.String(),
		VideoID:        job.VideoID,
		Status:         job.Status,
		PreviousStatus: previous,
		OccurredAt:     job.UpdatedAt,
	}
}

type Publisher interface {
	Publish(ctx context.Context, evt Event) error
	Close() error
}

type KafkaPublisher struct {
	producer sarama.SyncProducer
	topic    string
}

func NewKafkaPublisher(brokers []string, topic string) (*KafkaPublisher, error) {
	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5
	config.Producer.Return.Successes = true

	p, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return newKafkaPublisher(p, topic), nil
}

func newKafkaPublisher(p sarama.SyncProducer, topic string) *KafkaPublisher {
	return &KafkaPublisher{producer: p, topic: topic}
}

func (p *KafkaPublisher) Publish(ctx context.Context, evt Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(evt.JobID),
		Value: sarama.ByteEncoder(data),
		Headers: []sarama.RecordHeader{
			{Key: []byte("type"), Value: []byte(evt.Type)},
		},
	}
	if _, _, err := p.producer.SendMessage(msg); err != nil {
		return fmt.Errorf("send %s for job %s: %w", evt.Type, evt.JobID, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}

type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close() error                         { return nil }
