package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

type Publisher struct {
	writer        *kafka.Writer
	jobsTopic     string
	progressTopic string
}

func NewPublisher(brokers []string, jobsTopic, progressTopic string) *Publisher {
	return NewPublisherWithWriter(&kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		BatchTimeout:           50 * time.Millisecond,
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}, jobsTopic, progressTopic)
}

// NewPublisherWithWriter uses w as is. w must not have a Topic set, each
// message names its own.
func NewPublisherWithWriter(w *kafka.Writer, jobsTopic, progressTopic string) *Publisher {
	return &Publisher{writer: w, jobsTopic: jobsTopic, progressTopic: progressTopic}
}

// PublishJob enqueues job keyed by session so all messages of one run land
// on the same partition.
func (p *Publisher) PublishJob(ctx context.Context, job Job) error {
	if job.ID == "" {
		job.ID = uuid.New().String()
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}
	return p.publish(ctx, p.jobsTopic, job.SessionID, job)
}

func (p *Publisher) PublishProgress(ctx context.Context, ev ProgressEvent) error {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	return p.publish(ctx, p.progressTopic, ev.SessionID, ev)
}

func (p *Publisher) publish(ctx context.Context, topic, key string, v interface{}) error {
	value, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}
	err = p.writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: value,
	})
	if err != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic, err)
	}
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

// DecodeJob parses a message produced by PublishJob.
func DecodeJob(msg kafka.Message) (Job, error) {
	var job Job
	if err := json.Unmarshal(msg.Value, &job); err != nil {
		return Job{}, fmt.Errorf("failed to decode job: %w", err)
	}
	if job.SessionID == "" || job.Shop == "" {
		return Job{}, fmt.Errorf("job %s is missing session or shop", job.ID)
	}
	return job, nil
}
