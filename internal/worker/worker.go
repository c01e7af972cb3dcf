// Package worker consumes import jobs from Kafka.
package worker

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/segmentio/kafka-go"

	"productimport/internal/config"
	"productimport/internal/logger"
)

const retryBackoff = time.Second

type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Processor interface {
	Process(ctx context.Context, msg kafka.Message) error
}

type Worker struct {
	logger    *logger.Logger
	reader    MessageReader
	processor Processor
}

func New(cfg *config.Config, log *logger.Logger, processor Processor) *Worker {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.KafkaBrokers,
		GroupID:  cfg.KafkaGroupID,
		Topic:    cfg.KafkaJobsTopic,
		MinBytes: 1,
		MaxBytes: 10e6, // 10MB
		// Imports run for minutes; keep the member alive between fetches.
		MaxWait:        time.Second,
		SessionTimeout: 30 * time.Second,
	})
	return NewWithReader(reader, processor, log)
}

func NewWithReader(reader MessageReader, processor Processor, log *logger.Logger) *Worker {
	return &Worker{
		logger:    log,
		reader:    reader,
		processor: processor,
	}
}

// Start handles one job at a time until ctx is cancelled. Every fetched
// message is committed after processing, failed or not: a failed import has
// already been recorded on its session.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("Worker started, listening for import jobs...")

	for {
		message, err := w.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			// The reader reports io.EOF once closed.
			if errors.Is(err, io.EOF) {
				return nil
			}
			w.logger.Error("Failed to read message: %v", err)
			if !sleep(ctx, retryBackoff) {
				return nil
			}
			continue
		}

		w.logger.Debug("Received job at %s/%d offset %d", message.Topic, message.Partition, message.Offset)

		if err := w.processor.Process(ctx, message); err != nil {
			w.logger.Error("Failed to process job at offset %d: %v", message.Offset, err)
		}

		if err := w.reader.CommitMessages(context.WithoutCancel(ctx), message); err != nil {
			w.logger.Error("Failed to commit offset %d: %v", message.Offset, err)
		}
	}
}

func (w *Worker) Stop() error {
	w.logger.Info("Stopping worker...")
	return w.reader.Close()
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
