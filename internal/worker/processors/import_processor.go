// Package processors turns queued messages into import runs.
package processors

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"

	"productimport/internal/events"
	"productimport/internal/importer"
	"productimport/internal/logger"
)

type SessionRunner interface {
	RunSession(ctx context.Context, sessionID, shop string, req importer.Request) (*importer.Result, error)
}

type ImportProcessor struct {
	runner SessionRunner
	logger *logger.Logger
}

func NewImportProcessor(runner SessionRunner, log *logger.Logger) *ImportProcessor {
	return &ImportProcessor{
		runner: runner,
		logger: log,
	}
}

func (p *ImportProcessor) Process(ctx context.Context, msg kafka.Message) error {
	job, err := events.DecodeJob(msg)
	if err != nil {
		return err
	}

	var req importer.Request
	if err := json.Unmarshal(job.Payload, &req); err != nil {
		return fmt.Errorf("job %s: failed to decode import request: %w", job.ID, err)
	}

	log := p.logger.With("job", job.ID, "session", job.SessionID, "shop", job.Shop)
	log.Info("Running queued import")

	result, err := p.runner.RunSession(logger.WithContext(ctx, log), job.SessionID, job.Shop, req)
	if err != nil {
		return fmt.Errorf("job %s: %w", job.ID, err)
	}

	log.Info("Queued import finished: %d imported, %d failed", result.Imported, result.Failed)
	return nil
}
