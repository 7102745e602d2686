package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"jobcompass/internal/errcode"
	"jobcompass/internal/ingest"
	"jobcompass/internal/logger"
	"jobcompass/internal/tasks"
)

// IngestRunner runs one ingestion.
type IngestRunner interface {
	Run(ctx context.Context, req ingest.Request) (*ingest.Report, error)
}

// IngestTaskHandler consumes listings:ingest tasks.
type IngestTaskHandler struct {
	runner    IngestRunner
	publisher Publisher
	logger    *zap.Logger
}

func NewIngestTaskHandler(runner IngestRunner, publisher Publisher, log *zap.Logger) *IngestTaskHandler {
	return &IngestTaskHandler{runner: runner, publisher: publisher, logger: logger.OrNop(log)}
}

// ProcessTask implements asynq.Handler.
func (h *IngestTaskHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload tasks.IngestListingsPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		h.logger.Error("unmarshal task payload failed", zap.Error(err))
		return permanent(fmt.Errorf("decode %s payload: %w", t.Type(), err))
	}

	log := h.logger.With(
		zap.String("correlation_id", payload.CorrelationID),
		zap.Uint("board_id", payload.BoardID),
	)
	log.Info("ingest task started")

	report, err := h.runner.Run(ctx, ingest.Request{
		BoardID:    payload.BoardID,
		CriteriaID: payload.SearchCriteriaID,
		Query:      payload.Query,
		MaxResults: payload.MaxResults,
	})
	if err != nil {
		log.Error("ingest task failed", zap.Error(err))
		final := ingest.IsPermanent(err)
		if final || isFinalAttempt(ctx) {
			n := failureNotification(KindIngest, payload.UserProfileID, payload.CorrelationID, err)
			if perr := publish(ctx, h.publisher, n); perr != nil {
				log.Error("publish ingest error notification failed", zap.Error(perr))
			}
		}
		if final {
			return permanent(err)
		}
		return err
	}

	n := Notification{
		Kind:          KindIngest,
		Status:        StatusCompleted,
		UserProfileID: payload.UserProfileID,
		CorrelationID: payload.CorrelationID,
		IngestRunID:   report.Run.ID,
		Persisted:     report.Run.Persisted,
		ErrorCode:     errcode.OK,
	}
	if err := publish(ctx, h.publisher, n); err != nil {
		log.Warn("publish ingest notification failed", zap.Error(err))
	}

	log.Info("ingest task completed",
		zap.Uint("ingest_run_id", report.Run.ID),
		zap.Int("persisted", report.Run.Persisted),
	)
	return nil
}
