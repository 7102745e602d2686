package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"jobcompass/internal/errcode"
	"jobcompass/internal/logger"
	"jobcompass/internal/matching"
	"jobcompass/internal/tasks"
)

// ProfileProcessor runs the matching pipeline for a profile.
type ProfileProcessor interface {
	ProcessProfile(ctx context.Context, profileID uint) (*matching.Summary, error)
}

// ProcessTaskHandler consumes matches:process-profile tasks.
type ProcessTaskHandler struct {
	processor ProfileProcessor
	publisher Publisher
	logger    *zap.Logger
}

func NewProcessTaskHandler(processor ProfileProcessor, publisher Publisher, log *zap.Logger) *ProcessTaskHandler {
	return &ProcessTaskHandler{processor: processor, publisher: publisher, logger: logger.OrNop(log)}
}

// ProcessTask implements asynq.Handler.
func (h *ProcessTaskHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload tasks.ProcessProfilePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		h.logger.Error("unmarshal task payload failed", zap.Error(err))
		return permanent(fmt.Errorf("decode %s payload: %w", t.Type(), err))
	}

	log := h.logger.With(
		zap.String("correlation_id", payload.CorrelationID),
		zap.Uint("user_profile_id", payload.UserProfileID),
	)
	log.Info("matching task started")

	summary, err := h.processor.ProcessProfile(ctx, payload.UserProfileID)
	if err != nil {
		log.Error("matching task failed", zap.Error(err))
		final := errcode.IsValidation(err) || errcode.IsNotFound(err)
		if final || isFinalAttempt(ctx) {
			n := failureNotification(KindMatches, payload.UserProfileID, payload.CorrelationID, err)
			if perr := publish(ctx, h.publisher, n); perr != nil {
				log.Error("publish matching error notification failed", zap.Error(perr))
			}
		}
		if final {
			return permanent(err)
		}
		return err
	}

	n := Notification{
		Kind:          KindMatches,
		Status:        StatusCompleted,
		UserProfileID: payload.UserProfileID,
		CorrelationID: payload.CorrelationID,
		Persisted:     summary.Persisted,
		Matched:       summary.Matched,
		ErrorCode:     errcode.OK,
	}
	if len(summary.IngestRunIDs) > 0 {
		n.IngestRunID = summary.IngestRunIDs[len(summary.IngestRunIDs)-1]
	}
	if err := publish(ctx, h.publisher, n); err != nil {
		log.Warn("publish matching notification failed", zap.Error(err))
	}

	log.Info("matching task completed",
		zap.Int("matched", summary.Matched),
		zap.Int("created", summary.Created),
		zap.Int("failures", summary.Failures),
	)
	return nil
}
