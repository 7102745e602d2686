package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"jobcompass/internal/errcode"
)

// Notification kinds and states. Field names are what WebSocket clients parse.
const (
	KindIngest  = "ingest"
	KindMatches = "matches"

	StatusCompleted = "completed"
	StatusError     = "error"
)

// Notification is relayed to the profile's WebSocket subscribers through Redis Pub/Sub.
type Notification struct {
	Kind          string `json:"kind"`
	Status        string `json:"status"`
	UserProfileID uint   `json:"user_profile_id"`
	CorrelationID string `json:"correlation_id"`
	IngestRunID   uint   `json:"ingest_run_id,omitempty"`
	Persisted     int    `json:"persisted"`
	Matched       int    `json:"matched"`
	ErrorCode     int    `json:"error_code"`
	ErrorMessage  string `json:"error_message"`
}

// Publisher is the part of the Redis client used for notifications.
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// NotifyChannel is the Pub/Sub channel of one profile.
func NotifyChannel(profileID uint) string {
	return fmt.Sprintf("profile_notify:%d", profileID)
}

func publish(ctx context.Context, pub Publisher, n Notification) error {
	if pub == nil || n.UserProfileID == 0 {
		return nil
	}
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification payload: %w", err)
	}
	channel := NotifyChannel(n.UserProfileID)
	if err := pub.Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("publish redis notification to %q: %w", channel, err)
	}
	return nil
}

func failureNotification(kind string, profileID uint, correlationID string, err error) Notification {
	return Notification{
		Kind:          kind,
		Status:        StatusError,
		UserProfileID: profileID,
		CorrelationID: correlationID,
		ErrorCode:     errcode.KindOf(err).Code(),
		ErrorMessage:  err.Error(),
	}
}

// permanent stops asynq from retrying errors the same payload will hit again.
func permanent(err error) error {
	return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
}

func isFinalAttempt(ctx context.Context) bool {
	retryCount, ok1 := asynq.GetRetryCount(ctx)
	maxRetry, ok2 := asynq.GetMaxRetry(ctx)
	if !ok1 || !ok2 {
		return true
	}
	return retryCount >= maxRetry
}
