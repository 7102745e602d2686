package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Task outcomes. A skipped task failed permanently and will not be retried.
const (
	TaskOK      = "ok"
	TaskRetry   = "retry"
	TaskSkipped = "skipped"
)

var (
	tasksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "tasks_total",
			Help:      "Background tasks by type and outcome.",
		},
		[]string{"task_type", "outcome"},
	)

	taskSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "task_duration_seconds",
			Help:      "Background task run time. Ingestion and matching call remote APIs, hence the wide buckets.",
			Buckets:   []float64{.1, .5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"task_type"},
	)

	tasksRunning = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "tasks_running",
			Help:      "Background tasks currently being processed.",
		},
		[]string{"task_type"},
	)
)

// TaskOutcome classifies a handler result.
func TaskOutcome(err error) string {
	switch {
	case err == nil:
		return TaskOK
	case errors.Is(err, asynq.SkipRetry):
		return TaskSkipped
	default:
		return TaskRetry
	}
}

// AsynqMetricsMiddleware records outcome, run time and concurrency per task type.
func AsynqMetricsMiddleware() asynq.MiddlewareFunc {
	return func(next asynq.Handler) asynq.Handler {
		return asynq.HandlerFunc(func(ctx context.Context, task *asynq.Task) error {
			taskType := task.Type()
			running := tasksRunning.WithLabelValues(taskType)
			running.Inc()
			defer running.Dec()

			start := time.Now()
			err := next.ProcessTask(ctx, task)
			taskSeconds.WithLabelValues(taskType).Observe(time.Since(start).Seconds())
			tasksTotal.WithLabelValues(taskType, TaskOutcome(err)).Inc()
			return err
		})
	}
}
