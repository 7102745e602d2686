package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"jobcompass/internal/errcode"
	"jobcompass/internal/logger"
	"jobcompass/internal/store"
	"jobcompass/internal/tasks"
)

// Enqueuer is the part of asynq.Client the scheduler needs.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Scheduler polls the boards whose search frequency has elapsed and enqueues one
// ingestion per board and active profile, using the profile's default criteria.
type Scheduler struct {
	cron     *cron.Cron
	store    *store.Store
	enqueuer Enqueuer
	spec     string
	interval time.Duration
	now      func() time.Time
	logger   *zap.Logger
}

func NewScheduler(st *store.Store, enqueuer Enqueuer, intervalMinutes int, log *zap.Logger) *Scheduler {
	if intervalMinutes <= 0 {
		intervalMinutes = 60
	}
	return &Scheduler{
		cron:     cron.New(),
		store:    st,
		enqueuer: enqueuer,
		spec:     fmt.Sprintf("@every %dm", intervalMinutes),
		interval: time.Duration(intervalMinutes) * time.Minute,
		now:      time.Now,
		logger:   logger.OrNop(log).With(zap.String("component", "scheduler")),
	}
}

// Start registers the polling job and runs one pass right away.
func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.spec, func() { s.tick(ctx) }); err != nil {
		return fmt.Errorf("cron add func: %w", err)
	}
	s.cron.Start()
	s.logger.Info("scheduler started", zap.String("spec", s.spec))

	go s.tick(ctx)
	return nil
}

// Stop waits for a running pass to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) tick(ctx context.Context) {
	n, err := s.RunOnce(ctx)
	if err != nil {
		s.logger.Error("scheduler pass failed", zap.Error(err))
		return
	}
	s.logger.Info("scheduler pass complete", zap.Int("enqueued", n))
}

// RunOnce enqueues the ingestions that are due now and returns how many were enqueued.
func (s *Scheduler) RunOnce(ctx context.Context) (int, error) {
	boards, err := s.store.Boards.Due(ctx, s.now())
	if err != nil {
		return 0, err
	}
	if len(boards) == 0 {
		return 0, nil
	}
	profiles, err := s.store.Profiles.Active(ctx)
	if err != nil {
		return 0, err
	}

	enqueued := 0
	for _, profile := range profiles {
		criteria, err := s.store.Criteria.Default(ctx, profile.ID)
		if errcode.IsNotFound(err) {
			continue
		}
		if err != nil {
			return enqueued, err
		}
		if !criteria.IsActive {
			continue
		}
		for _, board := range boards {
			task, err := tasks.NewIngestListingsTask(tasks.IngestListingsPayload{
				BoardID:          board.ID,
				SearchCriteriaID: &criteria.ID,
				UserProfileID:    profile.ID,
				CorrelationID:    uuid.NewString(),
			})
			if err != nil {
				return enqueued, err
			}
			// a slow pass must not queue the same board/criteria twice
			if _, err := s.enqueuer.EnqueueContext(ctx, task, asynq.Unique(s.interval)); err != nil {
				s.logger.Warn("enqueue ingest task failed",
					zap.Uint("board_id", board.ID),
					zap.Uint("search_criteria_id", criteria.ID),
					zap.Error(err),
				)
				continue
			}
			enqueued++
		}
	}
	return enqueued, nil
}
