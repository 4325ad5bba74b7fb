package payout

import (
	"context"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"nextt-backend/pkg/task"
)

// payoutHourUTC is the daily trigger time: 18:00 UTC.
const (
	payoutHourUTC   = 18
	payoutMinuteUTC = 0
)

type Scheduler struct {
	enqueuer task.Enqueuer
}

func NewScheduler(enqueuer task.Enqueuer) *Scheduler {
	return &Scheduler{enqueuer: enqueuer}
}

func StartScheduler(lc fx.Lifecycle, s *Scheduler) {
	ctx, cancel := context.WithCancel(context.Background())

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go s.run(ctx)
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})
}

func (s *Scheduler) run(ctx context.Context) {
	zap.L().Info("[Scheduler] started daily payout scheduler")

	for {
		now := time.Now().UTC()
		next := nextRunTime(now, payoutHourUTC, payoutMinuteUTC)

		sleepDuration := next.Sub(now)
		zap.L().Info("[Scheduler] next payout run scheduled",
			zap.Time("next_run", next),
			zap.Duration("sleep_for", sleepDuration),
		)

		select {
		case <-time.After(sleepDuration):
			s.enqueueDaily()
		case <-ctx.Done():
			zap.L().Warn("[Scheduler] stopped")
			return
		}
	}
}

func (s *Scheduler) enqueueDaily() {
	info, err := s.enqueuer.Enqueue(NewDailyPayoutTask())
	if err != nil {
		zap.L().Error("[Scheduler] failed to enqueue daily payout", zap.Error(err))
		return
	}

	zap.L().Info("[Scheduler] enqueued daily payout",
		zap.String("task_id", info.ID),
		zap.String("queue", info.Queue),
	)
}

func nextRunTime(now time.Time, hour, minute int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, time.UTC)
	if !now.Before(next) {
		next = next.Add(24 * time.Hour)
	}
	return next
}
