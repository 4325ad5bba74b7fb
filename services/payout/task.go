package payout

import (
	"context"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

const TypeDailyPayoutRun = "payout:daily:run"

func NewDailyPayoutTask() *asynq.Task {
	return asynq.NewTask(TypeDailyPayoutRun, nil, asynq.Queue("critical"), asynq.MaxRetry(0))
}

type TaskHandler struct {
	svc *Service
}

func NewTaskHandler(svc *Service) *TaskHandler {
	return &TaskHandler{svc: svc}
}

// HandleDailyPayoutRun executes the batch. MaxRetry is zero on the task:
// re-running a partially failed batch would double-pay the users that
// already succeeded.
func (h *TaskHandler) HandleDailyPayoutRun(ctx context.Context, t *asynq.Task) error {
	summary, err := h.svc.Run(ctx)
	if err != nil {
		zap.L().Error("daily payout task failed", zap.Error(err))
		return err
	}

	zap.L().Info("daily payout task completed",
		zap.Int("total", summary.Total),
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("failed", summary.Failed),
	)
	return nil
}
