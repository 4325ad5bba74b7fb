package payout

import (
	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"go.uber.org/fx"

	"nextt-backend/pkg/config"
	"nextt-backend/pkg/middleware"
	"nextt-backend/services/transaction"
)

var Module = fx.Module("payout.service",
	fx.Provide(
		provideLedger,
		NewService,
	),
)

var HTTPModule = fx.Module("payout.http",
	fx.Provide(NewHandler),
	fx.Invoke(registerRoutes),
)

var WorkerModule = fx.Module("payout.worker",
	fx.Provide(
		NewTaskHandler,
		NewScheduler,
	),
	fx.Invoke(
		registerTaskHandler,
		StartScheduler,
	),
)

func provideLedger(svc *transaction.Service) Ledger { return svc }

func registerRoutes(r *gin.Engine, h *Handler, cfg *config.Config) {
	r.POST("/api/transactions/process-daily-payouts",
		middleware.OperationalCredential(cfg.Cron.APIKey),
		h.Trigger,
	)
}

func registerTaskHandler(mux *asynq.ServeMux, h *TaskHandler) {
	mux.HandleFunc(TypeDailyPayoutRun, h.HandleDailyPayoutRun)
}
