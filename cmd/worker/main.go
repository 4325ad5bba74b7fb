package main

import (
	"log"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"nextt-backend/pkg/config"
	"nextt-backend/pkg/db"
	"nextt-backend/pkg/gen"
	"nextt-backend/pkg/logger"
	"nextt-backend/pkg/task"
	"nextt-backend/services/gateway"
	"nextt-backend/services/payout"
	"nextt-backend/services/transaction"
)

func main() {
	opts := []fx.Option{
		config.Module,
		logger.Module,
		db.Module,
		task.Client,
		task.Server,
		gen.Module,
		gateway.Module,
		transaction.Module,
		payout.Module,
		payout.WorkerModule,
		fxLogger,
	}

	if err := fx.ValidateApp(opts...); err != nil {
		log.Fatalf("fx validation failed: %v", err)
	}

	fx.New(opts...).Run()
}

var fxLogger = fx.WithLogger(func(cfg *config.Config, logger *zap.Logger) fxevent.Logger {
	return fxevent.NopLogger
})
