package main

import (
	"log"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"nextt-backend/pkg/config"
	"nextt-backend/pkg/db"
	"nextt-backend/pkg/gen"
	"nextt-backend/pkg/health"
	"nextt-backend/pkg/httpapi"
	"nextt-backend/pkg/logger"
	"nextt-backend/pkg/otelcol"
	"nextt-backend/pkg/redis"
	"nextt-backend/pkg/server"
	"nextt-backend/services/gateway"
	"nextt-backend/services/payment"
	"nextt-backend/services/payout"
	"nextt-backend/services/transaction"
)

func main() {
	opts := []fx.Option{
		config.Module,
		logger.Module,
		db.Module,
		redis.Module,
		gen.Module,
		health.Module,
		httpapi.Module,
		gateway.Module,
		transaction.Module,
		transaction.HTTPModule,
		payout.Module,
		payout.HTTPModule,
		payment.Module,
		otelcol.Module,
		server.ProvideHTTPServer,
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
