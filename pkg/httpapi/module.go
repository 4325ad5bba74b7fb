package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"

	"nextt-backend/pkg/config"
	"nextt-backend/pkg/health"
	"nextt-backend/pkg/middleware"
)

var Module = fx.Module("httpapi",
	fx.Provide(
		NewEngine,
		asHandler,
	),
	fx.Invoke(registerOperationalEndpoints),
)

func NewEngine(cfg *config.Config) *gin.Engine {
	if cfg.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(
		gin.Recovery(),
		middleware.Error(),
	)
	return r
}

func asHandler(r *gin.Engine) http.Handler { return r }

func registerOperationalEndpoints(r *gin.Engine, h health.HealthService) {
	r.GET("/healthz", h.Liveness)
	r.GET("/readyz", h.Readiness)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
}
