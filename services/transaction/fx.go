package transaction

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
	"gorm.io/gorm"

	"nextt-backend/pkg/middleware"
	"nextt-backend/services/gateway"
)

var Module = fx.Module("transaction.service",
	fx.Provide(
		provideGateway,
		NewService,
	),
	fx.Invoke(migrate),
)

var HTTPModule = fx.Module("transaction.http",
	fx.Provide(NewHandler),
	fx.Invoke(registerRoutes),
)

func provideGateway(c *gateway.Client) Gateway { return c }

func migrate(db *gorm.DB) error {
	return db.AutoMigrate(&User{}, &Transaction{})
}

func registerRoutes(r *gin.Engine, h *Handler) {
	api := r.Group("/api/transactions", middleware.Authenticated())
	api.POST("", h.Create)
	api.GET("", h.List)
	api.GET("/:id", h.Get)
	api.PATCH("/:id/status", h.UpdateStatus)
}
