package payment

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("payment.callback",
	fx.Provide(NewHandler),
	fx.Invoke(
		migrate,
		registerRoutes,
	),
)

func migrate(db *gorm.DB) error {
	return db.AutoMigrate(&CallbackEvent{})
}

// Callback routes are unauthenticated on purpose: the processor signs
// nothing we can verify yet, and the audit trail keeps the raw payloads.
func registerRoutes(r *gin.Engine, h *Handler) {
	r.POST("/api/payments/callback", h.PaymentCallback)
	r.POST("/api/payments/withdrawal-callback", h.WithdrawalCallback)
}
