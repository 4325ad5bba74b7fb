package payment

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Handler receives processor notifications. Both endpoints always answer
// 200: a non-2xx response makes the processor retry the notification, and a
// replayed callback is worse than a dropped one while finalization stays
// manual.
type Handler struct {
	db *gorm.DB

	node *snowflake.Node
}

type Params struct {
	fx.In
	DB   *gorm.DB
	Node *snowflake.Node
}

func NewHandler(p Params) *Handler {
	return &Handler{db: p.DB, node: p.Node}
}

func (h *Handler) PaymentCallback(c *gin.Context) {
	h.record(c, kindPayment)
	c.JSON(http.StatusOK, gin.H{"received": true})
}

func (h *Handler) WithdrawalCallback(c *gin.Context) {
	h.record(c, kindWithdrawal)
	c.JSON(http.StatusOK, gin.H{"received": true})
}

func (h *Handler) record(c *gin.Context, kind string) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
	if err != nil {
		zap.L().Error("failed to read callback body", zap.String("kind", kind), zap.Error(err))
		return
	}

	var fields struct {
		OrderID       string `json:"order_id"`
		PaymentStatus string `json:"payment_status"`
		Status        string `json:"status"`
	}
	if err := json.Unmarshal(body, &fields); err != nil {
		zap.L().Warn("callback payload is not valid JSON",
			zap.String("kind", kind),
			zap.Int("size", len(body)),
		)
		body = []byte("{}")
	}

	status := fields.PaymentStatus
	if status == "" {
		status = fields.Status
	}

	event := &CallbackEvent{
		EventID: h.node.Generate(),
		Kind:    kind,
		OrderID: fields.OrderID,
		Status:  status,
		Payload: datatypes.JSON(body),
	}
	if err := h.db.WithContext(c.Request.Context()).Create(event).Error; err != nil {
		zap.L().Error("failed to persist callback event",
			zap.String("kind", kind),
			zap.String("order_id", fields.OrderID),
			zap.Error(err),
		)
		return
	}

	zap.L().Info("callback received",
		zap.String("kind", kind),
		zap.String("order_id", fields.OrderID),
		zap.String("status", status),
	)
}
