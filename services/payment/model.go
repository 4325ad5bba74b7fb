package payment

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// CallbackEvent is an audit row for every notification the processor sends.
// The raw payload is stored as received so operators can reconcile against
// the gateway's record.
type CallbackEvent struct {
	EventID    snowflake.ID   `gorm:"column:event_id;primaryKey;autoIncrement:false" json:"event_id"`
	Kind       string         `gorm:"column:kind;index;not null" json:"kind"`
	OrderID    string         `gorm:"column:order_id;index" json:"order_id"`
	Status     string         `gorm:"column:status;index" json:"status"`
	Payload    datatypes.JSON `gorm:"column:payload;type:jsonb" json:"payload"`
	ReceivedAt time.Time      `gorm:"column:received_at;autoCreateTime" json:"received_at"`
}

func (CallbackEvent) TableName() string { return "payment_callback_events" }

const (
	kindPayment    = "payment"
	kindWithdrawal = "withdrawal"
)
