package transaction

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type Type string

const (
	TypeDeposit    Type = "deposit"
	TypeWithdrawal Type = "withdrawal"
	TypePayout     Type = "payout"
)

func (t Type) Valid() bool {
	switch t {
	case TypeDeposit, TypeWithdrawal, TypePayout:
		return true
	}
	return false
}

type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Terminal reports whether the status admits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Transaction is a single ledger entry. Amount is always non-negative; the
// direction of the balance movement is carried by Type.
type Transaction struct {
	TransactionID snowflake.ID    `gorm:"column:transaction_id;primaryKey;autoIncrement:false" json:"transaction_id"`
	UserID        snowflake.ID    `gorm:"column:user_id;index;not null" json:"user_id"`
	ProjectID     *snowflake.ID   `gorm:"column:project_id;index" json:"project_id,omitempty"`
	Type          Type            `gorm:"column:type;index;not null" json:"type"`
	Status        Status          `gorm:"column:status;index;default:'pending'" json:"status"`
	Amount        decimal.Decimal `gorm:"column:amount;type:numeric(20,8);not null" json:"amount"`
	Date          time.Time       `gorm:"column:date;index" json:"date"`
	Reference     *string         `gorm:"column:reference" json:"reference,omitempty"`
	OrderID       *string         `gorm:"column:order_id;index" json:"order_id,omitempty"`
	WalletAddress *string         `gorm:"column:wallet_address" json:"wallet_address,omitempty"`
	Metadata      datatypes.JSON  `gorm:"column:metadata;type:jsonb" json:"metadata,omitempty"`
	CreatedAt     time.Time       `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Transaction) TableName() string { return "transactions" }

type MembershipLevel string

const (
	MembershipNone     MembershipLevel = "none"
	MembershipMinimum  MembershipLevel = "minimum"
	MembershipSmarty   MembershipLevel = "smarty"
	MembershipUltimium MembershipLevel = "ultimium"
)

// User carries the ledger-relevant slice of the account record. Balance is
// mutated only through the transaction service's atomic updates.
type User struct {
	UserID          snowflake.ID    `gorm:"column:user_id;primaryKey;autoIncrement:false" json:"user_id"`
	Email           string          `gorm:"column:email;uniqueIndex" json:"email"`
	Balance         decimal.Decimal `gorm:"column:balance;type:numeric(20,8);not null;default:0" json:"balance"`
	MembershipLevel MembershipLevel `gorm:"column:membership_level;index;default:'none'" json:"membership_level"`
	CreatedAt       time.Time       `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (User) TableName() string { return "users" }
