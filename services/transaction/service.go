package transaction

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"nextt-backend/pkg/errutil"
	"nextt-backend/services/gateway"
)

// minWithdrawalAmount is the processor's floor for a single payout item.
var minWithdrawalAmount = decimal.NewFromInt(25)

const defaultPayoutCurrency = "usdttrc20"

// Gateway is the slice of the payment gateway client the ledger depends on.
type Gateway interface {
	CreateInvoice(ctx context.Context, amount decimal.Decimal, description string) (*gateway.Invoice, error)
	CreateWithdrawal(ctx context.Context, req gateway.WithdrawalRequest) (*gateway.BatchWithdrawal, error)
}

// Service owns every mutation of User.Balance and Transaction.Status.
// Handlers and the payout job go through it; nothing else writes those
// columns.
type Service struct {
	db      *gorm.DB
	node    *snowflake.Node
	gateway Gateway
}

type Params struct {
	fx.In
	DB      *gorm.DB
	Node    *snowflake.Node
	Gateway Gateway
}

func NewService(p Params) *Service {
	return &Service{
		db:      p.DB,
		node:    p.Node,
		gateway: p.Gateway,
	}
}

type DepositRequest struct {
	UserID      snowflake.ID
	ProjectID   *snowflake.ID
	Amount      decimal.Decimal
	Description string
}

type DepositResult struct {
	Transaction *Transaction `json:"transaction"`
	PaymentURL  string       `json:"payment_url"`
}

// Deposit records a pending deposit and requests a hosted invoice for it.
// The transaction stays pending; completion is driven by the processor's
// callback, not by this call.
func (s *Service) Deposit(ctx context.Context, req DepositRequest) (*DepositResult, error) {
	if !req.Amount.IsPositive() {
		return nil, errutil.ValidationFailed("deposit amount must be positive", nil)
	}

	if err := s.db.WithContext(ctx).First(&User{}, "user_id = ?", req.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errutil.NotFound("user not found", nil)
		}
		return nil, errutil.Internal("failed to load user", err)
	}

	tx := &Transaction{
		TransactionID: s.node.Generate(),
		UserID:        req.UserID,
		ProjectID:     req.ProjectID,
		Type:          TypeDeposit,
		Status:        StatusPending,
		Amount:        req.Amount,
		Date:          time.Now().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(tx).Error; err != nil {
		return nil, errutil.Internal("failed to create deposit transaction", err)
	}

	inv, err := s.gateway.CreateInvoice(ctx, req.Amount, req.Description)
	if err != nil {
		s.markFailed(ctx, tx, "invoice creation failed", err)
		return nil, err
	}

	updates := map[string]interface{}{
		"order_id":  inv.OrderID,
		"reference": inv.InvoiceURL,
	}
	if err := s.db.WithContext(ctx).Model(tx).Updates(updates).Error; err != nil {
		return nil, errutil.Internal("failed to persist invoice reference", err)
	}
	tx.OrderID = &inv.OrderID
	tx.Reference = &inv.InvoiceURL

	zap.L().Info("deposit invoice created",
		zap.Int64("transaction_id", int64(tx.TransactionID)),
		zap.Int64("user_id", int64(req.UserID)),
		zap.String("order_id", inv.OrderID),
	)

	return &DepositResult{Transaction: tx, PaymentURL: inv.InvoiceURL}, nil
}

type WithdrawRequest struct {
	UserID        snowflake.ID
	Amount        decimal.Decimal
	WalletAddress string
	Currency      string
}

// Withdraw runs the withdrawal saga: validate, submit to the gateway, then
// debit with a single conditional update. The debit happens only after the
// gateway has accepted the payout, and the conditional WHERE clause makes a
// double debit impossible under concurrent duplicate submissions.
func (s *Service) Withdraw(ctx context.Context, req WithdrawRequest) (*Transaction, error) {
	if req.WalletAddress == "" {
		return nil, errutil.ValidationFailed("wallet address is required", nil)
	}
	if req.Amount.LessThan(minWithdrawalAmount) {
		return nil, errutil.ValidationFailed("withdrawal amount is below the minimum of 25", nil)
	}
	if req.Currency == "" {
		req.Currency = defaultPayoutCurrency
	}

	var user User
	if err := s.db.WithContext(ctx).First(&user, "user_id = ?", req.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errutil.NotFound("user not found", nil)
		}
		return nil, errutil.Internal("failed to load user", err)
	}
	if user.Balance.LessThan(req.Amount) {
		return nil, errutil.InsufficientBalance("balance is lower than the requested withdrawal", nil)
	}

	tx := &Transaction{
		TransactionID: s.node.Generate(),
		UserID:        req.UserID,
		Type:          TypeWithdrawal,
		Status:        StatusPending,
		Amount:        req.Amount,
		Date:          time.Now().UTC(),
		WalletAddress: &req.WalletAddress,
	}
	if err := s.db.WithContext(ctx).Create(tx).Error; err != nil {
		return nil, errutil.Internal("failed to create withdrawal transaction", err)
	}

	batch, err := s.gateway.CreateWithdrawal(ctx, gateway.WithdrawalRequest{
		Address:   req.WalletAddress,
		Currency:  req.Currency,
		Amount:    req.Amount,
		Reference: tx.TransactionID.String(),
	})
	if err != nil {
		var be errutil.BaseError
		if errors.As(err, &be) && be.Code == errutil.StatusReconciliationRequired {
			// The payout may exist at the gateway. Keep the transaction
			// pending and flag it for manual reconciliation; never retry
			// the submission automatically.
			s.flagReconciliation(ctx, tx, err)
			return nil, err
		}
		s.markFailed(ctx, tx, "gateway rejected withdrawal", err)
		return nil, err
	}

	res := s.db.WithContext(ctx).
		Model(&User{}).
		Where("user_id = ? AND balance >= ?", req.UserID, req.Amount).
		Update("balance", gorm.Expr("balance - ?", req.Amount))
	if res.Error != nil {
		s.flagReconciliation(ctx, tx, res.Error)
		return nil, errutil.ReconciliationRequired("withdrawal accepted but debit failed", res.Error)
	}
	if res.RowsAffected == 0 {
		// Balance moved between the precondition check and the debit. The
		// gateway payout already exists, so this is not a clean failure.
		s.flagReconciliation(ctx, tx, nil)
		return nil, errutil.ReconciliationRequired("withdrawal accepted but balance no longer covers it", nil)
	}

	meta := mustJSON(map[string]interface{}{
		"batch_withdrawal_id": batch.ID,
	})
	updates := map[string]interface{}{
		"status":   StatusCompleted,
		"metadata": meta,
	}
	if len(batch.Withdrawals) > 0 {
		updates["reference"] = batch.Withdrawals[0].ID
		tx.Reference = &batch.Withdrawals[0].ID
	}
	if err := s.db.WithContext(ctx).Model(tx).Updates(updates).Error; err != nil {
		return nil, errutil.Internal("failed to finalize withdrawal", err)
	}
	tx.Status = StatusCompleted
	tx.Metadata = meta

	zap.L().Info("withdrawal completed",
		zap.Int64("transaction_id", int64(tx.TransactionID)),
		zap.Int64("user_id", int64(req.UserID)),
		zap.String("batch_withdrawal_id", batch.ID),
		zap.String("amount", req.Amount.String()),
	)

	return tx, nil
}

type PayoutRequest struct {
	UserID   snowflake.ID
	Amount   decimal.Decimal
	Metadata map[string]interface{}
}

// Payout credits a user's balance and records the entry already completed.
// It is system-initiated; there is no pending phase and no external call.
func (s *Service) Payout(ctx context.Context, req PayoutRequest) (*Transaction, error) {
	if !req.Amount.IsPositive() {
		return nil, errutil.ValidationFailed("payout amount must be positive", nil)
	}

	tx := &Transaction{
		TransactionID: s.node.Generate(),
		UserID:        req.UserID,
		Type:          TypePayout,
		Status:        StatusCompleted,
		Amount:        req.Amount,
		Date:          time.Now().UTC(),
	}
	if req.Metadata != nil {
		tx.Metadata = mustJSON(req.Metadata)
	}

	err := s.db.WithContext(ctx).Transaction(func(dbtx *gorm.DB) error {
		res := dbtx.Model(&User{}).
			Where("user_id = ?", req.UserID).
			Update("balance", gorm.Expr("balance + ?", req.Amount))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errutil.NotFound("user not found", nil)
		}
		return dbtx.Create(tx).Error
	})
	if err != nil {
		var be errutil.BaseError
		if errors.As(err, &be) {
			return nil, err
		}
		return nil, errutil.Internal("failed to record payout", err)
	}

	return tx, nil
}

type ListFilter struct {
	UserID snowflake.ID
	Type   Type
	Status Status
	From   *time.Time
	To     *time.Time
	Limit  int
}

func (s *Service) List(ctx context.Context, f ListFilter) ([]Transaction, error) {
	if f.Limit <= 0 || f.Limit > 200 {
		f.Limit = 50
	}

	query := s.db.WithContext(ctx).
		Order("date DESC").
		Limit(f.Limit)

	if f.UserID != 0 {
		query = query.Where("user_id = ?", f.UserID)
	}
	if f.Type != "" {
		query = query.Where("type = ?", f.Type)
	}
	if f.Status != "" {
		query = query.Where("status = ?", f.Status)
	}
	if f.From != nil {
		query = query.Where("date >= ?", *f.From)
	}
	if f.To != nil {
		query = query.Where("date <= ?", *f.To)
	}

	var results []Transaction
	if err := query.Find(&results).Error; err != nil {
		return nil, errutil.Internal("failed to list transactions", err)
	}
	return results, nil
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (*Transaction, error) {
	var tx Transaction
	if err := s.db.WithContext(ctx).First(&tx, "transaction_id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errutil.NotFound("transaction not found", nil)
		}
		return nil, errutil.Internal("failed to load transaction", err)
	}
	return &tx, nil
}

// UpdateStatus moves a pending transaction to a terminal status. Completed
// and failed are immutable; a second transition is a conflict.
func (s *Service) UpdateStatus(ctx context.Context, id snowflake.ID, status Status) (*Transaction, error) {
	if status != StatusCompleted && status != StatusFailed {
		return nil, errutil.ValidationFailed("status must be completed or failed", nil)
	}

	tx, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if tx.Status.Terminal() {
		return nil, errutil.Conflict("transaction status is already final", nil)
	}

	res := s.db.WithContext(ctx).
		Model(&Transaction{}).
		Where("transaction_id = ? AND status = ?", id, StatusPending).
		Update("status", status)
	if res.Error != nil {
		return nil, errutil.Internal("failed to update transaction status", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, errutil.Conflict("transaction status is already final", nil)
	}

	tx.Status = status
	return tx, nil
}

func (s *Service) markFailed(ctx context.Context, tx *Transaction, reason string, cause error) {
	meta := map[string]interface{}{"failure_reason": reason}
	if cause != nil {
		meta["failure_detail"] = cause.Error()
	}

	err := s.db.WithContext(ctx).Model(tx).Updates(map[string]interface{}{
		"status":   StatusFailed,
		"metadata": mustJSON(meta),
	}).Error
	if err != nil {
		zap.L().Error("failed to mark transaction failed",
			zap.Int64("transaction_id", int64(tx.TransactionID)),
			zap.Error(err),
		)
		return
	}
	tx.Status = StatusFailed
}

func (s *Service) flagReconciliation(ctx context.Context, tx *Transaction, cause error) {
	meta := map[string]interface{}{"reconciliation_required": true}
	if cause != nil {
		meta["reconciliation_detail"] = cause.Error()
	}

	err := s.db.WithContext(ctx).Model(tx).
		Update("metadata", mustJSON(meta)).Error
	if err != nil {
		zap.L().Error("failed to flag transaction for reconciliation",
			zap.Int64("transaction_id", int64(tx.TransactionID)),
			zap.Error(err),
		)
	}

	zap.L().Warn("transaction requires manual reconciliation",
		zap.Int64("transaction_id", int64(tx.TransactionID)),
		zap.Int64("user_id", int64(tx.UserID)),
	)
}

func mustJSON(v map[string]interface{}) datatypes.JSON {
	b, err := json.Marshal(v)
	if err != nil {
		return datatypes.JSON([]byte("{}"))
	}
	return datatypes.JSON(b)
}
