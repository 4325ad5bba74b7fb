package payout

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"nextt-backend/services/gateway"
	"nextt-backend/services/testutil"
	"nextt-backend/services/transaction"
)

// stubGateway fails every call; the payout batch must never reach the
// payment gateway.
type stubGateway struct{}

func (stubGateway) CreateInvoice(context.Context, decimal.Decimal, string) (*gateway.Invoice, error) {
	return nil, errors.New("unexpected gateway call")
}

func (stubGateway) CreateWithdrawal(context.Context, gateway.WithdrawalRequest) (*gateway.BatchWithdrawal, error) {
	return nil, errors.New("unexpected gateway call")
}

type ledgerMock struct {
	payout func(ctx context.Context, req transaction.PayoutRequest) (*transaction.Transaction, error)
}

func (m *ledgerMock) Payout(ctx context.Context, req transaction.PayoutRequest) (*transaction.Transaction, error) {
	return m.payout(ctx, req)
}

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()

	db := testutil.NewTestDB(t, &transaction.User{}, &transaction.Transaction{})

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	ledger := transaction.NewService(transaction.Params{DB: db, Node: node, Gateway: stubGateway{}})
	return NewService(Params{DB: db, Ledger: ledger}), db
}

var seedNode, _ = snowflake.NewNode(2)

func seedUser(t *testing.T, db *gorm.DB, email string, balance int64, level transaction.MembershipLevel) *transaction.User {
	t.Helper()

	user := &transaction.User{
		UserID:          seedNode.Generate(),
		Email:           email,
		Balance:         decimal.NewFromInt(balance),
		MembershipLevel: level,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func balanceOf(t *testing.T, db *gorm.DB, id snowflake.ID) decimal.Decimal {
	t.Helper()

	var user transaction.User
	require.NoError(t, db.First(&user, "user_id = ?", id).Error)
	return user.Balance
}

func TestRunCreditsEachTier(t *testing.T) {
	svc, db := newTestService(t)

	minimum := seedUser(t, db, "minimum@example.com", 0, transaction.MembershipMinimum)
	smarty := seedUser(t, db, "smarty@example.com", 0, transaction.MembershipSmarty)
	ultimium := seedUser(t, db, "ultimium@example.com", 0, transaction.MembershipUltimium)
	none := seedUser(t, db, "none@example.com", 100, transaction.MembershipNone)

	summary, err := svc.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, summary.Total)
	require.Equal(t, 3, summary.Succeeded)
	require.Equal(t, 0, summary.Failed)
	require.Empty(t, summary.Errors)

	require.True(t, balanceOf(t, db, minimum.UserID).Equal(decimal.NewFromFloat(1.50)), "minimum tier earns 500 x 0.003")
	require.True(t, balanceOf(t, db, smarty.UserID).Equal(decimal.NewFromFloat(5.00)))
	require.True(t, balanceOf(t, db, ultimium.UserID).Equal(decimal.NewFromFloat(40.00)))
	require.True(t, balanceOf(t, db, none.UserID).Equal(decimal.NewFromInt(100)), "none tier must be untouched")

	var payouts []transaction.Transaction
	require.NoError(t, db.Where("type = ?", transaction.TypePayout).Find(&payouts).Error)
	require.Len(t, payouts, 3)
	for _, p := range payouts {
		require.Equal(t, transaction.StatusCompleted, p.Status)
	}
}

func TestRunFailureDoesNotHaltBatch(t *testing.T) {
	db := testutil.NewTestDB(t, &transaction.User{}, &transaction.Transaction{})

	seedUser(t, db, "a@example.com", 0, transaction.MembershipMinimum)
	b := seedUser(t, db, "b@example.com", 0, transaction.MembershipSmarty)
	seedUser(t, db, "c@example.com", 0, transaction.MembershipUltimium)

	ledger := &ledgerMock{
		payout: func(ctx context.Context, req transaction.PayoutRequest) (*transaction.Transaction, error) {
			if req.UserID == b.UserID {
				return nil, errors.New("ledger write failed")
			}
			return &transaction.Transaction{UserID: req.UserID, Amount: req.Amount}, nil
		},
	}
	svc := NewService(Params{DB: db, Ledger: ledger})

	summary, err := svc.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, summary.Total)
	require.Equal(t, 2, summary.Succeeded)
	require.Equal(t, 1, summary.Failed)
	require.Len(t, summary.Errors, 1)
	require.Equal(t, b.UserID.String(), summary.Errors[0].UserID)
	require.Contains(t, summary.Errors[0].Error, "ledger write failed")
}

func TestRunTwiceDoublePays(t *testing.T) {
	svc, db := newTestService(t)
	user := seedUser(t, db, "minimum@example.com", 0, transaction.MembershipMinimum)

	_, err := svc.Run(context.Background())
	require.NoError(t, err)
	_, err = svc.Run(context.Background())
	require.NoError(t, err)

	// The batch has no dedup across runs. Two runs mean two credits.
	require.True(t, balanceOf(t, db, user.UserID).Equal(decimal.NewFromFloat(3.00)))
}

func TestRunNoEligibleUsers(t *testing.T) {
	svc, db := newTestService(t)
	seedUser(t, db, "none@example.com", 100, transaction.MembershipNone)

	summary, err := svc.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 0, summary.Total)
	require.Equal(t, 0, summary.Succeeded)
	require.Equal(t, 0, summary.Failed)
}

func TestNextRunTime(t *testing.T) {
	before := time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)
	next := nextRunTime(before, payoutHourUTC, payoutMinuteUTC)
	require.Equal(t, time.Date(2026, 3, 10, 18, 0, 0, 0, time.UTC), next)

	after := time.Date(2026, 3, 10, 19, 0, 0, 0, time.UTC)
	next = nextRunTime(after, payoutHourUTC, payoutMinuteUTC)
	require.Equal(t, time.Date(2026, 3, 11, 18, 0, 0, 0, time.UTC), next)

	exactly := time.Date(2026, 3, 10, 18, 0, 0, 0, time.UTC)
	next = nextRunTime(exactly, payoutHourUTC, payoutMinuteUTC)
	require.Equal(t, time.Date(2026, 3, 11, 18, 0, 0, 0, time.UTC), next)
}
