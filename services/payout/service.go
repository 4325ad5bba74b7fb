package payout

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"nextt-backend/pkg/errutil"
	"nextt-backend/services/transaction"
)

// TierRate defines the daily return for a membership tier: the tier's
// principal times its daily rate.
type TierRate struct {
	Principal decimal.Decimal
	Rate      decimal.Decimal
}

// rates is the static tier table. Tiers absent from it (none) earn nothing.
var rates = map[transaction.MembershipLevel]TierRate{
	transaction.MembershipMinimum:  {Principal: decimal.NewFromInt(500), Rate: decimal.NewFromFloat(0.003)},
	transaction.MembershipSmarty:   {Principal: decimal.NewFromInt(1000), Rate: decimal.NewFromFloat(0.005)},
	transaction.MembershipUltimium: {Principal: decimal.NewFromInt(5000), Rate: decimal.NewFromFloat(0.008)},
}

// Ledger is the slice of the transaction service the batch job uses.
type Ledger interface {
	Payout(ctx context.Context, req transaction.PayoutRequest) (*transaction.Transaction, error)
}

type Service struct {
	db     *gorm.DB
	ledger Ledger
}

type Params struct {
	fx.In
	DB     *gorm.DB
	Ledger Ledger
}

func NewService(p Params) *Service {
	return &Service{db: p.DB, ledger: p.Ledger}
}

type UserError struct {
	UserID string `json:"user_id"`
	Error  string `json:"error"`
}

type Summary struct {
	Total     int         `json:"total"`
	Succeeded int         `json:"succeeded"`
	Failed    int         `json:"failed"`
	Errors    []UserError `json:"errors,omitempty"`
}

// Run credits every member of a paying tier with one day's return, rounded
// half to even at 2 decimal places. Users are processed independently; one
// failure is recorded and does not stop the rest. The job is not idempotent:
// running it twice in a day pays twice. The scheduler is the only thing
// preventing that, which is why the HTTP trigger sits behind the
// operational credential.
func (s *Service) Run(ctx context.Context) (*Summary, error) {
	levels := make([]transaction.MembershipLevel, 0, len(rates))
	for level := range rates {
		levels = append(levels, level)
	}

	var users []transaction.User
	if err := s.db.WithContext(ctx).
		Where("membership_level IN ?", levels).
		Find(&users).Error; err != nil {
		return nil, errutil.Internal("failed to load payout-eligible users", err)
	}

	summary := &Summary{Total: len(users)}
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(4)

	for _, user := range users {
		user := user
		g.Go(func() error {
			tier := rates[user.MembershipLevel]
			amount := tier.Principal.Mul(tier.Rate).RoundBank(2)

			_, err := s.ledger.Payout(ctx, transaction.PayoutRequest{
				UserID: user.UserID,
				Amount: amount,
				Metadata: map[string]interface{}{
					"source":           "daily_payout",
					"membership_level": user.MembershipLevel,
				},
			})

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				summary.Failed++
				summary.Errors = append(summary.Errors, UserError{
					UserID: user.UserID.String(),
					Error:  err.Error(),
				})
				zap.L().Error("daily payout failed for user",
					zap.Int64("user_id", int64(user.UserID)),
					zap.Error(err),
				)
				return nil
			}
			summary.Succeeded++
			return nil
		})
	}

	_ = g.Wait()

	zap.L().Info("daily payout run finished",
		zap.Int("total", summary.Total),
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("failed", summary.Failed),
	)

	return summary, nil
}
