package interest

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/groupledger/internal/clock"
	loandomain "github.com/smallbiznis/groupledger/internal/loan/domain"
	"github.com/smallbiznis/groupledger/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("interest.calculator",
	fx.Provide(NewCalculator),
)

type Params struct {
	fx.In

	Log     *zap.Logger
	Clock   clock.Clock
	Loans   loandomain.Repository
	Metrics *metrics.Metrics `optional:"true"`
}

// Calculator sums cycle interest over a tenant's internal loans.
type Calculator struct {
	log     *zap.Logger
	clock   clock.Clock
	loans   loandomain.Repository
	metrics *metrics.Metrics
}

func NewCalculator(p Params) *Calculator {
	return &Calculator{
		log:     p.Log.Named("interest.calculator"),
		clock:   p.Clock,
		loans:   p.Loans,
		metrics: p.Metrics,
	}
}

// CycleInterest returns the interest earned in [start, min(end, now)] by
// internal loans released in that window. A loan whose records cannot be
// evaluated is logged and left out of the sum.
func (c *Calculator) CycleInterest(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, start, end time.Time) (decimal.Decimal, error) {
	window := EffectiveWindow(start, end, c.clock.Now())
	if window.End.Before(window.Start) {
		return decimal.Zero, nil
	}

	loans, err := c.loans.ListReleasedBetween(ctx, db, tenantID, window.Start, window.End)
	if err != nil {
		return decimal.Zero, err
	}

	total := decimal.Zero
	for _, item := range loans {
		earned, err := EarnedInWindow(item.Loan, item.Product, window)
		if err != nil {
			c.metrics.IncInterestSkipped(err.Error())
			c.log.Warn("loan excluded from cycle interest",
				zap.String("tenant_id", tenantID.String()),
				zap.String("loan_id", item.Loan.ID.String()),
				zap.Error(err),
			)
			continue
		}
		total = total.Add(earned)
	}
	return total.Round(currencyDecimal), nil
}
