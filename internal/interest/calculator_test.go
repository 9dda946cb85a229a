package interest

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
	loandomain "github.com/smallbiznis/groupledger/internal/loan/domain"
	loanrepo "github.com/smallbiznis/groupledger/internal/loan/repository"
	"github.com/smallbiznis/groupledger/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

const tenantID snowflake.ID = 300

func TestCycleInterestSkipsBrokenLoans(t *testing.T) {
	conn := testutil.NewDB(t)
	node := testutil.NewNode(t)
	core, logs := observer.New(zap.WarnLevel)

	calc := NewCalculator(Params{
		Log:   zap.New(core),
		Clock: clockwork.NewFakeClockAt(time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC)),
		Loans: loanrepo.Provide(),
	})

	product := &loandomain.LoanProduct{
		ID:           node.Generate(),
		TenantID:     tenantID,
		Name:         "Group loan",
		InterestType: loandomain.InterestTypeFlat,
		AnnualRate:   decimal.NewFromInt(12),
		CreatedAt:    testutil.Day,
	}
	testutil.Insert(t, conn, product)

	newLoan := func(productID snowflake.ID, release *time.Time, internal bool) *loandomain.Loan {
		return &loandomain.Loan{
			ID:          node.Generate(),
			TenantID:    tenantID,
			MemberID:    1,
			ProductID:   productID,
			Status:      loandomain.LoanStatusActive,
			IsInternal:  internal,
			Principal:   decimal.NewFromInt(1000),
			TermMonths:  12,
			ReleaseDate: release,
			CreatedAt:   testutil.Day,
		}
	}

	good := newLoan(product.ID, date(2026, 1, 1), true)
	orphan := newLoan(999, date(2026, 2, 1), true)
	external := newLoan(product.ID, date(2026, 1, 1), false)
	early := newLoan(product.ID, date(2025, 6, 1), true)
	zeroTerm := newLoan(product.ID, date(2026, 3, 1), true)
	zeroTerm.TermMonths = 0
	testutil.Insert(t, conn, good, orphan, external, early, zeroTerm)

	total, err := calc.CycleInterest(context.Background(), conn, tenantID, *date(2026, 1, 1), *date(2026, 4, 11))
	require.NoError(t, err)
	assert.Equal(t, "32.88", total.StringFixed(2), "only the good loan counts")

	assert.Equal(t, 2, logs.FilterMessage("loan excluded from cycle interest").Len())
}

func TestCycleInterestNoLoans(t *testing.T) {
	conn := testutil.NewDB(t)
	calc := NewCalculator(Params{
		Log:   zap.NewNop(),
		Clock: clockwork.NewFakeClockAt(testutil.Day),
		Loans: loanrepo.Provide(),
	})

	total, err := calc.CycleInterest(context.Background(), conn, tenantID, testutil.Day, testutil.Day.AddDate(0, 3, 0))
	require.NoError(t, err)
	assert.True(t, total.IsZero())
}
