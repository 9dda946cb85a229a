package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	accountlinkdomain "github.com/smallbiznis/groupledger/internal/accountlink/domain"
	accountlinkrepo "github.com/smallbiznis/groupledger/internal/accountlink/repository"
	accountlinkservice "github.com/smallbiznis/groupledger/internal/accountlink/service"
	cycledomain "github.com/smallbiznis/groupledger/internal/cycle/domain"
	cyclerepo "github.com/smallbiznis/groupledger/internal/cycle/repository"
	cycleservice "github.com/smallbiznis/groupledger/internal/cycle/service"
	"github.com/smallbiznis/groupledger/internal/errs"
	"github.com/smallbiznis/groupledger/internal/events"
	ledgerdomain "github.com/smallbiznis/groupledger/internal/ledger/domain"
	ledgerrepo "github.com/smallbiznis/groupledger/internal/ledger/repository"
	ledgerservice "github.com/smallbiznis/groupledger/internal/ledger/service"
	loandomain "github.com/smallbiznis/groupledger/internal/loan/domain"
	loanrepo "github.com/smallbiznis/groupledger/internal/loan/repository"
	shareoutdomain "github.com/smallbiznis/groupledger/internal/shareout/domain"
	"github.com/smallbiznis/groupledger/internal/shareout/repository"
	"github.com/smallbiznis/groupledger/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const tenantID snowflake.ID = 500

type fixedInterest struct{ amount decimal.Decimal }

func (f fixedInterest) CycleInterest(context.Context, *gorm.DB, snowflake.ID, time.Time, time.Time) (decimal.Decimal, error) {
	return f.amount, nil
}

type fixture struct {
	svc    *Service
	env    *testutil.Env
	cycles cycledomain.Service
	ledger ledgerdomain.Service
	links  accountlinkdomain.Service
}

func setup(t *testing.T, interest string) *fixture {
	t.Helper()
	env := testutil.NewEnv(t)
	ledger := ledgerservice.NewService(ledgerservice.Params{
		DB:     env.DB,
		Log:    env.Log,
		GenID:  env.Node,
		Clock:  env.Clock,
		Config: env.Config,
		Repo:   ledgerrepo.Provide(),
		Audit:  env.Audit,
		Outbox: env.Outbox,
	})
	links := accountlinkservice.NewService(accountlinkservice.Params{
		DB:         env.DB,
		Log:        env.Log,
		GenID:      env.Node,
		Clock:      env.Clock,
		Config:     env.Config,
		Repo:       accountlinkrepo.Provide(),
		LedgerRepo: ledgerrepo.Provide(),
	})
	cycles := cycleservice.NewService(cycleservice.Params{
		DB:         env.DB,
		Log:        env.Log,
		GenID:      env.Node,
		Clock:      env.Clock,
		Repo:       cyclerepo.Provide(),
		Interest:   fixedInterest{amount: decimal.RequireFromString(interest)},
		Links:      links,
		LedgerRepo: ledgerrepo.Provide(),
		Audit:      env.Audit,
	})
	svc := NewService(Params{
		DB:     env.DB,
		Log:    env.Log,
		GenID:  env.Node,
		Clock:  env.Clock,
		Repo:   repository.Provide(),
		Cycles: cycles,
		Ledger: ledger,
		Links:  links,
		Loans:  loanrepo.Provide(),
		Audit:  env.Audit,
		Outbox: env.Outbox,
	}).(*Service)
	return &fixture{svc: svc, env: env, cycles: cycles, ledger: ledger, links: links}
}

func (f *fixture) openCycle(t *testing.T, shares map[snowflake.ID]string) *cycledomain.Cycle {
	t.Helper()
	ctx := context.Background()
	cycle, err := f.cycles.Open(ctx, cycledomain.OpenCycleRequest{
		TenantID:  tenantID,
		Name:      "2026",
		StartDate: testutil.Day,
		EndDate:   testutil.Date(2026, 12, 31),
	})
	require.NoError(t, err)
	for memberID, amount := range shares {
		_, err := f.cycles.RecordContribution(ctx, cycledomain.RecordContributionRequest{
			TenantID:        tenantID,
			CycleID:         cycle.ID,
			MemberID:        memberID,
			Type:            cycledomain.ContributionTypeSharePurchase,
			Amount:          decimal.RequireFromString(amount),
			TransactionDate: testutil.Date(2026, 3, 1),
			Status:          cycledomain.ContributionStatusApproved,
		})
		require.NoError(t, err)
	}
	return cycle
}

func (f *fixture) cashbox(t *testing.T, opening string) *ledgerdomain.LedgerAccount {
	t.Helper()
	ctx := context.Background()
	account, err := f.ledger.CreateAccount(ctx, ledgerdomain.CreateAccountRequest{
		TenantID:       tenantID,
		Code:           "cashbox",
		Name:           "Cashbox",
		Currency:       "KES",
		OpeningDate:    testutil.Date(2025, 12, 1),
		OpeningBalance: decimal.RequireFromString(opening),
	})
	require.NoError(t, err)
	_, err = f.links.Link(ctx, tenantID, accountlinkdomain.PurposeCashbox, account.ID)
	require.NoError(t, err)
	return account
}

func (f *fixture) closeYear() {
	f.env.Clock.Advance(365 * 24 * time.Hour)
}

func byMember(allocations []shareoutdomain.Allocation) map[snowflake.ID]shareoutdomain.Allocation {
	out := make(map[snowflake.ID]shareoutdomain.Allocation, len(allocations))
	for _, allocation := range allocations {
		out[allocation.MemberID] = allocation
	}
	return out
}

func TestSettleCycleConservesShares(t *testing.T) {
	f := setup(t, "0")
	ctx := context.Background()
	f.cashbox(t, "10000")
	cycle := f.openCycle(t, map[snowflake.ID]string{1: "6000", 2: "3000", 3: "1000"})
	f.closeYear()

	result, err := f.svc.SettleCycle(ctx, tenantID, cycle.ID)
	require.NoError(t, err)
	require.Len(t, result.Allocations, 3)
	assert.Equal(t, cycledomain.CycleStatusCompleted, result.Cycle.Status)
	assert.Equal(t, "10000.00", result.TotalNetPayout.StringFixed(2))

	stored, err := f.svc.ListAllocations(ctx, tenantID, cycle.ID)
	require.NoError(t, err)
	got := byMember(stored)
	assert.Equal(t, "6000.00", got[1].ShareValuePayout.StringFixed(2))
	assert.Equal(t, "3000.00", got[2].ShareValuePayout.StringFixed(2))
	assert.Equal(t, "1000.00", got[3].ShareValuePayout.StringFixed(2))

	pct := decimal.Zero
	for _, allocation := range stored {
		assert.Equal(t, shareoutdomain.AllocationStatusCalculated, allocation.Status)
		pct = pct.Add(allocation.SharePercentage)
	}
	assert.Equal(t, "1.00000", pct.StringFixed(5))

	pending, err := f.env.Outbox.Pending(ctx, tenantID, 50)
	require.NoError(t, err)
	var settled []events.OutboxEvent
	for _, event := range pending {
		if event.EventType == events.EventCycleSettled {
			settled = append(settled, event)
		}
	}
	require.Len(t, settled, 1)
}

func TestSettleCycleDistributesProfit(t *testing.T) {
	f := setup(t, "500")
	f.cashbox(t, "10500")
	cycle := f.openCycle(t, map[snowflake.ID]string{1: "2000", 2: "8000"})
	f.closeYear()

	result, err := f.svc.SettleCycle(context.Background(), tenantID, cycle.ID)
	require.NoError(t, err)

	got := byMember(result.Allocations)
	assert.Equal(t, "0.20000", got[1].SharePercentage.StringFixed(5))
	assert.Equal(t, "100.00", got[1].ProfitShare.StringFixed(2))
	assert.Equal(t, "400.00", got[2].ProfitShare.StringFixed(2))
	assert.Equal(t, "10500.00", result.TotalNetPayout.StringFixed(2))
}

func TestSettleCycleNetsOutstandingLoans(t *testing.T) {
	f := setup(t, "0")
	f.cashbox(t, "3000")
	cycle := f.openCycle(t, map[snowflake.ID]string{1: "1500", 2: "1500"})
	release := testutil.Date(2026, 2, 1)
	testutil.Insert(t, f.env.DB, &loandomain.Loan{
		ID:          f.env.Node.Generate(),
		TenantID:    tenantID,
		MemberID:    1,
		ProductID:   1,
		Status:      loandomain.LoanStatusActive,
		IsInternal:  true,
		Principal:   decimal.NewFromInt(1800),
		TermMonths:  6,
		ReleaseDate: &release,
		CreatedAt:   testutil.Day,
	})
	f.closeYear()

	result, err := f.svc.SettleCycle(context.Background(), tenantID, cycle.ID)
	require.NoError(t, err)

	got := byMember(result.Allocations)
	assert.Equal(t, "1500.00", got[1].TotalPayout.StringFixed(2))
	assert.Equal(t, "1800.00", got[1].OutstandingLoanBalance.StringFixed(2))
	assert.True(t, got[1].NetPayout.IsZero())
	assert.Equal(t, "1500.00", got[2].NetPayout.StringFixed(2))
}

func TestSettleCycleRefusesUnderfundedCashbox(t *testing.T) {
	f := setup(t, "0")
	ctx := context.Background()
	f.cashbox(t, "4000")
	cycle := f.openCycle(t, map[snowflake.ID]string{1: "6000"})
	f.closeYear()

	_, err := f.svc.SettleCycle(ctx, tenantID, cycle.ID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, cycledomain.ErrIntegrityFailed))

	var classified *errs.Error
	require.True(t, errors.As(err, &classified))
	assert.Equal(t, errs.KindIntegrity, classified.Kind)
	assert.Equal(t, []string{"cashbox balance 4000.00 is below total available for share-out 6000.00"}, classified.Problems)

	stored, err := f.cycles.GetCycle(ctx, tenantID, cycle.ID)
	require.NoError(t, err)
	assert.Equal(t, cycledomain.CycleStatusActive, stored.Status)
	assert.Nil(t, stored.TotalsCalculatedAt)

	allocations, err := f.svc.ListAllocations(ctx, tenantID, cycle.ID)
	require.NoError(t, err)
	assert.Empty(t, allocations)
}

func TestSettleCycleReconcilesCashboxFirst(t *testing.T) {
	f := setup(t, "0")
	ctx := context.Background()
	account := f.cashbox(t, "6000")
	cycle := f.openCycle(t, map[snowflake.ID]string{1: "6000"})
	require.NoError(t, f.env.DB.Model(&ledgerdomain.LedgerAccount{}).
		Where("id = ?", account.ID).
		Update("current_balance", decimal.NewFromInt(1)).Error)
	f.closeYear()

	_, err := f.svc.SettleCycle(ctx, tenantID, cycle.ID)
	require.NoError(t, err)

	repaired, err := f.ledger.GetAccount(ctx, tenantID, account.ID)
	require.NoError(t, err)
	assert.Equal(t, "6000.00", repaired.CurrentBalance.StringFixed(2))
}

func TestSettleCycleBeforeEndDate(t *testing.T) {
	f := setup(t, "0")
	f.cashbox(t, "1000")
	cycle := f.openCycle(t, map[snowflake.ID]string{1: "1000"})

	_, err := f.svc.SettleCycle(context.Background(), tenantID, cycle.ID)
	assert.True(t, errors.Is(err, cycledomain.ErrWindowOpen))
}

func TestSettleCycleTwice(t *testing.T) {
	f := setup(t, "0")
	ctx := context.Background()
	f.cashbox(t, "1000")
	cycle := f.openCycle(t, map[snowflake.ID]string{1: "1000"})
	f.closeYear()

	_, err := f.svc.SettleCycle(ctx, tenantID, cycle.ID)
	require.NoError(t, err)

	_, err = f.svc.SettleCycle(ctx, tenantID, cycle.ID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, cycledomain.ErrCycleNotActive))

	_, err = f.svc.ResumeSettlement(ctx, tenantID, cycle.ID)
	assert.True(t, errors.Is(err, cycledomain.ErrNotInShareOut))
}

func TestSettleCycleInProgressIsConflict(t *testing.T) {
	f := setup(t, "0")
	ctx := context.Background()
	f.cashbox(t, "1000")
	cycle := f.openCycle(t, map[snowflake.ID]string{1: "1000"})
	f.closeYear()
	f.beginShareOut(t, cycle.ID)

	_, err := f.svc.SettleCycle(ctx, tenantID, cycle.ID)
	assert.True(t, errors.Is(err, cycledomain.ErrSettlementInProgress))
	assert.True(t, errs.IsKind(err, errs.KindConflict))
}

func (f *fixture) beginShareOut(t *testing.T, cycleID snowflake.ID) {
	t.Helper()
	ctx := context.Background()
	err := f.env.DB.Transaction(func(tx *gorm.DB) error {
		cycle, err := f.cycles.LockCycle(ctx, tx, tenantID, cycleID)
		if err != nil {
			return err
		}
		if err := f.cycles.ApplyTotals(ctx, tx, cycle); err != nil {
			return err
		}
		return f.cycles.BeginShareOut(ctx, tx, cycle)
	})
	require.NoError(t, err)
}

func TestResumeSettlementKeepsPaidAllocations(t *testing.T) {
	f := setup(t, "0")
	ctx := context.Background()
	f.cashbox(t, "3000")
	cycle := f.openCycle(t, map[snowflake.ID]string{1: "1000", 2: "2000"})
	f.closeYear()
	f.beginShareOut(t, cycle.ID)

	now := f.env.Clock.Now()
	paid := &shareoutdomain.Allocation{
		ID:        f.env.Node.Generate(),
		TenantID:  tenantID,
		CycleID:   cycle.ID,
		MemberID:  1,
		NetPayout: decimal.NewFromInt(42),
		Status:    shareoutdomain.AllocationStatusPaid,
		PaidAt:    &now,
		CreatedAt: now,
		UpdatedAt: now,
	}
	stale := &shareoutdomain.Allocation{
		ID:        f.env.Node.Generate(),
		TenantID:  tenantID,
		CycleID:   cycle.ID,
		MemberID:  2,
		NetPayout: decimal.NewFromInt(7),
		Status:    shareoutdomain.AllocationStatusCancelled,
		CreatedAt: now,
		UpdatedAt: now,
	}
	testutil.Insert(t, f.env.DB, paid, stale)

	result, err := f.svc.ResumeSettlement(ctx, tenantID, cycle.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, result.SkippedPaid)

	stored, err := f.svc.ListAllocations(ctx, tenantID, cycle.ID)
	require.NoError(t, err)
	got := byMember(stored)
	assert.Equal(t, shareoutdomain.AllocationStatusPaid, got[1].Status)
	assert.Equal(t, "42.00", got[1].NetPayout.StringFixed(2))
	assert.Equal(t, stale.ID, got[2].ID)
	assert.Equal(t, shareoutdomain.AllocationStatusCalculated, got[2].Status)
	assert.Equal(t, "2000.00", got[2].NetPayout.StringFixed(2))

	completed, err := f.cycles.GetCycle(ctx, tenantID, cycle.ID)
	require.NoError(t, err)
	assert.Equal(t, cycledomain.CycleStatusCompleted, completed.Status)
}

func TestAllocationLifecycle(t *testing.T) {
	f := setup(t, "0")
	ctx := context.Background()
	f.cashbox(t, "1000")
	cycle := f.openCycle(t, map[snowflake.ID]string{1: "1000"})
	f.closeYear()

	result, err := f.svc.SettleCycle(ctx, tenantID, cycle.ID)
	require.NoError(t, err)
	allocationID := result.Allocations[0].ID

	_, err = f.svc.MarkPaid(ctx, tenantID, allocationID)
	assert.True(t, errs.IsKind(err, errs.KindInvalidState), "calculated allocations must be approved first")

	approved, err := f.svc.ApproveAllocation(ctx, tenantID, allocationID)
	require.NoError(t, err)
	assert.NotNil(t, approved.ApprovedAt)

	paid, err := f.svc.MarkPaid(ctx, tenantID, allocationID)
	require.NoError(t, err)
	assert.Equal(t, shareoutdomain.AllocationStatusPaid, paid.Status)

	_, err = f.svc.MarkPaid(ctx, tenantID, allocationID)
	assert.True(t, errors.Is(err, shareoutdomain.ErrAlreadyPaid))
	assert.True(t, errs.IsKind(err, errs.KindConflict))

	_, err = f.svc.CancelAllocation(ctx, tenantID, allocationID)
	assert.True(t, errs.IsKind(err, errs.KindInvalidState))

	_, err = f.svc.ApproveAllocation(ctx, tenantID, 12345)
	assert.True(t, errors.Is(err, shareoutdomain.ErrAllocationNotFound))
}

func TestCalculateForMemberWritesNothing(t *testing.T) {
	f := setup(t, "500")
	ctx := context.Background()
	cycle := f.openCycle(t, map[snowflake.ID]string{1: "2000", 2: "8000"})

	first, err := f.svc.CalculateForMember(ctx, tenantID, cycle.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, "0.20000", first.SharePercentage.StringFixed(5))
	assert.Equal(t, "100.00", first.ProfitShare.StringFixed(2))
	assert.Equal(t, "2100.00", first.TotalPayout.StringFixed(2))

	second, err := f.svc.CalculateForMember(ctx, tenantID, cycle.ID, 1)
	require.NoError(t, err)
	assert.True(t, first.NetPayout.Equal(second.NetPayout))

	allocations, err := f.svc.ListAllocations(ctx, tenantID, cycle.ID)
	require.NoError(t, err)
	assert.Empty(t, allocations)
}

func TestResumeSettlementRejectsLateShareContribution(t *testing.T) {
	f := setup(t, "0")
	ctx := context.Background()
	f.cashbox(t, "3000")
	cycle := f.openCycle(t, map[snowflake.ID]string{1: "1000", 2: "2000"})
	f.closeYear()
	f.beginShareOut(t, cycle.ID)

	cycleID := cycle.ID
	late := &cycledomain.Contribution{
		ID:              f.env.Node.Generate(),
		TenantID:        tenantID,
		CycleID:         &cycleID,
		MemberID:        3,
		Type:            cycledomain.ContributionTypeSharePurchase,
		Amount:          decimal.NewFromInt(500),
		Status:          cycledomain.ContributionStatusApproved,
		TransactionDate: testutil.Date(2026, 6, 1),
		CreatedAt:       f.env.Clock.Now(),
	}
	testutil.Insert(t, f.env.DB, late)

	_, err := f.svc.ResumeSettlement(ctx, tenantID, cycle.ID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, cycledomain.ErrIntegrityFailed))
	var detail *errs.Error
	require.True(t, errors.As(err, &detail))
	assert.Equal(t, []string{"approved share contributions 3500.00 differ from frozen total 3000.00"}, detail.Problems)

	stored, err := f.svc.ListAllocations(ctx, tenantID, cycle.ID)
	require.NoError(t, err)
	assert.Empty(t, stored)

	current, err := f.cycles.GetCycle(ctx, tenantID, cycle.ID)
	require.NoError(t, err)
	assert.Equal(t, cycledomain.CycleStatusShareOutInProgress, current.Status)
}

func TestApproveContributionAfterClaimIsRefused(t *testing.T) {
	f := setup(t, "0")
	ctx := context.Background()
	f.cashbox(t, "1000")
	cycle := f.openCycle(t, map[snowflake.ID]string{1: "1000"})

	pending, err := f.cycles.RecordContribution(ctx, cycledomain.RecordContributionRequest{
		TenantID:        tenantID,
		CycleID:         cycle.ID,
		MemberID:        2,
		Type:            cycledomain.ContributionTypeSharePurchase,
		Amount:          decimal.NewFromInt(400),
		TransactionDate: testutil.Date(2026, 4, 1),
	})
	require.NoError(t, err)

	f.closeYear()
	f.beginShareOut(t, cycle.ID)

	_, err = f.cycles.ApproveContribution(ctx, tenantID, pending.ID)
	assert.True(t, errors.Is(err, cycledomain.ErrCycleNotActive))

	result, err := f.svc.ResumeSettlement(ctx, tenantID, cycle.ID)
	require.NoError(t, err)
	require.Len(t, result.Allocations, 1)
	assert.Equal(t, "1000.00", result.Allocations[0].ShareValuePayout.StringFixed(2))
}
