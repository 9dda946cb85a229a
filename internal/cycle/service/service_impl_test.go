package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	accountlinkdomain "github.com/smallbiznis/groupledger/internal/accountlink/domain"
	accountlinkrepo "github.com/smallbiznis/groupledger/internal/accountlink/repository"
	accountlinkservice "github.com/smallbiznis/groupledger/internal/accountlink/service"
	auditdomain "github.com/smallbiznis/groupledger/internal/audit/domain"
	cycledomain "github.com/smallbiznis/groupledger/internal/cycle/domain"
	"github.com/smallbiznis/groupledger/internal/cycle/repository"
	"github.com/smallbiznis/groupledger/internal/errs"
	ledgerdomain "github.com/smallbiznis/groupledger/internal/ledger/domain"
	ledgerrepo "github.com/smallbiznis/groupledger/internal/ledger/repository"
	"github.com/smallbiznis/groupledger/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const tenantID snowflake.ID = 400

type fixedInterest struct{ amount decimal.Decimal }

func (f fixedInterest) CycleInterest(context.Context, *gorm.DB, snowflake.ID, time.Time, time.Time) (decimal.Decimal, error) {
	return f.amount, nil
}

type fixture struct {
	svc   *Service
	env   *testutil.Env
	links accountlinkdomain.Service
}

func setup(t *testing.T, interest string) *fixture {
	t.Helper()
	env := testutil.NewEnv(t)
	links := accountlinkservice.NewService(accountlinkservice.Params{
		DB:         env.DB,
		Log:        env.Log,
		GenID:      env.Node,
		Clock:      env.Clock,
		Config:     env.Config,
		Repo:       accountlinkrepo.Provide(),
		LedgerRepo: ledgerrepo.Provide(),
	})
	svc := NewService(Params{
		DB:         env.DB,
		Log:        env.Log,
		GenID:      env.Node,
		Clock:      env.Clock,
		Repo:       repository.Provide(),
		Interest:   fixedInterest{amount: decimal.RequireFromString(interest)},
		Links:      links,
		LedgerRepo: ledgerrepo.Provide(),
		Audit:      env.Audit,
	}).(*Service)
	return &fixture{svc: svc, env: env, links: links}
}

func (f *fixture) open(t *testing.T) *cycledomain.Cycle {
	t.Helper()
	cycle, err := f.svc.Open(context.Background(), cycledomain.OpenCycleRequest{
		TenantID:  tenantID,
		Name:      "2026",
		StartDate: testutil.Day,
		EndDate:   testutil.Date(2026, 12, 31),
	})
	require.NoError(t, err)
	return cycle
}

func (f *fixture) contribute(t *testing.T, cycleID, memberID snowflake.ID, typ cycledomain.ContributionType, amount string) {
	t.Helper()
	_, err := f.svc.RecordContribution(context.Background(), cycledomain.RecordContributionRequest{
		TenantID:        tenantID,
		CycleID:         cycleID,
		MemberID:        memberID,
		Type:            typ,
		Amount:          decimal.RequireFromString(amount),
		TransactionDate: testutil.Date(2026, 2, 1),
		Status:          cycledomain.ContributionStatusApproved,
	})
	require.NoError(t, err)
}

func (f *fixture) linkCashbox(t *testing.T, balance string) snowflake.ID {
	t.Helper()
	account := &ledgerdomain.LedgerAccount{
		ID:             f.env.Node.Generate(),
		TenantID:       tenantID,
		Code:           "cashbox",
		Name:           "Cashbox",
		Currency:       "KES",
		OpeningDate:    testutil.Day,
		CurrentBalance: decimal.RequireFromString(balance),
		IsActive:       true,
		CreatedAt:      testutil.Day,
		UpdatedAt:      testutil.Day,
	}
	testutil.Insert(t, f.env.DB, account)
	_, err := f.links.Link(context.Background(), tenantID, accountlinkdomain.PurposeCashbox, account.ID)
	require.NoError(t, err)
	return account.ID
}

func TestOpenRejectsSecondActiveCycle(t *testing.T) {
	f := setup(t, "0")
	first := f.open(t)

	_, err := f.svc.Open(context.Background(), cycledomain.OpenCycleRequest{
		TenantID:  tenantID,
		Name:      "overlap",
		StartDate: testutil.Day,
		EndDate:   testutil.Date(2026, 6, 30),
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, cycledomain.ErrActiveCycleExists))
	assert.True(t, errs.IsKind(err, errs.KindConflict))

	assert.Equal(t, []string{"cycle.open"}, f.env.AuditActions(t, tenantID, auditdomain.EntityKindCycle, first.ID))
}

func TestConcurrentOpenYieldsOneCycle(t *testing.T) {
	f := setup(t, "0")

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Open(context.Background(), cycledomain.OpenCycleRequest{
				TenantID:  tenantID,
				Name:      "race",
				StartDate: testutil.Day,
				EndDate:   testutil.Date(2026, 12, 31),
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errs.IsKind(err, errs.KindConflict):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, 1, conflicts)
}

func TestActiveCycleUniqueIndex(t *testing.T) {
	f := setup(t, "0")
	f.open(t)

	err := repository.Provide().Insert(context.Background(), f.env.DB, &cycledomain.Cycle{
		ID:        f.env.Node.Generate(),
		TenantID:  tenantID,
		Name:      "bypass",
		StartDate: testutil.Day,
		EndDate:   testutil.Date(2026, 3, 1),
		Status:    cycledomain.CycleStatusActive,
		CreatedAt: testutil.Day,
		UpdatedAt: testutil.Day,
	})
	assert.True(t, errors.Is(err, gorm.ErrDuplicatedKey))
}

func TestOpenValidatesDates(t *testing.T) {
	f := setup(t, "0")
	_, err := f.svc.Open(context.Background(), cycledomain.OpenCycleRequest{
		TenantID:  tenantID,
		Name:      "backwards",
		StartDate: testutil.Date(2026, 6, 1),
		EndDate:   testutil.Date(2026, 1, 1),
	})
	assert.True(t, errors.Is(err, cycledomain.ErrInvalidDates))
}

func TestPhaseFollowsClock(t *testing.T) {
	f := setup(t, "0")
	cycle := f.open(t)
	ctx := context.Background()

	phase, err := f.svc.GetPhase(ctx, tenantID, cycle.ID)
	require.NoError(t, err)
	assert.Equal(t, cycledomain.PhaseActive, phase)

	f.env.Clock.Advance(366 * 24 * time.Hour)
	phase, err = f.svc.GetPhase(ctx, tenantID, cycle.ID)
	require.NoError(t, err)
	assert.Equal(t, cycledomain.PhaseReadyForShareOut, phase)
}

func TestCloseWindow(t *testing.T) {
	f := setup(t, "0")
	cycle := f.open(t)
	ctx := context.Background()

	_, err := f.svc.CloseWindow(ctx, tenantID, cycle.ID, testutil.Date(2027, 1, 5))
	assert.True(t, errors.Is(err, cycledomain.ErrInvalidCloseDate))

	closed, err := f.svc.CloseWindow(ctx, tenantID, cycle.ID, testutil.Date(2026, 6, 30))
	require.NoError(t, err)
	assert.Equal(t, cycledomain.CycleStatusActive, closed.Status)
	assert.Equal(t, testutil.Date(2026, 6, 30), closed.EndDate)

	f.env.Clock.Advance(200 * 24 * time.Hour)
	phase, err := f.svc.GetPhase(ctx, tenantID, cycle.ID)
	require.NoError(t, err)
	assert.Equal(t, cycledomain.PhaseReadyForShareOut, phase)

	_, err = f.svc.RecordContribution(ctx, cycledomain.RecordContributionRequest{
		TenantID: tenantID,
		CycleID:  cycle.ID,
		MemberID: 1,
		Type:     cycledomain.ContributionTypeSharePurchase,
		Amount:   decimal.NewFromInt(100),
	})
	assert.True(t, errors.Is(err, cycledomain.ErrContributionWindowClosed))
}

func TestCalculateTotalsCountsApprovedOnly(t *testing.T) {
	f := setup(t, "125.50")
	cycle := f.open(t)
	ctx := context.Background()

	f.contribute(t, cycle.ID, 1, cycledomain.ContributionTypeSharePurchase, "6000")
	f.contribute(t, cycle.ID, 2, cycledomain.ContributionTypeSharePurchase, "4000")
	f.contribute(t, cycle.ID, 1, cycledomain.ContributionTypeWelfare, "300")
	f.contribute(t, cycle.ID, 2, cycledomain.ContributionTypePenalty, "50")
	f.contribute(t, cycle.ID, 2, cycledomain.ContributionTypeLoanRepayment, "999")

	pending, err := f.svc.RecordContribution(ctx, cycledomain.RecordContributionRequest{
		TenantID:        tenantID,
		CycleID:         cycle.ID,
		MemberID:        3,
		Type:            cycledomain.ContributionTypeSharePurchase,
		Amount:          decimal.NewFromInt(700),
		TransactionDate: testutil.Date(2026, 3, 1),
	})
	require.NoError(t, err)
	assert.Equal(t, cycledomain.ContributionStatusPending, pending.Status)

	updated, err := f.svc.CalculateTotals(ctx, tenantID, cycle.ID)
	require.NoError(t, err)
	assert.Equal(t, "10000.00", updated.TotalSharesContributed.StringFixed(2))
	assert.Equal(t, "300.00", updated.TotalWelfareContributed.StringFixed(2))
	assert.Equal(t, "50.00", updated.TotalPenaltiesCollected.StringFixed(2))
	assert.Equal(t, "125.50", updated.TotalLoanInterestEarned.StringFixed(2))
	assert.Equal(t, "10475.50", updated.TotalAvailableForShareOut.StringFixed(2))
	require.NotNil(t, updated.TotalsCalculatedAt)

	_, err = f.svc.ApproveContribution(ctx, tenantID, pending.ID)
	require.NoError(t, err)
	_, err = f.svc.ApproveContribution(ctx, tenantID, pending.ID)
	assert.True(t, errors.Is(err, cycledomain.ErrContributionNotPending))

	updated, err = f.svc.CalculateTotals(ctx, tenantID, cycle.ID)
	require.NoError(t, err)
	assert.Equal(t, "10700.00", updated.TotalSharesContributed.StringFixed(2))

	stored, err := f.svc.GetCycle(ctx, tenantID, cycle.ID)
	require.NoError(t, err)
	assert.Equal(t, "11175.50", stored.TotalAvailableForShareOut.StringFixed(2))
}

func TestIntegrityListsEveryProblem(t *testing.T) {
	f := setup(t, "0")
	cycle := f.open(t)

	problems, err := f.svc.ValidateFinancialIntegrity(context.Background(), tenantID, cycle.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"cycle has no approved share contributions",
		"total available for share-out is 0.00",
		"cycle has no participating members",
		"cashbox ledger account is not configured",
	}, problems)
}

func TestIntegrityComparesCashbox(t *testing.T) {
	f := setup(t, "0")
	cycle := f.open(t)
	f.contribute(t, cycle.ID, 1, cycledomain.ContributionTypeSharePurchase, "1000")
	f.linkCashbox(t, "600")

	problems, err := f.svc.ValidateFinancialIntegrity(context.Background(), tenantID, cycle.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"cashbox balance 600.00 is below total available for share-out 1000.00"}, problems)
}

func TestIntegrityPasses(t *testing.T) {
	f := setup(t, "0")
	cycle := f.open(t)
	f.contribute(t, cycle.ID, 1, cycledomain.ContributionTypeSharePurchase, "1000")
	f.linkCashbox(t, "1000")

	problems, err := f.svc.ValidateFinancialIntegrity(context.Background(), tenantID, cycle.ID)
	require.NoError(t, err)
	assert.Empty(t, problems)
}

func TestShareOutTransitions(t *testing.T) {
	f := setup(t, "0")
	cycle := f.open(t)
	ctx := context.Background()

	_, err := f.svc.Archive(ctx, tenantID, cycle.ID)
	assert.True(t, errors.Is(err, cycledomain.ErrCycleNotCompleted))

	err = f.env.DB.Transaction(func(tx *gorm.DB) error {
		locked, err := f.svc.LockCycle(ctx, tx, tenantID, cycle.ID)
		if err != nil {
			return err
		}
		return f.svc.BeginShareOut(ctx, tx, locked)
	})
	require.NoError(t, err)

	// A caller holding a stale copy cannot begin again.
	err = f.env.DB.Transaction(func(tx *gorm.DB) error {
		return f.svc.BeginShareOut(ctx, tx, cycle)
	})
	assert.True(t, errors.Is(err, cycledomain.ErrSettlementInProgress))

	require.NoError(t, f.svc.RecordSettlementFailure(ctx, tenantID, cycle.ID, errors.New("allocation write failed")))
	stored, err := f.svc.GetCycle(ctx, tenantID, cycle.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.LastError)
	assert.Equal(t, "allocation write failed", *stored.LastError)

	err = f.env.DB.Transaction(func(tx *gorm.DB) error {
		locked, err := f.svc.LockCycle(ctx, tx, tenantID, cycle.ID)
		if err != nil {
			return err
		}
		return f.svc.CompleteShareOut(ctx, tx, locked)
	})
	require.NoError(t, err)

	stored, err = f.svc.GetCycle(ctx, tenantID, cycle.ID)
	require.NoError(t, err)
	assert.Equal(t, cycledomain.CycleStatusCompleted, stored.Status)
	assert.Nil(t, stored.LastError)

	_, err = f.svc.CalculateTotals(ctx, tenantID, cycle.ID)
	assert.True(t, errors.Is(err, cycledomain.ErrTotalsFrozen))

	archived, err := f.svc.Archive(ctx, tenantID, cycle.ID)
	require.NoError(t, err)
	assert.Equal(t, cycledomain.CycleStatusArchived, archived.Status)

	assert.Equal(t, []string{
		"cycle.open",
		"cycle.share_out_start",
		"cycle.settlement_failed",
		"cycle.complete",
		"cycle.archive",
	}, f.env.AuditActions(t, tenantID, auditdomain.EntityKindCycle, cycle.ID))
}

func TestMemberContributions(t *testing.T) {
	f := setup(t, "0")
	cycle := f.open(t)
	f.contribute(t, cycle.ID, 7, cycledomain.ContributionTypeSharePurchase, "2000")
	f.contribute(t, cycle.ID, 7, cycledomain.ContributionTypeWelfare, "150")
	f.contribute(t, cycle.ID, 7, cycledomain.ContributionTypePenalty, "20")

	got, err := f.svc.MemberContributions(context.Background(), f.env.DB, tenantID, cycle.ID, 7)
	require.NoError(t, err)
	assert.Equal(t, "2000.00", got.Shares.StringFixed(2))
	assert.Equal(t, "150.00", got.Welfare.StringFixed(2))

	none, err := f.svc.MemberContributions(context.Background(), f.env.DB, tenantID, cycle.ID, 8)
	require.NoError(t, err)
	assert.True(t, none.Shares.IsZero())
}
