package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	auditdomain "github.com/smallbiznis/groupledger/internal/audit/domain"
	"github.com/smallbiznis/groupledger/internal/errs"
	"github.com/smallbiznis/groupledger/internal/events"
	ledgerdomain "github.com/smallbiznis/groupledger/internal/ledger/domain"
	"github.com/smallbiznis/groupledger/internal/ledger/repository"
	"github.com/smallbiznis/groupledger/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tenantID snowflake.ID = 100

func newTestService(t *testing.T) (*Service, *testutil.Env) {
	t.Helper()
	env := testutil.NewEnv(t)
	svc := NewService(Params{
		DB:     env.DB,
		Log:    env.Log,
		GenID:  env.Node,
		Clock:  env.Clock,
		Config: env.Config,
		Repo:   repository.Provide(),
		Audit:  env.Audit,
		Outbox: env.Outbox,
	}).(*Service)
	return svc, env
}

func createCashbox(t *testing.T, svc *Service, opening string) *ledgerdomain.LedgerAccount {
	t.Helper()
	account, err := svc.CreateAccount(context.Background(), ledgerdomain.CreateAccountRequest{
		TenantID:       tenantID,
		Code:           "cashbox",
		Name:           "Cashbox",
		Currency:       "kes",
		OpeningDate:    testutil.Date(2025, 12, 1),
		OpeningBalance: decimal.RequireFromString(opening),
	})
	require.NoError(t, err)
	return account
}

func debit(accountID snowflake.ID, amount string, status ledgerdomain.EntryStatus) ledgerdomain.CreateEntryRequest {
	return ledgerdomain.CreateEntryRequest{
		TenantID:        tenantID,
		AccountID:       accountID,
		Amount:          decimal.RequireFromString(amount),
		Direction:       ledgerdomain.DirectionDebit,
		Type:            ledgerdomain.EntryTypeWithdraw,
		TransactionDate: testutil.Day,
		Status:          status,
	}
}

func balanceOf(t *testing.T, svc *Service, accountID snowflake.ID) decimal.Decimal {
	t.Helper()
	account, err := svc.GetAccount(context.Background(), tenantID, accountID)
	require.NoError(t, err)
	return account.CurrentBalance
}

func TestCreateAccountPostsOpeningBalance(t *testing.T) {
	svc, env := newTestService(t)
	account := createCashbox(t, svc, "250.00")

	assert.Equal(t, "KES", account.Currency)
	assert.True(t, account.CurrentBalance.Equal(decimal.NewFromInt(250)))

	entries, err := svc.ListEntries(context.Background(), tenantID, account.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, ledgerdomain.EntryTypeOpeningBalance, entries[0].Type)
	assert.Equal(t, ledgerdomain.EntryStatusApproved, entries[0].Status)

	result, err := svc.RecalculateBalance(context.Background(), tenantID, account.ID)
	require.NoError(t, err)
	assert.False(t, result.Repaired)
	assert.True(t, result.Computed.Equal(decimal.NewFromInt(250)))

	assert.Equal(t, []string{"ledger_account.create"}, env.AuditActions(t, tenantID, auditdomain.EntityKindLedgerAccount, account.ID))
}

func TestCreateAccountDuplicateCodeConflicts(t *testing.T) {
	svc, _ := newTestService(t)
	createCashbox(t, svc, "0")

	_, err := svc.CreateAccount(context.Background(), ledgerdomain.CreateAccountRequest{
		TenantID:    tenantID,
		Code:        "cashbox",
		Name:        "Again",
		Currency:    "KES",
		OpeningDate: testutil.Day,
	})
	assert.True(t, errors.Is(err, ledgerdomain.ErrAccountCodeTaken))
	assert.True(t, errs.IsKind(err, errs.KindConflict))
}

func TestCreateEntryValidation(t *testing.T) {
	svc, env := newTestService(t)
	account := createCashbox(t, svc, "100.00")

	inactive := &ledgerdomain.LedgerAccount{
		ID:          env.Node.Generate(),
		TenantID:    tenantID,
		Code:        "old-bank",
		Name:        "Old bank",
		Currency:    "KES",
		OpeningDate: testutil.Date(2025, 1, 1),
		IsActive:    false,
		CreatedAt:   testutil.Day,
		UpdatedAt:   testutil.Day,
	}
	testutil.Insert(t, env.DB, inactive)

	cases := []struct {
		name   string
		mutate func(*ledgerdomain.CreateEntryRequest)
		want   *errs.Error
	}{
		{"missing account", func(r *ledgerdomain.CreateEntryRequest) { r.AccountID = 999 }, ledgerdomain.ErrInvalidAccount},
		{"inactive account", func(r *ledgerdomain.CreateEntryRequest) { r.AccountID = inactive.ID }, ledgerdomain.ErrAccountInactive},
		{"zero amount", func(r *ledgerdomain.CreateEntryRequest) { r.Amount = decimal.Zero }, ledgerdomain.ErrInvalidAmount},
		{"negative amount", func(r *ledgerdomain.CreateEntryRequest) { r.Amount = decimal.NewFromInt(-1) }, ledgerdomain.ErrInvalidAmount},
		{"sub-cent amount", func(r *ledgerdomain.CreateEntryRequest) { r.Amount = decimal.RequireFromString("0.004") }, ledgerdomain.ErrInvalidAmount},
		{"before opening", func(r *ledgerdomain.CreateEntryRequest) { r.TransactionDate = testutil.Date(2025, 11, 30) }, ledgerdomain.ErrInvalidTransactionDate},
		{"unknown type", func(r *ledgerdomain.CreateEntryRequest) { r.Type = "dividend" }, ledgerdomain.ErrInvalidEntryType},
		{"bad direction", func(r *ledgerdomain.CreateEntryRequest) { r.Direction = "up" }, ledgerdomain.ErrInvalidDirection},
		{"rejected status", func(r *ledgerdomain.CreateEntryRequest) { r.Status = ledgerdomain.EntryStatusRejected }, ledgerdomain.ErrInvalidInitialStatus},
		{"overdraw", func(r *ledgerdomain.CreateEntryRequest) {
			r.Amount = decimal.RequireFromString("100.01")
			r.Status = ledgerdomain.EntryStatusApproved
		}, ledgerdomain.ErrInsufficientBalance},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := debit(account.ID, "10.00", ledgerdomain.EntryStatusPending)
			tc.mutate(&req)
			_, err := svc.CreateEntry(context.Background(), req)
			assert.True(t, errors.Is(err, tc.want), "got %v", err)
			assert.True(t, errs.IsKind(err, errs.KindValidation))
		})
	}

	entries, err := svc.ListEntries(context.Background(), tenantID, account.ID)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "only the opening entry exists")
	assert.True(t, balanceOf(t, svc, account.ID).Equal(decimal.NewFromInt(100)))
}

func TestOverdrawExposesAvailableBalance(t *testing.T) {
	svc, _ := newTestService(t)
	account := createCashbox(t, svc, "40.00")

	_, err := svc.CreateEntry(context.Background(), debit(account.ID, "50.00", ledgerdomain.EntryStatusApproved))
	var domainErr *errs.Error
	require.True(t, errors.As(err, &domainErr))
	assert.Equal(t, "40.00", domainErr.Fields["available_balance"])
	assert.Contains(t, domainErr.Error(), "available 40.00")
}

func TestApproveRechecksBalance(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	account := createCashbox(t, svc, "100.00")

	first, err := svc.CreateEntry(ctx, debit(account.ID, "60.00", ledgerdomain.EntryStatusPending))
	require.NoError(t, err)
	second, err := svc.CreateEntry(ctx, debit(account.ID, "60.00", ledgerdomain.EntryStatusPending))
	require.NoError(t, err)

	_, err = svc.Approve(ctx, tenantID, first.ID)
	require.NoError(t, err)
	assert.True(t, balanceOf(t, svc, account.ID).Equal(decimal.NewFromInt(40)))

	_, err = svc.Approve(ctx, tenantID, second.ID)
	assert.True(t, errors.Is(err, ledgerdomain.ErrInsufficientBalance))
	assert.True(t, balanceOf(t, svc, account.ID).Equal(decimal.NewFromInt(40)))

	stored, err := repository.Provide().FindEntry(ctx, svc.db, tenantID, second.ID)
	require.NoError(t, err)
	assert.Equal(t, ledgerdomain.EntryStatusPending, stored.Status)
}

func TestConcurrentApprovalsNeverOverdraw(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	account := createCashbox(t, svc, "100.00")

	ids := make([]snowflake.ID, 0, 4)
	for i := 0; i < 4; i++ {
		entry, err := svc.CreateEntry(ctx, debit(account.ID, "30.00", ledgerdomain.EntryStatusPending))
		require.NoError(t, err)
		ids = append(ids, entry.ID)
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		approved int
	)
	for _, id := range ids {
		wg.Add(1)
		go func(id snowflake.ID) {
			defer wg.Done()
			if _, err := svc.Approve(ctx, tenantID, id); err == nil {
				mu.Lock()
				approved++
				mu.Unlock()
			}
		}(id)
	}
	wg.Wait()

	assert.Equal(t, 3, approved)
	balance := balanceOf(t, svc, account.ID)
	assert.True(t, balance.Equal(decimal.NewFromInt(10)), "balance %s", balance)
	assert.False(t, balance.IsNegative())
}

func TestStateMachine(t *testing.T) {
	svc, env := newTestService(t)
	ctx := context.Background()
	account := createCashbox(t, svc, "100.00")

	entry, err := svc.CreateEntry(ctx, debit(account.ID, "10.00", ledgerdomain.EntryStatusPending))
	require.NoError(t, err)

	rejected, err := svc.Reject(ctx, tenantID, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, ledgerdomain.EntryStatusRejected, rejected.Status)
	assert.NotNil(t, rejected.RejectedAt)

	_, err = svc.Approve(ctx, tenantID, entry.ID)
	assert.True(t, errs.IsKind(err, errs.KindInvalidState))
	_, err = svc.Cancel(ctx, tenantID, entry.ID)
	assert.True(t, errs.IsKind(err, errs.KindInvalidState))

	_, err = svc.Approve(ctx, tenantID, 12345)
	assert.True(t, errors.Is(err, ledgerdomain.ErrEntryNotFound))

	assert.Equal(t,
		[]string{"ledger_entry.create", "ledger_entry.reject"},
		env.AuditActions(t, tenantID, auditdomain.EntityKindLedgerEntry, entry.ID),
	)
}

func TestCancelApprovedReversesBalance(t *testing.T) {
	svc, env := newTestService(t)
	ctx := context.Background()
	account := createCashbox(t, svc, "100.00")

	entry, err := svc.CreateEntry(ctx, debit(account.ID, "25.50", ledgerdomain.EntryStatusApproved))
	require.NoError(t, err)
	assert.True(t, balanceOf(t, svc, account.ID).Equal(decimal.RequireFromString("74.50")))

	cancelled, err := svc.Cancel(ctx, tenantID, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, ledgerdomain.EntryStatusCancelled, cancelled.Status)
	assert.True(t, balanceOf(t, svc, account.ID).Equal(decimal.NewFromInt(100)))

	_, err = svc.Reject(ctx, tenantID, entry.ID)
	assert.True(t, errs.IsKind(err, errs.KindInvalidState))

	pending, err := env.Outbox.Pending(ctx, tenantID, 10)
	require.NoError(t, err)
	types := make([]string, 0, len(pending))
	for _, event := range pending {
		types = append(types, event.EventType)
	}
	assert.Equal(t, []string{events.EventLedgerEntryApproved, events.EventLedgerEntryCancelled}, types)
}

func TestCancelCreditCannotOverdraw(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	account := createCashbox(t, svc, "0")

	credit, err := svc.CreateEntry(ctx, ledgerdomain.CreateEntryRequest{
		TenantID:        tenantID,
		AccountID:       account.ID,
		Amount:          decimal.NewFromInt(50),
		Direction:       ledgerdomain.DirectionCredit,
		Type:            ledgerdomain.EntryTypeDeposit,
		TransactionDate: testutil.Day,
		Status:          ledgerdomain.EntryStatusApproved,
	})
	require.NoError(t, err)
	_, err = svc.CreateEntry(ctx, debit(account.ID, "30.00", ledgerdomain.EntryStatusApproved))
	require.NoError(t, err)

	_, err = svc.Cancel(ctx, tenantID, credit.ID)
	assert.True(t, errors.Is(err, ledgerdomain.ErrInsufficientBalance))
	assert.True(t, balanceOf(t, svc, account.ID).Equal(decimal.NewFromInt(20)))
}

func TestMaximumBalanceGuard(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	limit := decimal.NewFromInt(500)
	account, err := svc.CreateAccount(ctx, ledgerdomain.CreateAccountRequest{
		TenantID:       tenantID,
		Code:           "petty",
		Name:           "Petty cash",
		Currency:       "KES",
		OpeningDate:    testutil.Day,
		OpeningBalance: decimal.NewFromInt(450),
		MaximumBalance: &limit,
	})
	require.NoError(t, err)

	_, err = svc.CreateEntry(ctx, ledgerdomain.CreateEntryRequest{
		TenantID:        tenantID,
		AccountID:       account.ID,
		Amount:          decimal.NewFromInt(60),
		Direction:       ledgerdomain.DirectionCredit,
		Type:            ledgerdomain.EntryTypeDeposit,
		TransactionDate: testutil.Day,
		Status:          ledgerdomain.EntryStatusApproved,
	})
	assert.True(t, errors.Is(err, ledgerdomain.ErrMaximumBalanceExceeded))
}

func TestDuplicateSourceConflicts(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	account := createCashbox(t, svc, "100.00")

	req := debit(account.ID, "5.00", ledgerdomain.EntryStatusPending)
	req.SourceType = "savings_transaction"
	req.SourceID = "tx-1"
	_, err := svc.CreateEntry(ctx, req)
	require.NoError(t, err)

	_, err = svc.CreateEntry(ctx, req)
	assert.True(t, errors.Is(err, ledgerdomain.ErrDuplicateSource))

	found, err := svc.FindEntryBySource(ctx, tenantID, "savings_transaction", "tx-1")
	require.NoError(t, err)
	assert.Equal(t, "tx-1", *found.SourceID)
}
