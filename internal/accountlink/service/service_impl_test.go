package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	accountlinkdomain "github.com/smallbiznis/groupledger/internal/accountlink/domain"
	"github.com/smallbiznis/groupledger/internal/accountlink/repository"
	"github.com/smallbiznis/groupledger/internal/errs"
	ledgerdomain "github.com/smallbiznis/groupledger/internal/ledger/domain"
	ledgerrepo "github.com/smallbiznis/groupledger/internal/ledger/repository"
	"github.com/smallbiznis/groupledger/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tenantID snowflake.ID = 200

func setup(t *testing.T) (*Service, *testutil.Env) {
	t.Helper()
	env := testutil.NewEnv(t)
	svc := NewService(Params{
		DB:         env.DB,
		Log:        env.Log,
		GenID:      env.Node,
		Clock:      env.Clock,
		Config:     env.Config,
		Repo:       repository.Provide(),
		LedgerRepo: ledgerrepo.Provide(),
	}).(*Service)
	return svc, env
}

func insertAccount(t *testing.T, env *testutil.Env, code string) snowflake.ID {
	t.Helper()
	account := &ledgerdomain.LedgerAccount{
		ID:          env.Node.Generate(),
		TenantID:    tenantID,
		Code:        code,
		Name:        code,
		Currency:    "KES",
		OpeningDate: testutil.Day,
		IsActive:    true,
		CreatedAt:   testutil.Day,
		UpdatedAt:   testutil.Day,
	}
	testutil.Insert(t, env.DB, account)
	return account.ID
}

func TestResolveMissingLinkIsConfigurationError(t *testing.T) {
	svc, _ := setup(t)

	_, err := svc.ResolveCashbox(context.Background(), nil, tenantID)
	assert.True(t, errors.Is(err, accountlinkdomain.ErrLinkMissing))
	assert.True(t, errs.IsKind(err, errs.KindConfiguration))

	_, err = svc.ResolveProduct(context.Background(), nil, tenantID, "savings")
	assert.True(t, errs.IsKind(err, errs.KindConfiguration))
}

func TestLinkAndResolve(t *testing.T) {
	svc, env := setup(t)
	ctx := context.Background()
	cashbox := insertAccount(t, env, "cashbox")
	bank := insertAccount(t, env, "bank")

	_, err := svc.Link(ctx, tenantID, accountlinkdomain.PurposeCashbox, cashbox)
	require.NoError(t, err)
	_, err = svc.Link(ctx, tenantID, accountlinkdomain.ProductPurpose("savings"), bank)
	require.NoError(t, err)

	got, err := svc.ResolveCashbox(ctx, nil, tenantID)
	require.NoError(t, err)
	assert.Equal(t, cashbox, got)

	got, err = svc.ResolveProduct(ctx, env.DB, tenantID, "savings")
	require.NoError(t, err)
	assert.Equal(t, bank, got)

	links, err := svc.List(ctx, tenantID)
	require.NoError(t, err)
	assert.Len(t, links, 2)
}

func TestRelinkInvalidatesCache(t *testing.T) {
	svc, env := setup(t)
	ctx := context.Background()
	first := insertAccount(t, env, "cash-a")
	second := insertAccount(t, env, "cash-b")

	_, err := svc.Link(ctx, tenantID, accountlinkdomain.PurposeCashbox, first)
	require.NoError(t, err)
	got, err := svc.ResolveCashbox(ctx, nil, tenantID)
	require.NoError(t, err)
	require.Equal(t, first, got)

	link, err := svc.Link(ctx, tenantID, accountlinkdomain.PurposeCashbox, second)
	require.NoError(t, err)
	assert.Equal(t, second, link.AccountID)

	got, err = svc.ResolveCashbox(ctx, nil, tenantID)
	require.NoError(t, err)
	assert.Equal(t, second, got)
}

func TestCachedLinkExpires(t *testing.T) {
	svc, env := setup(t)
	ctx := context.Background()
	first := insertAccount(t, env, "cash-a")
	second := insertAccount(t, env, "cash-b")

	_, err := svc.Link(ctx, tenantID, accountlinkdomain.PurposeCashbox, first)
	require.NoError(t, err)
	_, err = svc.ResolveCashbox(ctx, nil, tenantID)
	require.NoError(t, err)

	require.NoError(t, env.DB.Model(&accountlinkdomain.TenantAccountLink{}).
		Where("tenant_id = ?", tenantID).
		Update("account_id", second).Error)

	got, err := svc.ResolveCashbox(ctx, nil, tenantID)
	require.NoError(t, err)
	assert.Equal(t, first, got, "served from cache")

	env.Clock.Advance(2 * time.Minute)
	got, err = svc.ResolveCashbox(ctx, nil, tenantID)
	require.NoError(t, err)
	assert.Equal(t, second, got)
}

func TestLinkValidation(t *testing.T) {
	svc, env := setup(t)
	ctx := context.Background()
	account := insertAccount(t, env, "cash")

	_, err := svc.Link(ctx, tenantID, "savings", account)
	assert.True(t, errors.Is(err, accountlinkdomain.ErrInvalidPurpose))

	_, err = svc.Link(ctx, tenantID, "product:", account)
	assert.True(t, errors.Is(err, accountlinkdomain.ErrInvalidPurpose))

	_, err = svc.Link(ctx, tenantID, accountlinkdomain.PurposeCashbox, 42)
	assert.True(t, errors.Is(err, accountlinkdomain.ErrInvalidAccount))
}
