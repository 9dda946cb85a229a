package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/groupledger/internal/audit/domain"
	ledgerdomain "github.com/smallbiznis/groupledger/internal/ledger/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// RecalculateBalance recomputes the balance from approved entries and repairs
// the cached value when it drifted beyond the configured tolerance.
func (s *Service) RecalculateBalance(ctx context.Context, tenantID, accountID snowflake.ID) (ledgerdomain.ReconcileResult, error) {
	var result ledgerdomain.ReconcileResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		result, err = s.RecalculateBalanceTx(ctx, tx, tenantID, accountID)
		return err
	})
	if err != nil {
		s.metrics.ObserveReconcile("failed", 0)
		return ledgerdomain.ReconcileResult{}, err
	}
	return result, nil
}

// RecalculateBalanceTx takes the account row lock before summing, so it sees
// an approval either fully applied or not at all.
func (s *Service) RecalculateBalanceTx(ctx context.Context, tx *gorm.DB, tenantID, accountID snowflake.ID) (ledgerdomain.ReconcileResult, error) {
	if tenantID == 0 {
		return ledgerdomain.ReconcileResult{}, ledgerdomain.ErrInvalidTenant
	}
	account, err := s.repo.LockAccount(ctx, tx, tenantID, accountID)
	if err != nil {
		return ledgerdomain.ReconcileResult{}, err
	}
	if account == nil {
		return ledgerdomain.ReconcileResult{}, ledgerdomain.ErrAccountNotFound
	}

	computed, err := s.repo.SumApproved(ctx, tx, tenantID, accountID)
	if err != nil {
		return ledgerdomain.ReconcileResult{}, err
	}

	result := ledgerdomain.ReconcileResult{
		TenantID:  tenantID,
		AccountID: accountID,
		Computed:  computed,
		Previous:  account.CurrentBalance.Round(2),
		Drift:     account.CurrentBalance.Sub(computed).Round(2),
	}
	if result.Drift.Abs().LessThanOrEqual(s.tolerance) {
		s.metrics.ObserveReconcile("clean", 0)
		return result, nil
	}

	now := s.clock.Now().UTC()
	if err := s.repo.UpdateBalance(ctx, tx, tenantID, accountID, computed, now); err != nil {
		return ledgerdomain.ReconcileResult{}, err
	}
	if err := s.audit.AuditLog(ctx, tx, auditdomain.Event{
		TenantID:   tenantID,
		EntityKind: auditdomain.EntityKindLedgerAccount,
		EntityID:   accountID,
		Action:     "ledger_account.balance_repair",
		Before:     map[string]any{"current_balance": result.Previous.StringFixed(2)},
		After: map[string]any{
			"current_balance": computed.StringFixed(2),
			"drift":           result.Drift.StringFixed(2),
		},
	}); err != nil {
		return ledgerdomain.ReconcileResult{}, err
	}
	result.Repaired = true

	drift, _ := result.Drift.Float64()
	s.metrics.ObserveReconcile("repaired", drift)
	s.log.Warn("ledger balance repaired",
		zap.String("tenant_id", tenantID.String()),
		zap.String("account_id", accountID.String()),
		zap.String("previous", result.Previous.StringFixed(2)),
		zap.String("computed", computed.StringFixed(2)),
	)
	return result, nil
}

func (s *Service) ReconcileTenant(ctx context.Context, tenantID snowflake.ID) (ledgerdomain.ReconcileSummary, error) {
	if tenantID == 0 {
		return ledgerdomain.ReconcileSummary{}, ledgerdomain.ErrInvalidTenant
	}
	return s.reconcile(ctx, &tenantID)
}

func (s *Service) ReconcileAll(ctx context.Context) (ledgerdomain.ReconcileSummary, error) {
	return s.reconcile(ctx, nil)
}

// reconcile runs each account in its own transaction; one failing account is
// counted and logged without stopping the sweep.
func (s *Service) reconcile(ctx context.Context, tenantID *snowflake.ID) (ledgerdomain.ReconcileSummary, error) {
	refs, err := s.repo.ListActiveAccountRefs(ctx, s.db, tenantID)
	if err != nil {
		return ledgerdomain.ReconcileSummary{}, err
	}

	summary := ledgerdomain.ReconcileSummary{Repaired: []ledgerdomain.ReconcileResult{}}
	for _, ref := range refs {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		result, err := s.RecalculateBalance(ctx, ref.TenantID, ref.ID)
		summary.Checked++
		if err != nil {
			summary.Failed++
			s.log.Error("reconcile account failed",
				zap.String("tenant_id", ref.TenantID.String()),
				zap.String("account_id", ref.ID.String()),
				zap.Error(err),
			)
			continue
		}
		if result.Repaired {
			summary.Repaired = append(summary.Repaired, result)
		}
	}
	return summary, nil
}
