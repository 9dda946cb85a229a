package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	shareoutdomain "github.com/smallbiznis/groupledger/internal/shareout/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() shareoutdomain.Repository {
	return &repo{}
}

func (r *repo) Find(ctx context.Context, db *gorm.DB, tenantID, allocationID snowflake.ID) (*shareoutdomain.Allocation, error) {
	var allocation shareoutdomain.Allocation
	err := db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, allocationID).
		Take(&allocation).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &allocation, nil
}

func (r *repo) ListByCycle(ctx context.Context, db *gorm.DB, tenantID, cycleID snowflake.ID) ([]shareoutdomain.Allocation, error) {
	var allocations []shareoutdomain.Allocation
	err := db.WithContext(ctx).
		Where("tenant_id = ? AND cycle_id = ?", tenantID, cycleID).
		Order("member_id ASC").
		Find(&allocations).Error
	return allocations, err
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, allocation *shareoutdomain.Allocation) error {
	return db.WithContext(ctx).Create(allocation).Error
}

func (r *repo) Recalculate(ctx context.Context, db *gorm.DB, allocation *shareoutdomain.Allocation) (bool, error) {
	result := db.WithContext(ctx).
		Model(&shareoutdomain.Allocation{}).
		Where("tenant_id = ? AND id = ? AND status <> ?", allocation.TenantID, allocation.ID, shareoutdomain.AllocationStatusPaid).
		Updates(map[string]any{
			"shares_contributed":       allocation.SharesContributed,
			"welfare_contributed":      allocation.WelfareContributed,
			"share_percentage":         allocation.SharePercentage,
			"share_value_payout":       allocation.ShareValuePayout,
			"profit_share":             allocation.ProfitShare,
			"welfare_refund":           allocation.WelfareRefund,
			"outstanding_loan_balance": allocation.OutstandingLoanBalance,
			"total_payout":             allocation.TotalPayout,
			"net_payout":               allocation.NetPayout,
			"status":                   shareoutdomain.AllocationStatusCalculated,
			"calculated_at":            allocation.CalculatedAt,
			"approved_at":              nil,
			"cancelled_at":             nil,
			"updated_at":               allocation.UpdatedAt,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repo) Transition(ctx context.Context, db *gorm.DB, tenantID, allocationID snowflake.ID, from, to shareoutdomain.AllocationStatus, at time.Time) (bool, error) {
	updates := map[string]any{"status": to, "updated_at": at}
	switch to {
	case shareoutdomain.AllocationStatusApproved:
		updates["approved_at"] = at
	case shareoutdomain.AllocationStatusPaid:
		updates["paid_at"] = at
	case shareoutdomain.AllocationStatusCancelled:
		updates["cancelled_at"] = at
	}
	result := db.WithContext(ctx).
		Model(&shareoutdomain.Allocation{}).
		Where("tenant_id = ? AND id = ? AND status = ?", tenantID, allocationID, from).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}
