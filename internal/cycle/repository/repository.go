package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	cycledomain "github.com/smallbiznis/groupledger/internal/cycle/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() cycledomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, cycle *cycledomain.Cycle) error {
	return db.WithContext(ctx).Create(cycle).Error
}

func (r *repo) Find(ctx context.Context, db *gorm.DB, tenantID, cycleID snowflake.ID) (*cycledomain.Cycle, error) {
	return take(db.WithContext(ctx).Where("tenant_id = ? AND id = ?", tenantID, cycleID))
}

func (r *repo) Lock(ctx context.Context, db *gorm.DB, tenantID, cycleID snowflake.ID) (*cycledomain.Cycle, error) {
	return take(db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("tenant_id = ? AND id = ?", tenantID, cycleID))
}

func (r *repo) LockActive(ctx context.Context, db *gorm.DB, tenantID snowflake.ID) (*cycledomain.Cycle, error) {
	return take(db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("tenant_id = ? AND status = ?", tenantID, cycledomain.CycleStatusActive))
}

func take(query *gorm.DB) (*cycledomain.Cycle, error) {
	var cycle cycledomain.Cycle
	err := query.Take(&cycle).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cycle, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, tenantID snowflake.ID) ([]cycledomain.Cycle, error) {
	var cycles []cycledomain.Cycle
	err := db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("start_date DESC, id DESC").
		Find(&cycles).Error
	return cycles, err
}

func (r *repo) ListByStatus(ctx context.Context, db *gorm.DB, status cycledomain.CycleStatus) ([]cycledomain.Cycle, error) {
	var cycles []cycledomain.Cycle
	err := db.WithContext(ctx).
		Where("status = ?", status).
		Order("tenant_id ASC, id ASC").
		Find(&cycles).Error
	return cycles, err
}

func (r *repo) UpdateTotals(ctx context.Context, db *gorm.DB, cycle *cycledomain.Cycle) error {
	return db.WithContext(ctx).
		Model(&cycledomain.Cycle{}).
		Where("tenant_id = ? AND id = ?", cycle.TenantID, cycle.ID).
		Updates(map[string]any{
			"total_shares_contributed":     cycle.TotalSharesContributed,
			"total_welfare_contributed":    cycle.TotalWelfareContributed,
			"total_penalties_collected":    cycle.TotalPenaltiesCollected,
			"total_loan_interest_earned":   cycle.TotalLoanInterestEarned,
			"total_available_for_shareout": cycle.TotalAvailableForShareOut,
			"totals_calculated_at":         cycle.TotalsCalculatedAt,
			"updated_at":                   cycle.UpdatedAt,
		}).Error
}

func (r *repo) UpdateEndDate(ctx context.Context, db *gorm.DB, tenantID, cycleID snowflake.ID, end, at time.Time) error {
	return db.WithContext(ctx).
		Model(&cycledomain.Cycle{}).
		Where("tenant_id = ? AND id = ?", tenantID, cycleID).
		Updates(map[string]any{"end_date": end, "updated_at": at}).Error
}

func (r *repo) Transition(ctx context.Context, db *gorm.DB, tenantID, cycleID snowflake.ID, from, to cycledomain.CycleStatus, fields map[string]any) (bool, error) {
	updates := map[string]any{"status": to}
	for key, value := range fields {
		updates[key] = value
	}
	result := db.WithContext(ctx).
		Model(&cycledomain.Cycle{}).
		Where("tenant_id = ? AND id = ? AND status = ?", tenantID, cycleID, from).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repo) RecordError(ctx context.Context, db *gorm.DB, tenantID, cycleID snowflake.ID, message string, at time.Time) error {
	return db.WithContext(ctx).
		Model(&cycledomain.Cycle{}).
		Where("tenant_id = ? AND id = ?", tenantID, cycleID).
		Updates(map[string]any{"last_error": message, "last_error_at": at, "updated_at": at}).Error
}

func (r *repo) InsertContribution(ctx context.Context, db *gorm.DB, contribution *cycledomain.Contribution) error {
	return db.WithContext(ctx).Create(contribution).Error
}

func (r *repo) FindContribution(ctx context.Context, db *gorm.DB, tenantID, contributionID snowflake.ID) (*cycledomain.Contribution, error) {
	var contribution cycledomain.Contribution
	err := db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, contributionID).
		Take(&contribution).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &contribution, nil
}

func (r *repo) ApproveContribution(ctx context.Context, db *gorm.DB, tenantID, contributionID snowflake.ID) (bool, error) {
	result := db.WithContext(ctx).
		Model(&cycledomain.Contribution{}).
		Where("tenant_id = ? AND id = ? AND status = ?", tenantID, contributionID, cycledomain.ContributionStatusPending).
		Update("status", cycledomain.ContributionStatusApproved)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

type typeTotal struct {
	Type  cycledomain.ContributionType
	Total decimal.Decimal
}

func (r *repo) SumApprovedByType(ctx context.Context, db *gorm.DB, tenantID, cycleID snowflake.ID) (map[cycledomain.ContributionType]decimal.Decimal, error) {
	var rows []typeTotal
	err := db.WithContext(ctx).Raw(
		`SELECT type, COALESCE(SUM(amount), 0) AS total
		 FROM group_transactions
		 WHERE tenant_id = ? AND cycle_id = ? AND status = ?
		 GROUP BY type`,
		tenantID,
		cycleID,
		cycledomain.ContributionStatusApproved,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	totals := make(map[cycledomain.ContributionType]decimal.Decimal, len(rows))
	for _, row := range rows {
		totals[row.Type] = row.Total.Round(2)
	}
	return totals, nil
}

type memberRow struct {
	MemberID snowflake.ID
	Shares   decimal.Decimal
	Welfare  decimal.Decimal
}

func (r *repo) ApprovedByMember(ctx context.Context, db *gorm.DB, tenantID, cycleID snowflake.ID, memberID *snowflake.ID) ([]cycledomain.MemberContributions, error) {
	query := `SELECT member_id,
	        COALESCE(SUM(CASE WHEN type = ? THEN amount ELSE 0 END), 0) AS shares,
	        COALESCE(SUM(CASE WHEN type = ? THEN amount ELSE 0 END), 0) AS welfare
	 FROM group_transactions
	 WHERE tenant_id = ? AND cycle_id = ? AND status = ? AND type IN (?, ?)`
	args := []any{
		cycledomain.ContributionTypeSharePurchase,
		cycledomain.ContributionTypeWelfare,
		tenantID,
		cycleID,
		cycledomain.ContributionStatusApproved,
		cycledomain.ContributionTypeSharePurchase,
		cycledomain.ContributionTypeWelfare,
	}
	if memberID != nil {
		query += ` AND member_id = ?`
		args = append(args, *memberID)
	}
	query += ` GROUP BY member_id ORDER BY member_id ASC`

	var rows []memberRow
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]cycledomain.MemberContributions, 0, len(rows))
	for _, row := range rows {
		out = append(out, cycledomain.MemberContributions{
			MemberID: row.MemberID,
			Shares:   row.Shares.Round(2),
			Welfare:  row.Welfare.Round(2),
		})
	}
	return out, nil
}
