package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	loandomain "github.com/smallbiznis/groupledger/internal/loan/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() loandomain.Repository {
	return &repo{}
}

func (r *repo) ListReleasedBetween(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, from, to time.Time) ([]loandomain.LoanWithProduct, error) {
	var loans []loandomain.Loan
	err := db.WithContext(ctx).
		Where("tenant_id = ? AND is_internal = ? AND status IN ?", tenantID, true, loandomain.DisbursedStatuses).
		Where("release_date IS NOT NULL AND release_date >= ? AND release_date <= ?", from.UTC(), to.UTC()).
		Order("release_date ASC, id ASC").
		Find(&loans).Error
	if err != nil {
		return nil, err
	}
	if len(loans) == 0 {
		return nil, nil
	}

	productIDs := make([]snowflake.ID, 0, len(loans))
	seen := make(map[snowflake.ID]struct{}, len(loans))
	for _, loan := range loans {
		if _, ok := seen[loan.ProductID]; ok {
			continue
		}
		seen[loan.ProductID] = struct{}{}
		productIDs = append(productIDs, loan.ProductID)
	}

	var products []loandomain.LoanProduct
	if err := db.WithContext(ctx).
		Where("tenant_id = ? AND id IN ?", tenantID, productIDs).
		Find(&products).Error; err != nil {
		return nil, err
	}
	byID := make(map[snowflake.ID]*loandomain.LoanProduct, len(products))
	for i := range products {
		byID[products[i].ID] = &products[i]
	}

	out := make([]loandomain.LoanWithProduct, 0, len(loans))
	for _, loan := range loans {
		out = append(out, loandomain.LoanWithProduct{Loan: loan, Product: byID[loan.ProductID]})
	}
	return out, nil
}

func (r *repo) ListOutstandingForMember(ctx context.Context, db *gorm.DB, tenantID, memberID snowflake.ID) ([]loandomain.Loan, error) {
	var loans []loandomain.Loan
	err := db.WithContext(ctx).
		Where("tenant_id = ? AND member_id = ? AND status IN ?", tenantID, memberID, loandomain.OutstandingStatuses).
		Order("id ASC").
		Find(&loans).Error
	return loans, err
}
