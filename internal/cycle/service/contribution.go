package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	cycledomain "github.com/smallbiznis/groupledger/internal/cycle/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// RecordContribution accepts contributions only while the cycle is in its
// active phase.
func (s *Service) RecordContribution(ctx context.Context, req cycledomain.RecordContributionRequest) (*cycledomain.Contribution, error) {
	if req.TenantID == 0 {
		return nil, cycledomain.ErrInvalidTenant
	}
	if req.MemberID == 0 {
		return nil, cycledomain.ErrInvalidMember
	}
	if !cycledomain.ValidContributionType(req.Type) {
		return nil, cycledomain.ErrInvalidContributionType.WithField("type", string(req.Type))
	}
	amount := req.Amount.Round(2)
	if !amount.GreaterThan(decimal.Zero) {
		return nil, cycledomain.ErrInvalidAmount
	}
	status := req.Status
	if status == "" {
		status = cycledomain.ContributionStatusPending
	}
	if status != cycledomain.ContributionStatusPending && status != cycledomain.ContributionStatusApproved {
		return nil, cycledomain.ErrInvalidContributionStatus.WithField("status", string(status))
	}

	now := s.clock.Now().UTC()
	txDate := req.TransactionDate.UTC()
	if txDate.IsZero() {
		txDate = now
	}

	var contribution *cycledomain.Contribution
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// The row lock orders this insert against a settlement claim.
		cycle, err := s.repo.Lock(ctx, tx, req.TenantID, req.CycleID)
		if err != nil {
			return err
		}
		if cycle == nil {
			return cycledomain.ErrCycleNotFound
		}
		if phase := cycledomain.DerivePhase(*cycle, now); phase != cycledomain.PhaseActive {
			return cycledomain.ErrContributionWindowClosed.WithField("phase", string(phase))
		}
		if txDate.Before(cycle.StartDate) || !txDate.Before(cycle.EndDate) {
			return cycledomain.ErrInvalidContributionDate
		}

		cycleID := cycle.ID
		contribution = &cycledomain.Contribution{
			ID:              s.genID.Generate(),
			TenantID:        req.TenantID,
			CycleID:         &cycleID,
			MemberID:        req.MemberID,
			Type:            req.Type,
			Amount:          amount,
			Status:          status,
			TransactionDate: txDate,
			CreatedAt:       now,
		}
		return s.repo.InsertContribution(ctx, tx, contribution)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("contribution recorded",
		zap.String("tenant_id", contribution.TenantID.String()),
		zap.String("cycle_id", req.CycleID.String()),
		zap.String("member_id", contribution.MemberID.String()),
		zap.String("type", string(contribution.Type)),
		zap.String("amount", contribution.Amount.StringFixed(2)),
	)
	return contribution, nil
}

// ApproveContribution is allowed until share-out starts.
func (s *Service) ApproveContribution(ctx context.Context, tenantID, contributionID snowflake.ID) (*cycledomain.Contribution, error) {
	if tenantID == 0 {
		return nil, cycledomain.ErrInvalidTenant
	}
	var contribution *cycledomain.Contribution
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		contribution, err = s.repo.FindContribution(ctx, tx, tenantID, contributionID)
		if err != nil {
			return err
		}
		if contribution == nil {
			return cycledomain.ErrContributionNotFound
		}
		if contribution.CycleID != nil {
			cycle, err := s.repo.Lock(ctx, tx, tenantID, *contribution.CycleID)
			if err != nil {
				return err
			}
			if cycle != nil && cycle.Status != cycledomain.CycleStatusActive {
				return cycledomain.ErrCycleNotActive.WithField("status", string(cycle.Status))
			}
		}
		ok, err := s.repo.ApproveContribution(ctx, tx, tenantID, contributionID)
		if err != nil {
			return err
		}
		if !ok {
			return cycledomain.ErrContributionNotPending
		}
		contribution.Status = cycledomain.ContributionStatusApproved
		return nil
	})
	if err != nil {
		return nil, err
	}
	return contribution, nil
}
