package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	cycledomain "github.com/smallbiznis/groupledger/internal/cycle/domain"
	"github.com/smallbiznis/groupledger/internal/errs"
	"github.com/smallbiznis/groupledger/internal/events"
	"github.com/smallbiznis/groupledger/internal/observability/tracing"
	shareoutdomain "github.com/smallbiznis/groupledger/internal/shareout/domain"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// SettleCycle runs in two transactions. The claim locks the cycle and the
// cashbox, reconciles the cashbox, recomputes totals, gates on integrity and
// moves the cycle to share-out. The allocation step then writes one
// allocation per participant and completes the cycle. If the second step
// fails the cycle stays in share-out with last_error set, and
// ResumeSettlement retries it.
func (s *Service) SettleCycle(ctx context.Context, tenantID, cycleID snowflake.ID) (*shareoutdomain.SettlementResult, error) {
	if tenantID == 0 {
		return nil, shareoutdomain.ErrInvalidTenant
	}
	ctx, span := tracing.StartSpan(ctx, "shareout", "shareout.SettleCycle",
		attribute.String("tenant_id", tenantID.String()),
		attribute.String("cycle_id", cycleID.String()),
	)
	started := s.clock.Now()

	if err := s.claim(ctx, tenantID, cycleID); err != nil {
		s.metrics.ObserveSettlement(settlementOutcome(err), s.clock.Now().Sub(started))
		tracing.EndSpan(span, err)
		return nil, err
	}

	result, err := s.allocateAll(ctx, tenantID, cycleID)
	s.metrics.ObserveSettlement(settlementOutcome(err), s.clock.Now().Sub(started))
	tracing.EndSpan(span, err)
	return result, err
}

func (s *Service) ResumeSettlement(ctx context.Context, tenantID, cycleID snowflake.ID) (*shareoutdomain.SettlementResult, error) {
	if tenantID == 0 {
		return nil, shareoutdomain.ErrInvalidTenant
	}
	started := s.clock.Now()
	result, err := s.allocateAll(ctx, tenantID, cycleID)
	s.metrics.ObserveSettlement(settlementOutcome(err), s.clock.Now().Sub(started))
	return result, err
}

func (s *Service) claim(ctx context.Context, tenantID, cycleID snowflake.ID) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cycle, err := s.cycles.LockCycle(ctx, tx, tenantID, cycleID)
		if err != nil {
			return err
		}
		switch cycle.Status {
		case cycledomain.CycleStatusActive:
		case cycledomain.CycleStatusShareOutInProgress:
			return cycledomain.ErrSettlementInProgress
		default:
			return cycledomain.ErrCycleNotActive.WithField("status", string(cycle.Status))
		}
		now := s.clock.Now().UTC()
		if now.Before(cycle.EndDate) {
			return cycledomain.ErrWindowOpen.WithField("end_date", cycle.EndDate)
		}

		// Reconciling takes the cashbox row lock, which serialises a
		// tenant's settlements against each other and against approvals.
		cashboxID, err := s.links.ResolveCashbox(ctx, tx, tenantID)
		switch {
		case err == nil:
			if _, err := s.ledger.RecalculateBalanceTx(ctx, tx, tenantID, cashboxID); err != nil && !missingCashbox(err) {
				return err
			}
		case !missingCashbox(err):
			return err
		}

		if err := s.cycles.ApplyTotals(ctx, tx, cycle); err != nil {
			return err
		}
		problems, err := s.cycles.IntegrityProblems(ctx, tx, cycle, storedTotals(cycle))
		if err != nil {
			return err
		}
		if len(problems) > 0 {
			return cycledomain.ErrIntegrityFailed.WithProblems(problems)
		}
		return s.cycles.BeginShareOut(ctx, tx, cycle)
	})
	if err != nil {
		s.log.Warn("cycle settlement refused",
			zap.String("tenant_id", tenantID.String()),
			zap.String("cycle_id", cycleID.String()),
			zap.Error(err),
		)
		return err
	}
	return nil
}

func (s *Service) allocateAll(ctx context.Context, tenantID, cycleID snowflake.ID) (*shareoutdomain.SettlementResult, error) {
	result := &shareoutdomain.SettlementResult{TotalNetPayout: decimal.Zero}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cycle, err := s.cycles.LockCycle(ctx, tx, tenantID, cycleID)
		if err != nil {
			return err
		}
		if cycle.Status != cycledomain.CycleStatusShareOutInProgress {
			return cycledomain.ErrNotInShareOut.WithField("status", string(cycle.Status))
		}
		totals := storedTotals(cycle)

		participants, err := s.cycles.Participants(ctx, tx, tenantID, cycleID)
		if err != nil {
			return err
		}
		if err := checkFrozenShares(participants, totals); err != nil {
			return err
		}
		existing, err := s.repo.ListByCycle(ctx, tx, tenantID, cycleID)
		if err != nil {
			return err
		}
		byMember := make(map[snowflake.ID]shareoutdomain.Allocation, len(existing))
		for _, allocation := range existing {
			byMember[allocation.MemberID] = allocation
		}

		now := s.clock.Now().UTC()
		for _, member := range participants {
			prior, found := byMember[member.MemberID]
			if found && prior.Status == shareoutdomain.AllocationStatusPaid {
				result.SkippedPaid++
				result.Allocations = append(result.Allocations, prior)
				result.TotalNetPayout = result.TotalNetPayout.Add(prior.NetPayout)
				continue
			}

			allocation, err := s.allocate(ctx, tx, cycle, totals, member, now)
			if err != nil {
				return err
			}
			if found {
				allocation.ID = prior.ID
				allocation.CreatedAt = prior.CreatedAt
				ok, err := s.repo.Recalculate(ctx, tx, allocation)
				if err != nil {
					return err
				}
				if !ok {
					return shareoutdomain.ErrConcurrentUpdate
				}
			} else {
				allocation.ID = s.genID.Generate()
				if err := s.repo.Insert(ctx, tx, allocation); err != nil {
					return err
				}
			}
			result.Allocations = append(result.Allocations, *allocation)
			result.TotalNetPayout = result.TotalNetPayout.Add(allocation.NetPayout)
		}

		if err := s.cycles.CompleteShareOut(ctx, tx, cycle); err != nil {
			return err
		}
		result.Cycle = cycle

		payload := events.CycleSettledPayload{
			CycleID:          cycle.ID.String(),
			Allocations:      len(result.Allocations),
			TotalAvailable:   cycle.TotalAvailableForShareOut.StringFixed(2),
			TotalNetPayout:   result.TotalNetPayout.StringFixed(2),
			SkippedPaidCount: result.SkippedPaid,
		}
		return s.outbox.PublishTx(ctx, tx, events.Event{
			TenantID:  tenantID,
			Type:      events.EventCycleSettled,
			Payload:   payload.ToMap(),
			DedupeKey: events.EventCycleSettled + ":" + cycle.ID.String(),
		})
	})
	if err != nil {
		if !errors.Is(err, cycledomain.ErrNotInShareOut) && !errors.Is(err, cycledomain.ErrCycleNotFound) {
			if recordErr := s.cycles.RecordSettlementFailure(ctx, tenantID, cycleID, err); recordErr != nil {
				s.log.Error("record settlement failure", zap.Error(recordErr))
			}
		}
		s.log.Error("cycle allocation failed",
			zap.String("tenant_id", tenantID.String()),
			zap.String("cycle_id", cycleID.String()),
			zap.Error(err),
		)
		return nil, err
	}

	s.log.Info("cycle settled",
		zap.String("tenant_id", tenantID.String()),
		zap.String("cycle_id", cycleID.String()),
		zap.Int("allocations", len(result.Allocations)),
		zap.String("total_net_payout", result.TotalNetPayout.StringFixed(2)),
	)
	return result, nil
}

func settlementOutcome(err error) string {
	switch {
	case err == nil:
		return "completed"
	case errs.IsKind(err, errs.KindIntegrity):
		return "integrity_failed"
	case errs.IsKind(err, errs.KindConflict):
		return "conflict"
	case errs.IsKind(err, errs.KindInvalidState):
		return "invalid_state"
	default:
		return "failed"
	}
}

// checkFrozenShares fails when the approved share contributions no longer add
// up to the total frozen at claim time.
func checkFrozenShares(participants []cycledomain.MemberContributions, totals cycledomain.Totals) error {
	sum := decimal.Zero
	for _, member := range participants {
		sum = sum.Add(member.Shares)
	}
	if sum.Equal(totals.Shares) {
		return nil
	}
	return cycledomain.ErrIntegrityFailed.WithProblems([]string{
		fmt.Sprintf("approved share contributions %s differ from frozen total %s", sum.StringFixed(2), totals.Shares.StringFixed(2)),
	})
}
