package service

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	accountlinkdomain "github.com/smallbiznis/groupledger/internal/accountlink/domain"
	auditdomain "github.com/smallbiznis/groupledger/internal/audit/domain"
	"github.com/smallbiznis/groupledger/internal/clock"
	cycledomain "github.com/smallbiznis/groupledger/internal/cycle/domain"
	"github.com/smallbiznis/groupledger/internal/events"
	ledgerdomain "github.com/smallbiznis/groupledger/internal/ledger/domain"
	loandomain "github.com/smallbiznis/groupledger/internal/loan/domain"
	"github.com/smallbiznis/groupledger/internal/observability/metrics"
	shareoutdomain "github.com/smallbiznis/groupledger/internal/shareout/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Repo    shareoutdomain.Repository
	Cycles  cycledomain.Service
	Ledger  ledgerdomain.Service
	Links   accountlinkdomain.Resolver
	Loans   loandomain.Repository
	Audit   auditdomain.Sink
	Outbox  *events.Outbox
	Metrics *metrics.Metrics `optional:"true"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	clock   clock.Clock
	repo    shareoutdomain.Repository
	cycles  cycledomain.Service
	ledger  ledgerdomain.Service
	links   accountlinkdomain.Resolver
	loans   loandomain.Repository
	audit   auditdomain.Sink
	outbox  *events.Outbox
	metrics *metrics.Metrics
}

func NewService(p Params) shareoutdomain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("shareout.service"),
		genID:   p.GenID,
		clock:   p.Clock,
		repo:    p.Repo,
		cycles:  p.Cycles,
		ledger:  p.Ledger,
		links:   p.Links,
		loans:   p.Loans,
		audit:   p.Audit,
		outbox:  p.Outbox,
		metrics: p.Metrics,
	}
}

// CalculateForMember computes a member's allocation without writing it. An
// active cycle is measured against freshly computed totals; a cycle in or
// past share-out uses the totals it was settled against.
func (s *Service) CalculateForMember(ctx context.Context, tenantID, cycleID, memberID snowflake.ID) (*shareoutdomain.Allocation, error) {
	if tenantID == 0 {
		return nil, shareoutdomain.ErrInvalidTenant
	}
	if memberID == 0 {
		return nil, shareoutdomain.ErrInvalidMember
	}
	cycle, err := s.cycles.GetCycle(ctx, tenantID, cycleID)
	if err != nil {
		return nil, err
	}

	totals := storedTotals(cycle)
	if cycle.Status == cycledomain.CycleStatusActive {
		totals, err = s.cycles.ComputeTotals(ctx, s.db, cycle)
		if err != nil {
			return nil, err
		}
	}

	member, err := s.cycles.MemberContributions(ctx, s.db, tenantID, cycleID, memberID)
	if err != nil {
		return nil, err
	}
	allocation, err := s.allocate(ctx, s.db, cycle, totals, member, s.clock.Now().UTC())
	if err != nil {
		return nil, err
	}
	return allocation, nil
}

func (s *Service) allocate(ctx context.Context, db *gorm.DB, cycle *cycledomain.Cycle, totals cycledomain.Totals, member cycledomain.MemberContributions, now time.Time) (*shareoutdomain.Allocation, error) {
	outstanding, err := s.outstandingLoans(ctx, db, cycle.TenantID, member.MemberID)
	if err != nil {
		return nil, err
	}
	amounts := shareoutdomain.Compute(shareoutdomain.AllocationInput{
		MemberShares:     member.Shares,
		MemberWelfare:    member.Welfare,
		CycleShares:      totals.Shares,
		CycleInterest:    totals.Interest,
		OutstandingLoans: outstanding,
	})
	allocation := &shareoutdomain.Allocation{
		TenantID:           cycle.TenantID,
		CycleID:            cycle.ID,
		MemberID:           member.MemberID,
		SharesContributed:  member.Shares,
		WelfareContributed: member.Welfare,
		Status:             shareoutdomain.AllocationStatusCalculated,
		CalculatedAt:       &now,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	allocation.Apply(amounts)
	return allocation, nil
}

func (s *Service) outstandingLoans(ctx context.Context, db *gorm.DB, tenantID, memberID snowflake.ID) (decimal.Decimal, error) {
	loans, err := s.loans.ListOutstandingForMember(ctx, db, tenantID, memberID)
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, loan := range loans {
		total = total.Add(loan.Outstanding())
	}
	return total.Round(2), nil
}

func storedTotals(cycle *cycledomain.Cycle) cycledomain.Totals {
	return cycledomain.NewTotals(
		cycle.TotalSharesContributed,
		cycle.TotalWelfareContributed,
		cycle.TotalPenaltiesCollected,
		cycle.TotalLoanInterestEarned,
	)
}

func (s *Service) ListAllocations(ctx context.Context, tenantID, cycleID snowflake.ID) ([]shareoutdomain.Allocation, error) {
	if _, err := s.cycles.GetCycle(ctx, tenantID, cycleID); err != nil {
		return nil, err
	}
	return s.repo.ListByCycle(ctx, s.db, tenantID, cycleID)
}

func (s *Service) ApproveAllocation(ctx context.Context, tenantID, allocationID snowflake.ID) (*shareoutdomain.Allocation, error) {
	return s.transition(ctx, tenantID, allocationID, shareoutdomain.AllocationStatusApproved)
}

// MarkPaid records the external payout. A second attempt fails with a
// conflict so the member is never paid twice.
func (s *Service) MarkPaid(ctx context.Context, tenantID, allocationID snowflake.ID) (*shareoutdomain.Allocation, error) {
	return s.transition(ctx, tenantID, allocationID, shareoutdomain.AllocationStatusPaid)
}

func (s *Service) CancelAllocation(ctx context.Context, tenantID, allocationID snowflake.ID) (*shareoutdomain.Allocation, error) {
	return s.transition(ctx, tenantID, allocationID, shareoutdomain.AllocationStatusCancelled)
}

func (s *Service) transition(ctx context.Context, tenantID, allocationID snowflake.ID, target shareoutdomain.AllocationStatus) (*shareoutdomain.Allocation, error) {
	if tenantID == 0 {
		return nil, shareoutdomain.ErrInvalidTenant
	}
	var allocation *shareoutdomain.Allocation
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		allocation, err = s.repo.Find(ctx, tx, tenantID, allocationID)
		if err != nil {
			return err
		}
		if allocation == nil {
			return shareoutdomain.ErrAllocationNotFound
		}
		from := allocation.Status
		if err := shareoutdomain.ValidateTransition(from, target); err != nil {
			return err
		}
		before := allocationSnapshot(allocation)
		now := s.clock.Now().UTC()
		ok, err := s.repo.Transition(ctx, tx, tenantID, allocationID, from, target, now)
		if err != nil {
			return err
		}
		if !ok {
			if target == shareoutdomain.AllocationStatusPaid {
				return shareoutdomain.ErrAlreadyPaid
			}
			return shareoutdomain.ErrConcurrentUpdate
		}
		stampTransition(allocation, target, now)
		return s.audit.AuditLog(ctx, tx, auditdomain.Event{
			TenantID:   tenantID,
			EntityKind: auditdomain.EntityKindAllocation,
			EntityID:   allocationID,
			Action:     "shareout_allocation." + string(target),
			Before:     before,
			After:      allocationSnapshot(allocation),
		})
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("allocation transitioned",
		zap.String("tenant_id", tenantID.String()),
		zap.String("allocation_id", allocationID.String()),
		zap.String("status", string(target)),
	)
	return allocation, nil
}

func stampTransition(allocation *shareoutdomain.Allocation, target shareoutdomain.AllocationStatus, at time.Time) {
	allocation.Status = target
	allocation.UpdatedAt = at
	switch target {
	case shareoutdomain.AllocationStatusApproved:
		allocation.ApprovedAt = &at
	case shareoutdomain.AllocationStatusPaid:
		allocation.PaidAt = &at
	case shareoutdomain.AllocationStatusCancelled:
		allocation.CancelledAt = &at
	}
}

func allocationSnapshot(allocation *shareoutdomain.Allocation) map[string]any {
	return map[string]any{
		"status":       string(allocation.Status),
		"member_id":    allocation.MemberID.String(),
		"total_payout": allocation.TotalPayout.StringFixed(2),
		"net_payout":   allocation.NetPayout.StringFixed(2),
	}
}

// missingCashbox reports errors that the integrity check turns into problems.
func missingCashbox(err error) bool {
	return errors.Is(err, accountlinkdomain.ErrLinkMissing) || errors.Is(err, ledgerdomain.ErrAccountNotFound)
}
