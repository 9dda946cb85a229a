package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	accountlinkdomain "github.com/smallbiznis/groupledger/internal/accountlink/domain"
	auditdomain "github.com/smallbiznis/groupledger/internal/audit/domain"
	"github.com/smallbiznis/groupledger/internal/clock"
	cycledomain "github.com/smallbiznis/groupledger/internal/cycle/domain"
	ledgerdomain "github.com/smallbiznis/groupledger/internal/ledger/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Repo       cycledomain.Repository
	Interest   cycledomain.InterestSource
	Links      accountlinkdomain.Resolver
	LedgerRepo ledgerdomain.Repository
	Audit      auditdomain.Sink
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	repo       cycledomain.Repository
	interest   cycledomain.InterestSource
	links      accountlinkdomain.Resolver
	ledgerRepo ledgerdomain.Repository
	audit      auditdomain.Sink
}

func NewService(p Params) cycledomain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("cycle.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		repo:       p.Repo,
		interest:   p.Interest,
		links:      p.Links,
		ledgerRepo: p.LedgerRepo,
		audit:      p.Audit,
	}
}

func (s *Service) Open(ctx context.Context, req cycledomain.OpenCycleRequest) (*cycledomain.Cycle, error) {
	if req.TenantID == 0 {
		return nil, cycledomain.ErrInvalidTenant
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, cycledomain.ErrInvalidName
	}
	start := req.StartDate.UTC()
	end := req.EndDate.UTC()
	if start.IsZero() || !end.After(start) {
		return nil, cycledomain.ErrInvalidDates
	}

	now := s.clock.Now().UTC()
	cycle := &cycledomain.Cycle{
		ID:                        s.genID.Generate(),
		TenantID:                  req.TenantID,
		Name:                      name,
		StartDate:                 start,
		EndDate:                   end,
		Status:                    cycledomain.CycleStatusActive,
		TotalSharesContributed:    decimal.Zero,
		TotalWelfareContributed:   decimal.Zero,
		TotalPenaltiesCollected:   decimal.Zero,
		TotalLoanInterestEarned:   decimal.Zero,
		TotalAvailableForShareOut: decimal.Zero,
		Notes:                     strings.TrimSpace(req.Notes),
		CreatedAt:                 now,
		UpdatedAt:                 now,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := s.repo.LockActive(ctx, tx, req.TenantID)
		if err != nil {
			return err
		}
		if existing != nil {
			return cycledomain.ErrActiveCycleExists.WithField("cycle_id", existing.ID.String())
		}
		if err := s.repo.Insert(ctx, tx, cycle); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return cycledomain.ErrActiveCycleExists
			}
			return err
		}
		return s.auditCycle(ctx, tx, cycle, "cycle.open", nil)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("cycle opened",
		zap.String("tenant_id", cycle.TenantID.String()),
		zap.String("cycle_id", cycle.ID.String()),
		zap.Time("start_date", cycle.StartDate),
		zap.Time("end_date", cycle.EndDate),
	)
	return cycle, nil
}

// CloseWindow moves the end date of an active cycle to at. The status stays
// active; the cycle becomes ready for share-out once the clock reaches at.
func (s *Service) CloseWindow(ctx context.Context, tenantID, cycleID snowflake.ID, at time.Time) (*cycledomain.Cycle, error) {
	if tenantID == 0 {
		return nil, cycledomain.ErrInvalidTenant
	}
	at = at.UTC()

	var cycle *cycledomain.Cycle
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		cycle, err = s.LockCycle(ctx, tx, tenantID, cycleID)
		if err != nil {
			return err
		}
		if cycle.Status != cycledomain.CycleStatusActive {
			return cycledomain.ErrCycleNotActive.WithField("status", string(cycle.Status))
		}
		if at.Before(cycle.StartDate) || !at.Before(cycle.EndDate) {
			return cycledomain.ErrInvalidCloseDate.
				WithField("start_date", cycle.StartDate).
				WithField("end_date", cycle.EndDate)
		}
		before := cycleSnapshot(cycle)
		now := s.clock.Now().UTC()
		if err := s.repo.UpdateEndDate(ctx, tx, tenantID, cycleID, at, now); err != nil {
			return err
		}
		cycle.EndDate = at
		cycle.UpdatedAt = now
		return s.auditCycle(ctx, tx, cycle, "cycle.close_window", before)
	})
	if err != nil {
		return nil, err
	}
	return cycle, nil
}

func (s *Service) GetCycle(ctx context.Context, tenantID, cycleID snowflake.ID) (*cycledomain.Cycle, error) {
	if tenantID == 0 {
		return nil, cycledomain.ErrInvalidTenant
	}
	cycle, err := s.repo.Find(ctx, s.db, tenantID, cycleID)
	if err != nil {
		return nil, err
	}
	if cycle == nil {
		return nil, cycledomain.ErrCycleNotFound
	}
	return cycle, nil
}

func (s *Service) GetPhase(ctx context.Context, tenantID, cycleID snowflake.ID) (cycledomain.Phase, error) {
	cycle, err := s.GetCycle(ctx, tenantID, cycleID)
	if err != nil {
		return "", err
	}
	return cycledomain.DerivePhase(*cycle, s.clock.Now().UTC()), nil
}

func (s *Service) ListCycles(ctx context.Context, tenantID snowflake.ID) ([]cycledomain.Cycle, error) {
	if tenantID == 0 {
		return nil, cycledomain.ErrInvalidTenant
	}
	return s.repo.List(ctx, s.db, tenantID)
}

func (s *Service) ListActive(ctx context.Context) ([]cycledomain.Cycle, error) {
	return s.repo.ListByStatus(ctx, s.db, cycledomain.CycleStatusActive)
}

// CalculateTotals recomputes and stores the totals of an active cycle or one
// in share-out. Settled cycles keep the totals they were paid out against.
func (s *Service) CalculateTotals(ctx context.Context, tenantID, cycleID snowflake.ID) (*cycledomain.Cycle, error) {
	if tenantID == 0 {
		return nil, cycledomain.ErrInvalidTenant
	}
	var cycle *cycledomain.Cycle
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		cycle, err = s.LockCycle(ctx, tx, tenantID, cycleID)
		if err != nil {
			return err
		}
		switch cycle.Status {
		case cycledomain.CycleStatusCompleted, cycledomain.CycleStatusArchived:
			return cycledomain.ErrTotalsFrozen.WithField("status", string(cycle.Status))
		}
		return s.ApplyTotals(ctx, tx, cycle)
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("cycle totals calculated",
		zap.String("tenant_id", tenantID.String()),
		zap.String("cycle_id", cycleID.String()),
		zap.String("available", cycle.TotalAvailableForShareOut.StringFixed(2)),
	)
	return cycle, nil
}

// ValidateFinancialIntegrity reports every reason the cycle could not be paid
// out now. An empty list means settlement would pass the integrity gate.
func (s *Service) ValidateFinancialIntegrity(ctx context.Context, tenantID, cycleID snowflake.ID) ([]string, error) {
	cycle, err := s.GetCycle(ctx, tenantID, cycleID)
	if err != nil {
		return nil, err
	}
	totals, err := s.ComputeTotals(ctx, s.db, cycle)
	if err != nil {
		return nil, err
	}
	return s.IntegrityProblems(ctx, s.db, cycle, totals)
}

func (s *Service) Archive(ctx context.Context, tenantID, cycleID snowflake.ID) (*cycledomain.Cycle, error) {
	if tenantID == 0 {
		return nil, cycledomain.ErrInvalidTenant
	}
	var cycle *cycledomain.Cycle
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		cycle, err = s.LockCycle(ctx, tx, tenantID, cycleID)
		if err != nil {
			return err
		}
		if cycle.Status != cycledomain.CycleStatusCompleted {
			return cycledomain.ErrCycleNotCompleted.WithField("status", string(cycle.Status))
		}
		before := cycleSnapshot(cycle)
		now := s.clock.Now().UTC()
		if err := s.transition(ctx, tx, cycle, cycledomain.CycleStatusArchived, map[string]any{
			"archived_at": now,
			"updated_at":  now,
		}); err != nil {
			return err
		}
		cycle.ArchivedAt = &now
		cycle.UpdatedAt = now
		return s.auditCycle(ctx, tx, cycle, "cycle.archive", before)
	})
	if err != nil {
		return nil, err
	}
	return cycle, nil
}

func (s *Service) LockCycle(ctx context.Context, tx *gorm.DB, tenantID, cycleID snowflake.ID) (*cycledomain.Cycle, error) {
	cycle, err := s.repo.Lock(ctx, tx, tenantID, cycleID)
	if err != nil {
		return nil, err
	}
	if cycle == nil {
		return nil, cycledomain.ErrCycleNotFound
	}
	return cycle, nil
}

// ComputeTotals sums approved contributions by type and the loan interest
// earned inside the cycle window. Nothing is written.
func (s *Service) ComputeTotals(ctx context.Context, db *gorm.DB, cycle *cycledomain.Cycle) (cycledomain.Totals, error) {
	sums, err := s.repo.SumApprovedByType(ctx, db, cycle.TenantID, cycle.ID)
	if err != nil {
		return cycledomain.Totals{}, err
	}
	interest, err := s.interest.CycleInterest(ctx, db, cycle.TenantID, cycle.StartDate, cycle.EndDate)
	if err != nil {
		return cycledomain.Totals{}, err
	}
	return cycledomain.NewTotals(
		sums[cycledomain.ContributionTypeSharePurchase],
		sums[cycledomain.ContributionTypeWelfare],
		sums[cycledomain.ContributionTypePenalty],
		interest,
	), nil
}

// ApplyTotals recomputes the totals of a locked cycle and writes them.
func (s *Service) ApplyTotals(ctx context.Context, tx *gorm.DB, cycle *cycledomain.Cycle) error {
	totals, err := s.ComputeTotals(ctx, tx, cycle)
	if err != nil {
		return err
	}
	cycle.Apply(totals, s.clock.Now().UTC())
	return s.repo.UpdateTotals(ctx, tx, cycle)
}

// IntegrityProblems lists every failed check rather than stopping at the
// first. The cashbox is read through db, so inside a settlement transaction it
// reflects the balance recalculated under lock.
func (s *Service) IntegrityProblems(ctx context.Context, db *gorm.DB, cycle *cycledomain.Cycle, totals cycledomain.Totals) ([]string, error) {
	problems := []string{}
	if !totals.Shares.IsPositive() {
		problems = append(problems, "cycle has no approved share contributions")
	}
	if !totals.Available.IsPositive() {
		problems = append(problems, fmt.Sprintf("total available for share-out is %s", totals.Available.StringFixed(2)))
	}

	participants, err := s.repo.ApprovedByMember(ctx, db, cycle.TenantID, cycle.ID, nil)
	if err != nil {
		return nil, err
	}
	if len(participants) == 0 {
		problems = append(problems, "cycle has no participating members")
	}

	cashboxID, err := s.links.ResolveCashbox(ctx, db, cycle.TenantID)
	switch {
	case errors.Is(err, accountlinkdomain.ErrLinkMissing):
		problems = append(problems, "cashbox ledger account is not configured")
		return problems, nil
	case err != nil:
		return nil, err
	}
	cashbox, err := s.ledgerRepo.FindAccount(ctx, db, cycle.TenantID, cashboxID)
	if err != nil {
		return nil, err
	}
	if cashbox == nil {
		problems = append(problems, fmt.Sprintf("cashbox ledger account %s does not exist", cashboxID))
		return problems, nil
	}
	if available := cashbox.AvailableBalance(); available.LessThan(totals.Available) {
		problems = append(problems, fmt.Sprintf(
			"cashbox balance %s is below total available for share-out %s",
			available.StringFixed(2),
			totals.Available.StringFixed(2),
		))
	}
	return problems, nil
}

func (s *Service) Participants(ctx context.Context, db *gorm.DB, tenantID, cycleID snowflake.ID) ([]cycledomain.MemberContributions, error) {
	return s.repo.ApprovedByMember(ctx, db, tenantID, cycleID, nil)
}

// MemberContributions returns zero sums for a member with no approved
// share or welfare contributions.
func (s *Service) MemberContributions(ctx context.Context, db *gorm.DB, tenantID, cycleID, memberID snowflake.ID) (cycledomain.MemberContributions, error) {
	rows, err := s.repo.ApprovedByMember(ctx, db, tenantID, cycleID, &memberID)
	if err != nil {
		return cycledomain.MemberContributions{}, err
	}
	if len(rows) == 0 {
		return cycledomain.MemberContributions{MemberID: memberID, Shares: decimal.Zero, Welfare: decimal.Zero}, nil
	}
	return rows[0], nil
}

func (s *Service) BeginShareOut(ctx context.Context, tx *gorm.DB, cycle *cycledomain.Cycle) error {
	before := cycleSnapshot(cycle)
	now := s.clock.Now().UTC()
	err := s.transition(ctx, tx, cycle, cycledomain.CycleStatusShareOutInProgress, map[string]any{
		"share_out_started_at": now,
		"last_error":           nil,
		"last_error_at":        nil,
		"updated_at":           now,
	})
	if errors.Is(err, cycledomain.ErrCycleNotActive) {
		return cycledomain.ErrSettlementInProgress
	}
	if err != nil {
		return err
	}
	cycle.ShareOutStartedAt = &now
	cycle.LastError = nil
	cycle.LastErrorAt = nil
	cycle.UpdatedAt = now
	return s.auditCycle(ctx, tx, cycle, "cycle.share_out_start", before)
}

func (s *Service) CompleteShareOut(ctx context.Context, tx *gorm.DB, cycle *cycledomain.Cycle) error {
	before := cycleSnapshot(cycle)
	now := s.clock.Now().UTC()
	if err := s.transition(ctx, tx, cycle, cycledomain.CycleStatusCompleted, map[string]any{
		"completed_at":  now,
		"last_error":    nil,
		"last_error_at": nil,
		"updated_at":    now,
	}); err != nil {
		return err
	}
	cycle.CompletedAt = &now
	cycle.LastError = nil
	cycle.LastErrorAt = nil
	cycle.UpdatedAt = now
	return s.auditCycle(ctx, tx, cycle, "cycle.complete", before)
}

// RecordSettlementFailure stores cause on the cycle in its own transaction so
// it survives the rollback of the failed settlement step.
func (s *Service) RecordSettlementFailure(ctx context.Context, tenantID, cycleID snowflake.ID, cause error) error {
	if cause == nil {
		return nil
	}
	now := s.clock.Now().UTC()
	message := cause.Error()
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cycle, err := s.repo.Find(ctx, tx, tenantID, cycleID)
		if err != nil {
			return err
		}
		if cycle == nil {
			return cycledomain.ErrCycleNotFound
		}
		if err := s.repo.RecordError(ctx, tx, tenantID, cycleID, message, now); err != nil {
			return err
		}
		cycle.LastError = &message
		cycle.LastErrorAt = &now
		return s.auditCycle(ctx, tx, cycle, "cycle.settlement_failed", nil)
	})
}

// transition applies the status change only from the status the caller
// observed on the locked row.
func (s *Service) transition(ctx context.Context, tx *gorm.DB, cycle *cycledomain.Cycle, to cycledomain.CycleStatus, fields map[string]any) error {
	from := cycle.Status
	ok, err := s.repo.Transition(ctx, tx, cycle.TenantID, cycle.ID, from, to, fields)
	if err != nil {
		return err
	}
	if !ok {
		if from == cycledomain.CycleStatusActive {
			return cycledomain.ErrCycleNotActive
		}
		return cycledomain.ErrSettlementInProgress
	}
	cycle.Status = to
	return nil
}

func (s *Service) auditCycle(ctx context.Context, tx *gorm.DB, cycle *cycledomain.Cycle, action string, before map[string]any) error {
	return s.audit.AuditLog(ctx, tx, auditdomain.Event{
		TenantID:   cycle.TenantID,
		EntityKind: auditdomain.EntityKindCycle,
		EntityID:   cycle.ID,
		Action:     action,
		Before:     before,
		After:      cycleSnapshot(cycle),
	})
}

func cycleSnapshot(cycle *cycledomain.Cycle) map[string]any {
	snapshot := map[string]any{
		"status":                       string(cycle.Status),
		"start_date":                   cycle.StartDate.Format(time.RFC3339),
		"end_date":                     cycle.EndDate.Format(time.RFC3339),
		"total_available_for_shareout": cycle.TotalAvailableForShareOut.StringFixed(2),
	}
	if cycle.LastError != nil {
		snapshot["last_error"] = *cycle.LastError
	}
	return snapshot
}
