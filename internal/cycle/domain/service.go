package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/groupledger/internal/errs"
	"gorm.io/gorm"
)

type OpenCycleRequest struct {
	TenantID  snowflake.ID
	Name      string
	StartDate time.Time
	EndDate   time.Time
	Notes     string
}

type RecordContributionRequest struct {
	TenantID        snowflake.ID
	CycleID         snowflake.ID
	MemberID        snowflake.ID
	Type            ContributionType
	Amount          decimal.Decimal
	TransactionDate time.Time
	// Status is pending when empty.
	Status ContributionStatus
}

// InterestSource computes the interest earned by a tenant's loans in a window.
type InterestSource interface {
	CycleInterest(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, start, end time.Time) (decimal.Decimal, error)
}

type Service interface {
	Open(ctx context.Context, req OpenCycleRequest) (*Cycle, error)
	CloseWindow(ctx context.Context, tenantID, cycleID snowflake.ID, at time.Time) (*Cycle, error)
	CalculateTotals(ctx context.Context, tenantID, cycleID snowflake.ID) (*Cycle, error)
	ValidateFinancialIntegrity(ctx context.Context, tenantID, cycleID snowflake.ID) ([]string, error)
	GetPhase(ctx context.Context, tenantID, cycleID snowflake.ID) (Phase, error)
	GetCycle(ctx context.Context, tenantID, cycleID snowflake.ID) (*Cycle, error)
	ListCycles(ctx context.Context, tenantID snowflake.ID) ([]Cycle, error)
	ListActive(ctx context.Context) ([]Cycle, error)
	Archive(ctx context.Context, tenantID, cycleID snowflake.ID) (*Cycle, error)
	RecordContribution(ctx context.Context, req RecordContributionRequest) (*Contribution, error)
	ApproveContribution(ctx context.Context, tenantID, contributionID snowflake.ID) (*Contribution, error)

	// Settlement steps. Each runs inside the caller's transaction.
	LockCycle(ctx context.Context, tx *gorm.DB, tenantID, cycleID snowflake.ID) (*Cycle, error)
	ComputeTotals(ctx context.Context, db *gorm.DB, cycle *Cycle) (Totals, error)
	ApplyTotals(ctx context.Context, tx *gorm.DB, cycle *Cycle) error
	IntegrityProblems(ctx context.Context, db *gorm.DB, cycle *Cycle, totals Totals) ([]string, error)
	Participants(ctx context.Context, db *gorm.DB, tenantID, cycleID snowflake.ID) ([]MemberContributions, error)
	MemberContributions(ctx context.Context, db *gorm.DB, tenantID, cycleID, memberID snowflake.ID) (MemberContributions, error)
	BeginShareOut(ctx context.Context, tx *gorm.DB, cycle *Cycle) error
	CompleteShareOut(ctx context.Context, tx *gorm.DB, cycle *Cycle) error
	RecordSettlementFailure(ctx context.Context, tenantID, cycleID snowflake.ID, cause error) error
}

var (
	ErrInvalidTenant             = errs.Validation("invalid_tenant", "tenant id is required")
	ErrInvalidName               = errs.Validation("invalid_name", "cycle name is required")
	ErrInvalidDates              = errs.Validation("invalid_dates", "end date must be after start date")
	ErrInvalidCloseDate          = errs.Validation("invalid_close_date", "close date must be within the current window")
	ErrActiveCycleExists         = errs.Conflict("active_cycle_exists", "tenant already has an active cycle")
	ErrCycleNotFound             = errs.NotFound("cycle_not_found", "cycle not found")
	ErrCycleNotActive            = errs.InvalidState("cycle_not_active", "cycle is not active")
	ErrCycleNotCompleted         = errs.InvalidState("cycle_not_completed", "only completed cycles can be archived")
	ErrTotalsFrozen              = errs.InvalidState("cycle_totals_frozen", "totals of a settled cycle cannot change")
	ErrContributionWindowClosed  = errs.InvalidState("contribution_window_closed", "cycle no longer accepts contributions")
	ErrInvalidMember             = errs.Validation("invalid_member", "member id is required")
	ErrInvalidContributionType   = errs.Validation("invalid_contribution_type", "contribution type is not allowed")
	ErrInvalidAmount             = errs.Validation("invalid_amount", "amount must be greater than zero")
	ErrInvalidContributionDate   = errs.Validation("invalid_transaction_date", "transaction date is outside the cycle window")
	ErrInvalidContributionStatus = errs.Validation("invalid_contribution_status", "contributions are recorded pending or approved")
	ErrContributionNotFound      = errs.NotFound("contribution_not_found", "contribution not found")
	ErrContributionNotPending    = errs.InvalidState("contribution_not_pending", "contribution is not pending")
	ErrWindowOpen                = errs.InvalidState("cycle_window_open", "cycle end date has not passed")
	ErrSettlementInProgress      = errs.Conflict("settlement_in_progress", "cycle settlement already started")
	ErrNotInShareOut             = errs.InvalidState("cycle_not_in_share_out", "cycle is not in share-out")
	ErrIntegrityFailed           = errs.Integrity("financial_integrity_failed", "cycle failed financial integrity validation")
)
