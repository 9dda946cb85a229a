package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	cycledomain "github.com/smallbiznis/groupledger/internal/cycle/domain"
	"github.com/smallbiznis/groupledger/internal/errs"
)

// SettlementResult describes a finished settlement.
type SettlementResult struct {
	Cycle          *cycledomain.Cycle `json:"cycle"`
	Allocations    []Allocation       `json:"allocations"`
	SkippedPaid    int                `json:"skipped_paid"`
	TotalNetPayout decimal.Decimal    `json:"total_net_payout"`
}

type Service interface {
	CalculateForMember(ctx context.Context, tenantID, cycleID, memberID snowflake.ID) (*Allocation, error)
	SettleCycle(ctx context.Context, tenantID, cycleID snowflake.ID) (*SettlementResult, error)
	ResumeSettlement(ctx context.Context, tenantID, cycleID snowflake.ID) (*SettlementResult, error)
	ListAllocations(ctx context.Context, tenantID, cycleID snowflake.ID) ([]Allocation, error)
	ApproveAllocation(ctx context.Context, tenantID, allocationID snowflake.ID) (*Allocation, error)
	MarkPaid(ctx context.Context, tenantID, allocationID snowflake.ID) (*Allocation, error)
	CancelAllocation(ctx context.Context, tenantID, allocationID snowflake.ID) (*Allocation, error)
}

var (
	ErrInvalidTenant      = errs.Validation("invalid_tenant", "tenant id is required")
	ErrInvalidMember      = errs.Validation("invalid_member", "member id is required")
	ErrAllocationNotFound = errs.NotFound("allocation_not_found", "allocation not found")
	ErrAlreadyPaid        = errs.Conflict("allocation_already_paid", "allocation has already been paid")
	ErrInvalidTransition  = errs.InvalidState("invalid_allocation_transition", "allocation status transition is not allowed")
	ErrConcurrentUpdate   = errs.Conflict("concurrent_update", "allocation changed concurrently")
)
