package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Repository methods return (nil, nil) when a lookup finds no row.
type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, cycle *Cycle) error
	Find(ctx context.Context, db *gorm.DB, tenantID, cycleID snowflake.ID) (*Cycle, error)
	Lock(ctx context.Context, db *gorm.DB, tenantID, cycleID snowflake.ID) (*Cycle, error)
	LockActive(ctx context.Context, db *gorm.DB, tenantID snowflake.ID) (*Cycle, error)
	List(ctx context.Context, db *gorm.DB, tenantID snowflake.ID) ([]Cycle, error)
	ListByStatus(ctx context.Context, db *gorm.DB, status CycleStatus) ([]Cycle, error)
	UpdateTotals(ctx context.Context, db *gorm.DB, cycle *Cycle) error
	UpdateEndDate(ctx context.Context, db *gorm.DB, tenantID, cycleID snowflake.ID, end, at time.Time) error
	// Transition applies fields and the status change only while the row is in
	// from, and reports whether a row matched.
	Transition(ctx context.Context, db *gorm.DB, tenantID, cycleID snowflake.ID, from, to CycleStatus, fields map[string]any) (bool, error)
	RecordError(ctx context.Context, db *gorm.DB, tenantID, cycleID snowflake.ID, message string, at time.Time) error

	InsertContribution(ctx context.Context, db *gorm.DB, contribution *Contribution) error
	FindContribution(ctx context.Context, db *gorm.DB, tenantID, contributionID snowflake.ID) (*Contribution, error)
	ApproveContribution(ctx context.Context, db *gorm.DB, tenantID, contributionID snowflake.ID) (bool, error)
	SumApprovedByType(ctx context.Context, db *gorm.DB, tenantID, cycleID snowflake.ID) (map[ContributionType]decimal.Decimal, error)
	// ApprovedByMember returns share and welfare sums for every member with an
	// approved share or welfare contribution, ordered by member id.
	ApprovedByMember(ctx context.Context, db *gorm.DB, tenantID, cycleID snowflake.ID, memberID *snowflake.ID) ([]MemberContributions, error)
}
