package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Repository methods return (nil, nil) when a lookup finds no row.
type Repository interface {
	Find(ctx context.Context, db *gorm.DB, tenantID, allocationID snowflake.ID) (*Allocation, error)
	ListByCycle(ctx context.Context, db *gorm.DB, tenantID, cycleID snowflake.ID) ([]Allocation, error)
	Insert(ctx context.Context, db *gorm.DB, allocation *Allocation) error
	// Recalculate overwrites amounts and resets the status to calculated
	// unless the row is paid. It reports whether a row matched.
	Recalculate(ctx context.Context, db *gorm.DB, allocation *Allocation) (bool, error)
	Transition(ctx context.Context, db *gorm.DB, tenantID, allocationID snowflake.ID, from, to AllocationStatus, at time.Time) (bool, error)
}
