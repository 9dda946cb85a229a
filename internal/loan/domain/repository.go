package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	// ListReleasedBetween returns internal disbursed loans released in
	// [from, to], each with its product if one exists.
	ListReleasedBetween(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, from, to time.Time) ([]LoanWithProduct, error)
	ListOutstandingForMember(ctx context.Context, db *gorm.DB, tenantID, memberID snowflake.ID) ([]Loan, error)
}
