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
	InsertAccount(ctx context.Context, db *gorm.DB, account *LedgerAccount) error
	FindAccount(ctx context.Context, db *gorm.DB, tenantID, accountID snowflake.ID) (*LedgerAccount, error)
	// LockAccount reads the account with a row lock held until the enclosing
	// transaction ends.
	LockAccount(ctx context.Context, db *gorm.DB, tenantID, accountID snowflake.ID) (*LedgerAccount, error)
	ListAccounts(ctx context.Context, db *gorm.DB, tenantID snowflake.ID) ([]LedgerAccount, error)
	ListActiveAccountRefs(ctx context.Context, db *gorm.DB, tenantID *snowflake.ID) ([]AccountRef, error)
	UpdateBalance(ctx context.Context, db *gorm.DB, tenantID, accountID snowflake.ID, balance decimal.Decimal, at time.Time) error

	InsertEntry(ctx context.Context, db *gorm.DB, entry *LedgerEntry) error
	FindEntry(ctx context.Context, db *gorm.DB, tenantID, entryID snowflake.ID) (*LedgerEntry, error)
	FindEntryBySource(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, sourceType, sourceID string) (*LedgerEntry, error)
	ListEntries(ctx context.Context, db *gorm.DB, tenantID, accountID snowflake.ID) ([]LedgerEntry, error)
	// TransitionEntry moves an entry from one status to another and reports
	// whether a row matched.
	TransitionEntry(ctx context.Context, db *gorm.DB, tenantID, entryID snowflake.ID, from, to EntryStatus, at time.Time) (bool, error)
	SumApproved(ctx context.Context, db *gorm.DB, tenantID, accountID snowflake.ID) (decimal.Decimal, error)
}
