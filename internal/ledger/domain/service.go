package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/groupledger/internal/errs"
	"gorm.io/gorm"
)

type CreateAccountRequest struct {
	TenantID             snowflake.ID
	Code                 string
	Name                 string
	Currency             string
	OpeningDate          time.Time
	OpeningBalance       decimal.Decimal
	MinimumBalance       *decimal.Decimal
	MaximumBalance       *decimal.Decimal
	AllowNegativeBalance bool
	CreatedBy            string
}

type CreateEntryRequest struct {
	TenantID        snowflake.ID
	AccountID       snowflake.ID
	Amount          decimal.Decimal
	Direction       Direction
	Type            EntryType
	TransactionDate time.Time
	Description     string
	CreatedBy       string
	// Status is pending when empty. Approved entries move the balance at once.
	Status     EntryStatus
	SourceType string
	SourceID   string
}

// Service owns ledger accounts, their entries and the balance reconciler.
type Service interface {
	CreateAccount(ctx context.Context, req CreateAccountRequest) (*LedgerAccount, error)
	GetAccount(ctx context.Context, tenantID, accountID snowflake.ID) (*LedgerAccount, error)
	ListAccounts(ctx context.Context, tenantID snowflake.ID) ([]LedgerAccount, error)
	ListEntries(ctx context.Context, tenantID, accountID snowflake.ID) ([]LedgerEntry, error)

	CreateEntry(ctx context.Context, req CreateEntryRequest) (*LedgerEntry, error)
	FindEntryBySource(ctx context.Context, tenantID snowflake.ID, sourceType, sourceID string) (*LedgerEntry, error)
	Approve(ctx context.Context, tenantID, entryID snowflake.ID) (*LedgerEntry, error)
	Reject(ctx context.Context, tenantID, entryID snowflake.ID) (*LedgerEntry, error)
	Cancel(ctx context.Context, tenantID, entryID snowflake.ID) (*LedgerEntry, error)

	RecalculateBalance(ctx context.Context, tenantID, accountID snowflake.ID) (ReconcileResult, error)
	// RecalculateBalanceTx reconciles within tx, leaving the account row locked
	// until tx ends.
	RecalculateBalanceTx(ctx context.Context, tx *gorm.DB, tenantID, accountID snowflake.ID) (ReconcileResult, error)
	ReconcileTenant(ctx context.Context, tenantID snowflake.ID) (ReconcileSummary, error)
	ReconcileAll(ctx context.Context) (ReconcileSummary, error)
}

var (
	ErrInvalidTenant          = errs.Validation("invalid_tenant", "tenant id is required")
	ErrInvalidCode            = errs.Validation("invalid_code", "account code is required")
	ErrInvalidName            = errs.Validation("invalid_name", "account name is required")
	ErrInvalidCurrency        = errs.Validation("invalid_currency", "currency must be a 3-letter code")
	ErrInvalidOpeningDate     = errs.Validation("invalid_opening_date", "opening date is required")
	ErrInvalidOpeningBalance  = errs.Validation("invalid_opening_balance", "opening balance must not be negative")
	ErrInvalidLimits          = errs.Validation("invalid_balance_limits", "minimum balance exceeds maximum balance")
	ErrAccountCodeTaken       = errs.Conflict("account_code_taken", "an account with this code already exists")
	ErrAccountNotFound        = errs.NotFound("account_not_found", "ledger account not found")
	ErrEntryNotFound          = errs.NotFound("entry_not_found", "ledger entry not found")
	ErrInvalidAccount         = errs.Validation("invalid_account", "ledger account does not exist")
	ErrAccountInactive        = errs.Validation("account_inactive", "ledger account is inactive")
	ErrInvalidAmount          = errs.Validation("invalid_amount", "amount must be greater than zero")
	ErrInvalidDirection       = errs.Validation("invalid_direction", "direction must be credit or debit")
	ErrInvalidEntryType       = errs.Validation("invalid_entry_type", "entry type is not allowed")
	ErrInvalidTransactionDate = errs.Validation("invalid_transaction_date", "transaction date precedes the account opening date")
	ErrInvalidInitialStatus   = errs.Validation("invalid_initial_status", "entries are created pending or approved")
	ErrInsufficientBalance    = errs.Validation("insufficient_balance", "debit would breach the account balance policy")
	ErrMaximumBalanceExceeded = errs.Validation("maximum_balance_exceeded", "credit would exceed the account maximum balance")
	ErrInvalidTransition      = errs.InvalidState("invalid_status_transition", "entry status transition is not allowed")
	ErrConcurrentUpdate       = errs.Conflict("concurrent_update", "entry changed concurrently, reload and retry")
	ErrDuplicateSource        = errs.Conflict("duplicate_source", "an entry already exists for this source")
)
