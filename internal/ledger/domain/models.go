package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Direction represents debit or credit postings.
type Direction string

const (
	DirectionDebit  Direction = "debit"
	DirectionCredit Direction = "credit"
)

// EntryType classifies the movement an entry records.
type EntryType string

const (
	EntryTypeDeposit          EntryType = "deposit"
	EntryTypeWithdraw         EntryType = "withdraw"
	EntryTypeTransfer         EntryType = "transfer"
	EntryTypeCashToBank       EntryType = "cash_to_bank"
	EntryTypeBankToCash       EntryType = "bank_to_cash"
	EntryTypeLoanDisbursement EntryType = "loan_disbursement"
	EntryTypeLoanRepayment    EntryType = "loan_repayment"
	EntryTypeAssetPurchase    EntryType = "asset_purchase"
	EntryTypeAssetSale        EntryType = "asset_sale"
	EntryTypeOpeningBalance   EntryType = "opening_balance"
)

// EntryStatus is the lifecycle state of an entry.
type EntryStatus string

const (
	EntryStatusPending   EntryStatus = "pending"
	EntryStatusApproved  EntryStatus = "approved"
	EntryStatusRejected  EntryStatus = "rejected"
	EntryStatusCancelled EntryStatus = "cancelled"
)

const SourceTypeAccountOpening = "account_opening"

// LedgerAccount is an internal cash position: a cashbox, a bank account or a
// purpose account such as a social fund.
type LedgerAccount struct {
	ID                   snowflake.ID        `gorm:"primaryKey" json:"id"`
	TenantID             snowflake.ID        `gorm:"not null;index;uniqueIndex:ux_ledger_accounts_tenant_code,priority:1" json:"tenant_id"`
	Code                 string              `gorm:"type:text;not null;uniqueIndex:ux_ledger_accounts_tenant_code,priority:2" json:"code"`
	Name                 string              `gorm:"type:text;not null" json:"name"`
	Currency             string              `gorm:"type:text;not null" json:"currency"`
	OpeningDate          time.Time           `gorm:"not null" json:"opening_date"`
	OpeningBalance       decimal.Decimal     `gorm:"type:numeric(20,2);not null" json:"opening_balance"`
	CurrentBalance       decimal.Decimal     `gorm:"type:numeric(20,2);not null" json:"current_balance"`
	BlockedBalance       decimal.Decimal     `gorm:"type:numeric(20,2);not null" json:"blocked_balance"`
	MinimumBalance       decimal.NullDecimal `gorm:"type:numeric(20,2)" json:"minimum_balance"`
	MaximumBalance       decimal.NullDecimal `gorm:"type:numeric(20,2)" json:"maximum_balance"`
	IsActive             bool                `gorm:"not null" json:"is_active"`
	AllowNegativeBalance bool                `gorm:"not null" json:"allow_negative_balance"`
	LastBalanceUpdate    *time.Time          `json:"last_balance_update,omitempty"`
	CreatedAt            time.Time           `gorm:"not null" json:"created_at"`
	UpdatedAt            time.Time           `gorm:"not null" json:"updated_at"`
}

// TableName sets the database table name.
func (LedgerAccount) TableName() string { return "ledger_accounts" }

// AvailableBalance is the cached balance minus held funds.
func (a LedgerAccount) AvailableBalance() decimal.Decimal {
	return a.CurrentBalance.Sub(a.BlockedBalance)
}

// Floor is the lowest available balance a debit may leave behind.
func (a LedgerAccount) Floor() decimal.Decimal {
	if a.MinimumBalance.Valid {
		return a.MinimumBalance.Decimal
	}
	return decimal.Zero
}

// LedgerEntry is one money movement against a LedgerAccount. Amount is always
// positive; Direction carries the sign.
type LedgerEntry struct {
	ID              snowflake.ID    `gorm:"primaryKey" json:"id"`
	TenantID        snowflake.ID    `gorm:"not null;index;uniqueIndex:ux_ledger_entries_source,priority:1" json:"tenant_id"`
	AccountID       snowflake.ID    `gorm:"not null;index" json:"account_id"`
	TransactionDate time.Time       `gorm:"not null" json:"transaction_date"`
	Amount          decimal.Decimal `gorm:"type:numeric(20,2);not null" json:"amount"`
	Direction       Direction       `gorm:"type:text;not null" json:"direction"`
	Type            EntryType       `gorm:"type:text;not null" json:"type"`
	Status          EntryStatus     `gorm:"type:text;not null;index" json:"status"`
	Description     string          `gorm:"type:text" json:"description"`
	CreatedBy       *string         `gorm:"type:text" json:"created_by,omitempty"`
	SourceType      *string         `gorm:"type:text;uniqueIndex:ux_ledger_entries_source,priority:2" json:"source_type,omitempty"`
	SourceID        *string         `gorm:"type:text;uniqueIndex:ux_ledger_entries_source,priority:3" json:"source_id,omitempty"`
	ApprovedAt      *time.Time      `json:"approved_at,omitempty"`
	RejectedAt      *time.Time      `json:"rejected_at,omitempty"`
	CancelledAt     *time.Time      `json:"cancelled_at,omitempty"`
	CreatedAt       time.Time       `gorm:"not null" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"not null" json:"updated_at"`
}

// TableName sets the database table name.
func (LedgerEntry) TableName() string { return "ledger_entries" }

// SignedAmount is the entry's effect on the account balance.
func (e LedgerEntry) SignedAmount() decimal.Decimal {
	if e.Direction == DirectionDebit {
		return e.Amount.Neg()
	}
	return e.Amount
}

// ReconcileResult reports one balance recalculation.
type ReconcileResult struct {
	TenantID  snowflake.ID    `json:"tenant_id"`
	AccountID snowflake.ID    `json:"account_id"`
	Computed  decimal.Decimal `json:"computed_balance"`
	Previous  decimal.Decimal `json:"previous_balance"`
	Drift     decimal.Decimal `json:"drift"`
	Repaired  bool            `json:"repaired"`
}

// ReconcileSummary aggregates a sweep over many accounts.
type ReconcileSummary struct {
	Checked  int               `json:"checked"`
	Repaired []ReconcileResult `json:"repaired"`
	Failed   int               `json:"failed"`
}

// AccountRef identifies an account across tenants.
type AccountRef struct {
	TenantID snowflake.ID
	ID       snowflake.ID
}
