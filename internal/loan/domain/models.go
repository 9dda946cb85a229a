package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// InterestType is how a product charges interest over the term.
type InterestType string

const (
	InterestTypeFlat      InterestType = "flat"
	InterestTypeDeclining InterestType = "declining"
)

type LoanStatus string

const (
	LoanStatusPending   LoanStatus = "pending"
	LoanStatusApproved  LoanStatus = "approved"
	LoanStatusDisbursed LoanStatus = "disbursed"
	LoanStatusActive    LoanStatus = "active"
	LoanStatusClosed    LoanStatus = "closed"
	LoanStatusRejected  LoanStatus = "rejected"
)

// DisbursedStatuses are the states of a loan whose money has left the group.
var DisbursedStatuses = []LoanStatus{LoanStatusDisbursed, LoanStatusActive, LoanStatusClosed}

// OutstandingStatuses are the states that still owe the group money.
var OutstandingStatuses = []LoanStatus{LoanStatusDisbursed, LoanStatusActive}

// LoanProduct declares the pricing of a loan.
type LoanProduct struct {
	ID           snowflake.ID    `gorm:"primaryKey" json:"id"`
	TenantID     snowflake.ID    `gorm:"not null;index" json:"tenant_id"`
	Name         string          `gorm:"type:text;not null" json:"name"`
	InterestType InterestType    `gorm:"type:text;not null" json:"interest_type"`
	// AnnualRate is a percentage, 12 meaning 12% a year.
	AnnualRate decimal.Decimal `gorm:"type:numeric(12,5);not null" json:"annual_rate"`
	CreatedAt  time.Time       `gorm:"not null" json:"created_at"`
}

// TableName sets the database table name.
func (LoanProduct) TableName() string { return "loan_products" }

// Loan is a member loan. The engine only reads loans.
type Loan struct {
	ID           snowflake.ID        `gorm:"primaryKey" json:"id"`
	TenantID     snowflake.ID        `gorm:"not null;index:idx_loans_tenant_status,priority:1" json:"tenant_id"`
	MemberID     snowflake.ID        `gorm:"not null;index" json:"member_id"`
	ProductID    snowflake.ID        `gorm:"not null" json:"product_id"`
	Status       LoanStatus          `gorm:"type:text;not null;index:idx_loans_tenant_status,priority:2" json:"status"`
	IsInternal   bool                `gorm:"not null" json:"is_internal"`
	Principal    decimal.Decimal     `gorm:"type:numeric(20,2);not null" json:"principal"`
	TermMonths   int                 `gorm:"not null" json:"term_months"`
	ReleaseDate  *time.Time          `json:"release_date,omitempty"`
	MaturityDate *time.Time          `json:"maturity_date,omitempty"`
	TotalPayable decimal.NullDecimal `gorm:"type:numeric(20,2)" json:"total_payable"`
	TotalPaid    decimal.Decimal     `gorm:"type:numeric(20,2);not null" json:"total_paid"`
	CreatedAt    time.Time           `gorm:"not null" json:"created_at"`
}

// TableName sets the database table name.
func (Loan) TableName() string { return "loans" }

// Payable is the amount the member owes over the life of the loan: the
// recorded total payable, else the principal.
func (l Loan) Payable() decimal.Decimal {
	if l.TotalPayable.Valid {
		return l.TotalPayable.Decimal
	}
	return l.Principal
}

// Outstanding is max(0, payable - paid).
func (l Loan) Outstanding() decimal.Decimal {
	remaining := l.Payable().Sub(l.TotalPaid)
	if remaining.IsNegative() {
		return decimal.Zero
	}
	return remaining
}

// LoanWithProduct pairs a loan with its product. Product is nil when the
// product row is missing.
type LoanWithProduct struct {
	Loan    Loan
	Product *LoanProduct
}
