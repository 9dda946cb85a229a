package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// CycleStatus is the stored lifecycle state. No transition returns to active.
type CycleStatus string

const (
	CycleStatusActive             CycleStatus = "active"
	CycleStatusShareOutInProgress CycleStatus = "share_out_in_progress"
	CycleStatusCompleted          CycleStatus = "completed"
	CycleStatusArchived           CycleStatus = "archived"
)

// Phase is derived from status and the clock; it is never stored.
type Phase string

const (
	PhaseActive           Phase = "active"
	PhaseReadyForShareOut Phase = "ready_for_shareout"
	PhaseShareOut         Phase = "share_out"
	PhaseCompleted        Phase = "completed"
	PhaseArchived         Phase = "archived"
)

// Cycle is a savings-group period that ends in a share-out. Totals are
// recomputed from contributions and loans; no operation edits them directly.
type Cycle struct {
	ID                        snowflake.ID    `gorm:"primaryKey" json:"id"`
	TenantID                  snowflake.ID    `gorm:"not null;index" json:"tenant_id"`
	Name                      string          `gorm:"type:text;not null" json:"name"`
	StartDate                 time.Time       `gorm:"not null" json:"start_date"`
	EndDate                   time.Time       `gorm:"not null" json:"end_date"`
	Status                    CycleStatus     `gorm:"type:text;not null;index" json:"status"`
	TotalSharesContributed    decimal.Decimal `gorm:"type:numeric(20,2);not null" json:"total_shares_contributed"`
	TotalWelfareContributed   decimal.Decimal `gorm:"type:numeric(20,2);not null" json:"total_welfare_contributed"`
	TotalPenaltiesCollected   decimal.Decimal `gorm:"type:numeric(20,2);not null" json:"total_penalties_collected"`
	TotalLoanInterestEarned   decimal.Decimal `gorm:"type:numeric(20,2);not null" json:"total_loan_interest_earned"`
	TotalAvailableForShareOut decimal.Decimal `gorm:"column:total_available_for_shareout;type:numeric(20,2);not null" json:"total_available_for_shareout"`
	Notes                     string          `gorm:"type:text" json:"notes"`
	TotalsCalculatedAt        *time.Time      `json:"totals_calculated_at,omitempty"`
	ShareOutStartedAt         *time.Time      `gorm:"column:share_out_started_at" json:"share_out_started_at,omitempty"`
	CompletedAt               *time.Time      `json:"completed_at,omitempty"`
	ArchivedAt                *time.Time      `json:"archived_at,omitempty"`
	LastError                 *string         `gorm:"type:text" json:"last_error,omitempty"`
	LastErrorAt               *time.Time      `json:"last_error_at,omitempty"`
	CreatedAt                 time.Time       `gorm:"not null" json:"created_at"`
	UpdatedAt                 time.Time       `gorm:"not null" json:"updated_at"`
}

// TableName sets the database table name.
func (Cycle) TableName() string { return "cycles" }

// Totals are the recomputed aggregates of a cycle.
type Totals struct {
	Shares    decimal.Decimal `json:"shares"`
	Welfare   decimal.Decimal `json:"welfare"`
	Penalties decimal.Decimal `json:"penalties"`
	Interest  decimal.Decimal `json:"interest"`
	Available decimal.Decimal `json:"available"`
}

// NewTotals derives Available from its parts.
func NewTotals(shares, welfare, penalties, interest decimal.Decimal) Totals {
	t := Totals{
		Shares:    shares.Round(2),
		Welfare:   welfare.Round(2),
		Penalties: penalties.Round(2),
		Interest:  interest.Round(2),
	}
	t.Available = t.Shares.Add(t.Welfare).Add(t.Penalties).Add(t.Interest)
	return t
}

// Apply copies totals onto the cycle.
func (c *Cycle) Apply(t Totals, at time.Time) {
	c.TotalSharesContributed = t.Shares
	c.TotalWelfareContributed = t.Welfare
	c.TotalPenaltiesCollected = t.Penalties
	c.TotalLoanInterestEarned = t.Interest
	c.TotalAvailableForShareOut = t.Available
	c.TotalsCalculatedAt = &at
	c.UpdatedAt = at
}

// ContributionType classifies a member's group transaction.
type ContributionType string

const (
	ContributionTypeSharePurchase ContributionType = "share_purchase"
	ContributionTypeWelfare       ContributionType = "welfare_contribution"
	ContributionTypePenalty       ContributionType = "penalty_fine"
	ContributionTypeLoanIssuance  ContributionType = "loan_issuance"
	ContributionTypeLoanRepayment ContributionType = "loan_repayment"
)

func ValidContributionType(t ContributionType) bool {
	switch t {
	case ContributionTypeSharePurchase, ContributionTypeWelfare, ContributionTypePenalty,
		ContributionTypeLoanIssuance, ContributionTypeLoanRepayment:
		return true
	}
	return false
}

type ContributionStatus string

const (
	ContributionStatusPending  ContributionStatus = "pending"
	ContributionStatusApproved ContributionStatus = "approved"
)

// Contribution is a member group transaction. Only approved rows count toward
// cycle aggregates.
type Contribution struct {
	ID              snowflake.ID       `gorm:"primaryKey" json:"id"`
	TenantID        snowflake.ID       `gorm:"not null;index:idx_group_transactions_member,priority:1" json:"tenant_id"`
	CycleID         *snowflake.ID      `gorm:"index" json:"cycle_id,omitempty"`
	MemberID        snowflake.ID       `gorm:"not null;index:idx_group_transactions_member,priority:2" json:"member_id"`
	Type            ContributionType   `gorm:"type:text;not null" json:"type"`
	Amount          decimal.Decimal    `gorm:"type:numeric(20,2);not null" json:"amount"`
	Status          ContributionStatus `gorm:"type:text;not null" json:"status"`
	TransactionDate time.Time          `gorm:"not null" json:"transaction_date"`
	CreatedAt       time.Time          `gorm:"not null" json:"created_at"`
}

// TableName sets the database table name.
func (Contribution) TableName() string { return "group_transactions" }

// MemberContributions is one member's approved sums in a cycle.
type MemberContributions struct {
	MemberID snowflake.ID
	Shares   decimal.Decimal
	Welfare  decimal.Decimal
}
