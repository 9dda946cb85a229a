package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type AllocationStatus string

const (
	AllocationStatusCalculated AllocationStatus = "calculated"
	AllocationStatusApproved   AllocationStatus = "approved"
	AllocationStatusPaid       AllocationStatus = "paid"
	AllocationStatusCancelled  AllocationStatus = "cancelled"
)

// Allocation is one member's payout for a settled cycle. Rows other than paid
// ones are overwritten when settlement reruns.
type Allocation struct {
	ID                     snowflake.ID     `gorm:"primaryKey" json:"id"`
	TenantID               snowflake.ID     `gorm:"not null;index" json:"tenant_id"`
	CycleID                snowflake.ID     `gorm:"not null;uniqueIndex:ux_shareout_allocations_member,priority:1" json:"cycle_id"`
	MemberID               snowflake.ID     `gorm:"not null;uniqueIndex:ux_shareout_allocations_member,priority:2" json:"member_id"`
	SharesContributed      decimal.Decimal  `gorm:"type:numeric(20,2);not null" json:"shares_contributed"`
	WelfareContributed     decimal.Decimal  `gorm:"type:numeric(20,2);not null" json:"welfare_contributed"`
	SharePercentage        decimal.Decimal  `gorm:"type:numeric(12,5);not null" json:"share_percentage"`
	ShareValuePayout       decimal.Decimal  `gorm:"type:numeric(20,2);not null" json:"share_value_payout"`
	ProfitShare            decimal.Decimal  `gorm:"type:numeric(20,2);not null" json:"profit_share"`
	WelfareRefund          decimal.Decimal  `gorm:"type:numeric(20,2);not null" json:"welfare_refund"`
	OutstandingLoanBalance decimal.Decimal  `gorm:"type:numeric(20,2);not null" json:"outstanding_loan_balance"`
	TotalPayout            decimal.Decimal  `gorm:"type:numeric(20,2);not null" json:"total_payout"`
	NetPayout              decimal.Decimal  `gorm:"type:numeric(20,2);not null" json:"net_payout"`
	Status                 AllocationStatus `gorm:"type:text;not null" json:"status"`
	CalculatedAt           *time.Time       `json:"calculated_at,omitempty"`
	ApprovedAt             *time.Time       `json:"approved_at,omitempty"`
	PaidAt                 *time.Time       `json:"paid_at,omitempty"`
	CancelledAt            *time.Time       `json:"cancelled_at,omitempty"`
	CreatedAt              time.Time        `gorm:"not null" json:"created_at"`
	UpdatedAt              time.Time        `gorm:"not null" json:"updated_at"`
}

// TableName sets the database table name.
func (Allocation) TableName() string { return "shareout_allocations" }

// AllocationInput carries everything one member's payout depends on.
type AllocationInput struct {
	MemberShares     decimal.Decimal
	MemberWelfare    decimal.Decimal
	CycleShares      decimal.Decimal
	CycleInterest    decimal.Decimal
	OutstandingLoans decimal.Decimal
}

// Amounts is the computed payout breakdown.
type Amounts struct {
	SharePercentage        decimal.Decimal
	ShareValuePayout       decimal.Decimal
	ProfitShare            decimal.Decimal
	WelfareRefund          decimal.Decimal
	OutstandingLoanBalance decimal.Decimal
	TotalPayout            decimal.Decimal
	NetPayout              decimal.Decimal
}

// Compute derives a member's payout. It depends on nothing but in, so members
// can be computed in any order. Profit uses the exact share ratio; the stored
// percentage is rounded to five places.
func Compute(in AllocationInput) Amounts {
	shares := in.MemberShares.Round(2)
	welfare := in.MemberWelfare.Round(2)
	outstanding := decimal.Max(decimal.Zero, in.OutstandingLoans.Round(2))

	ratio := decimal.Zero
	if in.CycleShares.IsPositive() {
		ratio = shares.Div(in.CycleShares)
	}
	profit := decimal.Max(decimal.Zero, in.CycleInterest.Mul(ratio)).Round(2)
	total := shares.Add(welfare).Add(profit)

	return Amounts{
		SharePercentage:        ratio.Round(5),
		ShareValuePayout:       shares,
		ProfitShare:            profit,
		WelfareRefund:          welfare,
		OutstandingLoanBalance: outstanding,
		TotalPayout:            total,
		NetPayout:              decimal.Max(decimal.Zero, total.Sub(outstanding)),
	}
}

// Apply copies amounts onto the allocation.
func (a *Allocation) Apply(amounts Amounts) {
	a.SharePercentage = amounts.SharePercentage
	a.ShareValuePayout = amounts.ShareValuePayout
	a.ProfitShare = amounts.ProfitShare
	a.WelfareRefund = amounts.WelfareRefund
	a.OutstandingLoanBalance = amounts.OutstandingLoanBalance
	a.TotalPayout = amounts.TotalPayout
	a.NetPayout = amounts.NetPayout
}

// ValidateTransition reports whether an allocation may move from one status
// to another.
func ValidateTransition(from, to AllocationStatus) error {
	if from == AllocationStatusPaid {
		if to == AllocationStatusPaid {
			return ErrAlreadyPaid
		}
		return ErrInvalidTransition.WithField("from", string(from)).WithField("to", string(to))
	}
	switch to {
	case AllocationStatusApproved:
		if from == AllocationStatusCalculated {
			return nil
		}
	case AllocationStatusPaid:
		if from == AllocationStatusApproved {
			return nil
		}
	case AllocationStatusCancelled:
		if from == AllocationStatusCalculated || from == AllocationStatusApproved {
			return nil
		}
	}
	return ErrInvalidTransition.WithField("from", string(from)).WithField("to", string(to))
}
