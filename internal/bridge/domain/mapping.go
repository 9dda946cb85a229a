package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	ledgerdomain "github.com/smallbiznis/groupledger/internal/ledger/domain"
)

// MemberEventType is the member-facing transaction type.
type MemberEventType string

const (
	MemberEventDeposit        MemberEventType = "Deposit"
	MemberEventWithdraw       MemberEventType = "Withdraw"
	MemberEventSharesPurchase MemberEventType = "Shares_Purchase"
	MemberEventSharesSale     MemberEventType = "Shares_Sale"
	MemberEventLoan           MemberEventType = "Loan"
	MemberEventLoanPayment    MemberEventType = "Loan_Payment"
	MemberEventInterest       MemberEventType = "Interest"
	MemberEventFee            MemberEventType = "Fee"
	MemberEventPenalty        MemberEventType = "Penalty"
)

// SourceTypeMemberTransaction tags ledger entries posted by the bridge.
const SourceTypeMemberTransaction = "member_transaction"

// StatusCompleted marks a member event whose money has already moved.
const StatusCompleted = "completed"

// MemberEvent is a member transaction to mirror in the ledger.
type MemberEvent struct {
	TenantID        snowflake.ID
	EventID         string
	MemberID        snowflake.ID
	ProductID       string
	Type            MemberEventType
	Status          string
	Amount          decimal.Decimal
	TransactionDate time.Time
	Description     string
	CreatedBy       string
}

// Mapping is the ledger side of a member event type.
type Mapping struct {
	EntryType ledgerdomain.EntryType
	Direction ledgerdomain.Direction
}

var mappings = map[MemberEventType]Mapping{
	MemberEventDeposit:        {ledgerdomain.EntryTypeDeposit, ledgerdomain.DirectionCredit},
	MemberEventWithdraw:       {ledgerdomain.EntryTypeWithdraw, ledgerdomain.DirectionDebit},
	MemberEventSharesPurchase: {ledgerdomain.EntryTypeDeposit, ledgerdomain.DirectionCredit},
	MemberEventSharesSale:     {ledgerdomain.EntryTypeWithdraw, ledgerdomain.DirectionDebit},
	MemberEventLoan:           {ledgerdomain.EntryTypeLoanDisbursement, ledgerdomain.DirectionDebit},
	MemberEventLoanPayment:    {ledgerdomain.EntryTypeLoanRepayment, ledgerdomain.DirectionCredit},
	MemberEventInterest:       {ledgerdomain.EntryTypeDeposit, ledgerdomain.DirectionCredit},
	MemberEventFee:            {ledgerdomain.EntryTypeDeposit, ledgerdomain.DirectionCredit},
	MemberEventPenalty:        {ledgerdomain.EntryTypeDeposit, ledgerdomain.DirectionCredit},
}

// Map returns the ledger entry type and direction for t.
func Map(t MemberEventType) (Mapping, error) {
	m, ok := mappings[t]
	if !ok {
		return Mapping{}, ErrUnmappedType.WithField("type", string(t))
	}
	return m, nil
}

// EventTypes lists every mapped member event type.
func EventTypes() []MemberEventType {
	return []MemberEventType{
		MemberEventDeposit,
		MemberEventWithdraw,
		MemberEventSharesPurchase,
		MemberEventSharesSale,
		MemberEventLoan,
		MemberEventLoanPayment,
		MemberEventInterest,
		MemberEventFee,
		MemberEventPenalty,
	}
}
