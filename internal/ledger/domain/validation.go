package domain

import (
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/groupledger/internal/errs"
)

var allowedEntryTypes = map[EntryType]struct{}{
	EntryTypeDeposit:          {},
	EntryTypeWithdraw:         {},
	EntryTypeTransfer:         {},
	EntryTypeCashToBank:       {},
	EntryTypeBankToCash:       {},
	EntryTypeLoanDisbursement: {},
	EntryTypeLoanRepayment:    {},
	EntryTypeAssetPurchase:    {},
	EntryTypeAssetSale:        {},
	EntryTypeOpeningBalance:   {},
}

var allowedTransitions = map[EntryStatus][]EntryStatus{
	EntryStatusPending:  {EntryStatusApproved, EntryStatusRejected, EntryStatusCancelled},
	EntryStatusApproved: {EntryStatusCancelled},
}

func ValidEntryType(t EntryType) bool {
	_, ok := allowedEntryTypes[t]
	return ok
}

func ValidDirection(d Direction) bool {
	return d == DirectionCredit || d == DirectionDebit
}

// ValidateTransition enforces pending -> {approved, rejected} and
// {pending, approved} -> cancelled.
func ValidateTransition(from, to EntryStatus) error {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return nil
		}
	}
	return ErrInvalidTransition.
		WithMessage("cannot move entry from %s to %s", from, to).
		WithField("from", string(from)).
		WithField("to", string(to))
}

// CheckEffect validates applying delta to the account's cached balance. A
// negative delta must leave the available balance at or above the floor
// unless the account allows negative balances; a positive delta must not push
// the balance above the maximum.
func CheckEffect(account LedgerAccount, delta decimal.Decimal) error {
	if delta.IsNegative() && !account.AllowNegativeBalance {
		available := account.AvailableBalance()
		if available.Add(delta).LessThan(account.Floor()) {
			return insufficient(account, available, delta.Neg())
		}
	}
	if delta.IsPositive() && account.MaximumBalance.Valid {
		if account.CurrentBalance.Add(delta).GreaterThan(account.MaximumBalance.Decimal) {
			return ErrMaximumBalanceExceeded.
				WithMessage("credit of %s would exceed maximum balance %s", delta.StringFixed(2), account.MaximumBalance.Decimal.StringFixed(2)).
				WithField("current_balance", account.CurrentBalance.StringFixed(2)).
				WithField("maximum_balance", account.MaximumBalance.Decimal.StringFixed(2))
		}
	}
	return nil
}

func insufficient(account LedgerAccount, available, amount decimal.Decimal) *errs.Error {
	return ErrInsufficientBalance.
		WithMessage("insufficient balance: available %s, requested %s", available.StringFixed(2), amount.StringFixed(2)).
		WithField("available_balance", available.StringFixed(2)).
		WithField("minimum_balance", account.Floor().StringFixed(2)).
		WithField("requested_amount", amount.StringFixed(2))
}
