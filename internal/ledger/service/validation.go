package service

import (
	"strings"

	ledgerdomain "github.com/smallbiznis/groupledger/internal/ledger/domain"
)

func validateAccountRequest(req *ledgerdomain.CreateAccountRequest) error {
	if req.TenantID == 0 {
		return ledgerdomain.ErrInvalidTenant
	}
	req.Code = strings.TrimSpace(req.Code)
	if req.Code == "" {
		return ledgerdomain.ErrInvalidCode
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return ledgerdomain.ErrInvalidName
	}
	req.Currency = strings.ToUpper(strings.TrimSpace(req.Currency))
	if len(req.Currency) != 3 {
		return ledgerdomain.ErrInvalidCurrency
	}
	if req.OpeningDate.IsZero() {
		return ledgerdomain.ErrInvalidOpeningDate
	}
	if req.OpeningBalance.IsNegative() {
		return ledgerdomain.ErrInvalidOpeningBalance
	}
	if req.MinimumBalance != nil && req.MaximumBalance != nil && req.MinimumBalance.GreaterThan(*req.MaximumBalance) {
		return ledgerdomain.ErrInvalidLimits
	}
	return nil
}

func validateEntryRequest(req *ledgerdomain.CreateEntryRequest) error {
	if req.TenantID == 0 {
		return ledgerdomain.ErrInvalidTenant
	}
	if req.AccountID == 0 {
		return ledgerdomain.ErrInvalidAccount
	}
	raw := req.Amount
	req.Amount = req.Amount.Round(2)
	if !req.Amount.IsPositive() {
		return ledgerdomain.ErrInvalidAmount.WithField("amount", raw.String())
	}
	if !ledgerdomain.ValidDirection(req.Direction) {
		return ledgerdomain.ErrInvalidDirection.WithField("direction", string(req.Direction))
	}
	if !ledgerdomain.ValidEntryType(req.Type) {
		return ledgerdomain.ErrInvalidEntryType.WithField("type", string(req.Type))
	}
	if req.TransactionDate.IsZero() {
		return ledgerdomain.ErrInvalidTransactionDate.WithMessage("transaction date is required")
	}
	switch req.Status {
	case "":
		req.Status = ledgerdomain.EntryStatusPending
	case ledgerdomain.EntryStatusPending, ledgerdomain.EntryStatusApproved:
	default:
		return ledgerdomain.ErrInvalidInitialStatus.WithField("status", string(req.Status))
	}
	req.Description = strings.TrimSpace(req.Description)
	req.SourceType = strings.TrimSpace(req.SourceType)
	req.SourceID = strings.TrimSpace(req.SourceID)
	return nil
}

func validateEntryAgainstAccount(entry *ledgerdomain.LedgerEntry, account *ledgerdomain.LedgerAccount) error {
	if account == nil {
		return ledgerdomain.ErrInvalidAccount.WithField("account_id", entry.AccountID.String())
	}
	if !account.IsActive {
		return ledgerdomain.ErrAccountInactive.WithField("account_id", account.ID.String())
	}
	if entry.TransactionDate.Before(account.OpeningDate) {
		return ledgerdomain.ErrInvalidTransactionDate.
			WithField("transaction_date", entry.TransactionDate.Format("2006-01-02")).
			WithField("opening_date", account.OpeningDate.Format("2006-01-02"))
	}
	return nil
}
