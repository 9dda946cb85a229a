package events

// Ledger and cycle event types written to the outbox.
const (
	EventLedgerEntryApproved  = "ledger_entry_approved"
	EventLedgerEntryCancelled = "ledger_entry_cancelled"
	EventCycleSettled         = "cycle_settled"
)

// LedgerEntryPayload identifies an entry whose balance effect changed.
type LedgerEntryPayload struct {
	LedgerEntryID string
	AccountID     string
	Direction     string
	Amount        string
	SourceType    string
	SourceID      string
}

// ToMap converts a payload into an outbox-friendly map.
func (p LedgerEntryPayload) ToMap() map[string]any {
	payload := map[string]any{
		"ledger_entry_id": p.LedgerEntryID,
		"account_id":      p.AccountID,
		"direction":       p.Direction,
		"amount":          p.Amount,
	}
	if p.SourceType != "" {
		payload["source_type"] = p.SourceType
	}
	if p.SourceID != "" {
		payload["source_id"] = p.SourceID
	}
	return payload
}

// CycleSettledPayload summarises a completed settlement.
type CycleSettledPayload struct {
	CycleID          string
	Allocations      int
	TotalAvailable   string
	TotalNetPayout   string
	SkippedPaidCount int
}

func (p CycleSettledPayload) ToMap() map[string]any {
	return map[string]any{
		"cycle_id":           p.CycleID,
		"allocations":        p.Allocations,
		"total_available":    p.TotalAvailable,
		"total_net_payout":   p.TotalNetPayout,
		"skipped_paid_count": p.SkippedPaidCount,
	}
}
