package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	auditdomain "github.com/smallbiznis/groupledger/internal/audit/domain"
	"github.com/smallbiznis/groupledger/internal/clock"
	"github.com/smallbiznis/groupledger/internal/config"
	"github.com/smallbiznis/groupledger/internal/events"
	ledgerdomain "github.com/smallbiznis/groupledger/internal/ledger/domain"
	"github.com/smallbiznis/groupledger/internal/observability/metrics"
	"github.com/smallbiznis/groupledger/internal/observability/tracing"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Config  config.Config
	Repo    ledgerdomain.Repository
	Audit   auditdomain.Sink
	Outbox  *events.Outbox
	Metrics *metrics.Metrics `optional:"true"`
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	clock     clock.Clock
	repo      ledgerdomain.Repository
	audit     auditdomain.Sink
	outbox    *events.Outbox
	metrics   *metrics.Metrics
	tolerance decimal.Decimal
}

func NewService(p Params) ledgerdomain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("ledger.service"),
		genID:     p.GenID,
		clock:     p.Clock,
		repo:      p.Repo,
		audit:     p.Audit,
		outbox:    p.Outbox,
		metrics:   p.Metrics,
		tolerance: p.Config.Tolerance(),
	}
}

func (s *Service) CreateAccount(ctx context.Context, req ledgerdomain.CreateAccountRequest) (*ledgerdomain.LedgerAccount, error) {
	if err := validateAccountRequest(&req); err != nil {
		return nil, err
	}

	now := s.clock.Now().UTC()
	account := &ledgerdomain.LedgerAccount{
		ID:                   s.genID.Generate(),
		TenantID:             req.TenantID,
		Code:                 req.Code,
		Name:                 req.Name,
		Currency:             req.Currency,
		OpeningDate:          req.OpeningDate.UTC(),
		OpeningBalance:       req.OpeningBalance.Round(2),
		CurrentBalance:       decimal.Zero,
		BlockedBalance:       decimal.Zero,
		MinimumBalance:       nullDecimal(req.MinimumBalance),
		MaximumBalance:       nullDecimal(req.MaximumBalance),
		IsActive:             true,
		AllowNegativeBalance: req.AllowNegativeBalance,
		CreatedAt:            now,
		UpdatedAt:            now,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.InsertAccount(ctx, tx, account); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ledgerdomain.ErrAccountCodeTaken.WithField("code", account.Code)
			}
			return err
		}

		if account.OpeningBalance.IsPositive() {
			entry := &ledgerdomain.LedgerEntry{
				ID:              s.genID.Generate(),
				TenantID:        account.TenantID,
				AccountID:       account.ID,
				TransactionDate: account.OpeningDate,
				Amount:          account.OpeningBalance,
				Direction:       ledgerdomain.DirectionCredit,
				Type:            ledgerdomain.EntryTypeOpeningBalance,
				Status:          ledgerdomain.EntryStatusApproved,
				Description:     "Opening balance",
				CreatedBy:       optionalString(req.CreatedBy),
				SourceType:      optionalString(ledgerdomain.SourceTypeAccountOpening),
				SourceID:        optionalString(account.ID.String()),
				ApprovedAt:      &now,
				CreatedAt:       now,
				UpdatedAt:       now,
			}
			if err := s.applyEffect(ctx, tx, account, entry.SignedAmount(), now); err != nil {
				return err
			}
			if err := s.repo.InsertEntry(ctx, tx, entry); err != nil {
				return err
			}
		}

		return s.audit.AuditLog(ctx, tx, auditdomain.Event{
			TenantID:   account.TenantID,
			EntityKind: auditdomain.EntityKindLedgerAccount,
			EntityID:   account.ID,
			Action:     "ledger_account.create",
			After:      accountSnapshot(account),
		})
	})
	if err != nil {
		return nil, err
	}
	return account, nil
}

func (s *Service) GetAccount(ctx context.Context, tenantID, accountID snowflake.ID) (*ledgerdomain.LedgerAccount, error) {
	if tenantID == 0 {
		return nil, ledgerdomain.ErrInvalidTenant
	}
	account, err := s.repo.FindAccount(ctx, s.db, tenantID, accountID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, ledgerdomain.ErrAccountNotFound
	}
	return account, nil
}

func (s *Service) ListAccounts(ctx context.Context, tenantID snowflake.ID) ([]ledgerdomain.LedgerAccount, error) {
	if tenantID == 0 {
		return nil, ledgerdomain.ErrInvalidTenant
	}
	return s.repo.ListAccounts(ctx, s.db, tenantID)
}

func (s *Service) ListEntries(ctx context.Context, tenantID, accountID snowflake.ID) ([]ledgerdomain.LedgerEntry, error) {
	if _, err := s.GetAccount(ctx, tenantID, accountID); err != nil {
		return nil, err
	}
	return s.repo.ListEntries(ctx, s.db, tenantID, accountID)
}

func (s *Service) FindEntryBySource(ctx context.Context, tenantID snowflake.ID, sourceType, sourceID string) (*ledgerdomain.LedgerEntry, error) {
	entry, err := s.repo.FindEntryBySource(ctx, s.db, tenantID, strings.TrimSpace(sourceType), strings.TrimSpace(sourceID))
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, ledgerdomain.ErrEntryNotFound
	}
	return entry, nil
}

func (s *Service) CreateEntry(ctx context.Context, req ledgerdomain.CreateEntryRequest) (*ledgerdomain.LedgerEntry, error) {
	ctx, span := tracing.StartSpan(ctx, "ledger", "ledger.CreateEntry",
		attribute.String("tenant_id", req.TenantID.String()),
		attribute.String("type", string(req.Type)),
	)
	entry, err := s.createEntry(ctx, req)
	tracing.EndSpan(span, err)
	return entry, err
}

func (s *Service) createEntry(ctx context.Context, req ledgerdomain.CreateEntryRequest) (*ledgerdomain.LedgerEntry, error) {
	if err := validateEntryRequest(&req); err != nil {
		return nil, err
	}

	now := s.clock.Now().UTC()
	entry := &ledgerdomain.LedgerEntry{
		ID:              s.genID.Generate(),
		TenantID:        req.TenantID,
		AccountID:       req.AccountID,
		TransactionDate: req.TransactionDate.UTC(),
		Amount:          req.Amount.Round(2),
		Direction:       req.Direction,
		Type:            req.Type,
		Status:          req.Status,
		Description:     req.Description,
		CreatedBy:       optionalString(req.CreatedBy),
		SourceType:      optionalString(req.SourceType),
		SourceID:        optionalString(req.SourceID),
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var (
			account *ledgerdomain.LedgerAccount
			err     error
		)
		if entry.Status == ledgerdomain.EntryStatusApproved {
			account, err = s.repo.LockAccount(ctx, tx, entry.TenantID, entry.AccountID)
		} else {
			account, err = s.repo.FindAccount(ctx, tx, entry.TenantID, entry.AccountID)
		}
		if err != nil {
			return err
		}
		if err := validateEntryAgainstAccount(entry, account); err != nil {
			return err
		}

		if entry.Status == ledgerdomain.EntryStatusApproved {
			if err := s.applyEffect(ctx, tx, account, entry.SignedAmount(), now); err != nil {
				return err
			}
			entry.ApprovedAt = &now
		}

		if err := s.repo.InsertEntry(ctx, tx, entry); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ledgerdomain.ErrDuplicateSource.
					WithField("source_type", req.SourceType).
					WithField("source_id", req.SourceID)
			}
			return err
		}

		if err := s.audit.AuditLog(ctx, tx, auditdomain.Event{
			TenantID:   entry.TenantID,
			EntityKind: auditdomain.EntityKindLedgerEntry,
			EntityID:   entry.ID,
			Action:     "ledger_entry.create",
			After:      entrySnapshot(entry),
		}); err != nil {
			return err
		}

		if entry.Status == ledgerdomain.EntryStatusApproved {
			return s.publishEntryEvent(ctx, tx, events.EventLedgerEntryApproved, entry)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncEntryTransition(string(entry.Type), string(entry.Status))
	s.log.Info("ledger entry created",
		zap.String("tenant_id", entry.TenantID.String()),
		zap.String("entry_id", entry.ID.String()),
		zap.String("account_id", entry.AccountID.String()),
		zap.String("status", string(entry.Status)),
		zap.String("amount", entry.Amount.StringFixed(2)),
	)
	return entry, nil
}

func (s *Service) Approve(ctx context.Context, tenantID, entryID snowflake.ID) (*ledgerdomain.LedgerEntry, error) {
	return s.transition(ctx, tenantID, entryID, ledgerdomain.EntryStatusApproved)
}

func (s *Service) Reject(ctx context.Context, tenantID, entryID snowflake.ID) (*ledgerdomain.LedgerEntry, error) {
	return s.transition(ctx, tenantID, entryID, ledgerdomain.EntryStatusRejected)
}

func (s *Service) Cancel(ctx context.Context, tenantID, entryID snowflake.ID) (*ledgerdomain.LedgerEntry, error) {
	return s.transition(ctx, tenantID, entryID, ledgerdomain.EntryStatusCancelled)
}

// transition moves an entry to target. Approving, or cancelling an approved
// entry, changes the account balance; those paths lock the account row first
// and re-check the balance policy under the lock.
func (s *Service) transition(ctx context.Context, tenantID, entryID snowflake.ID, target ledgerdomain.EntryStatus) (*ledgerdomain.LedgerEntry, error) {
	if tenantID == 0 {
		return nil, ledgerdomain.ErrInvalidTenant
	}
	ctx, span := tracing.StartSpan(ctx, "ledger", "ledger.Transition",
		attribute.String("tenant_id", tenantID.String()),
		attribute.String("entry_id", entryID.String()),
		attribute.String("target", string(target)),
	)
	var spanErr error
	defer func() { tracing.EndSpan(span, spanErr) }()

	var entry *ledgerdomain.LedgerEntry
	spanErr = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		entry, err = s.repo.FindEntry(ctx, tx, tenantID, entryID)
		if err != nil {
			return err
		}
		if entry == nil {
			return ledgerdomain.ErrEntryNotFound
		}
		from := entry.Status
		if err := ledgerdomain.ValidateTransition(from, target); err != nil {
			return err
		}
		before := entrySnapshot(entry)
		now := s.clock.Now().UTC()

		var delta decimal.Decimal
		switch {
		case target == ledgerdomain.EntryStatusApproved:
			delta = entry.SignedAmount()
		case target == ledgerdomain.EntryStatusCancelled && from == ledgerdomain.EntryStatusApproved:
			delta = entry.SignedAmount().Neg()
		}

		if !delta.IsZero() {
			account, err := s.repo.LockAccount(ctx, tx, tenantID, entry.AccountID)
			if err != nil {
				return err
			}
			if account == nil {
				return ledgerdomain.ErrInvalidAccount
			}
			if target == ledgerdomain.EntryStatusApproved && !account.IsActive {
				return ledgerdomain.ErrAccountInactive
			}
			if err := s.applyEffect(ctx, tx, account, delta, now); err != nil {
				return err
			}
		}

		ok, err := s.repo.TransitionEntry(ctx, tx, tenantID, entryID, from, target, now)
		if err != nil {
			return err
		}
		if !ok {
			return ledgerdomain.ErrConcurrentUpdate
		}
		stampTransition(entry, target, now)

		if err := s.audit.AuditLog(ctx, tx, auditdomain.Event{
			TenantID:   tenantID,
			EntityKind: auditdomain.EntityKindLedgerEntry,
			EntityID:   entryID,
			Action:     "ledger_entry." + transitionAction(target),
			Before:     before,
			After:      entrySnapshot(entry),
		}); err != nil {
			return err
		}

		switch {
		case target == ledgerdomain.EntryStatusApproved:
			return s.publishEntryEvent(ctx, tx, events.EventLedgerEntryApproved, entry)
		case target == ledgerdomain.EntryStatusCancelled && from == ledgerdomain.EntryStatusApproved:
			return s.publishEntryEvent(ctx, tx, events.EventLedgerEntryCancelled, entry)
		}
		return nil
	})
	if spanErr != nil {
		return nil, spanErr
	}

	s.metrics.IncEntryTransition(string(entry.Type), string(target))
	s.log.Info("ledger entry transitioned",
		zap.String("tenant_id", tenantID.String()),
		zap.String("entry_id", entryID.String()),
		zap.String("status", string(target)),
	)
	return entry, nil
}

// applyEffect checks delta against the locked account and writes the new
// cached balance.
func (s *Service) applyEffect(ctx context.Context, tx *gorm.DB, account *ledgerdomain.LedgerAccount, delta decimal.Decimal, now time.Time) error {
	if err := ledgerdomain.CheckEffect(*account, delta); err != nil {
		return err
	}
	balance := account.CurrentBalance.Add(delta).Round(2)
	if err := s.repo.UpdateBalance(ctx, tx, account.TenantID, account.ID, balance, now); err != nil {
		return err
	}
	account.CurrentBalance = balance
	account.LastBalanceUpdate = &now
	account.UpdatedAt = now
	return nil
}

func (s *Service) publishEntryEvent(ctx context.Context, tx *gorm.DB, eventType string, entry *ledgerdomain.LedgerEntry) error {
	payload := events.LedgerEntryPayload{
		LedgerEntryID: entry.ID.String(),
		AccountID:     entry.AccountID.String(),
		Direction:     string(entry.Direction),
		Amount:        entry.Amount.StringFixed(2),
	}
	if entry.SourceType != nil {
		payload.SourceType = *entry.SourceType
	}
	if entry.SourceID != nil {
		payload.SourceID = *entry.SourceID
	}
	return s.outbox.PublishTx(ctx, tx, events.Event{
		TenantID:  entry.TenantID,
		Type:      eventType,
		Payload:   payload.ToMap(),
		DedupeKey: eventType + ":" + entry.ID.String(),
	})
}

func stampTransition(entry *ledgerdomain.LedgerEntry, target ledgerdomain.EntryStatus, at time.Time) {
	entry.Status = target
	entry.UpdatedAt = at
	switch target {
	case ledgerdomain.EntryStatusApproved:
		entry.ApprovedAt = &at
	case ledgerdomain.EntryStatusRejected:
		entry.RejectedAt = &at
	case ledgerdomain.EntryStatusCancelled:
		entry.CancelledAt = &at
	}
}

func transitionAction(target ledgerdomain.EntryStatus) string {
	switch target {
	case ledgerdomain.EntryStatusApproved:
		return "approve"
	case ledgerdomain.EntryStatusRejected:
		return "reject"
	default:
		return "cancel"
	}
}

func entrySnapshot(entry *ledgerdomain.LedgerEntry) map[string]any {
	return map[string]any{
		"status":     string(entry.Status),
		"amount":     entry.Amount.StringFixed(2),
		"direction":  string(entry.Direction),
		"type":       string(entry.Type),
		"account_id": entry.AccountID.String(),
	}
}

func accountSnapshot(account *ledgerdomain.LedgerAccount) map[string]any {
	return map[string]any{
		"code":            account.Code,
		"currency":        account.Currency,
		"current_balance": account.CurrentBalance.StringFixed(2),
		"opening_balance": account.OpeningBalance.StringFixed(2),
		"is_active":       account.IsActive,
	}
}

func nullDecimal(value *decimal.Decimal) decimal.NullDecimal {
	if value == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(value.Round(2))
}

func optionalString(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}
