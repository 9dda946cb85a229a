package service

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	accountlinkdomain "github.com/smallbiznis/groupledger/internal/accountlink/domain"
	bridgedomain "github.com/smallbiznis/groupledger/internal/bridge/domain"
	ledgerdomain "github.com/smallbiznis/groupledger/internal/ledger/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log    *zap.Logger
	Ledger ledgerdomain.Service
	Links  accountlinkdomain.Resolver
}

type Service struct {
	log    *zap.Logger
	ledger ledgerdomain.Service
	links  accountlinkdomain.Resolver
}

func NewService(p Params) bridgedomain.Service {
	return &Service{
		log:    p.Log.Named("bridge.service"),
		ledger: p.Ledger,
		links:  p.Links,
	}
}

// PostEvent mirrors a member event as one ledger entry on the account linked
// to the event's product. Posting the same event again returns the entry
// already recorded for it, approving it if the event has since completed.
func (s *Service) PostEvent(ctx context.Context, event bridgedomain.MemberEvent) (*ledgerdomain.LedgerEntry, error) {
	if event.TenantID == 0 {
		return nil, bridgedomain.ErrInvalidTenant
	}
	event.EventID = strings.TrimSpace(event.EventID)
	if event.EventID == "" {
		return nil, bridgedomain.ErrInvalidEventID
	}
	event.ProductID = strings.TrimSpace(event.ProductID)
	if event.ProductID == "" {
		return nil, bridgedomain.ErrInvalidProduct
	}

	mapping, err := bridgedomain.Map(event.Type)
	if err != nil {
		s.log.Error("member event type has no ledger mapping",
			zap.String("tenant_id", event.TenantID.String()),
			zap.String("event_id", event.EventID),
			zap.String("type", string(event.Type)),
		)
		return nil, err
	}

	accountID, err := s.links.ResolveProduct(ctx, nil, event.TenantID, event.ProductID)
	if err != nil {
		if errors.Is(err, accountlinkdomain.ErrLinkMissing) {
			s.log.Error("member event product has no linked ledger account",
				zap.String("tenant_id", event.TenantID.String()),
				zap.String("event_id", event.EventID),
				zap.String("product_id", event.ProductID),
			)
		}
		return nil, err
	}

	completed := strings.EqualFold(strings.TrimSpace(event.Status), bridgedomain.StatusCompleted)

	existing, err := s.existing(ctx, event)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if err := matchesEvent(existing, event, mapping, accountID); err != nil {
			return nil, err
		}
		return s.settleExisting(ctx, existing, completed)
	}

	status := ledgerdomain.EntryStatusPending
	if completed {
		status = ledgerdomain.EntryStatusApproved
	}
	entry, err := s.ledger.CreateEntry(ctx, ledgerdomain.CreateEntryRequest{
		TenantID:        event.TenantID,
		AccountID:       accountID,
		Amount:          event.Amount,
		Direction:       mapping.Direction,
		Type:            mapping.EntryType,
		Status:          status,
		TransactionDate: event.TransactionDate,
		Description:     description(event),
		CreatedBy:       event.CreatedBy,
		SourceType:      bridgedomain.SourceTypeMemberTransaction,
		SourceID:        event.EventID,
	})
	if errors.Is(err, ledgerdomain.ErrDuplicateSource) {
		// Another request posted the same event first.
		existing, err := s.existing(ctx, event)
		if err != nil {
			return nil, err
		}
		if existing == nil {
			return nil, ledgerdomain.ErrDuplicateSource
		}
		if err := matchesEvent(existing, event, mapping, accountID); err != nil {
			return nil, err
		}
		return s.settleExisting(ctx, existing, completed)
	}
	if err != nil {
		return nil, err
	}

	s.log.Info("member event posted",
		zap.String("tenant_id", event.TenantID.String()),
		zap.String("event_id", event.EventID),
		zap.String("entry_id", entry.ID.String()),
		zap.String("status", string(entry.Status)),
	)
	return entry, nil
}

func (s *Service) existing(ctx context.Context, event bridgedomain.MemberEvent) (*ledgerdomain.LedgerEntry, error) {
	entry, err := s.ledger.FindEntryBySource(ctx, event.TenantID, bridgedomain.SourceTypeMemberTransaction, event.EventID)
	if errors.Is(err, ledgerdomain.ErrEntryNotFound) {
		return nil, nil
	}
	return entry, err
}

// matchesEvent rejects a replayed event id whose ledger effect differs from
// the entry already recorded for it.
func matchesEvent(entry *ledgerdomain.LedgerEntry, event bridgedomain.MemberEvent, mapping bridgedomain.Mapping, accountID snowflake.ID) error {
	var field string
	switch {
	case entry.AccountID != accountID:
		field = "product_id"
	case entry.Type != mapping.EntryType || entry.Direction != mapping.Direction:
		field = "type"
	case !entry.Amount.Equal(event.Amount.Round(2)):
		field = "amount"
	default:
		return nil
	}
	return ledgerdomain.ErrDuplicateSource.
		WithMessage("event was already posted with a different %s", field).
		WithField("event_id", event.EventID).
		WithField("entry_id", entry.ID.String())
}

func (s *Service) settleExisting(ctx context.Context, entry *ledgerdomain.LedgerEntry, completed bool) (*ledgerdomain.LedgerEntry, error) {
	if !completed || entry.Status != ledgerdomain.EntryStatusPending {
		return entry, nil
	}
	approved, err := s.ledger.Approve(ctx, entry.TenantID, entry.ID)
	if errors.Is(err, ledgerdomain.ErrConcurrentUpdate) || errors.Is(err, ledgerdomain.ErrInvalidTransition) {
		return s.ledger.FindEntryBySource(ctx, entry.TenantID, bridgedomain.SourceTypeMemberTransaction, *entry.SourceID)
	}
	return approved, err
}

func description(event bridgedomain.MemberEvent) string {
	if d := strings.TrimSpace(event.Description); d != "" {
		return d
	}
	return strings.ReplaceAll(string(event.Type), "_", " ") + " " + event.EventID
}
