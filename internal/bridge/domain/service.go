package domain

import (
	"context"

	"github.com/smallbiznis/groupledger/internal/errs"
	ledgerdomain "github.com/smallbiznis/groupledger/internal/ledger/domain"
)

type Service interface {
	PostEvent(ctx context.Context, event MemberEvent) (*ledgerdomain.LedgerEntry, error)
}

var (
	ErrInvalidTenant  = errs.Validation("invalid_tenant", "tenant id is required")
	ErrInvalidEventID = errs.Validation("invalid_event_id", "member event id is required")
	ErrInvalidProduct = errs.Validation("invalid_product", "member event product is required")
	ErrUnmappedType   = errs.Configuration("unmapped_member_event_type", "member event type has no ledger mapping")
)
