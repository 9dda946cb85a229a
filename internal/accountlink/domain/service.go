package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/groupledger/internal/errs"
	"gorm.io/gorm"
)

// Resolver finds the ledger account configured for a purpose. db may be a
// transaction; lookups then read through it.
type Resolver interface {
	ResolveCashbox(ctx context.Context, db *gorm.DB, tenantID snowflake.ID) (snowflake.ID, error)
	ResolveProduct(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, productID string) (snowflake.ID, error)
}

type Service interface {
	Resolver
	Link(ctx context.Context, tenantID snowflake.ID, purpose string, accountID snowflake.ID) (*TenantAccountLink, error)
	List(ctx context.Context, tenantID snowflake.ID) ([]TenantAccountLink, error)
}

type Repository interface {
	Find(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, purpose string) (*TenantAccountLink, error)
	Upsert(ctx context.Context, db *gorm.DB, link *TenantAccountLink) error
	List(ctx context.Context, db *gorm.DB, tenantID snowflake.ID) ([]TenantAccountLink, error)
}

var (
	ErrInvalidTenant  = errs.Validation("invalid_tenant", "tenant id is required")
	ErrInvalidPurpose = errs.Validation("invalid_purpose", `purpose must be "cashbox" or "product:<id>"`)
	ErrInvalidProduct = errs.Validation("invalid_product", "product id is required")
	ErrInvalidAccount = errs.Validation("invalid_account", "linked account does not exist")
	ErrLinkMissing    = errs.Configuration("account_link_missing", "no ledger account is linked for this purpose")
)
