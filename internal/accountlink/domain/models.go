package domain

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
)

const (
	PurposeCashbox       = "cashbox"
	productPurposePrefix = "product:"
)

// ProductPurpose is the link purpose for a savings or loan product.
func ProductPurpose(productID string) string {
	return productPurposePrefix + strings.TrimSpace(productID)
}

// ValidPurpose accepts "cashbox" and "product:<id>".
func ValidPurpose(purpose string) bool {
	if purpose == PurposeCashbox {
		return true
	}
	return strings.HasPrefix(purpose, productPurposePrefix) && len(purpose) > len(productPurposePrefix)
}

// TenantAccountLink maps a tenant purpose to the ledger account that holds its
// money.
type TenantAccountLink struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	TenantID  snowflake.ID `gorm:"not null;uniqueIndex:ux_tenant_account_links_purpose,priority:1" json:"tenant_id"`
	Purpose   string       `gorm:"type:text;not null;uniqueIndex:ux_tenant_account_links_purpose,priority:2" json:"purpose"`
	AccountID snowflake.ID `gorm:"not null;index" json:"account_id"`
	CreatedAt time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time    `gorm:"not null" json:"updated_at"`
}

// TableName sets the database table name.
func (TenantAccountLink) TableName() string { return "tenant_account_links" }
