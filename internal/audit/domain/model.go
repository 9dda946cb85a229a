package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// ActorType represents who triggered an action.
type ActorType string

const (
	ActorTypeUser   ActorType = "user"
	ActorTypeSystem ActorType = "system"
)

// EntityKind names the kind of record an audit event describes.
type EntityKind string

const (
	EntityKindLedgerAccount EntityKind = "ledger_account"
	EntityKindLedgerEntry   EntityKind = "ledger_entry"
	EntityKindCycle         EntityKind = "cycle"
	EntityKindAllocation    EntityKind = "shareout_allocation"
)

// Event is one state transition handed to the audit sink.
type Event struct {
	TenantID   snowflake.ID
	EntityKind EntityKind
	EntityID   snowflake.ID
	Action     string
	Before     map[string]any
	After      map[string]any
}

// AuditLog captures an immutable record of a ledger or cycle action.
type AuditLog struct {
	ID         snowflake.ID      `gorm:"primaryKey"`
	TenantID   snowflake.ID      `gorm:"not null;index"`
	ActorType  string            `gorm:"type:text;not null"`
	ActorID    *string           `gorm:"type:text"`
	Action     string            `gorm:"type:text;not null;index"`
	EntityKind string            `gorm:"type:text;not null;index:idx_audit_logs_entity,priority:1"`
	EntityID   snowflake.ID      `gorm:"not null;index:idx_audit_logs_entity,priority:2"`
	Before     datatypes.JSONMap `gorm:"type:jsonb;not null;default:'{}'"`
	After      datatypes.JSONMap `gorm:"type:jsonb;not null;default:'{}'"`
	RequestID  *string           `gorm:"type:text"`
	CreatedAt  time.Time         `gorm:"not null"`
}

// TableName sets the database table name.
func (AuditLog) TableName() string { return "audit_logs" }
