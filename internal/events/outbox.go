package events

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/groupledger/internal/observability/tracing"
	"go.uber.org/fx"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var Module = fx.Module("events.outbox",
	fx.Provide(NewOutbox),
)

// Event describes a domain event to store in the outbox.
type Event struct {
	TenantID  snowflake.ID
	Type      string
	Payload   map[string]any
	DedupeKey string
}

// OutboxEvent is a stored event awaiting a relay.
type OutboxEvent struct {
	ID        snowflake.ID      `gorm:"primaryKey"`
	TenantID  snowflake.ID      `gorm:"not null;uniqueIndex:ux_outbox_events_dedupe,priority:1"`
	EventType string            `gorm:"type:text;not null;index"`
	Payload   datatypes.JSONMap `gorm:"type:jsonb;not null;default:'{}'"`
	DedupeKey *string           `gorm:"type:text;uniqueIndex:ux_outbox_events_dedupe,priority:2"`
	// TraceContext holds the W3C headers of the span that wrote the event so
	// a relay can continue the trace.
	TraceContext datatypes.JSONMap `gorm:"type:jsonb;not null;default:'{}'"`
	Published    bool              `gorm:"not null;default:false;index"`
	CreatedAt    time.Time         `gorm:"not null"`
}

// TableName sets the database table name.
func (OutboxEvent) TableName() string { return "outbox_events" }

// Context returns ctx joined to the trace that published e.
func (e OutboxEvent) Context(ctx context.Context) context.Context {
	headers := make(map[string]string, len(e.TraceContext))
	for key, value := range e.TraceContext {
		if text, ok := value.(string); ok {
			headers[key] = text
		}
	}
	return tracing.ContextFromCarrier(ctx, headers)
}

// Outbox inserts events into the outbox_events table.
type Outbox struct {
	db    *gorm.DB
	genID *snowflake.Node
}

func NewOutbox(db *gorm.DB, genID *snowflake.Node) *Outbox {
	return &Outbox{db: db, genID: genID}
}

// Publish stores an event using the default database connection.
func (o *Outbox) Publish(ctx context.Context, event Event) error {
	return o.publish(ctx, o.db, event)
}

// PublishTx stores an event using an existing transaction.
func (o *Outbox) PublishTx(ctx context.Context, tx *gorm.DB, event Event) error {
	if tx == nil {
		return errors.New("missing_transaction")
	}
	return o.publish(ctx, tx, event)
}

// Pending returns unpublished events for a tenant, oldest first.
func (o *Outbox) Pending(ctx context.Context, tenantID snowflake.ID, limit int) ([]OutboxEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	var items []OutboxEvent
	err := o.db.WithContext(ctx).
		Where("tenant_id = ? AND published = ?", tenantID, false).
		Order("created_at ASC, id ASC").
		Limit(limit).
		Find(&items).Error
	return items, err
}

func (o *Outbox) publish(ctx context.Context, db *gorm.DB, event Event) error {
	if o == nil || db == nil || o.genID == nil {
		return errors.New("outbox_unavailable")
	}
	if event.TenantID == 0 {
		return errors.New("invalid_tenant_id")
	}
	name := strings.TrimSpace(event.Type)
	if name == "" {
		return errors.New("missing_event_type")
	}

	payload := datatypes.JSONMap{}
	for key, value := range event.Payload {
		if strings.TrimSpace(key) == "" {
			continue
		}
		payload[key] = value
	}

	var dedupe *string
	if key := strings.TrimSpace(event.DedupeKey); key != "" {
		dedupe = &key
	}

	traceContext := datatypes.JSONMap{}
	for key, value := range tracing.CarrierFromContext(ctx) {
		traceContext[key] = value
	}

	row := OutboxEvent{
		ID:        o.genID.Generate(),
		TenantID:  event.TenantID,
		EventType: name,
		Payload:      payload,
		DedupeKey:    dedupe,
		TraceContext: traceContext,
		CreatedAt:    time.Now().UTC(),
	}
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "tenant_id"}, {Name: "dedupe_key"}},
			DoNothing: true,
		}).
		Create(&row).Error
}
