package testutil

import (
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/jonboulle/clockwork"
	auditdomain "github.com/smallbiznis/groupledger/internal/audit/domain"
	auditrepo "github.com/smallbiznis/groupledger/internal/audit/repository"
	auditservice "github.com/smallbiznis/groupledger/internal/audit/service"
	"github.com/smallbiznis/groupledger/internal/config"
	"github.com/smallbiznis/groupledger/internal/events"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Env bundles the collaborators most service tests need.
type Env struct {
	DB     *gorm.DB
	Node   *snowflake.Node
	Clock  *clockwork.FakeClock
	Config config.Config
	Log    *zap.Logger
	Audit  auditdomain.Service
	Outbox *events.Outbox
}

// Day is a fixed reference instant for tests.
var Day = time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)

func NewEnv(t *testing.T) *Env {
	t.Helper()
	conn := NewDB(t)
	node := NewNode(t)
	clk := clockwork.NewFakeClockAt(Day)
	log := zap.NewNop()

	return &Env{
		DB:     conn,
		Node:   node,
		Clock:  clk,
		Config: config.Config{Ledger: config.LedgerConfig{ReconcileTolerance: "0.01", LinkCacheTTL: time.Minute}},
		Log:    log,
		Audit: auditservice.NewService(auditservice.Params{
			DB:    conn,
			Log:   log,
			GenID: node,
			Clock: clk,
			Repo:  auditrepo.Provide(),
		}),
		Outbox: events.NewOutbox(conn, node),
	}
}

// AuditActions lists the actions recorded for an entity, oldest first.
func (e *Env) AuditActions(t *testing.T, tenantID snowflake.ID, kind auditdomain.EntityKind, entityID snowflake.ID) []string {
	t.Helper()
	var actions []string
	err := e.DB.Model(&auditdomain.AuditLog{}).
		Where("tenant_id = ? AND entity_kind = ? AND entity_id = ?", tenantID, kind, entityID).
		Order("created_at ASC, id ASC").
		Pluck("action", &actions).Error
	if err != nil {
		t.Fatalf("load audit actions: %v", err)
	}
	return actions
}

// Date is a UTC midnight helper.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
