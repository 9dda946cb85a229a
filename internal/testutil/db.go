// Package testutil opens migrated in-memory databases for package tests.
package testutil

import (
	"context"
	"strings"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/groupledger/internal/config"
	"github.com/smallbiznis/groupledger/internal/migration"
	"github.com/smallbiznis/groupledger/pkg/db"
	"gorm.io/gorm"
)

// NewDB returns a private sqlite database with the full schema applied. The
// pool holds a single connection, so code under test must use the tx handed to
// it inside a transaction.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_", "#", "_").Replace(t.Name())
	conn, err := db.Open(config.DatabaseConfig{
		Driver:       "sqlite",
		DSN:          "file:" + name + "?mode=memory&cache=shared",
		MaxOpenConns: 1,
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := migration.Run(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return conn
}

// NewNode returns a snowflake node for tests.
func NewNode(t *testing.T) *snowflake.Node {
	t.Helper()
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}
	return node
}

// Insert creates rows directly, bypassing services.
func Insert(t *testing.T, conn *gorm.DB, rows ...any) {
	t.Helper()
	for _, row := range rows {
		if err := conn.WithContext(context.Background()).Create(row).Error; err != nil {
			t.Fatalf("insert %T: %v", row, err)
		}
	}
}
