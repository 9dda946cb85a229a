package migration

import (
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	accountlinkdomain "github.com/smallbiznis/groupledger/internal/accountlink/domain"
	auditdomain "github.com/smallbiznis/groupledger/internal/audit/domain"
	cycledomain "github.com/smallbiznis/groupledger/internal/cycle/domain"
	"github.com/smallbiznis/groupledger/internal/events"
	ledgerdomain "github.com/smallbiznis/groupledger/internal/ledger/domain"
	loandomain "github.com/smallbiznis/groupledger/internal/loan/domain"
	shareoutdomain "github.com/smallbiznis/groupledger/internal/shareout/domain"
	"gorm.io/gorm"
)

// Models lists every table owned by the service.
func Models() []any {
	return []any{
		&ledgerdomain.LedgerAccount{},
		&ledgerdomain.LedgerEntry{},
		&accountlinkdomain.TenantAccountLink{},
		&loandomain.LoanProduct{},
		&loandomain.Loan{},
		&cycledomain.Cycle{},
		&cycledomain.Contribution{},
		&shareoutdomain.Allocation{},
		&auditdomain.AuditLog{},
		&events.OutboxEvent{},
	}
}

// Run creates or updates the schema, then applies the embedded SQL files in
// name order. Every statement is idempotent.
func Run(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}

	names, err := fs.Glob(embeddedMigrations, path.Join(migrationsDir, "*.up.sql"))
	if err != nil {
		return err
	}
	sort.Strings(names)

	for _, name := range names {
		raw, err := embeddedMigrations.ReadFile(name)
		if err != nil {
			return fmt.Errorf("read %s: %w", name, err)
		}
		statement := strings.TrimSpace(string(raw))
		if statement == "" {
			continue
		}
		if err := db.Exec(statement).Error; err != nil {
			return fmt.Errorf("apply %s: %w", path.Base(name), err)
		}
	}
	return nil
}
