package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	ledgerdomain "github.com/smallbiznis/groupledger/internal/ledger/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() ledgerdomain.Repository {
	return &repo{}
}

func (r *repo) InsertAccount(ctx context.Context, db *gorm.DB, account *ledgerdomain.LedgerAccount) error {
	return db.WithContext(ctx).Create(account).Error
}

func (r *repo) FindAccount(ctx context.Context, db *gorm.DB, tenantID, accountID snowflake.ID) (*ledgerdomain.LedgerAccount, error) {
	return r.findAccount(db.WithContext(ctx), tenantID, accountID)
}

func (r *repo) LockAccount(ctx context.Context, db *gorm.DB, tenantID, accountID snowflake.ID) (*ledgerdomain.LedgerAccount, error) {
	return r.findAccount(db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), tenantID, accountID)
}

func (r *repo) findAccount(db *gorm.DB, tenantID, accountID snowflake.ID) (*ledgerdomain.LedgerAccount, error) {
	var account ledgerdomain.LedgerAccount
	err := db.Where("tenant_id = ? AND id = ?", tenantID, accountID).Take(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *repo) ListAccounts(ctx context.Context, db *gorm.DB, tenantID snowflake.ID) ([]ledgerdomain.LedgerAccount, error) {
	var accounts []ledgerdomain.LedgerAccount
	err := db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("code ASC").
		Find(&accounts).Error
	return accounts, err
}

func (r *repo) ListActiveAccountRefs(ctx context.Context, db *gorm.DB, tenantID *snowflake.ID) ([]ledgerdomain.AccountRef, error) {
	query := db.WithContext(ctx).
		Model(&ledgerdomain.LedgerAccount{}).
		Select("tenant_id, id").
		Where("is_active = ?", true)
	if tenantID != nil {
		query = query.Where("tenant_id = ?", *tenantID)
	}
	var refs []ledgerdomain.AccountRef
	err := query.Order("tenant_id ASC, id ASC").Scan(&refs).Error
	return refs, err
}

func (r *repo) UpdateBalance(ctx context.Context, db *gorm.DB, tenantID, accountID snowflake.ID, balance decimal.Decimal, at time.Time) error {
	return db.WithContext(ctx).
		Model(&ledgerdomain.LedgerAccount{}).
		Where("tenant_id = ? AND id = ?", tenantID, accountID).
		Updates(map[string]any{
			"current_balance":     balance.Round(2),
			"last_balance_update": at,
			"updated_at":          at,
		}).Error
}

func (r *repo) InsertEntry(ctx context.Context, db *gorm.DB, entry *ledgerdomain.LedgerEntry) error {
	return db.WithContext(ctx).Create(entry).Error
}

func (r *repo) FindEntry(ctx context.Context, db *gorm.DB, tenantID, entryID snowflake.ID) (*ledgerdomain.LedgerEntry, error) {
	return r.findEntry(db.WithContext(ctx).Where("tenant_id = ? AND id = ?", tenantID, entryID))
}

func (r *repo) FindEntryBySource(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, sourceType, sourceID string) (*ledgerdomain.LedgerEntry, error) {
	return r.findEntry(db.WithContext(ctx).Where("tenant_id = ? AND source_type = ? AND source_id = ?", tenantID, sourceType, sourceID))
}

func (r *repo) findEntry(query *gorm.DB) (*ledgerdomain.LedgerEntry, error) {
	var entry ledgerdomain.LedgerEntry
	err := query.Take(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *repo) ListEntries(ctx context.Context, db *gorm.DB, tenantID, accountID snowflake.ID) ([]ledgerdomain.LedgerEntry, error) {
	var entries []ledgerdomain.LedgerEntry
	err := db.WithContext(ctx).
		Where("tenant_id = ? AND account_id = ?", tenantID, accountID).
		Order("transaction_date ASC, id ASC").
		Find(&entries).Error
	return entries, err
}

func (r *repo) TransitionEntry(ctx context.Context, db *gorm.DB, tenantID, entryID snowflake.ID, from, to ledgerdomain.EntryStatus, at time.Time) (bool, error) {
	updates := map[string]any{
		"status":     to,
		"updated_at": at,
	}
	switch to {
	case ledgerdomain.EntryStatusApproved:
		updates["approved_at"] = at
	case ledgerdomain.EntryStatusRejected:
		updates["rejected_at"] = at
	case ledgerdomain.EntryStatusCancelled:
		updates["cancelled_at"] = at
	}

	result := db.WithContext(ctx).
		Model(&ledgerdomain.LedgerEntry{}).
		Where("tenant_id = ? AND id = ? AND status = ?", tenantID, entryID, from).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

type sumRow struct {
	Total decimal.Decimal
}

func (r *repo) SumApproved(ctx context.Context, db *gorm.DB, tenantID, accountID snowflake.ID) (decimal.Decimal, error) {
	var row sumRow
	err := db.WithContext(ctx).Raw(
		`SELECT COALESCE(SUM(CASE WHEN direction = ? THEN amount ELSE -amount END), 0) AS total
		 FROM ledger_entries
		 WHERE tenant_id = ? AND account_id = ? AND status = ?`,
		ledgerdomain.DirectionCredit,
		tenantID,
		accountID,
		ledgerdomain.EntryStatusApproved,
	).Scan(&row).Error
	if err != nil {
		return decimal.Zero, err
	}
	return row.Total.Round(2), nil
}
