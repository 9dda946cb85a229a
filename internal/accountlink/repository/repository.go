package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	accountlinkdomain "github.com/smallbiznis/groupledger/internal/accountlink/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() accountlinkdomain.Repository {
	return &repo{}
}

func (r *repo) Find(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, purpose string) (*accountlinkdomain.TenantAccountLink, error) {
	var link accountlinkdomain.TenantAccountLink
	err := db.WithContext(ctx).
		Where("tenant_id = ? AND purpose = ?", tenantID, purpose).
		Take(&link).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &link, nil
}

func (r *repo) Upsert(ctx context.Context, db *gorm.DB, link *accountlinkdomain.TenantAccountLink) error {
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "tenant_id"}, {Name: "purpose"}},
			DoUpdates: clause.AssignmentColumns([]string{"account_id", "updated_at"}),
		}).
		Create(link).Error
}

func (r *repo) List(ctx context.Context, db *gorm.DB, tenantID snowflake.ID) ([]accountlinkdomain.TenantAccountLink, error) {
	var links []accountlinkdomain.TenantAccountLink
	err := db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("purpose ASC").
		Find(&links).Error
	return links, err
}
