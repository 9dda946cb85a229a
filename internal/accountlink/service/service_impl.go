package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	accountlinkdomain "github.com/smallbiznis/groupledger/internal/accountlink/domain"
	"github.com/smallbiznis/groupledger/internal/cache"
	"github.com/smallbiznis/groupledger/internal/clock"
	"github.com/smallbiznis/groupledger/internal/config"
	ledgerdomain "github.com/smallbiznis/groupledger/internal/ledger/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Config     config.Config
	Repo       accountlinkdomain.Repository
	LedgerRepo ledgerdomain.Repository
}

type linkKey struct {
	tenantID snowflake.ID
	purpose  string
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	repo       accountlinkdomain.Repository
	ledgerRepo ledgerdomain.Repository
	cache      cache.Cache[linkKey, snowflake.ID]
	ttl        time.Duration
}

func NewService(p Params) accountlinkdomain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("accountlink.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		repo:       p.Repo,
		ledgerRepo: p.LedgerRepo,
		cache:      cache.NewTTLCache[linkKey, snowflake.ID](cache.WithNow(p.Clock.Now)),
		ttl:        p.Config.Ledger.LinkCacheTTL,
	}
}

func (s *Service) ResolveCashbox(ctx context.Context, db *gorm.DB, tenantID snowflake.ID) (snowflake.ID, error) {
	return s.resolve(ctx, db, tenantID, accountlinkdomain.PurposeCashbox)
}

func (s *Service) ResolveProduct(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, productID string) (snowflake.ID, error) {
	if strings.TrimSpace(productID) == "" {
		return 0, accountlinkdomain.ErrInvalidProduct
	}
	return s.resolve(ctx, db, tenantID, accountlinkdomain.ProductPurpose(productID))
}

func (s *Service) resolve(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, purpose string) (snowflake.ID, error) {
	if tenantID == 0 {
		return 0, accountlinkdomain.ErrInvalidTenant
	}
	if db == nil {
		db = s.db
	}
	return cache.GetOrLoad(s.cache, linkKey{tenantID: tenantID, purpose: purpose}, s.ttl, func() (snowflake.ID, error) {
		link, err := s.repo.Find(ctx, db, tenantID, purpose)
		if err != nil {
			return 0, err
		}
		if link == nil {
			s.log.Warn("account link missing",
				zap.String("tenant_id", tenantID.String()),
				zap.String("purpose", purpose),
			)
			return 0, accountlinkdomain.ErrLinkMissing.
				WithMessage("no ledger account is linked for %q", purpose).
				WithField("purpose", purpose)
		}
		return link.AccountID, nil
	})
}

func (s *Service) Link(ctx context.Context, tenantID snowflake.ID, purpose string, accountID snowflake.ID) (*accountlinkdomain.TenantAccountLink, error) {
	if tenantID == 0 {
		return nil, accountlinkdomain.ErrInvalidTenant
	}
	purpose = strings.TrimSpace(purpose)
	if !accountlinkdomain.ValidPurpose(purpose) {
		return nil, accountlinkdomain.ErrInvalidPurpose.WithField("purpose", purpose)
	}

	account, err := s.ledgerRepo.FindAccount(ctx, s.db, tenantID, accountID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, accountlinkdomain.ErrInvalidAccount.WithField("account_id", accountID.String())
	}

	now := s.clock.Now().UTC()
	link := &accountlinkdomain.TenantAccountLink{
		ID:        s.genID.Generate(),
		TenantID:  tenantID,
		Purpose:   purpose,
		AccountID: accountID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Upsert(ctx, s.db, link); err != nil {
		return nil, err
	}
	s.cache.Delete(linkKey{tenantID: tenantID, purpose: purpose})

	stored, err := s.repo.Find(ctx, s.db, tenantID, purpose)
	if err != nil {
		return nil, err
	}
	s.log.Info("account link saved",
		zap.String("tenant_id", tenantID.String()),
		zap.String("purpose", purpose),
		zap.String("account_id", accountID.String()),
	)
	return stored, nil
}

func (s *Service) List(ctx context.Context, tenantID snowflake.ID) ([]accountlinkdomain.TenantAccountLink, error) {
	if tenantID == 0 {
		return nil, accountlinkdomain.ErrInvalidTenant
	}
	return s.repo.List(ctx, s.db, tenantID)
}
