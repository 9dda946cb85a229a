package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/groupledger/internal/audit/domain"
	"github.com/smallbiznis/groupledger/internal/auditcontext"
	"github.com/smallbiznis/groupledger/internal/clock"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  auditdomain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  auditdomain.Repository
}

func NewService(p Params) auditdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("audit.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) AuditLog(ctx context.Context, tx *gorm.DB, event auditdomain.Event) error {
	if event.TenantID == 0 {
		return auditdomain.ErrInvalidTenant
	}
	if strings.TrimSpace(string(event.EntityKind)) == "" || event.EntityID == 0 {
		return auditdomain.ErrInvalidEntity
	}
	action := strings.TrimSpace(event.Action)
	if action == "" {
		return auditdomain.ErrInvalidAction
	}

	actorType, actorID := auditcontext.ActorFromContext(ctx)
	if actorType == "" {
		actorType = string(auditdomain.ActorTypeSystem)
	}

	entry := &auditdomain.AuditLog{
		ID:         s.genID.Generate(),
		TenantID:   event.TenantID,
		ActorType:  actorType,
		ActorID:    optionalString(actorID),
		Action:     action,
		EntityKind: string(event.EntityKind),
		EntityID:   event.EntityID,
		Before:     toJSONMap(event.Before),
		After:      toJSONMap(event.After),
		RequestID:  optionalString(auditcontext.RequestIDFromContext(ctx)),
		CreatedAt:  s.clock.Now().UTC(),
	}

	db := tx
	if db == nil {
		db = s.db
	}
	if err := s.repo.Insert(ctx, db, entry); err != nil {
		s.log.Warn("failed to write audit log",
			zap.String("action", action),
			zap.String("entity_kind", entry.EntityKind),
			zap.String("entity_id", event.EntityID.String()),
			zap.Error(err),
		)
		return err
	}
	return nil
}

func (s *Service) List(ctx context.Context, filter auditdomain.ListFilter) ([]*auditdomain.AuditLog, error) {
	if filter.TenantID == 0 {
		return nil, auditdomain.ErrInvalidTenant
	}
	return s.repo.List(ctx, s.db, filter)
}

func toJSONMap(values map[string]any) datatypes.JSONMap {
	out := datatypes.JSONMap{}
	for key, value := range values {
		if strings.TrimSpace(key) == "" {
			continue
		}
		out[key] = value
	}
	return out
}

func optionalString(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}
