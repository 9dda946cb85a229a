package domain

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

// Sink appends audit facts. A non-nil tx makes the write part of the caller's
// transaction, so a rolled back operation leaves no audit row behind.
type Sink interface {
	AuditLog(ctx context.Context, tx *gorm.DB, event Event) error
}

type Service interface {
	Sink
	List(ctx context.Context, filter ListFilter) ([]*AuditLog, error)
}

var (
	ErrInvalidTenant = errors.New("invalid_tenant")
	ErrInvalidEntity = errors.New("invalid_entity")
	ErrInvalidAction = errors.New("invalid_action")
)
