package audit

import (
	auditdomain "github.com/smallbiznis/groupledger/internal/audit/domain"
	"github.com/smallbiznis/groupledger/internal/audit/repository"
	"github.com/smallbiznis/groupledger/internal/audit/service"
	"go.uber.org/fx"
)

var Module = fx.Module("audit.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
	fx.Provide(func(svc auditdomain.Service) auditdomain.Sink { return svc }),
)
