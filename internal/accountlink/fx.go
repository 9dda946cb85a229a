package accountlink

import (
	accountlinkdomain "github.com/smallbiznis/groupledger/internal/accountlink/domain"
	"github.com/smallbiznis/groupledger/internal/accountlink/repository"
	"github.com/smallbiznis/groupledger/internal/accountlink/service"
	"go.uber.org/fx"
)

var Module = fx.Module("accountlink.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
	fx.Provide(func(svc accountlinkdomain.Service) accountlinkdomain.Resolver { return svc }),
)
