package shareout

import (
	"github.com/smallbiznis/groupledger/internal/shareout/repository"
	"github.com/smallbiznis/groupledger/internal/shareout/service"
	"go.uber.org/fx"
)

var Module = fx.Module("shareout.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
