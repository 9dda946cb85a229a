package cycle

import (
	cycledomain "github.com/smallbiznis/groupledger/internal/cycle/domain"
	"github.com/smallbiznis/groupledger/internal/cycle/repository"
	"github.com/smallbiznis/groupledger/internal/cycle/service"
	"github.com/smallbiznis/groupledger/internal/interest"
	"go.uber.org/fx"
)

var Module = fx.Module("cycle.service",
	fx.Provide(repository.Provide),
	fx.Provide(func(c *interest.Calculator) cycledomain.InterestSource { return c }),
	fx.Provide(service.NewService),
)
