package bridge

import (
	"github.com/smallbiznis/groupledger/internal/bridge/service"
	"go.uber.org/fx"
)

var Module = fx.Module("bridge.service",
	fx.Provide(service.NewService),
)
