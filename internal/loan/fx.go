package loan

import (
	"github.com/smallbiznis/groupledger/internal/loan/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("loan.repository",
	fx.Provide(repository.Provide),
)
