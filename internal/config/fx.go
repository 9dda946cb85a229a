package config

import (
	"os"

	"go.uber.org/fx"
)

// Module loads Config from the file named by GROUPLEDGER_CONFIG, if any.
var Module = fx.Module("config",
	fx.Provide(func() (Config, error) {
		return Load(os.Getenv(envPrefix + "_CONFIG"))
	}),
)
