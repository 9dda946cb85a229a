package clock

import (
	"github.com/jonboulle/clockwork"
	"go.uber.org/fx"
)

// Module provides the service clock and the clockwork clock used by the job scheduler.
var Module = fx.Module("clock",
	fx.Provide(
		func() Clock { return SystemClock{} },
		clockwork.NewRealClock,
	),
)
