package observability

import (
	"github.com/smallbiznis/groupledger/internal/observability/logger"
	"github.com/smallbiznis/groupledger/internal/observability/metrics"
	"github.com/smallbiznis/groupledger/internal/observability/tracing"
	"go.uber.org/fx"
)

// Module wires logging, tracing and metrics.
var Module = fx.Options(
	logger.Module,
	tracing.Module,
	metrics.Module,
)
