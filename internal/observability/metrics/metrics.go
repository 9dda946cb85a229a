package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/smallbiznis/groupledger/internal/config"
	"go.uber.org/fx"
)

// Config labels every series with the service and environment.
type Config struct {
	ServiceName string
	Environment string
}

var Module = fx.Module("metrics",
	fx.Provide(
		func() *prometheus.Registry {
			registry := prometheus.NewRegistry()
			registry.MustRegister(
				collectors.NewGoCollector(),
				collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			)
			return registry
		},
		func(cfg config.Config, registry *prometheus.Registry) *Metrics {
			return New(registry, Config{ServiceName: cfg.ServiceName, Environment: cfg.Environment})
		},
	),
)

// Metrics holds the ledger and settlement instruments. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	entryTransitions  *prometheus.CounterVec
	reconcileRuns     *prometheus.CounterVec
	reconcileDrift    prometheus.Histogram
	settlementResults *prometheus.CounterVec
	settlementLatency prometheus.Histogram
	interestSkipped   *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
	httpInFlight      prometheus.Gauge
}

func New(registerer prometheus.Registerer, cfg Config) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "groupledger"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{"service": serviceName, "env": environment}

	m := &Metrics{
		entryTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "groupledger_ledger_entry_transitions_total",
			Help:        "Ledger entry status transitions by entry type and target status.",
			ConstLabels: constLabels,
		}, []string{"type", "status"}),
		reconcileRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "groupledger_reconcile_runs_total",
			Help:        "Balance recalculations by outcome.",
			ConstLabels: constLabels,
		}, []string{"result"}), // clean | repaired | failed
		reconcileDrift: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:        "groupledger_reconcile_drift_amount",
			Help:        "Absolute drift between cached and computed balance when a repair happens.",
			Buckets:     []float64{0.01, 0.1, 1, 10, 100, 1000, 10000},
			ConstLabels: constLabels,
		}),
		settlementResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "groupledger_cycle_settlements_total",
			Help:        "Cycle settlement attempts by outcome.",
			ConstLabels: constLabels,
		}, []string{"result"}), // completed | integrity_failed | conflict | failed
		settlementLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:        "groupledger_cycle_settlement_duration_seconds",
			Help:        "Wall time of a cycle settlement.",
			Buckets:     prometheus.DefBuckets,
			ConstLabels: constLabels,
		}),
		interestSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "groupledger_interest_loans_skipped_total",
			Help:        "Loans excluded from cycle interest because their records could not be evaluated.",
			ConstLabels: constLabels,
		}, []string{"reason"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "groupledger_http_server_duration_seconds",
			Help:        "HTTP request duration by route and status code.",
			Buckets:     prometheus.DefBuckets,
			ConstLabels: constLabels,
		}, []string{"endpoint", "status_code"}),
		httpInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "groupledger_http_server_in_flight",
			Help:        "HTTP requests currently being served.",
			ConstLabels: constLabels,
		}),
	}

	registerer.MustRegister(
		m.entryTransitions,
		m.reconcileRuns,
		m.reconcileDrift,
		m.settlementResults,
		m.settlementLatency,
		m.interestSkipped,
		m.httpDuration,
		m.httpInFlight,
	)
	return m
}

func (m *Metrics) IncEntryTransition(entryType, status string) {
	if m == nil {
		return
	}
	m.entryTransitions.WithLabelValues(entryType, status).Inc()
}

func (m *Metrics) ObserveReconcile(result string, drift float64) {
	if m == nil {
		return
	}
	m.reconcileRuns.WithLabelValues(result).Inc()
	if result == "repaired" {
		if drift < 0 {
			drift = -drift
		}
		m.reconcileDrift.Observe(drift)
	}
}

func (m *Metrics) ObserveSettlement(result string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.settlementResults.WithLabelValues(result).Inc()
	m.settlementLatency.Observe(elapsed.Seconds())
}

func (m *Metrics) IncInterestSkipped(reason string) {
	if m == nil {
		return
	}
	m.interestSkipped.WithLabelValues(reason).Inc()
}
