package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus instrumentation surface for one engine
// instance. Counters track operation outcomes, gauges mirror live
// aggregates, and the crank histogram tracks keeper-cycle duration.
type Metrics struct {
	TradesExecuted      *prometheus.CounterVec
	Liquidations        *prometheus.CounterVec
	ForceRealizations    prometheus.Counter
	GCClosures           prometheus.Counter
	OverflowFallbacks    *prometheus.CounterVec

	Vault      prometheus.Gauge
	CTot       prometheus.Gauge
	PnLPosTot  prometheus.Gauge
	Insurance  prometheus.Gauge
	CrankCursor prometheus.Gauge

	CrankDuration prometheus.Histogram
}

// NewMetrics registers and returns a fresh Metrics set against the given
// registerer (pass prometheus.DefaultRegisterer in production, a fresh
// prometheus.NewRegistry() in tests to avoid collisions between runs).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		TradesExecuted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "riskslab_trades_executed_total",
			Help: "Trade attempts, labelled by outcome.",
		}, []string{"outcome"}),
		Liquidations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "riskslab_liquidations_total",
			Help: "Partial or full liquidations performed.",
		}, []string{"kind"}),
		ForceRealizations: factory.NewCounter(prometheus.CounterOpts{
			Name: "riskslab_force_realizations_total",
			Help: "Forced closes performed under insurance exhaustion.",
		}),
		GCClosures: factory.NewCounter(prometheus.CounterOpts{
			Name: "riskslab_gc_closures_total",
			Help: "Dust accounts garbage collected.",
		}),
		OverflowFallbacks: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "riskslab_overflow_fallbacks_total",
			Help: "Times an arithmetic overflow triggered a fail-safe worst-case path.",
		}, []string{"site"}),

		Vault: factory.NewGauge(prometheus.GaugeOpts{
			Name: "riskslab_vault",
			Help: "Current vault balance.",
		}),
		CTot: factory.NewGauge(prometheus.GaugeOpts{
			Name: "riskslab_c_tot",
			Help: "Sum of account capital.",
		}),
		PnLPosTot: factory.NewGauge(prometheus.GaugeOpts{
			Name: "riskslab_pnl_pos_tot",
			Help: "Sum of positive account PnL.",
		}),
		Insurance: factory.NewGauge(prometheus.GaugeOpts{
			Name: "riskslab_insurance",
			Help: "Insurance reserve balance.",
		}),
		CrankCursor: factory.NewGauge(prometheus.GaugeOpts{
			Name: "riskslab_crank_cursor",
			Help: "Current keeper-cycle cursor position.",
		}),

		CrankDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "riskslab_crank_duration_seconds",
			Help:    "Wall time spent in one KeeperCrank call.",
			Buckets: prometheus.DefBuckets,
		}),
	}
}
