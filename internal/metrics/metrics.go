// README: Prometheus collectors for pricing calculations, promotion usage and snapshot loads.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Calculations        *prometheus.CounterVec
	CalculationDuration *prometheus.HistogramVec
	PromotionsConsumed  *prometheus.CounterVec
	ConsumptionRetries  prometheus.Counter
	SnapshotVersion     prometheus.Gauge
	SnapshotLoad        prometheus.Histogram
	HTTPRequests        *prometheus.CounterVec
}

// New registers the collectors on reg. Use prometheus.DefaultRegisterer in
// main and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Calculations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "velo",
			Name:      "pricing_calculations_total",
			Help:      "Price calculations by operation and outcome.",
		}, []string{"operation", "outcome"}),
		CalculationDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "velo",
			Name:      "pricing_calculation_duration_seconds",
			Help:      "Time spent computing a price.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		}, []string{"operation"}),
		PromotionsConsumed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "velo",
			Name:      "promotions_consumed_total",
			Help:      "Successful promotion consumptions.",
		}, []string{"promotion_id"}),
		ConsumptionRetries: f.NewCounter(prometheus.CounterOpts{
			Namespace: "velo",
			Name:      "promotion_consumption_conflicts_total",
			Help:      "Promotions that ran out between selection and consumption.",
		}),
		SnapshotVersion: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "velo",
			Name:      "snapshot_version",
			Help:      "Version of the pricing snapshot currently loaded.",
		}),
		SnapshotLoad: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "velo",
			Name:      "snapshot_load_duration_seconds",
			Help:      "Time spent loading a pricing snapshot.",
			Buckets:   prometheus.DefBuckets,
		}),
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "velo",
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status.",
		}, []string{"route", "status"}),
	}
}

// ObserveSnapshot matches snapshot.Manager's OnLoad hook.
func (m *Metrics) ObserveSnapshot(version uint64, took time.Duration) {
	m.SnapshotVersion.Set(float64(version))
	m.SnapshotLoad.Observe(took.Seconds())
}
