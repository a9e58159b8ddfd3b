package scan

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects scan and identification counters on a private registry
type Metrics struct {
	registry         *prometheus.Registry
	scansTotal       *prometheus.CounterVec
	identifyTotal    *prometheus.CounterVec
	identifyDuration *prometheus.HistogramVec
	timeoutsTotal    prometheus.Counter
	pending          prometheus.Gauge
	historySize      prometheus.Gauge
}

// NewMetrics creates and registers the collectors
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		scansTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "barscan_scans_total",
			Help: "Total number of decoded barcodes",
		}, []string{"format"}),

		identifyTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "barscan_identify_total",
			Help: "Total number of product identifications by outcome",
		}, []string{"outcome"}),

		identifyDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "barscan_identify_duration_seconds",
			Help:    "Product identification duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"outcome"}),

		timeoutsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "barscan_enrich_timeouts_total",
			Help: "Total number of identifications settled by timeout",
		}),

		pending: factory.NewGauge(prometheus.GaugeOpts{
			Name: "barscan_pending_enrichments",
			Help: "Number of scans waiting for identification",
		}),

		historySize: factory.NewGauge(prometheus.GaugeOpts{
			Name: "barscan_history_records",
			Help: "Number of records in the scan history",
		}),
	}
}

// ObserveIdentify implements enrichment.Recorder
func (m *Metrics) ObserveIdentify(outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.identifyTotal.WithLabelValues(outcome).Inc()
	m.identifyDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

func (m *Metrics) incScans(format string) {
	if m == nil {
		return
	}
	m.scansTotal.WithLabelValues(format).Inc()
}

func (m *Metrics) incTimeouts() {
	if m == nil {
		return
	}
	m.timeoutsTotal.Inc()
}

func (m *Metrics) setState(pending, records int) {
	if m == nil {
		return
	}
	m.pending.Set(float64(pending))
	m.historySize.Set(float64(records))
}

// Handler serves the metrics in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
