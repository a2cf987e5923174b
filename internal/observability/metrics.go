package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "bloomwatch"

// Metrics holds the Prometheus counters, histograms, and gauges for the
// pipeline, the analysis service, and the catalog client.
type Metrics struct {
	SeriesConsumed  prometheus.Counter
	ReportsProduced prometheus.Counter
	TransformErrors prometheus.Counter
	PipelineRunning prometheus.Gauge

	// Batch processing metrics.
	BatchSize               prometheus.Histogram
	BatchProcessingDuration prometheus.Histogram

	// Analysis metrics.
	BloomEventsDetected *prometheus.CounterVec // labels: kind={single_observation,sustained_bloom,peak_bloom}
	Predictions         *prometheus.CounterVec // labels: status={success,insufficient_data,error}
	ScanPoints          *prometheus.CounterVec // labels: outcome={bloom,clear,no_data,error}

	// Catalog metrics.
	CatalogRequests    *prometheus.CounterVec // labels: outcome={success,no_data,error,circuit_open}
	CatalogCache       *prometheus.CounterVec // labels: result={hit,miss}
	CatalogAPIDuration prometheus.Histogram
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := build(true)
	prometheus.MustRegister(
		m.SeriesConsumed,
		m.ReportsProduced,
		m.TransformErrors,
		m.PipelineRunning,
		m.BatchSize,
		m.BatchProcessingDuration,
		m.BloomEventsDetected,
		m.Predictions,
		m.ScanPoints,
		m.CatalogRequests,
		m.CatalogCache,
		m.CatalogAPIDuration,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return build(false)
}

func build(withHelp bool) *Metrics {
	help := func(s string) string {
		if withHelp {
			return s
		}
		return ""
	}
	return &Metrics{
		SeriesConsumed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "series_consumed_total",
			Help:      help("Total vegetation series read from the source topic."),
		}),
		ReportsProduced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reports_produced_total",
			Help:      help("Total bloom reports written to the sink topic."),
		}),
		TransformErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transform_errors_total",
			Help:      help("Total series that could not be parsed or analyzed."),
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      help("1 when the pipeline is active, 0 when shut down."),
		}),
		BatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_size",
			Help:      help("Number of messages per batch extracted from Kafka."),
			Buckets:   []float64{1, 5, 10, 20, 30, 40, 50, 75, 100},
		}),
		BatchProcessingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_processing_duration_seconds",
			Help:      help("Duration of a complete batch extract-detect-load cycle."),
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
		}),
		BloomEventsDetected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bloom_events_detected_total",
			Help:      help("Bloom events detected by kind."),
		}, []string{"kind"}),
		Predictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "predictions_total",
			Help:      help("Bloom timing predictions by status."),
		}, []string{"status"}),
		ScanPoints: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scan_points_total",
			Help:      help("Region scan grid points by outcome."),
		}, []string{"outcome"}),
		CatalogRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_requests_total",
			Help:      help("Satellite catalog requests by outcome."),
		}, []string{"outcome"}),
		CatalogCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_cache_total",
			Help:      help("Satellite catalog cache lookups by result."),
		}, []string{"result"}),
		CatalogAPIDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "catalog_api_duration_seconds",
			Help:      help("Satellite catalog request duration in seconds."),
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
	}
}
