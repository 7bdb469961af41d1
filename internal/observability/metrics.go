package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "sounding_etl"

// Metrics holds the Prometheus counters, histograms, and gauges for one
// conversion run.
type Metrics struct {
	// Fetch metrics.
	FetchRequests       *prometheus.CounterVec // labels: outcome={success,retry,auth_error,rejected,unavailable}
	FetchDuration       prometheus.Histogram
	ObservationsFetched prometheus.Counter
	ObservationsDropped *prometheus.CounterVec // labels: reason={no_mission,unassigned}

	// Conversion metrics.
	Segments        prometheus.Counter
	FilesWritten    prometheus.Counter
	BytesWritten    prometheus.Counter
	SegmentFailures prometheus.Counter
	RecordsSkipped  *prometheus.CounterVec // labels: reason={missing_field,invalid_measurement,other}
	Notifications   *prometheus.CounterVec // labels: outcome={success,error}

	RunDuration  prometheus.Histogram
	LastRunStart prometheus.Gauge
}

// NewMetrics creates and registers all run metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		FetchRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_requests_total",
			Help:      "Data API page requests by outcome.",
		}, []string{"outcome"}),
		FetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Duration of fetching every page of the window, retries included.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		ObservationsFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "observations_fetched_total",
			Help:      "Observations returned by the data API.",
		}),
		ObservationsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "observations_dropped_total",
			Help:      "Observations dropped before segmentation, by reason.",
		}, []string{"reason"}),
		Segments: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "segments_total",
			Help:      "Flight segments produced by the segmenter.",
		}),
		FilesWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_written_total",
			Help:      "NetCDF files written.",
		}),
		BytesWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_written_total",
			Help:      "Bytes of NetCDF output written.",
		}),
		SegmentFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "segment_failures_total",
			Help:      "Segments that produced no file.",
		}),
		RecordsSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_skipped_total",
			Help:      "Observations rejected by the record builder, by reason.",
		}, []string{"reason"}),
		Notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "File-written notifications by outcome.",
		}, []string{"outcome"}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of a complete fetch-convert-write run.",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		}),
		LastRunStart: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_start_timestamp_seconds",
			Help:      "Unix time the most recent run started.",
		}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.FetchRequests,
		m.FetchDuration,
		m.ObservationsFetched,
		m.ObservationsDropped,
		m.Segments,
		m.FilesWritten,
		m.BytesWritten,
		m.SegmentFailures,
		m.RecordsSkipped,
		m.Notifications,
		m.RunDuration,
		m.LastRunStart,
	}
}

// WriteTextfile writes the default registry in the node_exporter textfile
// collector format. An empty path is a no-op.
func WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, prometheus.DefaultGatherer)
}
