package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	ActiveJobs           prometheus.Gauge
	PagesAnalyzedTotal   *prometheus.CounterVec
	PageAnalysisDuration *prometheus.HistogramVec
	AttemptsPerPage      prometheus.Histogram
)

func Init() {
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	ActiveJobs = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "audit_active_jobs",
			Help: "Number of domain analysis jobs currently running.",
		},
	)

	PagesAnalyzedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audit_pages_analyzed_total",
			Help: "Total number of page analyses by terminal status.",
		},
		[]string{"status", "error_type"}, // status: success, failure, cancelled
	)

	PageAnalysisDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "audit_page_analysis_duration_seconds",
			Help:    "Wall time of one page's analysis across all attempts.",
			Buckets: []float64{1, 5, 10, 15, 30, 60, 120},
		},
		[]string{"domain"},
	)

	AttemptsPerPage = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "audit_attempts_per_page",
			Help:    "Attempts consumed before a page reached a terminal state.",
			Buckets: []float64{1, 2, 3, 4, 5},
		},
	)
}
