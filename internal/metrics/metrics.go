// Package metrics exposes Prometheus collectors for the scrape service.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	scrapeJobsTotal        *prometheus.CounterVec
	scrapePagesTotal       *prometheus.CounterVec
	fetchRetriesTotal      prometheus.Counter
	summarizerStagesTotal  *prometheus.CounterVec
	pageDurationSeconds    *prometheus.HistogramVec
	artifactUploadsTotal   *prometheus.CounterVec
	activeJobsGauge        prometheus.Gauge

	once sync.Once
)

// Init initializes the Prometheus collectors. Safe to call multiple times.
func Init() {
	once.Do(func() {
		scrapeJobsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scrape_jobs_total",
				Help: "Total number of scrape jobs, labeled by terminal status.",
			},
			[]string{"status"},
		)

		scrapePagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scrape_pages_total",
				Help: "Total number of per-URL results, labeled by fetch method and outcome.",
			},
			[]string{"method", "outcome"},
		)

		fetchRetriesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "scrape_fetch_retries_total",
				Help: "Total number of lightweight fetch attempts beyond the first.",
			},
		)

		summarizerStagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scrape_summarizer_stages_total",
				Help: "Summarization outcomes by chain stage (structured, plain, degraded).",
			},
			[]string{"stage"},
		)

		pageDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "scrape_page_duration_seconds",
				Help:    "End-to-end per-URL pipeline duration.",
				Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
			},
			[]string{"method"},
		)

		artifactUploadsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scrape_artifact_uploads_total",
				Help: "Artifacts written to the blob store, labeled by kind.",
			},
			[]string{"kind"},
		)

		activeJobsGauge = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "scrape_active_jobs",
				Help: "Number of jobs currently running.",
			},
		)
	})
}

// Handler returns the Prometheus scrape endpoint handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// JobFinished records a job reaching a terminal status.
func JobFinished(status string) {
	if scrapeJobsTotal != nil {
		scrapeJobsTotal.WithLabelValues(status).Inc()
	}
}

// JobStarted increments the active-jobs gauge.
func JobStarted() {
	if activeJobsGauge != nil {
		activeJobsGauge.Inc()
	}
}

// JobDone decrements the active-jobs gauge.
func JobDone() {
	if activeJobsGauge != nil {
		activeJobsGauge.Dec()
	}
}

// PageProcessed records one per-URL result.
func PageProcessed(method, outcome string, duration time.Duration) {
	if scrapePagesTotal != nil {
		scrapePagesTotal.WithLabelValues(method, outcome).Inc()
	}
	if pageDurationSeconds != nil {
		pageDurationSeconds.WithLabelValues(method).Observe(duration.Seconds())
	}
}

// FetchRetried records a fetch attempt beyond the first.
func FetchRetried() {
	if fetchRetriesTotal != nil {
		fetchRetriesTotal.Inc()
	}
}

// SummarizerStage records which chain stage produced a summary (or failed
// over).
func SummarizerStage(stage string) {
	if summarizerStagesTotal != nil {
		summarizerStagesTotal.WithLabelValues(stage).Inc()
	}
}

// ArtifactUploaded records a blob-store write.
func ArtifactUploaded(kind string) {
	if artifactUploadsTotal != nil {
		artifactUploadsTotal.WithLabelValues(kind).Inc()
	}
}
