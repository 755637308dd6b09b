// Package metrics exposes Prometheus collectors for the relay service.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	relayRequestsTotal         *prometheus.CounterVec
	relayDownloadsTotal        *prometheus.CounterVec
	relayDownloadBytesTotal    *prometheus.CounterVec
	relayReplyAttemptsTotal    *prometheus.CounterVec
	relayActiveWorkers         prometheus.Gauge
	relayCleanerRemovedTotal   prometheus.Counter
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		relayRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_requests_total",
				Help: "Total number of requests handled, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		relayDownloadsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_downloads_total",
				Help: "Total number of completed downloads, labeled by site and kind.",
			},
			[]string{"site", "kind"},
		)

		relayDownloadBytesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_download_bytes_total",
				Help: "Total number of artifact bytes written, labeled by site.",
			},
			[]string{"site"},
		)

		relayReplyAttemptsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_reply_attempts_total",
				Help: "Total number of reply delivery attempts, labeled by status.",
			},
			[]string{"status"},
		)

		relayActiveWorkers = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "relay_active_workers",
				Help: "Number of workers currently processing a request.",
			},
		)

		relayCleanerRemovedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "relay_cleaner_removed_files_total",
				Help: "Total files removed by the reconciliation sweep.",
			},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveRequest increments the request counter for the given outcome.
func ObserveRequest(outcome string) {
	relayRequestsTotal.WithLabelValues(outcome).Inc()
}

// ObserveDownload records a completed download and its size.
func ObserveDownload(site, kind string, bytesWritten int64) {
	sanitizedSite := SanitizeSite(site)
	relayDownloadsTotal.WithLabelValues(sanitizedSite, kind).Inc()
	if bytesWritten > 0 {
		relayDownloadBytesTotal.WithLabelValues(sanitizedSite).Add(float64(bytesWritten))
	}
}

// ObserveReplyAttempt increments the delivery attempt counter.
func ObserveReplyAttempt(status string) {
	relayReplyAttemptsTotal.WithLabelValues(status).Inc()
}

// IncActiveWorkers increments the active workers gauge.
func IncActiveWorkers() {
	relayActiveWorkers.Inc()
}

// DecActiveWorkers decrements the active workers gauge.
func DecActiveWorkers() {
	relayActiveWorkers.Dec()
}

// ObserveCleanerRemoval counts files removed by the cleaner.
func ObserveCleanerRemoval(n int) {
	if n > 0 {
		relayCleanerRemovedTotal.Add(float64(n))
	}
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
