package observability

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

var (
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "directory", Name: "http_requests_total", Help: "HTTP requests."},
		[]string{"route", "method", "status"},
	)
	HTTPLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "directory", Name: "http_request_duration_seconds",
			Help:    "HTTP request duration seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)
	ExternalRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "directory", Name: "external_requests_total", Help: "Outbound requests."},
		[]string{"service", "endpoint", "status"},
	)
	ExternalLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "directory", Name: "external_request_duration_seconds",
			Help:    "Outbound request duration seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service", "endpoint"},
	)
	CacheEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "directory", Name: "cache_events_total", Help: "Cache hits/misses/sets/dels."},
		[]string{"cache", "event"}, // event: hit|miss|set|del|error
	)
	RefreshCycles = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "directory", Name: "refresh_cycles_total", Help: "Refresh cycles by outcome."},
		[]string{"outcome"}, // outcome: ok|error|skipped
	)
	RefreshLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "directory", Name: "refresh_duration_seconds",
			Help:    "Fetch+parse+map duration seconds.",
			Buckets: prometheus.DefBuckets,
		},
	)
	SnapshotRecords = prometheus.NewGauge(
		prometheus.GaugeOpts{Namespace: "directory", Name: "snapshot_records", Help: "Residents in the current snapshot."},
	)
	SnapshotTimestamp = prometheus.NewGauge(
		prometheus.GaugeOpts{Namespace: "directory", Name: "snapshot_fetched_timestamp_seconds", Help: "FetchedAt of the current snapshot."},
	)
)

func Serve(addr string) {
	if addr == "" {
		return // disabled
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", MetricsHandler(InitRegistry()))

	go func() {
		srv := &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		log.Info().Str("addr", addr).Msg("metrics server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("metrics server failed")
		}
	}()
}

var (
	registry     *prometheus.Registry
	registryOnce sync.Once
)

// InitRegistry returns the process registry, creating it on first use.
func InitRegistry() *prometheus.Registry {
	registryOnce.Do(func() {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			HTTPRequests, HTTPLatency, ExternalRequests, ExternalLatency, CacheEvents,
			RefreshCycles, RefreshLatency, SnapshotRecords, SnapshotTimestamp,
		)
	})
	return registry
}

func MetricsHandler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

func ObserveHTTP(route, method string, status int, dur time.Duration) {
	HTTPRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	HTTPLatency.WithLabelValues(route, method).Observe(dur.Seconds())
}

func ObserveExternal(service, endpoint string, status int, dur time.Duration) {
	ExternalRequests.WithLabelValues(service, endpoint, strconv.Itoa(status)).Inc()
	ExternalLatency.WithLabelValues(service, endpoint).Observe(dur.Seconds())
}

func ObserveCache(cache, event string) { // event: hit|miss|set|del|error
	CacheEvents.WithLabelValues(cache, event).Inc()
}

// ObserveRefresh counts a cycle. Skipped cycles have no duration.
func ObserveRefresh(outcome string, dur time.Duration) {
	RefreshCycles.WithLabelValues(outcome).Inc()
	if outcome != "skipped" {
		RefreshLatency.Observe(dur.Seconds())
	}
}

func ObserveSnapshot(records int, fetchedAt time.Time) {
	SnapshotRecords.Set(float64(records))
	SnapshotTimestamp.Set(float64(fetchedAt.Unix()))
}
