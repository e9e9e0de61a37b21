// Package metrics holds the Prometheus collectors of the location server.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ResolveRequestsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "geocache_resolve_requests_total",
		Help: "Total number of address resolutions",
	})
	ResolveDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "geocache_resolve_duration_ms",
		Help:    "Address resolution duration in milliseconds",
		Buckets: []float64{1, 5, 10, 20, 50, 100, 200, 500, 1000, 5000},
	})
	// CacheLookupsTotal is labelled by cache (address, elevation) and result
	// (hit, miss).
	CacheLookupsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "geocache_cache_lookups_total",
		Help: "Cache lookups by cache and result",
	}, []string{"cache", "result"})
	UnresolvedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "geocache_unresolved_total",
		Help: "Resolutions that produced no place",
	})
	NetworkRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "geocache_network_requests_total",
		Help: "Network geocoder calls by service and outcome",
	}, []string{"service", "outcome"})
	NetworkDurationMs = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "geocache_network_duration_ms",
		Help:    "Network geocoder call duration in milliseconds",
		Buckets: []float64{10, 50, 100, 200, 500, 1000, 2000, 5000, 10000},
	}, []string{"service"})
	InterpolationsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "geocache_elevation_interpolations_total",
		Help: "Elevation estimates produced from cached samples",
	})
	PrunedRowsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "geocache_pruned_rows_total",
		Help: "Expired rows removed from the store",
	})
	MQTTMessagesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "geocache_mqtt_messages_total",
		Help: "MQTT requests handled by kind and outcome",
	}, []string{"kind", "outcome"})
)

func init() {
	prometheus.MustRegister(ResolveRequestsTotal)
	prometheus.MustRegister(ResolveDurationMs)
	prometheus.MustRegister(CacheLookupsTotal)
	prometheus.MustRegister(UnresolvedTotal)
	prometheus.MustRegister(NetworkRequestsTotal)
	prometheus.MustRegister(NetworkDurationMs)
	prometheus.MustRegister(InterpolationsTotal)
	prometheus.MustRegister(PrunedRowsTotal)
	prometheus.MustRegister(MQTTMessagesTotal)
}

// Handler exposes the registered collectors for scraping.
func Handler() http.Handler { return promhttp.Handler() }
