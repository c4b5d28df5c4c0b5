// Package metrics exposes the Prometheus counters and histograms the
// server front-end updates per request, grounded on the teacher's
// internal/infrastructure/metrics/metrics.go.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// QueriesTotal tracks every query the server answers, labeled by
	// question type, response code, and transport protocol.
	QueriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "recursor_queries_total",
		Help: "Total number of DNS queries answered",
	}, []string{"qtype", "rcode", "protocol"})

	// QueryDuration tracks end-to-end request handling latency, labeled
	// by where the answer came from: cache, multiply, or resolver.
	QueryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "recursor_query_duration_seconds",
		Help:    "Histogram of query handling duration by answer source",
		Buckets: prometheus.DefBuckets,
	}, []string{"source"})

	// CacheOperations tracks cache hits and misses.
	CacheOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "recursor_cache_operations_total",
		Help: "Total number of cache hits and misses",
	}, []string{"result"})

	// ActiveWorkers tracks the number of goroutines currently handling a
	// request in the server's worker pool.
	ActiveWorkers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "recursor_active_workers",
		Help: "Number of requests currently being handled",
	})

	// UpstreamHops tracks how many referrals a resolution took before
	// terminating, for observing hierarchy depth in the wild.
	UpstreamHops = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "recursor_upstream_hops",
		Help:    "Histogram of referral hops taken per resolution",
		Buckets: prometheus.LinearBuckets(0, 2, 9),
	})
)
