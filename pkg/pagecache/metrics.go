package pagecache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks page cache hits by source namespace.
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pager_cache_hits_total",
			Help: "Total number of page cache hits",
		},
		[]string{"source"},
	)

	// CacheMisses tracks page cache misses by source namespace.
	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pager_cache_misses_total",
			Help: "Total number of page cache misses",
		},
		[]string{"source"},
	)

	// CacheErrors tracks cache operation errors.
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pager_cache_errors_total",
			Help: "Total number of page cache operation errors",
		},
		[]string{"operation"}, // "get", "set", "delete", "scan"
	)

	// CacheEntryBytes tracks the size of stored entries.
	CacheEntryBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pager_cache_entry_bytes",
			Help:    "Size of stored page cache entries in bytes",
			Buckets: prometheus.ExponentialBuckets(256, 4, 8),
		},
	)
)
