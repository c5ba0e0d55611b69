package pager

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for pagination operations.
var (
	pagerFetchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pager_page_fetches_total",
		Help: "Total page fetch attempts by operation and outcome",
	}, []string{"op", "outcome"}) // outcome: "success", "error", "cancelled", "superseded"

	pagerFetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pager_page_fetch_duration_seconds",
		Help:    "Page fetch duration in seconds by operation",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
	}, []string{"op"})

	pagerPrefetchSkipsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pager_prefetch_skips_total",
		Help: "Prefetch calls skipped by gate reason",
	}, []string{"reason"}) // reason: "completed", "error_recorded", "in_flight"

	pagerElementsMergedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pager_elements_merged_total",
		Help: "Total elements merged into pagination collections",
	})
)
