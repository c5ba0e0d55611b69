package window

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for windowed collections.
var (
	windowFetchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "window_page_fetches_total",
		Help: "Total page fetches by mode and outcome",
	}, []string{"mode", "outcome"}) // mode: "sync", "background"

	windowRebuildsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "window_rebuilds_total",
		Help: "Total prefetch window rebuilds",
	})

	windowBlockingFallbacksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "window_blocking_fallbacks_total",
		Help: "Total cache misses served by the synchronous blocking path",
	})

	windowBackgroundCancelsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "window_background_cancels_total",
		Help: "Total cancellations of in-flight background prefetch work",
	})
)
