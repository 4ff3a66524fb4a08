package analysis

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "iadas_analysis_cache_hits_total",
		Help: "Analysis reads served from the cache",
	})

	cacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "iadas_analysis_cache_misses_total",
		Help: "Analysis reads that went to the triple store",
	})

	fetchErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "iadas_analysis_cache_fetch_errors_total",
		Help: "Analysis fetches that failed",
	})
)
