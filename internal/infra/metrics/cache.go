package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(cacheHits, cacheMisses, retentionPurged)
}

var (
	cacheHits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "history_cache_hits_total",
			Help: "Thread history loads served from the redis cache.",
		},
	)

	cacheMisses = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "history_cache_misses_total",
			Help: "Thread history loads that fell through to postgres.",
		},
	)

	retentionPurged = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "retention_threads_purged_total",
			Help: "Idle threads deleted by the retention worker.",
		},
	)
)

func IncCacheHit()             { cacheHits.Inc() }
func IncCacheMiss()            { cacheMisses.Inc() }
func AddRetentionPurged(n int) { retentionPurged.Add(float64(n)) }
