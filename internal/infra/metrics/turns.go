package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		turnLatencyMs,
		turnFragments,
		turnsCommitted,
		turnFailures,
		turnsCancelled,
		commitConflicts,
		lockWaitMs,
	)
}

var (
	turnLatencyMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chat_turn_latency_ms",
			Help:    "Wall-clock latency of one handled turn in milliseconds.",
			Buckets: []float64{25, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000},
		},
		[]string{"mode", "success"},
	)

	turnFragments = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "chat_turn_fragments",
			Help:    "Number of fragments relayed per turn.",
			Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100, 250, 500},
		},
	)

	turnsCommitted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_turns_committed_total",
			Help: "Turn batches durably committed to the thread store.",
		},
	)

	turnFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_turn_failures_total",
			Help: "Failed turns by failure kind.",
		},
		[]string{"kind"},
	)

	turnsCancelled = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_turns_cancelled_total",
			Help: "Turns abandoned by the client before completion.",
		},
	)

	commitConflicts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_commit_conflicts_total",
			Help: "Optimistic-concurrency conflicts on append.",
		},
	)

	lockWaitMs = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "chat_thread_lock_wait_ms",
			Help:    "Time spent waiting on the per-thread lock in milliseconds.",
			Buckets: []float64{0.1, 1, 5, 25, 100, 500, 2500, 10000},
		},
	)
)

func ObserveTurn(mode string, success bool, d time.Duration) {
	turnLatencyMs.WithLabelValues(mode, strconv.FormatBool(success)).Observe(float64(d.Milliseconds()))
}

func ObserveFragments(n int)                 { turnFragments.Observe(float64(n)) }
func IncTurnsCommitted()                     { turnsCommitted.Inc() }
func IncTurnFailure(kind string)             { turnFailures.WithLabelValues(kind).Inc() }
func IncTurnsCancelled()                     { turnsCancelled.Inc() }
func IncCommitConflict()                     { commitConflicts.Inc() }
func ObserveLockWait(d time.Duration)        { lockWaitMs.Observe(float64(d.Milliseconds())) }
