package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		genTokensIn,
		genTokensOut,
		genCallsLatencyMs,
		genStreamErrors,
	)
}

var (
	genTokensIn = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "generator_tokens_in",
			Help: "Sum of prompt (input) tokens per provider/model.",
		},
		[]string{"provider", "model"},
	)

	genTokensOut = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "generator_tokens_out",
			Help: "Sum of completion (output) tokens per provider/model.",
		},
		[]string{"provider", "model"},
	)

	genCallsLatencyMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "generator_calls_latency_ms",
			Help:    "Generation latency distribution in milliseconds.",
			Buckets: []float64{10, 25, 50, 100, 200, 400, 800, 1600, 3000, 5000, 15000},
		},
		[]string{"provider", "model", "success"},
	)

	genStreamErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "generator_stream_errors_total",
			Help: "Mid-stream generation failures per provider/model.",
		},
		[]string{"provider", "model"},
	)
)

func AddGenTokens(provider, model string, in, out int) {
	if in > 0 {
		genTokensIn.WithLabelValues(provider, model).Add(float64(in))
	}
	if out > 0 {
		genTokensOut.WithLabelValues(provider, model).Add(float64(out))
	}
}

func ObserveGenLatencyMs(provider, model string, success bool, ms float64) {
	genCallsLatencyMs.WithLabelValues(provider, model, strconv.FormatBool(success)).Observe(ms)
}

func IncGenStreamError(provider, model string) {
	genStreamErrors.WithLabelValues(provider, model).Inc()
}
