// Package metrics exposes prometheus counters and histograms for the cell
// evaluation engine, grounded on the corpus's promauto-registered vector
// metric style.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gridcube",
		Subsystem: "cache",
		Name:      "lookups_total",
		Help:      "Result cache lookups by outcome (hit, miss).",
	}, []string{"cube", "outcome"})

	ruleInvocations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gridcube",
		Subsystem: "rules",
		Name:      "invocations_total",
		Help:      "Rule invocations by outcome (value, no_value, continue, error, recursion).",
	}, []string{"cube", "rule", "outcome"})

	aggregationFanOut = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "gridcube",
		Subsystem: "aggregate",
		Name:      "fan_out_cells",
		Help:      "Number of stored cells visited per aggregation.",
		Buckets:   []float64{1, 2, 5, 10, 25, 50, 100, 250, 500, 1000, 5000},
	}, []string{"cube"})

	evaluationLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "gridcube",
		Subsystem: "evaluate",
		Name:      "latency_seconds",
		Help:      "Cell evaluation latency in seconds.",
		Buckets:   []float64{0.00005, 0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.05, 0.1},
	}, []string{"cube"})
)

// RecordCacheLookup records a cache hit or miss for a cube.
func RecordCacheLookup(cube string, hit bool) {
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	cacheLookups.WithLabelValues(cube, outcome).Inc()
}

// RecordRuleInvocation records the outcome of one rule invocation.
func RecordRuleInvocation(cube, rule, outcome string) {
	ruleInvocations.WithLabelValues(cube, rule, outcome).Inc()
}

// RecordAggregationFanOut records how many stored cells one aggregation visited.
func RecordAggregationFanOut(cube string, cells int) {
	aggregationFanOut.WithLabelValues(cube).Observe(float64(cells))
}

// RecordEvaluationLatency records the wall-clock time of one cell evaluation.
func RecordEvaluationLatency(cube string, seconds float64) {
	evaluationLatency.WithLabelValues(cube).Observe(seconds)
}
