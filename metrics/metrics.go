package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Transitions counts lifecycle transition attempts by outcome:
// ok | rejected | error | anomaly.
var Transitions = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "taskmap",
	Name:      "lifecycle_transitions_total",
	Help:      "Task lifecycle transition attempts by transition and outcome.",
}, []string{"transition", "outcome"})

// HTTPDuration observes request latency per route and status class.
var HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "taskmap",
	Name:      "http_request_duration_seconds",
	Help:      "HTTP request latency.",
	Buckets:   prometheus.DefBuckets,
}, []string{"method", "path", "status"})

// FundedSubmitted tracks how many submitted tasks currently have a fully
// funded escrow, as seen by the background funding watcher.
var FundedSubmitted = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "taskmap",
	Name:      "funded_submitted_tasks",
	Help:      "Submitted tasks whose escrow covers the reward at last sweep.",
})

// UnfundedSubmitted is the complement of FundedSubmitted.
var UnfundedSubmitted = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "taskmap",
	Name:      "unfunded_submitted_tasks",
	Help:      "Submitted tasks whose escrow does not cover the reward at last sweep.",
})
