// Package metrics declares the Prometheus collectors exported by the player.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "moodplayer"

// Cycle outcomes.
const (
	OutcomePublished      = "published"
	OutcomeNoFace         = "no_face"
	OutcomeDetectFailed   = "detect_failed"
	OutcomeFeedFailed     = "feed_failed"
	OutcomeCaptureLost    = "capture_lost"
	OutcomeStaleDiscarded = "stale_discarded"
)

var (
	// CyclesTotal counts finished detection cycles by outcome.
	CyclesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Total number of detection cycles by outcome",
		},
		[]string{"outcome"},
	)

	// TriggersRejected counts triggers ignored because a cycle was in flight
	// or the controller was not armed.
	TriggersRejected = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "triggers_rejected_total",
			Help:      "Total number of rejected detection triggers",
		},
	)

	// FeedRequestDuration observes song feed calls.
	FeedRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "feed_request_duration_seconds",
			Help:      "Duration of song feed requests in seconds",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"status"}, // status: success, error
	)

	// DetectionsTotal counts detection passes by result.
	DetectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "detections_total",
			Help:      "Total number of detection passes by result",
		},
		[]string{"result"}, // result: mood label, none, error
	)
)

// MustRegister registers every collector with reg.
func MustRegister(reg prometheus.Registerer) {
	reg.MustRegister(CyclesTotal, TriggersRejected, FeedRequestDuration, DetectionsTotal)
}
