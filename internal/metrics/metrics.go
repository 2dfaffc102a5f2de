// Package metrics declares the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SessionsStarted counts attempts that reached InProgress.
	SessionsStarted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "oralexam_sessions_started_total",
			Help: "Total number of exam sessions started",
		},
	)

	// SessionsFinished counts attempts that reached Finished.
	SessionsFinished = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "oralexam_sessions_finished_total",
			Help: "Total number of exam sessions finished",
		},
	)

	// Responses counts audio uploads by status: saved/failed/duplicate.
	Responses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oralexam_responses_total",
			Help: "Total number of audio responses by outcome",
		},
		[]string{"status"},
	)

	// ShortBatches counts sections that received fewer questions than requested.
	ShortBatches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oralexam_question_batches_short_total",
			Help: "Question batches smaller than the requested count",
		},
		[]string{"section"},
	)

	// Notifications counts response notifications by status: sent/failed/requeued.
	Notifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oralexam_notifications_total",
			Help: "Total number of response notifications by outcome",
		},
		[]string{"status"},
	)

	// LiveSessions is the number of sessions held by the registry.
	LiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "oralexam_live_sessions_current",
			Help: "Current number of live exam sessions",
		},
	)
)
