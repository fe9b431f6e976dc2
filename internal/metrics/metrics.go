package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	Reconciliations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "habit_reconciliations_total",
			Help: "Day record reconciliations by outcome",
		},
		[]string{"outcome"}, // added, removed, unchanged, error
	)
	SuggestionsEmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coach_suggestions_emitted_total",
			Help: "Pending suggestions newly inserted by rule code",
		},
		[]string{"code"},
	)
	InsightResults = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coach_weekly_insights_total",
			Help: "Weekly insight responses by source",
		},
		[]string{"source"}, // cache, model, fallback, empty
	)
	TextGenDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "textgen_request_duration_seconds",
			Help:    "Latency of external text-generation calls",
			Buckets: []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32},
		},
		[]string{"feature", "status"},
	)
	RemindersSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "habit_reminders_total",
			Help: "Reminder pushes by result",
		},
		[]string{"result"}, // sent, failed
	)
)

// Register adds the domain collectors to reg. Call once from main.
func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		Reconciliations,
		SuggestionsEmitted,
		InsightResults,
		TextGenDuration,
		RemindersSent,
	)
}
