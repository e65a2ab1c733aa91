// Package metrics holds the Prometheus collectors for trackref.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// resolveTotal counts resolutions by reference kind and outcome.
	// Labels: kind (revision, ticket, wiki, unknown), outcome (ok or an error class)
	resolveTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "trackref",
		Name:      "resolve_total",
		Help:      "Reference resolutions by kind and outcome",
	}, []string{"kind", "outcome"})

	// fetchDurationSeconds measures verification fetches, successful or not.
	fetchDurationSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "trackref",
		Name:      "fetch_duration_seconds",
		Help:      "Duration of tracker page fetches",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	}, []string{"kind"})

	// messagesTotal counts chat messages handled by mode (passive, query, help, ignored).
	messagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "trackref",
		Name:      "messages_total",
		Help:      "Chat messages handled by mode",
	}, []string{"mode"})

	// repliesTotal counts reply lines published by mode.
	repliesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "trackref",
		Name:      "replies_total",
		Help:      "Reply lines published by mode",
	}, []string{"mode"})

	// configReloadsTotal counts configuration reloads by result (ok, error).
	configReloadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "trackref",
		Name:      "config_reloads_total",
		Help:      "Configuration reloads by result",
	}, []string{"result"})
)

// RecordResolve records one resolution.
func RecordResolve(kind, outcome string) {
	resolveTotal.WithLabelValues(kind, outcome).Inc()
}

// ObserveFetch records the duration of one fetch.
func ObserveFetch(kind string, seconds float64) {
	fetchDurationSeconds.WithLabelValues(kind).Observe(seconds)
}

// RecordMessage records one handled chat message.
func RecordMessage(mode string) {
	messagesTotal.WithLabelValues(mode).Inc()
}

// RecordReplies records n published reply lines.
func RecordReplies(mode string, n int) {
	repliesTotal.WithLabelValues(mode).Add(float64(n))
}

// RecordConfigReload records a reload attempt.
func RecordConfigReload(ok bool) {
	result := "ok"
	if !ok {
		result = "error"
	}
	configReloadsTotal.WithLabelValues(result).Inc()
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
