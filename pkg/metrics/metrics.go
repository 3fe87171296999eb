package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Sync runs by terminal result: ok, already_syncing, no_credential, internal
	SyncRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobtrack_sync_runs_total",
			Help: "Total number of sync runs by result",
		},
		[]string{"result"},
	)

	SyncRunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "jobtrack_sync_run_duration_seconds",
			Help:    "Sync run duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 12), // 0.5s to ~17min
		},
		[]string{"provider"},
	)

	// Per-message terminal outcome: added, duplicate, heuristic_rejected, ...
	MessageOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobtrack_message_outcomes_total",
			Help: "Total number of processed messages by outcome",
		},
		[]string{"outcome"},
	)

	ExternalCallLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "jobtrack_external_call_latency_ms",
			Help:    "Classifier, LLM and mail API call latency in milliseconds",
			Buckets: prometheus.ExponentialBuckets(10, 2, 12), // 10ms to ~40s
		},
		[]string{"service", "status"},
	)

	ClassifierCacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobtrack_classifier_cache_total",
			Help: "Classifier cache lookups by result",
		},
		[]string{"result"}, // hit, miss, error
	)
)

func RecordSyncRun(result string) {
	SyncRunsTotal.WithLabelValues(result).Inc()
}

func RecordSyncDuration(provider string, d time.Duration) {
	SyncRunDuration.WithLabelValues(provider).Observe(d.Seconds())
}

func RecordMessageOutcome(outcome string) {
	MessageOutcomes.WithLabelValues(outcome).Inc()
}

func RecordExternalCall(service string, err error, d time.Duration) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	ExternalCallLatency.WithLabelValues(service, status).Observe(float64(d.Milliseconds()))
}

func RecordCacheLookup(result string) {
	ClassifierCacheHits.WithLabelValues(result).Inc()
}
