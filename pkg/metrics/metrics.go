// Package metrics provides Prometheus metrics for the score server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "aisuru"

var registry = prometheus.NewRegistry()

// GetRegistry returns the registry used for all server metrics.
func GetRegistry() *prometheus.Registry {
	return registry
}

var (
	// Submission pipeline.
	scoresSubmitted = promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "scores_submitted_total",
		Help:      "Score submissions by terminal status.",
	}, []string{"status"})

	scoresRejected = promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "scores_rejected_total",
		Help:      "Rejected score submissions by reason.",
	}, []string{"reason"})

	submissionDuration = promauto.With(registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "submission_duration_ms",
		Help:      "End-to-end submission handling latency in milliseconds.",
		Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500},
	})

	// Beatmap cache.
	beatmapLookups = promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "beatmap_lookups_total",
		Help:      "Beatmap resolutions by tier that satisfied them.",
	}, []string{"tier"})

	// Leaderboards.
	leaderboardBuilds = promauto.With(registry).NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "leaderboard_builds_total",
		Help:      "Leaderboards built from the persistent store.",
	})

	leaderboardMutations = promauto.With(registry).NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "leaderboard_mutations_total",
		Help:      "Score insertions and evictions on in-memory leaderboards.",
	})

	// Stats aggregation.
	statsRecalcs = promauto.With(registry).NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "stats_recalcs_total",
		Help:      "Weighted performance recalculations performed.",
	})

	rankIndexWrites = promauto.With(registry).NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rank_index_writes_total",
		Help:      "Writes to the global and country rank indices.",
	})

	// Invalidation bus.
	busMessages = promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "bus_messages_total",
		Help:      "Invalidation bus messages handled by channel.",
	}, []string{"channel"})

	busPublished = promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "bus_published_total",
		Help:      "Messages published on the invalidation bus by channel.",
	}, []string{"channel"})

	// External collaborators.
	externalErrors = promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "external_errors_total",
		Help:      "Failed calls to external collaborators by service.",
	}, []string{"service"})

	// HTTP layer.
	httpRequests = promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests by endpoint, method and status code.",
	}, []string{"endpoint", "method", "status"})

	httpRequestDuration = promauto.With(registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_ms",
		Help:      "HTTP request latency in milliseconds.",
		Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
	}, []string{"endpoint", "method"})
)

// RecordScoreSubmitted increments the submission counter for a terminal status.
func RecordScoreSubmitted(status string) { scoresSubmitted.WithLabelValues(status).Inc() }

// RecordScoreRejected increments the rejection counter for a reason.
func RecordScoreRejected(reason string) { scoresRejected.WithLabelValues(reason).Inc() }

// RecordSubmissionDuration records end-to-end submission latency.
func RecordSubmissionDuration(ms float64) { submissionDuration.Observe(ms) }

// RecordBeatmapLookup increments the cache tier counter ("memory", "store", "api", "miss").
func RecordBeatmapLookup(tier string) { beatmapLookups.WithLabelValues(tier).Inc() }

// RecordLeaderboardBuild increments the leaderboard build counter.
func RecordLeaderboardBuild() { leaderboardBuilds.Inc() }

// RecordLeaderboardMutation increments the leaderboard mutation counter.
func RecordLeaderboardMutation() { leaderboardMutations.Inc() }

// RecordStatsRecalc increments the stats recalculation counter.
func RecordStatsRecalc() { statsRecalcs.Inc() }

// RecordRankIndexWrite increments the rank index write counter.
func RecordRankIndexWrite() { rankIndexWrites.Inc() }

// RecordBusMessage increments the handled message counter for a channel.
func RecordBusMessage(channel string) { busMessages.WithLabelValues(channel).Inc() }

// RecordBusPublished increments the published message counter for a channel.
func RecordBusPublished(channel string) { busPublished.WithLabelValues(channel).Inc() }

// RecordExternalError increments the failure counter for an external service.
func RecordExternalError(service string) { externalErrors.WithLabelValues(service).Inc() }

// RecordHTTPRequest increments the request counter.
func RecordHTTPRequest(endpoint, method, status string) {
	httpRequests.WithLabelValues(endpoint, method, status).Inc()
}

// RecordHTTPRequestDuration records request latency.
func RecordHTTPRequestDuration(endpoint, method string, ms float64) {
	httpRequestDuration.WithLabelValues(endpoint, method).Observe(ms)
}
