// Package stats provides a unified interface for collecting metrics.
package stats

// Metric names used throughout the pipeline.
const (
	// Pipeline metrics.
	MetricGamesAnalyzed  = "hindsight_games_analyzed_total"
	MetricGamesMalformed = "hindsight_games_malformed_total"
	MetricFlaggedMoves   = "hindsight_flagged_moves_total"
	MetricBreakerTrips   = "hindsight_breaker_trips_total"

	// Oracle metrics.
	MetricEvaluations        = "hindsight_evaluations_total"
	MetricEvaluationFailures = "hindsight_evaluation_failures_total"
	MetricEvaluationSeconds  = "hindsight_evaluation_seconds"
	MetricEngineSpawns       = "hindsight_engine_spawns_total"
	MetricEngineRetries      = "hindsight_engine_retries_total"
	MetricPoolInUse          = "hindsight_pool_in_use"

	// Cache metrics.
	MetricCacheHits   = "hindsight_cache_hits_total"
	MetricCacheMisses = "hindsight_cache_misses_total"
	MetricCacheSize   = "hindsight_cache_size"

	// Fetch metrics.
	MetricArchivesFetched = "hindsight_archives_fetched_total"
	MetricAPIRequests     = "hindsight_api_requests_total"
)

// Help returns a description of a known metric, or the name itself.
func Help(name string) string {
	if h, ok := help[name]; ok {
		return h
	}
	return name
}

var help = map[string]string{
	MetricGamesAnalyzed:      "Games that produced a result.",
	MetricGamesMalformed:     "Games excluded because the record could not be replayed.",
	MetricFlaggedMoves:       "Moves classified as inaccuracy, mistake, or blunder.",
	MetricBreakerTrips:       "Runs that stopped querying the oracle after repeated failures.",
	MetricEvaluations:        "Evaluation requests answered by an engine.",
	MetricEvaluationFailures: "Evaluation requests that failed after a retry.",
	MetricEvaluationSeconds:  "Engine search latency in seconds.",
	MetricEngineSpawns:       "Engine processes started.",
	MetricEngineRetries:      "Requests retried on a fresh engine process.",
	MetricPoolInUse:          "Engine processes currently serving a request.",
	MetricCacheHits:          "Evaluation cache hits.",
	MetricCacheMisses:        "Evaluation cache misses.",
	MetricCacheSize:          "Entries in the evaluation cache.",
	MetricArchivesFetched:    "Monthly archives written to the store.",
	MetricAPIRequests:        "Requests sent to the game API.",
}

// Collector defines the interface for collecting metrics.
type Collector interface {
	// IncCounter increments a counter metric by delta.
	IncCounter(name string, delta int64)

	// SetGauge sets a gauge metric to value.
	SetGauge(name string, value int64)

	// ObserveHistogram records a value in a histogram metric.
	ObserveHistogram(name string, value float64)
}
