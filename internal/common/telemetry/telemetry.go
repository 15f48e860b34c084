// File path: internal/common/telemetry/telemetry.go
package telemetry

import (
	"expvar"
	"strings"
	"sync"
	"time"
)

var (
	initOnce sync.Once

	queryTotal     *expvar.Map
	queryFailures  *expvar.Int
	queryLatencyMS *expvar.Int

	cacheHits   *expvar.Int
	cacheMisses *expvar.Int

	vectorSearchTotal     *expvar.Int
	vectorSearchLatencyMS *expvar.Int
	vectorUpsertTotal     *expvar.Int
	vectorDeleteTotal     *expvar.Int

	embeddingTotal *expvar.Int
	llmCallTotal   *expvar.Int
	llmCallErrors  *expvar.Int
)

func ensureInit() {
	initOnce.Do(func() {
		queryTotal = expvar.NewMap("orderdesk_query_total")
		queryFailures = expvar.NewInt("orderdesk_query_failures")
		queryLatencyMS = expvar.NewInt("orderdesk_query_latency_ms")

		cacheHits = expvar.NewInt("orderdesk_cache_hits")
		cacheMisses = expvar.NewInt("orderdesk_cache_misses")

		vectorSearchTotal = expvar.NewInt("orderdesk_vector_search_total")
		vectorSearchLatencyMS = expvar.NewInt("orderdesk_vector_search_latency_ms")
		vectorUpsertTotal = expvar.NewInt("orderdesk_vector_upsert_total")
		vectorDeleteTotal = expvar.NewInt("orderdesk_vector_delete_total")

		embeddingTotal = expvar.NewInt("orderdesk_embeddings_total")
		llmCallTotal = expvar.NewInt("orderdesk_llm_calls_total")
		llmCallErrors = expvar.NewInt("orderdesk_llm_call_errors")
	})
}

// RecordQuery tracks one routed query by strategy along with its latency.
func RecordQuery(strategy string, duration time.Duration, failed bool) {
	ensureInit()
	key := strings.TrimSpace(strings.ToLower(strategy))
	if key == "" {
		key = "unknown"
	}
	queryTotal.Add(key, 1)
	if failed {
		queryFailures.Add(1)
	}
	if duration > 0 {
		queryLatencyMS.Add(duration.Milliseconds())
	}
}

func RecordCacheLookup(hit bool) {
	ensureInit()
	if hit {
		cacheHits.Add(1)
	} else {
		cacheMisses.Add(1)
	}
}

func RecordVectorSearch(duration time.Duration) {
	ensureInit()
	vectorSearchTotal.Add(1)
	if duration > 0 {
		vectorSearchLatencyMS.Add(duration.Milliseconds())
	}
}

func RecordVectorUpsert(count int) {
	ensureInit()
	if count > 0 {
		vectorUpsertTotal.Add(int64(count))
	}
}

func RecordVectorDelete(count int) {
	ensureInit()
	if count > 0 {
		vectorDeleteTotal.Add(int64(count))
	}
}

func RecordEmbeddings(count int) {
	ensureInit()
	if count > 0 {
		embeddingTotal.Add(int64(count))
	}
}

func RecordLLMCall(err error) {
	ensureInit()
	llmCallTotal.Add(1)
	if err != nil {
		llmCallErrors.Add(1)
	}
}

// Snapshot aggregates the counters for the metrics endpoint.
type Snapshot struct {
	TotalQueries      int64            `json:"total_queries"`
	QueriesByStrategy map[string]int64 `json:"queries_by_strategy"`
	QueryFailures     int64            `json:"query_failures"`
	SuccessRate       float64          `json:"success_rate"`
	AvgQueryTimeMS    float64          `json:"avg_query_time_ms"`
	CacheHits         int64            `json:"cache_hits"`
	CacheMisses       int64            `json:"cache_misses"`
	CacheHitRate      float64          `json:"cache_hit_rate"`
	VectorSearches    int64            `json:"vector_searches"`
	VectorUpserts     int64            `json:"vector_upserts"`
	VectorDeletes     int64            `json:"vector_deletes"`
	Embeddings        int64            `json:"embeddings"`
	LLMCalls          int64            `json:"llm_calls"`
	LLMCallErrors     int64            `json:"llm_call_errors"`
}

func CurrentSnapshot() Snapshot {
	ensureInit()
	snap := Snapshot{
		QueriesByStrategy: make(map[string]int64),
		QueryFailures:     queryFailures.Value(),
		CacheHits:         cacheHits.Value(),
		CacheMisses:       cacheMisses.Value(),
		VectorSearches:    vectorSearchTotal.Value(),
		VectorUpserts:     vectorUpsertTotal.Value(),
		VectorDeletes:     vectorDeleteTotal.Value(),
		Embeddings:        embeddingTotal.Value(),
		LLMCalls:          llmCallTotal.Value(),
		LLMCallErrors:     llmCallErrors.Value(),
	}
	queryTotal.Do(func(kv expvar.KeyValue) {
		if counter, ok := kv.Value.(*expvar.Int); ok {
			snap.QueriesByStrategy[kv.Key] = counter.Value()
			snap.TotalQueries += counter.Value()
		}
	})
	if snap.TotalQueries > 0 {
		snap.SuccessRate = float64(snap.TotalQueries-snap.QueryFailures) / float64(snap.TotalQueries)
		snap.AvgQueryTimeMS = float64(queryLatencyMS.Value()) / float64(snap.TotalQueries)
	}
	if lookups := snap.CacheHits + snap.CacheMisses; lookups > 0 {
		snap.CacheHitRate = float64(snap.CacheHits) / float64(lookups)
	}
	return snap
}
