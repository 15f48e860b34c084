// File path: internal/router/router.go
package router

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/coastalgraphics/orderdesk/internal/cache"
	"github.com/coastalgraphics/orderdesk/internal/common"
	"github.com/coastalgraphics/orderdesk/internal/common/telemetry"
	"github.com/coastalgraphics/orderdesk/internal/oms"
	"github.com/coastalgraphics/orderdesk/internal/vector"
)

// Confidence is a qualitative signal only; it never gates correctness.
const (
	ConfidenceHigh   = "high"
	ConfidenceMedium = "medium"
	ConfidenceLow    = "low"
)

// Result is the normalized outcome of routing one query.
type Result struct {
	Strategy       Strategy              `json:"strategy"`
	Rule           string                `json:"rule,omitempty"`
	Orders         []oms.Order           `json:"orders"`
	VectorMatches  []vector.SearchResult `json:"-"`
	Confidence     string                `json:"confidence"`
	ProcessingTime time.Duration         `json:"-"`
	DataFreshness  oms.Freshness         `json:"dataFreshness,omitempty"`
	NotFoundJob    string                `json:"notFoundJob,omitempty"`
	Err            error                 `json:"-"`
}

// Embedder matches the llm provider's embedding surface.
type Embedder interface {
	Embed(ctx context.Context, input []string) ([][]float32, error)
}

type Config struct {
	MinScore        float32
	TopK            int
	HybridThreshold int
	FetchTTL        time.Duration
	VectorTTL       time.Duration
}

func DefaultConfig() Config {
	return Config{
		MinScore:        0.7,
		TopK:            5,
		HybridThreshold: 3,
		FetchTTL:        time.Minute,
		VectorTTL:       5 * time.Minute,
	}
}

// Router classifies a natural-language query into a retrieval strategy and
// executes it. It never returns an error to the caller; internal failures
// surface as a Result with StrategyError and the cause in Err for logging.
type Router struct {
	source   oms.Source
	store    vector.Store
	embedder Embedder
	cache    *cache.Cache
	cfg      Config
}

func New(source oms.Source, store vector.Store, embedder Embedder, queryCache *cache.Cache, cfg Config) *Router {
	if cfg.MinScore <= 0 {
		cfg.MinScore = 0.7
	}
	if cfg.TopK <= 0 {
		cfg.TopK = 5
	}
	if cfg.HybridThreshold <= 0 {
		cfg.HybridThreshold = 3
	}
	if cfg.FetchTTL <= 0 {
		cfg.FetchTTL = time.Minute
	}
	if cfg.VectorTTL <= 0 {
		cfg.VectorTTL = 5 * time.Minute
	}
	return &Router{source: source, store: store, embedder: embedder, cache: queryCache, cfg: cfg}
}

// Route executes the full classify-then-retrieve pipeline. The clock carries
// the reference time and business timezone for date-relative filters.
func (r *Router) Route(ctx context.Context, message string, clock oms.Clock) Result {
	start := time.Now()
	logger := common.Logger()
	classification := Classify(message)
	logger.Debug("router: classified query", "rule", classification.Rule, "strategy", classification.Strategy)

	var result Result
	switch {
	case classification.JobNumber != "":
		result = r.lookupJob(ctx, classification)
	case classification.Strategy == StrategyVector:
		result = r.semanticSearch(ctx, message, classification)
	default:
		result = r.structuredSearch(ctx, message, classification, clock)
	}
	result.ProcessingTime = time.Since(start)
	telemetry.RecordQuery(string(result.Strategy), result.ProcessingTime, result.Strategy == StrategyError)
	if result.Err != nil {
		logger.Error("router: query failed", "query", message, "strategy", result.Strategy, "error", result.Err)
	}
	return result
}

func (r *Router) lookupJob(ctx context.Context, classification Classification) Result {
	order, freshness, err := r.source.Lookup(ctx, classification.JobNumber)
	if err != nil {
		if errors.Is(err, oms.ErrOrderNotFound) {
			// Confirmed miss: report it rather than masking with
			// unrelated semantic matches.
			return Result{
				Strategy:      StrategyAPI,
				Rule:          classification.Rule,
				Confidence:    ConfidenceHigh,
				DataFreshness: freshness,
				NotFoundJob:   classification.JobNumber,
			}
		}
		return Result{Strategy: StrategyError, Rule: classification.Rule, Err: err}
	}
	return Result{
		Strategy:      StrategyAPI,
		Rule:          classification.Rule,
		Orders:        []oms.Order{order},
		Confidence:    ConfidenceHigh,
		DataFreshness: freshness,
	}
}

func (r *Router) structuredSearch(ctx context.Context, message string, classification Classification, clock oms.Clock) Result {
	orders, freshness, err := r.fetchOrders(ctx)
	if err != nil {
		return Result{Strategy: StrategyError, Rule: classification.Rule, Err: err}
	}
	pred := r.buildPredicate(classification, clock)
	matched := oms.Filter(orders, pred)

	if len(matched) >= r.cfg.HybridThreshold {
		return Result{
			Strategy:      StrategyAPI,
			Rule:          classification.Rule,
			Orders:        matched,
			Confidence:    ConfidenceMedium,
			DataFreshness: freshness,
		}
	}

	// Sparse structured results: blend in semantic matches, exact first.
	// Candidates must still satisfy the structured filter; a high score
	// never turns a non-overdue order into an "overdue" answer.
	vectorOrders, vectorMatches, vErr := r.vectorCandidates(ctx, message, orders)
	if vErr == nil {
		vectorOrders = oms.Filter(vectorOrders, pred)
		vectorMatches = matchesFor(vectorMatches, vectorOrders)
	}
	if vErr != nil || len(vectorOrders) == 0 {
		confidence := ConfidenceMedium
		if len(matched) == 0 {
			confidence = ConfidenceLow
		}
		return Result{
			Strategy:      StrategyAPI,
			Rule:          classification.Rule,
			Orders:        matched,
			Confidence:    confidence,
			DataFreshness: freshness,
		}
	}
	merged := oms.DedupeByJobNumber(append(matched, vectorOrders...))
	return Result{
		Strategy:      StrategyHybrid,
		Rule:          classification.Rule,
		Orders:        merged,
		VectorMatches: vectorMatches,
		Confidence:    ConfidenceMedium,
		DataFreshness: freshness,
	}
}

// matchesFor keeps only the search hits whose orders survived filtering, so
// the reported matches line up with the orders actually returned.
func matchesFor(matches []vector.SearchResult, orders []oms.Order) []vector.SearchResult {
	if len(matches) == 0 || len(orders) == 0 {
		return nil
	}
	jobs := make(map[string]struct{}, len(orders))
	for _, order := range orders {
		jobs[order.JobNumber] = struct{}{}
	}
	var kept []vector.SearchResult
	for _, match := range matches {
		if _, ok := jobs[match.JobNumber()]; ok {
			kept = append(kept, match)
		}
	}
	return kept
}

func (r *Router) semanticSearch(ctx context.Context, message string, classification Classification) Result {
	orders, freshness, err := r.fetchOrders(ctx)
	if err != nil {
		return Result{Strategy: StrategyError, Rule: classification.Rule, Err: err}
	}
	vectorOrders, vectorMatches, vErr := r.vectorCandidates(ctx, message, orders)
	if vErr != nil {
		// Vector index down: degrade to a plain keyword scan so the
		// query still gets an api-grade answer.
		common.Logger().Warn("router: vector search unavailable, degrading to keyword scan", "error", vErr)
		matched := keywordScan(orders, message)
		return Result{
			Strategy:      StrategyAPI,
			Rule:          "keyword-degraded",
			Orders:        matched,
			Confidence:    ConfidenceLow,
			DataFreshness: freshness,
		}
	}
	confidence := ConfidenceLow
	if len(vectorMatches) > 0 && vectorMatches[0].Score >= r.cfg.MinScore {
		confidence = ConfidenceMedium
	}
	return Result{
		Strategy:      StrategyVector,
		Rule:          classification.Rule,
		Orders:        vectorOrders,
		VectorMatches: vectorMatches,
		Confidence:    confidence,
		DataFreshness: freshness,
	}
}

func (r *Router) buildPredicate(classification Classification, clock oms.Clock) oms.Predicate {
	var preds []oms.Predicate
	if classification.StatusKeyword != "" {
		preds = append(preds, oms.StatusIs(classification.StatusKeyword))
	}
	if classification.Customer != "" {
		preds = append(preds, oms.CustomerMatches(classification.Customer))
	}
	if classification.WantsOverdue {
		preds = append(preds, oms.IsOverdue(clock))
	}
	if classification.WantsDueToday {
		preds = append(preds, oms.DueToday(clock))
	}
	if classification.WantsDueWeek {
		preds = append(preds, oms.DueWithin(clock, 7))
	}
	if classification.WantsRush {
		preds = append(preds, oms.IsRush())
	}
	return oms.And(preds...)
}

func (r *Router) fetchOrders(ctx context.Context) ([]oms.Order, oms.Freshness, error) {
	type cachedFetch struct {
		Orders    []oms.Order   `json:"orders"`
		Freshness oms.Freshness `json:"freshness"`
	}
	const key = "orders:all"
	if r.cache != nil {
		if value, ok := r.cache.Get(key); ok {
			if fetched, ok := value.(cachedFetch); ok {
				return fetched.Orders, fetched.Freshness, nil
			}
		}
	}
	orders, freshness, err := r.source.Fetch(ctx)
	if err != nil {
		return nil, freshness, fmt.Errorf("fetch orders: %w", err)
	}
	if r.cache != nil {
		r.cache.Set(key, cachedFetch{Orders: orders, Freshness: freshness}, r.cfg.FetchTTL)
	}
	return orders, freshness, nil
}

func (r *Router) vectorCandidates(ctx context.Context, message string, orders []oms.Order) ([]oms.Order, []vector.SearchResult, error) {
	if r.store == nil || !r.store.Available() {
		return nil, nil, errors.New("vector store unavailable")
	}
	if r.embedder == nil {
		return nil, nil, errors.New("embedder unavailable")
	}
	key := "vector:" + strings.ToLower(strings.TrimSpace(message))
	var matches []vector.SearchResult
	cached := false
	if r.cache != nil {
		if value, ok := r.cache.Get(key); ok {
			if hits, ok := value.([]vector.SearchResult); ok {
				matches = hits
				cached = true
			}
		}
	}
	if !cached {
		embeddings, err := r.embedder.Embed(ctx, []string{message})
		if err != nil || len(embeddings) == 0 {
			if err == nil {
				err = errors.New("empty embedding response")
			}
			return nil, nil, err
		}
		matches, err = r.store.Search(ctx, embeddings[0], r.cfg.TopK)
		if err != nil {
			return nil, nil, err
		}
		if r.cache != nil {
			r.cache.Set(key, matches, r.cfg.VectorTTL)
		}
	}
	byJob := make(map[string]oms.Order, len(orders))
	for _, order := range orders {
		byJob[order.JobNumber] = order
	}
	var resolved []oms.Order
	var kept []vector.SearchResult
	for _, match := range matches {
		if match.Score < r.cfg.MinScore {
			continue
		}
		kept = append(kept, match)
		if order, ok := byJob[match.JobNumber()]; ok {
			resolved = append(resolved, order)
		}
	}
	return oms.DedupeByJobNumber(resolved), kept, nil
}

// keywordScan is the degraded path when the vector index is unreachable: a
// case-insensitive term match over the order text.
func keywordScan(orders []oms.Order, message string) []oms.Order {
	terms := strings.Fields(strings.ToLower(message))
	if len(terms) == 0 {
		return nil
	}
	var out []oms.Order
	for _, order := range orders {
		haystack := strings.ToLower(order.EmbeddingText())
		for _, term := range terms {
			if len(term) < 3 {
				continue
			}
			if strings.Contains(haystack, term) {
				out = append(out, order)
				break
			}
		}
	}
	return out
}
