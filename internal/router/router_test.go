// File path: internal/router/router_test.go
package router

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/coastalgraphics/orderdesk/internal/cache"
	"github.com/coastalgraphics/orderdesk/internal/oms"
	"github.com/coastalgraphics/orderdesk/internal/vector"
)

type fakeSource struct {
	orders    []oms.Order
	fetchErr  error
	fetchHits int
}

func (f *fakeSource) Fetch(ctx context.Context) ([]oms.Order, oms.Freshness, error) {
	f.fetchHits++
	if f.fetchErr != nil {
		return nil, oms.FreshnessEmpty, f.fetchErr
	}
	return f.orders, oms.FreshnessLive, nil
}

func (f *fakeSource) Lookup(ctx context.Context, jobNumber string) (oms.Order, oms.Freshness, error) {
	for _, order := range f.orders {
		if order.JobNumber == jobNumber {
			return order, oms.FreshnessLive, nil
		}
	}
	return oms.Order{}, oms.FreshnessLive, oms.ErrOrderNotFound
}

func (f *fakeSource) Health(ctx context.Context) error { return f.fetchErr }

type fakeVectorStore struct {
	available  bool
	results    []vector.SearchResult
	searchErr  error
	searchHits int
}

func (f *fakeVectorStore) Available() bool { return f.available }

func (f *fakeVectorStore) Collection() string { return "test_orders" }

func (f *fakeVectorStore) Reset(ctx context.Context) error { return nil }

func (f *fakeVectorStore) UpsertRecords(ctx context.Context, records []vector.Record) error {
	return nil
}

func (f *fakeVectorStore) Delete(ctx context.Context, ids []string) error { return nil }

func (f *fakeVectorStore) Search(ctx context.Context, embedding []float32, limit int) ([]vector.SearchResult, error) {
	f.searchHits++
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.results, nil
}

type fakeEmbedder struct {
	err error
}

func (f *fakeEmbedder) Embed(ctx context.Context, input []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(input))
	for i := range input {
		out[i] = []float32{0.1, 0.2, 0.3}
	}
	return out, nil
}

func testOrders() []oms.Order {
	return []oms.Order{
		{JobNumber: "100", Status: "Approved", Customer: oms.Customer{Company: "Acme"}, RequestedShipDate: "2024-03-01"},
		{JobNumber: "101", Status: "Approved", Customer: oms.Customer{Company: "Acme"}, RequestedShipDate: "2024-03-10"},
		{JobNumber: "102", Status: "Approved", Customer: oms.Customer{Company: "Globex"}, RequestedShipDate: "2024-03-10"},
		{JobNumber: "103", Status: "Shipped", Customer: oms.Customer{Company: "Acme"}, RequestedShipDate: "2024-02-20"},
		{JobNumber: "104", Status: "In Production", Customer: oms.Customer{Company: "Initech"}, Description: "stadium banner"},
	}
}

func routeClock(t *testing.T) oms.Clock {
	t.Helper()
	return oms.FixedClock(time.Date(2024, 3, 6, 12, 0, 0, 0, time.UTC), time.UTC)
}

func vectorHit(job string, score float32) vector.SearchResult {
	return vector.SearchResult{
		ID:      vector.RecordID(job),
		Score:   score,
		Payload: map[string]interface{}{"jobNumber": job},
	}
}

func TestRouteJobLookup(t *testing.T) {
	source := &fakeSource{orders: testOrders()}
	r := New(source, nil, nil, cache.New(0), DefaultConfig())

	result := r.Route(context.Background(), "job 104", routeClock(t))
	if result.Strategy != StrategyAPI {
		t.Fatalf("strategy = %s", result.Strategy)
	}
	if len(result.Orders) != 1 || result.Orders[0].JobNumber != "104" {
		t.Fatalf("orders = %+v", result.Orders)
	}
	if result.Confidence != ConfidenceHigh {
		t.Fatalf("confidence = %s", result.Confidence)
	}
}

func TestRouteJobLookupMiss(t *testing.T) {
	source := &fakeSource{orders: testOrders()}
	store := &fakeVectorStore{available: true, results: []vector.SearchResult{vectorHit("104", 0.95)}}
	r := New(source, store, &fakeEmbedder{}, cache.New(0), DefaultConfig())

	result := r.Route(context.Background(), "job 999", routeClock(t))
	if result.NotFoundJob != "999" {
		t.Fatalf("NotFoundJob = %q, want 999", result.NotFoundJob)
	}
	if len(result.Orders) != 0 {
		t.Fatalf("a confirmed miss must not return orders, got %+v", result.Orders)
	}
	if store.searchHits != 0 {
		t.Fatal("a confirmed miss must not fall through to vector search")
	}
}

func TestRouteStructuredCombinesFilters(t *testing.T) {
	source := &fakeSource{orders: testOrders()}
	r := New(source, nil, nil, cache.New(0), DefaultConfig())

	result := r.Route(context.Background(), "approved orders for Acme", routeClock(t))
	if result.Strategy != StrategyAPI {
		t.Fatalf("strategy = %s", result.Strategy)
	}
	// 100 and 101 are approved Acme; 102 is Globex, 103 shipped.
	if len(result.Orders) != 2 {
		t.Fatalf("orders = %+v", result.Orders)
	}
	for _, order := range result.Orders {
		if order.Customer.Company != "Acme" || order.Status != "Approved" {
			t.Fatalf("filter leaked order %+v", order)
		}
	}
}

func TestRouteStructuredEmptyResult(t *testing.T) {
	source := &fakeSource{orders: testOrders()}
	r := New(source, nil, nil, cache.New(0), DefaultConfig())

	result := r.Route(context.Background(), "orders for Hooli", routeClock(t))
	if result.Strategy != StrategyAPI {
		t.Fatalf("strategy = %s", result.Strategy)
	}
	if len(result.Orders) != 0 {
		t.Fatalf("expected empty result, got %+v", result.Orders)
	}
	if result.Confidence != ConfidenceLow {
		t.Fatalf("confidence = %s", result.Confidence)
	}
}

func TestRouteHybridKeepsStructuredFilter(t *testing.T) {
	source := &fakeSource{orders: testOrders()}
	store := &fakeVectorStore{available: true, results: []vector.SearchResult{
		vectorHit("100", 0.92),
		vectorHit("104", 0.88),
	}}
	r := New(source, store, &fakeEmbedder{}, cache.New(0), DefaultConfig())

	// Overdue matches only job 100; sparse result triggers the blend. Job
	// 104 scores well but has no ship date, so it must not be resurrected.
	result := r.Route(context.Background(), "overdue orders", routeClock(t))
	if result.Strategy != StrategyHybrid {
		t.Fatalf("strategy = %s", result.Strategy)
	}
	if len(result.Orders) != 1 || result.Orders[0].JobNumber != "100" {
		t.Fatalf("orders = %+v", result.Orders)
	}
	overdue := oms.IsOverdue(routeClock(t))
	for _, order := range result.Orders {
		if !overdue(order) {
			t.Fatalf("non-overdue order leaked: %+v", order)
		}
	}
	if len(result.VectorMatches) != 1 || result.VectorMatches[0].JobNumber() != "100" {
		t.Fatalf("matches = %+v", result.VectorMatches)
	}
}

func TestRouteStructuredDropsUnrelatedSemanticHits(t *testing.T) {
	orders := testOrders()
	orders[4].Priority = "MUST"
	source := &fakeSource{orders: orders}
	store := &fakeVectorStore{available: true, results: []vector.SearchResult{
		vectorHit("102", 0.91),
	}}
	r := New(source, store, &fakeEmbedder{}, cache.New(0), DefaultConfig())

	// Exactly one MUST order exists; the unrelated high-score hit for 102
	// satisfies nothing the query asked for and gets no seat.
	result := r.Route(context.Background(), "rush orders", routeClock(t))
	if result.Strategy != StrategyAPI {
		t.Fatalf("strategy = %s", result.Strategy)
	}
	if len(result.Orders) != 1 || result.Orders[0].JobNumber != "104" {
		t.Fatalf("orders = %+v", result.Orders)
	}
}

func TestRouteSemanticFiltersLowScores(t *testing.T) {
	source := &fakeSource{orders: testOrders()}
	store := &fakeVectorStore{available: true, results: []vector.SearchResult{
		vectorHit("104", 0.91),
		vectorHit("102", 0.42),
	}}
	r := New(source, store, &fakeEmbedder{}, cache.New(0), DefaultConfig())

	result := r.Route(context.Background(), "anything about stadium banners?", routeClock(t))
	if result.Strategy != StrategyVector {
		t.Fatalf("strategy = %s", result.Strategy)
	}
	if len(result.Orders) != 1 || result.Orders[0].JobNumber != "104" {
		t.Fatalf("orders = %+v", result.Orders)
	}
}

func TestRouteSemanticDegradesWithoutVector(t *testing.T) {
	source := &fakeSource{orders: testOrders()}
	store := &fakeVectorStore{available: false}
	r := New(source, store, &fakeEmbedder{}, cache.New(0), DefaultConfig())

	result := r.Route(context.Background(), "anything about stadium banners?", routeClock(t))
	if result.Strategy != StrategyAPI {
		t.Fatalf("degraded strategy = %s, want api", result.Strategy)
	}
	if result.Confidence != ConfidenceLow {
		t.Fatalf("confidence = %s, want low", result.Confidence)
	}
	if len(result.Orders) != 1 || result.Orders[0].JobNumber != "104" {
		t.Fatalf("keyword scan should find the banner order, got %+v", result.Orders)
	}
}

func TestRouteSourceFailure(t *testing.T) {
	source := &fakeSource{fetchErr: errors.New("oms down")}
	r := New(source, nil, nil, cache.New(0), DefaultConfig())

	result := r.Route(context.Background(), "overdue orders", routeClock(t))
	if result.Strategy != StrategyError {
		t.Fatalf("strategy = %s, want error", result.Strategy)
	}
	if result.Err == nil {
		t.Fatal("error result must carry the cause")
	}
}

func TestRouteFetchCached(t *testing.T) {
	source := &fakeSource{orders: testOrders()}
	queryCache := cache.New(0)
	r := New(source, nil, nil, queryCache, DefaultConfig())

	clock := routeClock(t)
	r.Route(context.Background(), "approved orders for Acme", clock)
	r.Route(context.Background(), "orders for Globex", clock)
	if source.fetchHits != 1 {
		t.Fatalf("fetch hits = %d, want 1 (second query served from cache)", source.fetchHits)
	}
}
