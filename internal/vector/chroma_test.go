// File path: internal/vector/chroma_test.go
package vector

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coastalgraphics/orderdesk/internal/oms"
)

type fakeChroma struct {
	t *testing.T

	mu                sync.Mutex
	collectionName    string
	collectionID      string
	heartbeatFailures int
	heartbeatCalls    int
	upsertNotFound    bool
	addCalls          int
	upsertCalls       int
	deleteCalls       int
	queryCalls        int
	collectionDeleted bool

	lastUpsertPayload map[string]interface{}
	lastDeletePayload map[string]interface{}
	queryDistances    []float64
	queryIDs          []string
}

func newFakeChroma(t *testing.T) *fakeChroma {
	t.Helper()
	return &fakeChroma{
		t:              t,
		collectionName: "orderdesk_orders",
		collectionID:   "col-123",
	}
}

func (f *fakeChroma) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/api/v1/heartbeat":
		f.handleHeartbeat(w)
	case r.URL.Path == "/api/v1/collections" && r.Method == http.MethodGet:
		f.handleListCollections(w)
	case r.URL.Path == "/api/v1/collections" && r.Method == http.MethodPost:
		f.handleCreateCollection(w)
	case r.Method == http.MethodDelete && strings.HasPrefix(r.URL.Path, "/api/v1/collections/"):
		f.handleDeleteCollection(w)
	case strings.HasSuffix(r.URL.Path, "/upsert"):
		f.handleUpsert(w, r)
	case strings.HasSuffix(r.URL.Path, "/add"):
		f.handleAdd(w, r)
	case strings.HasSuffix(r.URL.Path, "/delete"):
		f.handleDelete(w, r)
	case strings.HasSuffix(r.URL.Path, "/query"):
		f.handleQuery(w)
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeChroma) handleHeartbeat(w http.ResponseWriter) {
	f.mu.Lock()
	f.heartbeatCalls++
	shouldFail := f.heartbeatFailures > 0
	if shouldFail {
		f.heartbeatFailures--
	}
	f.mu.Unlock()
	if shouldFail {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("heartbeat failure"))
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]interface{}{"nanosecond heartbeat": time.Now().UnixNano()})
}

func (f *fakeChroma) handleListCollections(w http.ResponseWriter) {
	f.mu.Lock()
	defer f.mu.Unlock()
	collections := []map[string]string{}
	if !f.collectionDeleted {
		collections = append(collections, map[string]string{"id": f.collectionID, "name": f.collectionName})
	}
	_ = json.NewEncoder(w).Encode(map[string]interface{}{"collections": collections})
}

func (f *fakeChroma) handleCreateCollection(w http.ResponseWriter) {
	f.mu.Lock()
	f.collectionDeleted = false
	id := f.collectionID
	f.mu.Unlock()
	_ = json.NewEncoder(w).Encode(map[string]string{"id": id})
}

func (f *fakeChroma) handleDeleteCollection(w http.ResponseWriter) {
	f.mu.Lock()
	f.collectionDeleted = true
	f.mu.Unlock()
	w.WriteHeader(http.StatusOK)
}

func (f *fakeChroma) handleUpsert(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.upsertCalls++
	notFound := f.upsertNotFound
	f.mu.Unlock()
	if notFound {
		http.NotFound(w, r)
		return
	}
	var payload map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		f.t.Errorf("decode upsert payload: %v", err)
	}
	f.mu.Lock()
	f.lastUpsertPayload = payload
	f.mu.Unlock()
	w.WriteHeader(http.StatusOK)
}

func (f *fakeChroma) handleAdd(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.addCalls++
	f.mu.Unlock()
	var payload map[string]interface{}
	_ = json.NewDecoder(r.Body).Decode(&payload)
	w.WriteHeader(http.StatusOK)
}

func (f *fakeChroma) handleDelete(w http.ResponseWriter, r *http.Request) {
	var payload map[string]interface{}
	_ = json.NewDecoder(r.Body).Decode(&payload)
	f.mu.Lock()
	f.deleteCalls++
	f.lastDeletePayload = payload
	f.mu.Unlock()
	w.WriteHeader(http.StatusOK)
}

func (f *fakeChroma) handleQuery(w http.ResponseWriter) {
	f.mu.Lock()
	ids := f.queryIDs
	distances := f.queryDistances
	f.queryCalls++
	f.mu.Unlock()
	metadatas := make([]map[string]interface{}, len(ids))
	for i, id := range ids {
		metadatas[i] = map[string]interface{}{"jobNumber": strings.TrimPrefix(id, "order-")}
	}
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"ids":       [][]string{ids},
		"distances": [][]float64{distances},
		"metadatas": [][]map[string]interface{}{metadatas},
	})
}

func newTestClient(t *testing.T, fake *fakeChroma) (*Client, func()) {
	t.Helper()
	server := httptest.NewServer(fake)
	host, port, err := net.SplitHostPort(strings.TrimPrefix(server.URL, "http://"))
	if err != nil {
		t.Fatalf("split server address: %v", err)
	}
	cfg := Config{
		Host:       host,
		Port:       port,
		Scheme:     "http",
		Collection: fake.collectionName,
		Timeout:    5 * time.Second,
	}
	client, err := New(context.Background(), cfg)
	if err != nil {
		server.Close()
		t.Fatalf("new client: %v", err)
	}
	return client, func() {
		client.Close()
		server.Close()
	}
}

func TestClientBecomesAvailable(t *testing.T) {
	fake := newFakeChroma(t)
	client, cleanup := newTestClient(t, fake)
	defer cleanup()
	if !client.Available() {
		t.Fatal("client should be available after successful init")
	}
	if client.Collection() != "orderdesk_orders" {
		t.Fatalf("collection = %q", client.Collection())
	}
}

func TestClientRetriesHeartbeat(t *testing.T) {
	fake := newFakeChroma(t)
	fake.heartbeatFailures = 2
	client, cleanup := newTestClient(t, fake)
	defer cleanup()
	if !client.Available() {
		t.Fatal("client should recover after transient heartbeat failures")
	}
	fake.mu.Lock()
	calls := fake.heartbeatCalls
	fake.mu.Unlock()
	if calls < 3 {
		t.Fatalf("heartbeat calls = %d, want at least 3", calls)
	}
}

func TestUpsertRecords(t *testing.T) {
	fake := newFakeChroma(t)
	client, cleanup := newTestClient(t, fake)
	defer cleanup()

	order := oms.Order{JobNumber: "4521", Status: "Approved", Customer: oms.Customer{Company: "Acme"}}
	record := NewRecord(order, []float32{0.1, 0.2})
	if err := client.UpsertRecords(context.Background(), []Record{record}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	fake.mu.Lock()
	payload := fake.lastUpsertPayload
	fake.mu.Unlock()
	ids, ok := payload["ids"].([]interface{})
	if !ok || len(ids) != 1 || ids[0] != "order-4521" {
		t.Fatalf("upsert ids = %v", payload["ids"])
	}
}

func TestUpsertFallsBackToAdd(t *testing.T) {
	fake := newFakeChroma(t)
	fake.upsertNotFound = true
	client, cleanup := newTestClient(t, fake)
	defer cleanup()

	record := NewRecord(oms.Order{JobNumber: "100"}, []float32{0.5})
	if err := client.UpsertRecords(context.Background(), []Record{record}); err != nil {
		t.Fatalf("upsert with add fallback: %v", err)
	}
	fake.mu.Lock()
	addCalls := fake.addCalls
	fake.mu.Unlock()
	if addCalls != 1 {
		t.Fatalf("add calls = %d, want 1", addCalls)
	}
}

func TestSearchScoresFromDistances(t *testing.T) {
	fake := newFakeChroma(t)
	fake.queryIDs = []string{"order-100", "order-101"}
	fake.queryDistances = []float64{0.0, 1.0}
	client, cleanup := newTestClient(t, fake)
	defer cleanup()

	results, err := client.Search(context.Background(), []float32{0.1}, 5)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("results = %d, want 2", len(results))
	}
	if results[0].Score != 1.0 {
		t.Fatalf("zero distance should score 1.0, got %v", results[0].Score)
	}
	if results[1].Score != 0.5 {
		t.Fatalf("distance 1.0 should score 0.5, got %v", results[1].Score)
	}
	if results[0].JobNumber() != "100" {
		t.Fatalf("job number = %q", results[0].JobNumber())
	}
}

func TestDeleteSendsIDs(t *testing.T) {
	fake := newFakeChroma(t)
	client, cleanup := newTestClient(t, fake)
	defer cleanup()

	if err := client.Delete(context.Background(), []string{"order-100", "order-101"}); err != nil {
		t.Fatalf("delete: %v", err)
	}
	fake.mu.Lock()
	payload := fake.lastDeletePayload
	fake.mu.Unlock()
	ids, ok := payload["ids"].([]interface{})
	if !ok || len(ids) != 2 {
		t.Fatalf("delete ids = %v", payload["ids"])
	}
}

func TestResetRecreatesCollection(t *testing.T) {
	fake := newFakeChroma(t)
	client, cleanup := newTestClient(t, fake)
	defer cleanup()

	if err := client.Reset(context.Background()); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if !client.Available() {
		t.Fatal("client should be available again after reset")
	}
}

func TestSearchResultJobNumberFallsBackToID(t *testing.T) {
	result := SearchResult{ID: "order-777"}
	if result.JobNumber() != "777" {
		t.Fatalf("job number = %q", result.JobNumber())
	}
}
