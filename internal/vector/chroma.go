// File path: internal/vector/chroma.go
package vector

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/coastalgraphics/orderdesk/internal/common"
	"github.com/coastalgraphics/orderdesk/internal/common/telemetry"
	"github.com/coastalgraphics/orderdesk/internal/oms"
)

// Store is the vector index contract the router and sync layers depend on.
type Store interface {
	Available() bool
	Collection() string
	UpsertRecords(ctx context.Context, records []Record) error
	Delete(ctx context.Context, ids []string) error
	Search(ctx context.Context, vector []float32, limit int) ([]SearchResult, error)
	Reset(ctx context.Context) error
}

// Record is one indexed order: embedding plus a lossy metadata projection
// used for display and filtering without re-fetching the source order.
type Record struct {
	ID        string
	Embedding []float32
	Document  string
	Metadata  map[string]interface{}
}

// RecordID derives the index id for a job number.
func RecordID(jobNumber string) string {
	return "order-" + strings.TrimSpace(jobNumber)
}

// NewRecord projects an order into its vector record.
func NewRecord(order oms.Order, embedding []float32) Record {
	metadata := map[string]interface{}{
		"jobNumber":       order.JobNumber,
		"customerCompany": order.Customer.Company,
		"status":          order.Status,
		"priority":        order.Priority,
		"orderNumber":     order.OrderNumber,
		"dateEntered":     order.DateEntered,
		"description":     oms.Truncate(order.Description, 200),
		"totalDue":        order.Pricing.Total,
		"lastUpdated":     order.LastUpdated,
	}
	return Record{
		ID:        RecordID(order.JobNumber),
		Embedding: embedding,
		Document:  order.EmbeddingText(),
		Metadata:  metadata,
	}
}

type SearchResult struct {
	ID      string
	Score   float32
	Payload map[string]interface{}
}

// JobNumber extracts the job number from a result payload.
func (r SearchResult) JobNumber() string {
	if r.Payload == nil {
		return strings.TrimPrefix(r.ID, "order-")
	}
	if value, ok := r.Payload["jobNumber"].(string); ok && strings.TrimSpace(value) != "" {
		return value
	}
	return strings.TrimPrefix(r.ID, "order-")
}

// Client implements Store against a ChromaDB HTTP endpoint.
type Client struct {
	httpClient *http.Client
	transport  *http.Transport

	baseURL      string
	collection   string
	collectionID string
	available    bool
	apiKey       string

	cfg Config

	mu sync.RWMutex
}

func NewFromEnv(ctx context.Context) (*Client, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, err
	}
	return New(ctx, cfg)
}

// New constructs a client using the provided configuration. Initialization
// failures are logged but not fatal; the client reports unavailable and the
// router degrades to api-only strategies.
func New(ctx context.Context, cfg Config) (*Client, error) {
	baseURL := fmt.Sprintf("%s://%s:%s/api/v1", cfg.Scheme, cfg.Host, cfg.Port)
	logger := common.Logger()
	logger.Info(
		"vector: initializing chromadb client",
		"host", cfg.Host,
		"port", cfg.Port,
		"collection", cfg.Collection,
		"timeout", cfg.Timeout,
	)

	transport := &http.Transport{
		MaxIdleConns:        cfg.HTTPMaxIdleConns,
		MaxIdleConnsPerHost: cfg.HTTPMaxIdlePerHost,
		IdleConnTimeout:     cfg.HTTPIdleConnTimeout,
	}

	client := &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout, Transport: transport},
		transport:  transport,
		baseURL:    strings.TrimRight(baseURL, "/"),
		collection: cfg.Collection,
		apiKey:     cfg.APIKey,
		cfg:        cfg,
	}

	if err := client.ensureReady(ctx); err != nil {
		logger.Warn("vector: chromadb initialization failed", "collection", cfg.Collection, "error", err)
		return client, nil
	}
	logger.Info("vector: chromadb connection established")
	return client, nil
}

func (c *Client) Available() bool {
	if c == nil {
		return false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.available
}

func (c *Client) Collection() string {
	if c == nil {
		return ""
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.collection
}

func (c *Client) ensureReady(ctx context.Context) error {
	if c == nil {
		return errors.New("chromadb client not configured")
	}
	c.mu.RLock()
	available := c.available
	collectionID := c.collectionID
	c.mu.RUnlock()

	if available && collectionID != "" {
		return nil
	}
	const maxAttempts = 3
	var err error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		err = c.health(ctx)
		if err == nil {
			break
		}
		select {
		case <-ctx.Done():
			c.setAvailable(false)
			return ctx.Err()
		case <-time.After(time.Duration(attempt+1) * 250 * time.Millisecond):
		}
	}
	if err != nil {
		c.setAvailable(false)
		return err
	}
	if err = c.ensureCollectionID(ctx); err != nil {
		c.setAvailable(false)
		return err
	}
	c.setAvailable(true)
	return nil
}

func (c *Client) setAvailable(value bool) {
	c.mu.Lock()
	c.available = value
	c.mu.Unlock()
}

func (c *Client) UpsertRecords(ctx context.Context, records []Record) error {
	if err := c.ensureReady(ctx); err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}
	ids := make([]string, 0, len(records))
	embeddings := make([][]float32, 0, len(records))
	documents := make([]string, 0, len(records))
	metadatas := make([]map[string]interface{}, 0, len(records))
	for _, record := range records {
		ids = append(ids, record.ID)
		embeddings = append(embeddings, record.Embedding)
		documents = append(documents, record.Document)
		metadatas = append(metadatas, record.Metadata)
	}
	payload := map[string]interface{}{
		"ids":        ids,
		"documents":  documents,
		"metadatas":  metadatas,
		"embeddings": embeddings,
	}
	endpoint := fmt.Sprintf("%s/collections/%s/upsert", c.baseURL, url.PathEscape(c.collectionIDLocked()))
	if err := c.doRequest(ctx, http.MethodPost, endpoint, payload, nil); err != nil {
		if errors.Is(err, errNotFound) {
			fallback := fmt.Sprintf("%s/collections/%s/add", c.baseURL, url.PathEscape(c.collectionIDLocked()))
			if fallbackErr := c.doRequest(ctx, http.MethodPost, fallback, payload, nil); fallbackErr != nil {
				return fallbackErr
			}
			telemetry.RecordVectorUpsert(len(records))
			return nil
		}
		return err
	}
	telemetry.RecordVectorUpsert(len(records))
	return nil
}

func (c *Client) Delete(ctx context.Context, ids []string) error {
	if err := c.ensureReady(ctx); err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}
	payload := map[string]interface{}{"ids": ids}
	endpoint := fmt.Sprintf("%s/collections/%s/delete", c.baseURL, url.PathEscape(c.collectionIDLocked()))
	if err := c.doRequest(ctx, http.MethodPost, endpoint, payload, nil); err != nil {
		return err
	}
	telemetry.RecordVectorDelete(len(ids))
	return nil
}

func (c *Client) Search(ctx context.Context, vector []float32, limit int) ([]SearchResult, error) {
	if err := c.ensureReady(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 5
	}
	body := map[string]interface{}{
		"query_embeddings": [][]float32{vector},
		"n_results":        limit,
	}
	endpoint := fmt.Sprintf("%s/collections/%s/query", c.baseURL, url.PathEscape(c.collectionIDLocked()))
	var resp struct {
		IDs       [][]string                 `json:"ids"`
		Distances [][]float64                `json:"distances"`
		Metadatas [][]map[string]interface{} `json:"metadatas"`
		Documents [][]string                 `json:"documents"`
	}
	start := time.Now()
	err := c.doRequest(ctx, http.MethodPost, endpoint, body, &resp)
	telemetry.RecordVectorSearch(time.Since(start))
	if err != nil {
		return nil, err
	}
	if len(resp.IDs) == 0 {
		return nil, nil
	}
	results := make([]SearchResult, 0, len(resp.IDs[0]))
	for idx, id := range resp.IDs[0] {
		payload := map[string]interface{}{}
		if len(resp.Metadatas) > 0 && idx < len(resp.Metadatas[0]) {
			for k, v := range resp.Metadatas[0][idx] {
				payload[k] = v
			}
		}
		if len(resp.Documents) > 0 && idx < len(resp.Documents[0]) && resp.Documents[0][idx] != "" {
			payload["content"] = resp.Documents[0][idx]
		}
		score := float32(0)
		if len(resp.Distances) > 0 && idx < len(resp.Distances[0]) {
			dist := resp.Distances[0][idx]
			score = float32(1.0 / (1.0 + dist))
		}
		results = append(results, SearchResult{ID: id, Score: score, Payload: payload})
	}
	return results, nil
}

// Reset drops and recreates the collection. Used by forced full rebuilds.
func (c *Client) Reset(ctx context.Context) error {
	if err := c.ensureReady(ctx); err != nil {
		return err
	}
	endpoint := fmt.Sprintf("%s/collections/%s", c.baseURL, url.PathEscape(c.Collection()))
	if err := c.doRequest(ctx, http.MethodDelete, endpoint, nil, nil); err != nil && !errors.Is(err, errNotFound) {
		return err
	}
	c.mu.Lock()
	c.collectionID = ""
	c.available = false
	c.mu.Unlock()
	return c.ensureReady(ctx)
}

var _ Store = (*Client)(nil)

func (c *Client) collectionIDLocked() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.collectionID
}

func (c *Client) ensureCollectionID(ctx context.Context) error {
	if c.collectionIDLocked() != "" {
		return nil
	}
	id, err := c.findCollection(ctx, c.Collection())
	if err != nil {
		return err
	}
	if id == "" {
		id, err = c.createCollection(ctx, c.Collection())
		if err != nil {
			return err
		}
	}
	c.mu.Lock()
	c.collectionID = id
	c.mu.Unlock()
	return nil
}

func (c *Client) findCollection(ctx context.Context, name string) (string, error) {
	endpoint := fmt.Sprintf("%s/collections?name=%s", c.baseURL, url.QueryEscape(name))
	var resp struct {
		Collections []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"collections"`
	}
	if err := c.doRequest(ctx, http.MethodGet, endpoint, nil, &resp); err != nil {
		if errors.Is(err, errNotFound) {
			return "", nil
		}
		// Fallback to enumerating collections when the name filter is unsupported.
		endpoint = fmt.Sprintf("%s/collections", c.baseURL)
		if err := c.doRequest(ctx, http.MethodGet, endpoint, nil, &resp); err != nil {
			return "", err
		}
	}
	for _, col := range resp.Collections {
		if strings.EqualFold(col.Name, name) {
			return col.ID, nil
		}
	}
	return "", nil
}

func (c *Client) createCollection(ctx context.Context, name string) (string, error) {
	payload := map[string]interface{}{"name": name}
	endpoint := fmt.Sprintf("%s/collections", c.baseURL)
	var resp struct {
		ID string `json:"id"`
	}
	if err := c.doRequest(ctx, http.MethodPost, endpoint, payload, &resp); err != nil {
		if errors.Is(err, errConflict) {
			return c.findCollection(ctx, name)
		}
		return "", err
	}
	return resp.ID, nil
}

var (
	errNotFound = errors.New("resource not found")
	errConflict = errors.New("resource conflict")
)

func (c *Client) health(ctx context.Context) error {
	endpoint := fmt.Sprintf("%s/heartbeat", c.baseURL)
	return c.doRequest(ctx, http.MethodGet, endpoint, nil, nil)
}

func (c *Client) doRequest(ctx context.Context, method, endpoint string, body interface{}, out interface{}) error {
	if c == nil {
		return errors.New("chromadb client not configured")
	}
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		bodyReader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, bodyReader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.apiKey))
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return errNotFound
	}
	if resp.StatusCode == http.StatusConflict {
		return errConflict
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("chromadb %s %s failed: %s", method, endpoint, strings.TrimSpace(string(data)))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// Close releases pooled resources associated with the client.
func (c *Client) Close() error {
	if c == nil {
		return nil
	}
	if c.transport != nil {
		c.transport.CloseIdleConnections()
	}
	return nil
}
