// File path: internal/oms/client.go
package oms

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/coastalgraphics/orderdesk/internal/common"
)

// ErrOrderNotFound marks a lookup for a job number the OMS does not know.
// It is a valid empty result, not a system failure.
var ErrOrderNotFound = errors.New("order not found")

// Client talks to the live OMS HTTP API. All calls carry the configured
// timeout through the underlying http.Client.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

func NewClient(cfg Config) (*Client, error) {
	base := strings.TrimSpace(cfg.APIBaseURL)
	if base == "" {
		return nil, errors.New("oms api base url required")
	}
	logger := common.Logger()
	logger.Info("oms: initializing api client", "base_url", base, "timeout", cfg.Timeout)
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    strings.TrimRight(base, "/"),
		apiKey:     cfg.APIKey,
	}, nil
}

func (c *Client) Orders(ctx context.Context) ([]Order, error) {
	var resp struct {
		Orders []Order `json:"orders"`
	}
	endpoint := c.baseURL + "/orders"
	if err := c.doRequest(ctx, endpoint, &resp); err != nil {
		return nil, err
	}
	return resp.Orders, nil
}

func (c *Client) Order(ctx context.Context, jobNumber string) (Order, error) {
	trimmed := strings.TrimSpace(jobNumber)
	if trimmed == "" {
		return Order{}, errors.New("job number required")
	}
	endpoint := fmt.Sprintf("%s/orders/%s", c.baseURL, url.PathEscape(trimmed))
	var order Order
	if err := c.doRequest(ctx, endpoint, &order); err != nil {
		return Order{}, err
	}
	return order, nil
}

func (c *Client) Health(ctx context.Context) error {
	return c.doRequest(ctx, c.baseURL+"/health", nil)
}

func (c *Client) doRequest(ctx context.Context, endpoint string, out interface{}) error {
	if c == nil {
		return errors.New("oms client not configured")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("oms request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return ErrOrderNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("oms %s failed: status %d: %s", endpoint, resp.StatusCode, strings.TrimSpace(string(data)))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
