// File path: internal/oms/source.go
package oms

import (
	"context"
	"errors"
	"strings"

	"github.com/coastalgraphics/orderdesk/internal/common"
)

// Freshness reports which backing store served a fetch.
type Freshness string

const (
	FreshnessLive     Freshness = "live"
	FreshnessSnapshot Freshness = "snapshot"
	FreshnessEmpty    Freshness = "empty"
)

// Source abstracts where orders come from. The live API wins when configured
// and reachable; otherwise the persisted snapshot serves as ground truth.
type Source interface {
	Fetch(ctx context.Context) ([]Order, Freshness, error)
	Lookup(ctx context.Context, jobNumber string) (Order, Freshness, error)
	Health(ctx context.Context) error
}

type fallbackSource struct {
	client   *Client
	snapshot *SnapshotStore
}

// NewSource builds a source from the configuration. At least one of the live
// API and the snapshot must be available; with neither the source still works
// and reports an empty order set.
func NewSource(cfg Config) (Source, error) {
	src := &fallbackSource{}
	if strings.TrimSpace(cfg.APIBaseURL) != "" {
		client, err := NewClient(cfg)
		if err != nil {
			return nil, err
		}
		src.client = client
	}
	if strings.TrimSpace(cfg.SnapshotPath) != "" {
		store, err := NewSnapshotStore(cfg.SnapshotPath)
		if err != nil {
			return nil, err
		}
		src.snapshot = store
	}
	return src, nil
}

// NewSnapshotSource wraps an existing snapshot store, used by tests and by
// deployments without a live OMS endpoint.
func NewSnapshotSource(store *SnapshotStore) Source {
	return &fallbackSource{snapshot: store}
}

func (s *fallbackSource) Fetch(ctx context.Context) ([]Order, Freshness, error) {
	logger := common.Logger()
	if s.client != nil {
		orders, err := s.client.Orders(ctx)
		if err == nil {
			return orders, FreshnessLive, nil
		}
		logger.Warn("oms: live fetch failed, falling back to snapshot", "error", err)
		if s.snapshot == nil {
			return nil, FreshnessEmpty, err
		}
	}
	if s.snapshot == nil {
		return nil, FreshnessEmpty, nil
	}
	doc, err := s.snapshot.Load(ctx)
	if err != nil {
		return nil, FreshnessEmpty, err
	}
	return doc.Orders, FreshnessSnapshot, nil
}

func (s *fallbackSource) Lookup(ctx context.Context, jobNumber string) (Order, Freshness, error) {
	trimmed := strings.TrimSpace(jobNumber)
	if trimmed == "" {
		return Order{}, FreshnessEmpty, errors.New("job number required")
	}
	if s.client != nil {
		order, err := s.client.Order(ctx, trimmed)
		if err == nil {
			return order, FreshnessLive, nil
		}
		if errors.Is(err, ErrOrderNotFound) && s.snapshot == nil {
			return Order{}, FreshnessLive, err
		}
		common.Logger().Warn("oms: live lookup failed, falling back to snapshot", "job", trimmed, "error", err)
	}
	orders, freshness, err := s.fetchSnapshot(ctx)
	if err != nil {
		return Order{}, freshness, err
	}
	for _, order := range orders {
		if order.JobNumber == trimmed {
			return order, freshness, nil
		}
	}
	return Order{}, freshness, ErrOrderNotFound
}

func (s *fallbackSource) fetchSnapshot(ctx context.Context) ([]Order, Freshness, error) {
	if s.snapshot == nil {
		return nil, FreshnessEmpty, nil
	}
	doc, err := s.snapshot.Load(ctx)
	if err != nil {
		return nil, FreshnessEmpty, err
	}
	return doc.Orders, FreshnessSnapshot, nil
}

func (s *fallbackSource) Health(ctx context.Context) error {
	if s.client != nil {
		return s.client.Health(ctx)
	}
	if s.snapshot != nil {
		_, err := s.snapshot.Load(ctx)
		return err
	}
	return nil
}
