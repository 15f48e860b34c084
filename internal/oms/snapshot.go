// File path: internal/oms/snapshot.go
package oms

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// SnapshotDoc mirrors the JSON document the scraper produces. The version
// field exists for forward compatibility; unknown versions are read as-is.
type SnapshotDoc struct {
	Orders  []Order         `json:"orders"`
	Summary SnapshotSummary `json:"summary"`
}

type SnapshotSummary struct {
	TotalOrders int    `json:"totalOrders"`
	LastUpdated string `json:"lastUpdated,omitempty"`
	ScrapedAt   string `json:"scrapedAt,omitempty"`
	Version     int    `json:"version,omitempty"`
}

// SnapshotStore reads and writes the persisted order snapshot. A missing file
// is not an error; it reads as an empty order set.
type SnapshotStore struct {
	path string
	mu   sync.RWMutex
}

func NewSnapshotStore(path string) (*SnapshotStore, error) {
	if path == "" {
		return nil, errors.New("snapshot path required")
	}
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create snapshot dir: %w", err)
		}
	}
	return &SnapshotStore{path: path}, nil
}

func (s *SnapshotStore) Load(ctx context.Context) (SnapshotDoc, error) {
	if s == nil {
		return SnapshotDoc{}, errors.New("snapshot store not initialized")
	}
	select {
	case <-ctx.Done():
		return SnapshotDoc{}, ctx.Err()
	default:
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return SnapshotDoc{}, nil
		}
		return SnapshotDoc{}, fmt.Errorf("read snapshot: %w", err)
	}
	var doc SnapshotDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return SnapshotDoc{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return doc, nil
}

func (s *SnapshotStore) Save(ctx context.Context, orders []Order) error {
	if s == nil {
		return errors.New("snapshot store not initialized")
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	doc := SnapshotDoc{
		Orders: orders,
		Summary: SnapshotSummary{
			TotalOrders: len(orders),
			LastUpdated: time.Now().UTC().Format(time.RFC3339),
			Version:     1,
		},
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}

// Path returns the underlying file used for persistence.
func (s *SnapshotStore) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}
