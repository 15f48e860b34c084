// File path: internal/vector/sync/syncer.go
package sync

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/coastalgraphics/orderdesk/internal/common"
	"github.com/coastalgraphics/orderdesk/internal/oms"
	"github.com/coastalgraphics/orderdesk/internal/vector"
)

// Embedder is the minimal contract needed to turn order text into vectors.
type Embedder interface {
	Embed(ctx context.Context, input []string) ([][]float32, error)
}

const (
	// embedBatchSize bounds texts per embedding request to keep request
	// bodies and token counts predictable.
	embedBatchSize = 64
	// embedParallelism bounds concurrent embedding requests.
	embedParallelism = 4
)

// ChangeSet is the result of diffing the current order set against what the
// tracker last recorded.
type ChangeSet struct {
	NewOrders       []oms.Order `json:"newOrders"`
	UpdatedOrders   []oms.Order `json:"updatedOrders"`
	UnchangedOrders []oms.Order `json:"unchangedOrders"`
	DeletedOrderIDs []string    `json:"deletedOrderIds"`
}

// Counts summarizes a change set for responses and logs.
func (c ChangeSet) Counts() map[string]int {
	return map[string]int{
		"new":       len(c.NewOrders),
		"updated":   len(c.UpdatedOrders),
		"unchanged": len(c.UnchangedOrders),
		"deleted":   len(c.DeletedOrderIDs),
	}
}

// Report describes what a sync operation actually did.
type Report struct {
	New       int           `json:"new"`
	Updated   int           `json:"updated"`
	Unchanged int           `json:"unchanged"`
	Deleted   int           `json:"deleted"`
	Duration  time.Duration `json:"-"`
}

// Syncer keeps the vector index consistent with the authoritative order set
// without requiring a full rebuild on every refresh.
type Syncer struct {
	tracker  *Tracker
	store    vector.Store
	embedder Embedder
}

func NewSyncer(tracker *Tracker, store vector.Store, embedder Embedder) *Syncer {
	return &Syncer{tracker: tracker, store: store, embedder: embedder}
}

// DetectChanges fingerprints the current orders and compares against the
// tracker. It performs no writes, so it doubles as the dry-run diff.
func (s *Syncer) DetectChanges(ctx context.Context, currentOrders []oms.Order) (ChangeSet, error) {
	if s == nil || s.tracker == nil {
		return ChangeSet{}, errors.New("change tracker not configured")
	}
	known, err := s.tracker.Fingerprints(ctx)
	if err != nil {
		return ChangeSet{}, err
	}
	var changes ChangeSet
	seen := make(map[string]struct{}, len(currentOrders))
	for _, order := range currentOrders {
		if order.JobNumber == "" {
			continue
		}
		seen[order.JobNumber] = struct{}{}
		fingerprint := oms.Fingerprint(order)
		recorded, ok := known[order.JobNumber]
		switch {
		case !ok:
			changes.NewOrders = append(changes.NewOrders, order)
		case recorded != fingerprint:
			changes.UpdatedOrders = append(changes.UpdatedOrders, order)
		default:
			changes.UnchangedOrders = append(changes.UnchangedOrders, order)
		}
	}
	for jobNumber := range known {
		if _, ok := seen[jobNumber]; !ok {
			changes.DeletedOrderIDs = append(changes.DeletedOrderIDs, jobNumber)
		}
	}
	sort.Strings(changes.DeletedOrderIDs)
	return changes, nil
}

// IncrementalUpdate embeds and upserts only new and updated orders, deletes
// vectors for vanished orders and leaves unchanged orders untouched. A
// fingerprint is only advanced after the upsert carrying its vector has
// succeeded, so a failed batch leaves those orders marked dirty.
func (s *Syncer) IncrementalUpdate(ctx context.Context, currentOrders []oms.Order) (Report, error) {
	start := time.Now()
	changes, err := s.DetectChanges(ctx, currentOrders)
	if err != nil {
		return Report{}, err
	}
	logger := common.Logger()
	logger.Info("sync: incremental update starting",
		"new", len(changes.NewOrders),
		"updated", len(changes.UpdatedOrders),
		"unchanged", len(changes.UnchangedOrders),
		"deleted", len(changes.DeletedOrderIDs),
	)
	dirty := append(append([]oms.Order(nil), changes.NewOrders...), changes.UpdatedOrders...)
	if err := s.indexOrders(ctx, dirty); err != nil {
		return Report{}, err
	}
	for _, jobNumber := range changes.DeletedOrderIDs {
		if err := s.store.Delete(ctx, []string{vector.RecordID(jobNumber)}); err != nil {
			return Report{}, fmt.Errorf("delete vector for %s: %w", jobNumber, err)
		}
		if err := s.tracker.Forget(ctx, jobNumber); err != nil {
			return Report{}, err
		}
	}
	report := Report{
		New:       len(changes.NewOrders),
		Updated:   len(changes.UpdatedOrders),
		Unchanged: len(changes.UnchangedOrders),
		Deleted:   len(changes.DeletedOrderIDs),
		Duration:  time.Since(start),
	}
	logger.Info("sync: incremental update complete", "duration", report.Duration)
	return report, nil
}

// FullRebuild clears the collection and the tracker, then re-embeds every
// current order. Used for recovery from drift or corruption.
func (s *Syncer) FullRebuild(ctx context.Context, currentOrders []oms.Order) (Report, error) {
	start := time.Now()
	logger := common.Logger()
	logger.Info("sync: full rebuild starting", "orders", len(currentOrders))
	if err := s.store.Reset(ctx); err != nil {
		return Report{}, fmt.Errorf("reset collection: %w", err)
	}
	if err := s.tracker.Reset(ctx); err != nil {
		return Report{}, err
	}
	if err := s.indexOrders(ctx, currentOrders); err != nil {
		return Report{}, err
	}
	report := Report{New: len(currentOrders), Duration: time.Since(start)}
	logger.Info("sync: full rebuild complete", "orders", len(currentOrders), "duration", report.Duration)
	return report, nil
}

// ResetTracker clears recorded fingerprints so the next detection treats
// every order as new. Idempotent.
func (s *Syncer) ResetTracker(ctx context.Context) error {
	if s == nil || s.tracker == nil {
		return errors.New("change tracker not configured")
	}
	return s.tracker.Reset(ctx)
}

func (s *Syncer) indexOrders(ctx context.Context, orders []oms.Order) error {
	if len(orders) == 0 {
		return nil
	}
	if s.embedder == nil {
		return errors.New("embedder not configured")
	}
	if s.store == nil {
		return errors.New("vector store not configured")
	}
	batches := make([][]oms.Order, 0, len(orders)/embedBatchSize+1)
	for start := 0; start < len(orders); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(orders) {
			end = len(orders)
		}
		batches = append(batches, orders[start:end])
	}
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(embedParallelism)
	for _, batch := range batches {
		batch := batch
		group.Go(func() error {
			texts := make([]string, 0, len(batch))
			for _, order := range batch {
				texts = append(texts, order.EmbeddingText())
			}
			vectors, err := s.embedder.Embed(groupCtx, texts)
			if err != nil {
				return fmt.Errorf("embed batch: %w", err)
			}
			if len(vectors) != len(batch) {
				return fmt.Errorf("embed batch: expected %d vectors, got %d", len(batch), len(vectors))
			}
			records := make([]vector.Record, 0, len(batch))
			for idx, order := range batch {
				records = append(records, vector.NewRecord(order, vectors[idx]))
			}
			if err := s.store.UpsertRecords(groupCtx, records); err != nil {
				return fmt.Errorf("upsert batch: %w", err)
			}
			// The upsert confirmed; only now advance the fingerprints.
			for _, order := range batch {
				if err := s.tracker.Record(groupCtx, order.JobNumber, oms.Fingerprint(order)); err != nil {
					return err
				}
			}
			return nil
		})
	}
	return group.Wait()
}
