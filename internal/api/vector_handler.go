// File path: internal/api/vector_handler.go
package api

import (
	"fmt"
	"net/http"

	"github.com/coastalgraphics/orderdesk/internal/common"
	"github.com/coastalgraphics/orderdesk/internal/oms"
)

func (s *Server) handleVectorRebuild(w http.ResponseWriter, r *http.Request) {
	logger := common.Logger()
	orders, ok := s.syncPrecheck(w, r)
	if !ok {
		return
	}
	report, err := s.syncer.FullRebuild(r.Context(), orders)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Errorf("rebuild failed: %w", err))
		return
	}
	s.cache.Purge()
	logger.Info("api: vector rebuild complete", "indexed", report.New, "took", report.Duration)
	writeJSON(w, http.StatusOK, syncResponse{Success: true, Report: report, Took: report.Duration.String()})
}

func (s *Server) handleVectorSync(w http.ResponseWriter, r *http.Request) {
	logger := common.Logger()
	orders, ok := s.syncPrecheck(w, r)
	if !ok {
		return
	}
	report, err := s.syncer.IncrementalUpdate(r.Context(), orders)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Errorf("sync failed: %w", err))
		return
	}
	s.cache.Purge()
	logger.Info("api: vector sync complete",
		"new", report.New, "updated", report.Updated, "unchanged", report.Unchanged,
		"deleted", report.Deleted, "took", report.Duration)
	writeJSON(w, http.StatusOK, syncResponse{Success: true, Report: report, Took: report.Duration.String()})
}

func (s *Server) handleVectorReset(w http.ResponseWriter, r *http.Request) {
	if s.syncer == nil {
		writeError(w, http.StatusServiceUnavailable, fmt.Errorf("vector sync not configured"))
		return
	}
	if err := s.syncer.ResetTracker(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Errorf("reset failed: %w", err))
		return
	}
	s.cache.Purge()
	common.Logger().Info("api: vector tracker reset")
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

// handleVectorChanges is the dry-run diff: what a sync would do, with no
// writes performed.
func (s *Server) handleVectorChanges(w http.ResponseWriter, r *http.Request) {
	orders, ok := s.syncPrecheck(w, r)
	if !ok {
		return
	}
	changes, err := s.syncer.DetectChanges(r.Context(), orders)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Errorf("change detection failed: %w", err))
		return
	}
	writeJSON(w, http.StatusOK, changesResponse{Counts: changes.Counts(), Changes: changes})
}

func (s *Server) syncPrecheck(w http.ResponseWriter, r *http.Request) ([]oms.Order, bool) {
	if s.syncer == nil {
		writeError(w, http.StatusServiceUnavailable, fmt.Errorf("vector sync not configured"))
		return nil, false
	}
	orders, _, err := s.source.Fetch(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, fmt.Errorf("order fetch failed: %w", err))
		return nil, false
	}
	return orders, true
}
