// File path: internal/api/server.go
package api

import (
	"context"
	"encoding/json"
	"expvar"
	"fmt"
	"net/http"
	"time"

	chi "github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"github.com/coastalgraphics/orderdesk/internal/cache"
	"github.com/coastalgraphics/orderdesk/internal/common"
	"github.com/coastalgraphics/orderdesk/internal/common/telemetry"
	"github.com/coastalgraphics/orderdesk/internal/llm"
	"github.com/coastalgraphics/orderdesk/internal/oms"
	"github.com/coastalgraphics/orderdesk/internal/rag"
	"github.com/coastalgraphics/orderdesk/internal/router"
	"github.com/coastalgraphics/orderdesk/internal/session"
	"github.com/coastalgraphics/orderdesk/internal/vector"
	vsync "github.com/coastalgraphics/orderdesk/internal/vector/sync"
)

// Deps carries the wired components the server serves. Source is required;
// everything else degrades gracefully when absent.
type Deps struct {
	Source    oms.Source
	Vector    vector.Store
	Provider  llm.Provider
	Sessions  *session.Store
	Syncer    *vsync.Syncer
	Cache     *cache.Cache
	Clock     oms.Clock
	RouterCfg router.Config
}

type Server struct {
	router    chi.Router
	source    oms.Source
	vector    vector.Store
	provider  llm.Provider
	sessions  *session.Store
	syncer    *vsync.Syncer
	cache     *cache.Cache
	clock     oms.Clock
	queries   *router.Router
	generator *rag.Generator
}

func NewServer(ctx context.Context, deps Deps) (*Server, error) {
	logger := common.Logger()
	if deps.Source == nil {
		return nil, fmt.Errorf("order source required")
	}
	provider := deps.Provider
	if provider == nil {
		provider = llm.NewProvider()
	}
	sessions := deps.Sessions
	if sessions == nil {
		sessions = session.NewStore(0, 0)
	}
	queryCache := deps.Cache
	if queryCache == nil {
		queryCache = cache.New(0)
	}
	cfg := deps.RouterCfg
	if cfg == (router.Config{}) {
		cfg = router.DefaultConfig()
	}
	logger.Info(
		"api: building server",
		"provider", provider.Name(),
		"vector_available", deps.Vector != nil && deps.Vector.Available(),
		"sync_enabled", deps.Syncer != nil,
	)
	srv := &Server{
		router:    chi.NewRouter(),
		source:    deps.Source,
		vector:    deps.Vector,
		provider:  provider,
		sessions:  sessions,
		syncer:    deps.Syncer,
		cache:     queryCache,
		clock:     deps.Clock,
		queries:   router.New(deps.Source, deps.Vector, provider, queryCache, cfg),
		generator: rag.NewGenerator(provider),
	}
	srv.routes()
	return srv, nil
}

func (s *Server) Router() http.Handler {
	return s.router
}

// requestClock honors a pinned clock when one was injected; otherwise each
// request observes the wall clock in the configured business timezone, so
// date-relative filters stay correct across midnight.
func (s *Server) requestClock() oms.Clock {
	if !s.clock.Now.IsZero() {
		return s.clock
	}
	return oms.NewClock(s.clock.Loc)
}

func (s *Server) routes() {
	logger := common.Logger()
	logger.Info("api: configuring routes")
	s.router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			logger.Debug("request", "method", r.Method, "path", r.URL.Path, "dur", time.Since(start), "remote", r.RemoteAddr)
		})
	})

	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	s.router.Post("/v1/chat", s.handleChat)
	s.router.Get("/v1/health", s.handleHealth)
	s.router.Get("/v1/metrics", s.handleMetrics)
	s.router.Get("/v1/logs", s.handleLogs)
	s.router.Post("/v1/vectors/rebuild", s.handleVectorRebuild)
	s.router.Post("/v1/vectors/sync", s.handleVectorSync)
	s.router.Post("/v1/vectors/reset", s.handleVectorReset)
	s.router.Get("/v1/vectors/changes", s.handleVectorChanges)
	s.router.Method(http.MethodGet, "/debug/vars", expvar.Handler())
}

// handleHealth probes every wired component and reports per-component status.
// Probes run concurrently and all of them settle; one slow dependency must
// not hide the state of the others.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	type probe struct {
		name  string
		check func(context.Context) componentHealth
	}
	probes := []probe{
		{"oms", func(ctx context.Context) componentHealth {
			if err := s.source.Health(ctx); err != nil {
				return componentHealth{Status: "degraded", Detail: err.Error()}
			}
			return componentHealth{Status: "ok"}
		}},
		{"vector", func(ctx context.Context) componentHealth {
			if s.vector == nil {
				return componentHealth{Status: "disabled"}
			}
			if !s.vector.Available() {
				return componentHealth{Status: "unavailable"}
			}
			return componentHealth{Status: "ok"}
		}},
		{"llm", func(ctx context.Context) componentHealth {
			return componentHealth{Status: "ok", Detail: s.provider.Name()}
		}},
		{"router", func(ctx context.Context) componentHealth {
			if s.vector != nil && s.vector.Available() {
				return componentHealth{Status: "ok", Detail: "semantic search enabled"}
			}
			// Structured and job-number routing still work; semantic
			// queries fall back to a keyword scan.
			return componentHealth{Status: "ok", Detail: "keyword scan only"}
		}},
		{"rag", func(ctx context.Context) componentHealth {
			if s.provider.Name() == "local" {
				return componentHealth{Status: "ok", Detail: "deterministic answers only"}
			}
			return componentHealth{Status: "ok", Detail: "llm-backed"}
		}},
		{"cache", func(ctx context.Context) componentHealth {
			stats := s.cache.Stats()
			return componentHealth{Status: "ok", Detail: fmt.Sprintf("%d entries", stats.TotalEntries)}
		}},
	}

	results := make([]componentHealth, len(probes))
	group, groupCtx := errgroup.WithContext(ctx)
	for i, p := range probes {
		group.Go(func() error {
			results[i] = p.check(groupCtx)
			return nil
		})
	}
	_ = group.Wait()

	components := make(map[string]componentHealth, len(probes))
	overall := "ok"
	for i, p := range probes {
		components[p.name] = results[i]
		switch results[i].Status {
		case "degraded", "unavailable":
			overall = "degraded"
		}
	}
	writeJSON(w, http.StatusOK, healthResponse{
		Status:     overall,
		Components: components,
		Sessions:   s.sessions.ActiveCount(),
		Timestamp:  time.Now().UTC(),
	})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	snapshot := telemetry.CurrentSnapshot()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"telemetry": snapshot,
		"cache":     s.cache.Stats(),
		"sessions":  s.sessions.ActiveCount(),
	})
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	entries := common.LogEntries()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"logs":  entries,
		"count": len(entries),
	})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	logger := common.Logger()
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "status", status, "error", err)
	} else {
		logger.Warn("request failed", "status", status, "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
