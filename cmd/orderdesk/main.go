// File path: cmd/orderdesk/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/coastalgraphics/orderdesk/internal/api"
	"github.com/coastalgraphics/orderdesk/internal/cache"
	"github.com/coastalgraphics/orderdesk/internal/common"
	"github.com/coastalgraphics/orderdesk/internal/llm"
	"github.com/coastalgraphics/orderdesk/internal/oms"
	"github.com/coastalgraphics/orderdesk/internal/session"
	"github.com/coastalgraphics/orderdesk/internal/vector"
	vsync "github.com/coastalgraphics/orderdesk/internal/vector/sync"
)

func main() {
	logger := common.Logger()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := godotenv.Load(); err != nil {
		logger.Warn("orderdesk: .env file not loaded", "error", err)
	} else {
		logger.Info("orderdesk: environment loaded from .env")
	}

	addr := flag.String("addr", ":8082", "listen address")
	snapshotPath := flag.String("snapshot", "", "path to the order snapshot file (overrides ORDERDESK_SNAPSHOT)")
	trackerPath := flag.String("tracker", defaultTrackerPath(), "path to the vector sync tracker database")
	timezone := flag.String("timezone", "", "business timezone for date filters (overrides ORDERDESK_TIMEZONE)")
	flag.Parse()

	logger.Info("orderdesk: startup initiated", "addr", *addr)

	omsCfg, err := oms.LoadConfig()
	if err != nil {
		logger.Error("orderdesk: oms config load failed", "error", err)
		fmt.Println("oms config error:", err)
		os.Exit(1)
	}
	if trimmed := strings.TrimSpace(*snapshotPath); trimmed != "" {
		omsCfg.SnapshotPath = trimmed
	}
	if trimmed := strings.TrimSpace(*timezone); trimmed != "" {
		omsCfg.Timezone = trimmed
	}

	source, err := oms.NewSource(omsCfg)
	if err != nil {
		logger.Error("orderdesk: order source initialization failed", "error", err)
		fmt.Println("order source error:", err)
		os.Exit(1)
	}

	provider := llm.NewProvider()
	logger.Info("orderdesk: llm provider ready", "provider", provider.Name())

	deps := api.Deps{
		Source:   source,
		Provider: provider,
		Sessions: session.NewStore(0, 0),
		Cache:    cache.New(0),
		Clock:    oms.Clock{Loc: omsCfg.Location()},
	}

	vectorClient, err := vector.NewFromEnv(ctx)
	if err != nil {
		logger.Warn("orderdesk: chromadb client not configured", "error", err)
	} else {
		deps.Vector = vectorClient
		if vectorClient.Available() {
			logger.Info("orderdesk: chromadb available", "collection", vectorClient.Collection())
		} else {
			logger.Warn("orderdesk: chromadb unreachable, semantic search degraded", "collection", vectorClient.Collection())
		}
	}

	if deps.Vector != nil {
		tracker, trackerErr := vsync.OpenTracker(*trackerPath)
		if trackerErr != nil {
			logger.Warn("orderdesk: sync tracker unavailable, incremental sync disabled", "path", *trackerPath, "error", trackerErr)
		} else {
			defer tracker.Close()
			deps.Syncer = vsync.NewSyncer(tracker, deps.Vector, provider)
			logger.Info("orderdesk: sync tracker ready", "path", *trackerPath)
		}
	}

	server, err := api.NewServer(ctx, deps)
	if err != nil {
		logger.Error("orderdesk: server construction failed", "error", err)
		fmt.Println("server error:", err)
		os.Exit(1)
	}

	httpServer := &http.Server{
		Addr:              *addr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("orderdesk: server listening", "addr", *addr, "health", "/healthz")
		fmt.Printf("Serving on %s\n", *addr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("orderdesk: shutdown signal received")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("orderdesk: shutdown failed", "error", err)
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("orderdesk: server stopped", "error", err)
			fmt.Println("server stopped:", err)
			os.Exit(1)
		}
	}
}

func defaultTrackerPath() string {
	return filepath.Join("data", "sync.db")
}
