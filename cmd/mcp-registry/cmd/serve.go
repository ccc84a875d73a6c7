package cmd

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/petrel-dev/mcp-registry/internal/agentcard"
	"github.com/petrel-dev/mcp-registry/internal/config"
	"github.com/petrel-dev/mcp-registry/internal/gateway"
	"github.com/petrel-dev/mcp-registry/internal/manager"
	"github.com/petrel-dev/mcp-registry/internal/registry"
	"github.com/petrel-dev/mcp-registry/internal/repository"
	"github.com/petrel-dev/mcp-registry/internal/seed"
)

// runServe is the registry's default (root-command) action: it opens the
// store, starts the connection pool and seed watcher, and serves the HTTP
// gateway until interrupted.
func runServe(parentCtx context.Context, seedOverride string) error {
	ctx, cancel := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg := config.FromEnv()
	if seedOverride != "" {
		cfg.SeedPath = seedOverride
	}

	store, err := repository.Open(ctx, cfg.StorePath)
	if err != nil {
		slog.Error("mcp-registry: failed to open store", "error", err)
		return err
	}
	defer store.Close()

	conns := manager.New(store, cfg.IdleTimeout, cfg.SweepInterval)
	reg := registry.New(store, conns)
	gw := gateway.New(reg, conns)

	var watcher *seed.Watcher
	if cfg.SeedPath != "" {
		watcher, err = seed.New(cfg.SeedPath, reg)
		if err != nil {
			slog.Warn("mcp-registry: failed to load seed file", "path", cfg.SeedPath, "error", err)
		} else {
			watcher.Bootstrap(ctx)
			if err := watcher.Start(ctx); err != nil {
				slog.Warn("mcp-registry: failed to start seed watcher", "error", err)
				watcher = nil
			}
		}
	}

	root := chi.NewRouter()
	root.Mount("/", gateway.NewRouter(gw))
	root.Route("/agents", agentcard.New(store).Routes)

	srv := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      root,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // SSE streams stay open past any fixed write deadline
	}

	go func() {
		slog.Info("mcp-registry: listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("mcp-registry: server stopped", "error", err)
		}
	}()

	<-ctx.Done()
	slog.Info("mcp-registry: shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	_ = srv.Shutdown(shutdownCtx)
	if watcher != nil {
		watcher.Stop()
	}
	conns.Shutdown(shutdownCtx)

	slog.Info("mcp-registry: shutdown complete")
	return nil
}
