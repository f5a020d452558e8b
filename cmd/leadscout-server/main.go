package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/use-agent/leadscout/api"
	"github.com/use-agent/leadscout/api/handler"
	"github.com/use-agent/leadscout/app"
	"github.com/use-agent/leadscout/config"
	"github.com/use-agent/leadscout/webhook"
)

func main() {
	// ── 1. Load configuration ───────────────────────────────────────
	cfg := config.Load()

	// ── 2. Initialise structured logging ────────────────────────────
	app.InitLogger(cfg.Log, os.Stdout)
	slog.Info("leadscout starting",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"mode", cfg.Server.Mode,
		"tabs", cfg.Browser.Tabs,
	)

	// ── 3. Launch browser and wire the pipeline ─────────────────────
	a, err := app.Build(cfg)
	if err != nil {
		slog.Error("failed to initialise", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	// ── 4. Job store and webhooks ───────────────────────────────────
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	jobs := handler.NewJobs(ctx, time.Hour)
	notifier := webhook.New()

	// ── 5. Setup router ─────────────────────────────────────────────
	router := api.NewRouter(api.Deps{
		Generator: a.Pipeline,
		Parser:    a.Planner,
		Pool:      a.Pool,
		Session:   a.Session,
		Jobs:      jobs,
		Notifier:  notifier,
	}, cfg, time.Now())

	// ── 6. Start HTTP server ────────────────────────────────────────
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		slog.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// ── 7. Graceful shutdown ────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("shutdown signal received", "signal", sig.String())

	shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
	defer done()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server forced shutdown", "error", err)
	} else {
		slog.Info("HTTP server drained gracefully")
	}
	notifier.Wait()

	// a.Close() runs via defer and kills Chrome.
	slog.Info("leadscout stopped")
}
