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

	"github.com/Strob0t/AgentBridge/internal/adapter/fsstore"
	"github.com/Strob0t/AgentBridge/internal/adapter/httpapi"
	mcpcheck "github.com/Strob0t/AgentBridge/internal/adapter/mcp"
	"github.com/Strob0t/AgentBridge/internal/adapter/natsruntime"
	"github.com/Strob0t/AgentBridge/internal/adapter/otel"
	"github.com/Strob0t/AgentBridge/internal/adapter/postgres"
	"github.com/Strob0t/AgentBridge/internal/adapter/ristretto"
	"github.com/Strob0t/AgentBridge/internal/adapter/ws"
	"github.com/Strob0t/AgentBridge/internal/config"
	"github.com/Strob0t/AgentBridge/internal/domain/policy"
	"github.com/Strob0t/AgentBridge/internal/logger"
	"github.com/Strob0t/AgentBridge/internal/pause"
	"github.com/Strob0t/AgentBridge/internal/port/cache"
	"github.com/Strob0t/AgentBridge/internal/port/sessionstore"
	"github.com/Strob0t/AgentBridge/internal/service"
	"github.com/Strob0t/AgentBridge/internal/translate"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log, logCloser := logger.New(cfg.Logging)
	defer logCloser.Close()
	slog.SetDefault(log)

	log.Info("config loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Logging.Level,
		"session_backend", cfg.Sessions.Backend,
		"nats_url", cfg.NATS.URL,
	)

	ctx := context.Background()

	defaultPolicy, err := policy.Parse(cfg.Policy.DefaultMode, cfg.Policy.Threshold)
	if err != nil {
		return fmt.Errorf("default policy: %w", err)
	}

	// --- Infrastructure ---

	var store sessionstore.Store
	switch cfg.Sessions.Backend {
	case "postgres":
		pool, err := postgres.NewPool(ctx, cfg.Postgres)
		if err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		defer pool.Close()

		if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
			return fmt.Errorf("migrations: %w", err)
		}
		log.Info("postgres connected, migrations applied")
		store = postgres.NewStore(pool)
	default:
		fs, err := fsstore.New(cfg.Sessions.Dir)
		if err != nil {
			return fmt.Errorf("session store: %w", err)
		}
		log.Info("filesystem session store ready", "dir", cfg.Sessions.Dir)
		store = fs
	}

	runtime, err := natsruntime.Connect(cfg.NATS.URL, log)
	if err != nil {
		return fmt.Errorf("nats: %w", err)
	}
	defer runtime.Close()
	log.Info("agent runtime connected")

	var riskCache cache.Cache
	if rc, err := ristretto.New(cfg.Cache.RiskMaxSizeMB * 1024 * 1024); err != nil {
		log.Warn("risk cache unavailable, classifying uncached", "error", err)
	} else {
		defer rc.Close()
		riskCache = rc
	}

	var checker *mcpcheck.Checker
	if cfg.MCP.CheckOnCreate {
		checker = mcpcheck.NewChecker(cfg.MCP.CheckTimeout)
	}

	// --- Observability ---

	metrics, err := otel.NewMetrics()
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}
	shutdownTracer := otel.InitTracer(cfg.Logging.Service, log)
	defer func() { _ = shutdownTracer(context.Background()) }()

	// --- Services ---

	hub := ws.NewHub(log)
	wsClient := ws.NewClient(hub, cfg.Permission.Timeout, log)

	orch := service.New(log, store, runtime, wsClient, translate.New(log), riskCache, checker, metrics, service.Options{
		DefaultPolicy:  defaultPolicy,
		DefaultWorkDir: cfg.Sessions.DefaultWorkDir,
		EventBuffer:    cfg.Sessions.EventBuffer,
		RejectReason:   cfg.Permission.RejectReason,
		RiskTTL:        cfg.Cache.RiskTTL,
	})
	defer orch.Close()

	// Keyboard pause is active only when stdin is a terminal; Ctrl-P stops
	// every in-flight turn at its next safe point.
	pauseSignal := pause.NewSignal()
	pauseSignal.Start(func() {
		orch.CancelAll()
		// Re-arm immediately: each per-session signal latches its own
		// episode, so the next key press must fire again.
		pauseSignal.Reset()
	})
	defer pauseSignal.Stop()

	keyboard := pause.NewKeyboardListener(pauseSignal, log)
	keyboard.Start()
	defer keyboard.Stop()

	// --- HTTP ---

	handlers := httpapi.NewHandlers(orch, wsClient, hub, log)
	router := httpapi.NewRouter(handlers, cfg, log)

	addr := ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// Prompt turns block until the run reaches a boundary, so the write
		// timeout has to cover a full turn.
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Info("starting server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server failed", "error", err)
		}
	}()

	<-done
	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}
