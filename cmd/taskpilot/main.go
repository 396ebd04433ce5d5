package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	tphttp "github.com/avesafe/taskpilot/internal/adapter/http"
	tpnats "github.com/avesafe/taskpilot/internal/adapter/nats"
	"github.com/avesafe/taskpilot/internal/adapter/natskv"
	"github.com/avesafe/taskpilot/internal/adapter/openrouter"
	"github.com/avesafe/taskpilot/internal/adapter/otel"
	"github.com/avesafe/taskpilot/internal/adapter/postgres"
	"github.com/avesafe/taskpilot/internal/adapter/ristretto"
	"github.com/avesafe/taskpilot/internal/adapter/tiered"
	"github.com/avesafe/taskpilot/internal/adapter/ws"
	"github.com/avesafe/taskpilot/internal/config"
	"github.com/avesafe/taskpilot/internal/logger"
	"github.com/avesafe/taskpilot/internal/port/messagequeue"
	"github.com/avesafe/taskpilot/internal/resilience"
	"github.com/avesafe/taskpilot/internal/service"
)

func main() {
	_ = godotenv.Load()

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

	slog.SetDefault(logger.New(cfg.Logging))
	slog.Info("config loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Logging.Level,
		"oracle_model", cfg.Oracle.Model,
	)

	ctx := context.Background()

	// --- Telemetry ---
	shutdownTelemetry, err := otel.Setup(ctx, cfg.Telemetry, cfg.Logging.Service)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() {
		if err := shutdownTelemetry(context.Background()); err != nil {
			slog.Error("telemetry shutdown failed", "error", err)
		}
	}()

	metrics, err := otel.NewMetrics()
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	// --- Infrastructure ---

	// PostgreSQL
	pool, err := postgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pool.Close()
	slog.Info("postgres connected")

	if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	slog.Info("migrations applied")

	// NATS JetStream: event bus plus the shared L2 cache bucket
	queue, err := tpnats.Connect(ctx, cfg.NATS.URL)
	if err != nil {
		return fmt.Errorf("nats: %w", err)
	}
	defer func() { _ = queue.Close() }()

	l2, err := natskv.Ensure(ctx, queue.JetStream(), cfg.NATS.CacheBucket, cfg.NATS.CacheTTL)
	if err != nil {
		return fmt.Errorf("nats kv: %w", err)
	}

	l1, err := ristretto.New(cfg.Cache.L1MaxSizeMB << 20)
	if err != nil {
		return fmt.Errorf("ristretto: %w", err)
	}
	defer l1.Close()

	overlayCache := tiered.New(l1, l2, cfg.Cache.TTL)

	// --- Services ---
	store := postgres.NewStore(pool)

	oc := service.NewOverlayCache(store, overlayCache, cfg.Cache.TTL)
	oc.SetMetrics(metrics)

	oracle := openrouter.NewClient(cfg.Oracle)
	oracle.SetBreaker(resilience.NewBreaker(cfg.Breaker.MaxFailures, cfg.Breaker.Cooldown))

	taskSvc := service.NewTaskService(store, oc, queue)
	optimizeSvc := service.NewOptimizeService(oracle, store, oc, queue, cfg.Engine.MaxBatch, cfg.Engine.TitleLimit)
	optimizeSvc.SetMetrics(metrics)
	viewSvc := service.NewViewService(taskSvc, oc)

	// --- Event fan-out ---
	hub := ws.NewHub()

	cancelInvalidated, err := queue.Subscribe(ctx, messagequeue.SubjectSessionInvalidated,
		sessionEventHandler(oc, hub, ws.TypeSessionInvalidated))
	if err != nil {
		return fmt.Errorf("subscribe invalidated: %w", err)
	}
	defer cancelInvalidated()

	cancelOptimized, err := queue.Subscribe(ctx, messagequeue.SubjectSessionOptimized,
		sessionEventHandler(oc, hub, ws.TypeSessionOptimized))
	if err != nil {
		return fmt.Errorf("subscribe optimized: %w", err)
	}
	defer cancelOptimized()

	// --- HTTP ---
	handlers := tphttp.NewHandlers(taskSvc, optimizeSvc, viewSvc)

	r := chi.NewRouter()
	r.Use(tphttp.CORS(cfg.Server.CORSOrigin))
	r.Use(tphttp.Logger)
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(2 * time.Minute))
	r.Use(otel.HTTPMiddleware(cfg.Logging.Service))

	r.Get("/health", healthHandler(cfg, hub))
	r.Get("/ws", hub.HandleWS)

	tphttp.MountRoutes(r, handlers)

	addr := ":" + cfg.Server.Port

	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       120 * time.Second,
	}

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("starting server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		select {
		case <-done:
		case <-gctx.Done():
			return nil
		}
		slog.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// sessionEventHandler evicts the local cache copy for the announced
// session and relays the event to connected clients.
func sessionEventHandler(oc *service.OverlayCache, hub *ws.Hub, eventType string) messagequeue.Handler {
	return func(ctx context.Context, subject string, data []byte) error {
		var ev messagequeue.SessionEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			slog.Warn("malformed session event", "subject", subject, "error", err)
			return nil
		}

		if err := oc.EvictCached(ctx, ev.SessionKey); err != nil {
			slog.Warn("cache eviction failed", "session", ev.SessionKey, "error", err)
		}

		hub.BroadcastSession(ctx, eventType, ws.SessionPayload{
			SessionKey:  ev.SessionKey,
			OptimizedAt: ev.At,
		})
		return nil
	}
}

// healthHandler reports service health and connectivity targets.
func healthHandler(cfg *config.Config, hub *ws.Hub) http.HandlerFunc {
	type healthStatus struct {
		Status      string `json:"status"`
		NATS        string `json:"nats"`
		OracleModel string `json:"oracle_model"`
		WSClients   int    `json:"ws_clients"`
	}

	return func(w http.ResponseWriter, _ *http.Request) {
		status := healthStatus{
			Status:      "ok",
			NATS:        cfg.NATS.URL,
			OracleModel: cfg.Oracle.Model,
			WSClients:   hub.ConnectionCount(),
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(status)
	}
}
