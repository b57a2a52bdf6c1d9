package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/promptlabs/enchanter-gateway/internal/batch"
	"github.com/promptlabs/enchanter-gateway/internal/cache"
	"github.com/promptlabs/enchanter-gateway/internal/config"
	"github.com/promptlabs/enchanter-gateway/internal/credit"
	"github.com/promptlabs/enchanter-gateway/internal/enhance"
	"github.com/promptlabs/enchanter-gateway/internal/gateway"
	"github.com/promptlabs/enchanter-gateway/internal/research"
	"github.com/promptlabs/enchanter-gateway/internal/telemetry"
	"github.com/promptlabs/enchanter-gateway/internal/templates"
	"github.com/promptlabs/enchanter-gateway/internal/upstream"
)

var version = "dev"

func main() {
	configDir := flag.String("config", "configs", "path to configuration directory")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration
	loader := config.NewLoader(*configDir, logger)
	if err := loader.Load(); err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	if err := loader.Watch(); err != nil {
		logger.Warn("failed to start config watcher", "error", err)
	}

	cfg := loader.Config()

	// Connect to PostgreSQL
	dbPool, err := pgxpool.New(context.Background(), cfg.Database.DSN())
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer dbPool.Close()

	if err := dbPool.Ping(context.Background()); err != nil {
		logger.Warn("database not reachable (gateway will start but credit checks will fail)", "error", err)
	} else {
		logger.Info("database connected")
	}

	// Connect to Redis
	var rdb *redis.Client
	if len(cfg.Redis.Addresses) > 0 && cfg.Redis.Addresses[0] != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addresses[0],
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			logger.Warn("redis not reachable (shared cache disabled)", "error", err)
			rdb = nil
		} else {
			logger.Info("redis connected")
		}
	}

	metrics := telemetry.NewMetrics()

	// Response and research cache
	var remote *cache.RedisBackend
	if rdb != nil {
		remote = cache.NewRedisBackend(rdb, cfg.Cache.KeyPrefix)
	}
	local := cache.NewLocalBackend(cfg.Cache.LocalSize, cfg.Cache.ResearchTTLHigh)
	store := cache.New(remote, local, cfg.Cache.HealthCheckInterval, logger)

	// Style registry: builtins plus operator-defined styles, refreshed on
	// config reload.
	registry := templates.NewRegistry()
	registerStyles := func(c *config.Config) {
		for tag, template := range c.Styles.Custom {
			registry.Register(tag, template)
		}
	}
	registerStyles(cfg)
	loader.OnReload(func() {
		registerStyles(loader.Config())
		logger.Info("custom styles reloaded")
	})

	completer := upstream.NewClient(cfg.Upstream, logger)
	completer.OnRetry = func(kind upstream.Kind) {
		metrics.UpstreamRetryTotal.WithLabelValues(string(kind)).Inc()
	}

	searcher := research.NewDDGSearcher(cfg.Research.SearchEndpoint, cfg.Research.SearchTimeout)
	extractor := research.NewExtractor(cfg.Research.FetchTimeout, cfg.Research.MaxFetchBytes, cfg.Research.MaxContentChars)
	pipeline := research.NewPipeline(completer, searcher, extractor, store, loader.Config, metrics, logger)

	orchestrator := enhance.NewOrchestrator(registry, pipeline, store, completer, loader.Config, metrics, logger)

	ledger := credit.NewStoreLedger(dbPool, rdb)
	runner := batch.NewRunner(orchestrator, ledger, cfg.Batch.MaxParallel, metrics, logger)

	handler := gateway.NewHandler(orchestrator, runner, registry, ledger, loader.Config, metrics)

	// Router setup
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestIDMiddleware)

	r.Get("/enchanter/v1/health", healthHandler)

	r.Post("/v1/prompt/completions", handler.PromptCompletions)
	r.Post("/v1/batch/process", handler.BatchProcess)
	r.Get("/v1/styles", handler.ListStyles)

	// Metrics listener
	if cfg.Telemetry.MetricsPort > 0 {
		go func() {
			addr := fmt.Sprintf(":%d", cfg.Telemetry.MetricsPort)
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			logger.Info("metrics listener starting", "addr", addr)
			if err := http.ListenAndServe(addr, mux); err != nil {
				logger.Error("metrics listener failed", "error", err)
			}
		}()
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Graceful shutdown
	errCh := make(chan error, 1)
	go func() {
		logger.Info("gateway starting", "addr", addr, "version", version)
		errCh <- srv.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Info("received shutdown signal", "signal", sig)
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulShutdown)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
	logger.Info("gateway stopped")
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"status":  "healthy",
		"version": version,
	})
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = generateRequestID()
		}
		w.Header().Set("X-Request-ID", reqID)
		ctx := context.WithValue(r.Context(), requestIDKey, reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type contextKey string

const requestIDKey contextKey = "request_id"

func generateRequestID() string {
	now := time.Now()
	b := make([]byte, 8)
	rand.Read(b)
	return fmt.Sprintf("req_%d_%s", now.UnixMilli(), hex.EncodeToString(b))
}
