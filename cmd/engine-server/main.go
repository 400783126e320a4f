// cmd/engine-server/main.go
package main

import (
	"context"
	"encoding/json"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"finchat-engine/internal/catalog"
	"finchat-engine/internal/common/config"
	"finchat-engine/internal/common/database"
	"finchat-engine/internal/common/logger"
	"finchat-engine/internal/common/observability"
	"finchat-engine/internal/reasoning"
	"finchat-engine/internal/store"
	"finchat-engine/pkg/registry"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(operationName+" failed, retrying...",
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return err
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("config load failed: " + err.Error())
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting engine server...",
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	obs := observability.New("engine-server")
	defer obs.Shutdown()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")

	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Redis with retry ---
	var rds *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		rds, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return rds.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")

	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer rds.Close()
	zapLog.Info("Redis connected successfully")

	// --- Domain wiring ---
	records := store.NewPostgresStore(pg.GetDB(), log)
	routeCache := store.NewRouteCache(rds.GetClient(), cfg.Database.Redis, log)

	phraseIndex, err := store.NewPhraseIndex(cfg.Index, log)
	if err != nil {
		zapLog.Fatal("phrase index failed", zap.Error(err))
	}
	defer phraseIndex.Close()

	intents, err := records.ListIntents(ctx, "")
	if err != nil {
		zapLog.Fatal("intent load failed", zap.Error(err))
	}
	for i := range intents {
		if !intents[i].IsActive {
			continue
		}
		if err := phraseIndex.IndexIntent(&intents[i]); err != nil {
			zapLog.Warn("intent indexing failed",
				zap.String("intentId", intents[i].ID),
				zap.Error(err),
			)
		}
	}
	zapLog.Info("Phrase index built", zap.Int("intents", len(intents)))

	var toolCatalog catalog.Provider
	if cfg.Catalog.Source == "file" {
		toolCatalog, err = catalog.NewFileProvider(
			cfg.Catalog.Path,
			time.Duration(cfg.Catalog.RefreshSeconds)*time.Second,
			log,
		)
		if err != nil {
			zapLog.Fatal("catalog load failed", zap.Error(err))
		}
	} else {
		toolCatalog = catalog.NewStaticProvider(nil)
	}

	reasoningClient := reasoning.NewClient(&cfg.Reasoning, log)
	zapLog.Info("Reasoning client ready",
		zap.String("baseURL", cfg.Reasoning.BaseURL),
		zap.Duration("timeout", reasoningClient.Timeout()),
	)

	zapLog.Info("Alias table loaded", zap.String("version", registry.AliasTableVersion))

	// Settle deferred tool references now and whenever the catalog changes.
	catalogPoll := time.Duration(cfg.Catalog.RefreshSeconds) * time.Second
	if catalogPoll <= 0 {
		catalogPoll = 5 * time.Minute
	}
	go watchCatalog(ctx, toolCatalog, records, catalogPoll, log)

	sessions := newSessionRegistry(reasoningClient, routeCache, phraseIndex, log)

	// --- HTTP Server: turns, health, metrics ---
	addr := cfg.Server.MetricsAddress
	if addr == "" {
		addr = ":8080"
	}
	go func() {
		http.HandleFunc("/v1/turns", sessions.handleTurn)
		http.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			tools, _ := toolCatalog.List(r.Context())
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]interface{}{
				"status": "healthy",
				"tools":  len(tools),
				"time":   time.Now().Format(time.RFC3339),
			})
		})
		http.Handle("/metrics", promhttp.Handler())
		zapLog.Info("HTTP server listening on " + addr)
		if err := http.ListenAndServe(addr, nil); err != nil {
			zapLog.Error("HTTP server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping engine...")
	cancel()
	zapLog.Info("Engine server stopped gracefully")
}
