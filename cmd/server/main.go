// Package main is the entry point for the invoicing API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"easyentrepreneur/internal/config"
	"easyentrepreneur/internal/core/numerator"
	"easyentrepreneur/internal/core/tenant"
	"easyentrepreneur/internal/domain/auth"
	"easyentrepreneur/internal/domain/clients"
	"easyentrepreneur/internal/domain/documents"
	"easyentrepreneur/internal/domain/quota"
	v1 "easyentrepreneur/internal/infrastructure/http/v1"
	"easyentrepreneur/internal/infrastructure/metrics"
	infranumerator "easyentrepreneur/internal/infrastructure/numerator"
	"easyentrepreneur/internal/infrastructure/storage/postgres"
	"easyentrepreneur/internal/infrastructure/storage/postgres/client_repo"
	"easyentrepreneur/internal/infrastructure/storage/postgres/document_repo"
	"easyentrepreneur/pkg/logger"
)

func main() {
	cfg, err := config.NewConfig()
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Deployment.IsDevelopment(),
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	log.Infow("starting easyentrepreneur server", "mode", cfg.Deployment.Mode)

	// --- Database ---
	pool, err := postgres.NewPool(ctx, cfg.Postgres.PoolConfig("easyentrepreneur-api"))
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()
	log.Info("database connection established")

	txManager := postgres.NewTxManager(pool)

	// --- Metrics ---
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)
	metrics.RegisterPool(registry, func() (int32, int32, int32) {
		s := pool.Stats()
		return s.TotalConns, s.AcquiredConns, s.IdleConns
	})

	// --- Tenants and quota ---
	tenants := tenant.NewCachedRegistry(tenant.NewPostgresRegistry(pool.Pool), cfg.Quota.TenantCacheTTL)
	docRepo := document_repo.New(txManager)

	limits, err := quota.ParseLimits(cfg.Quota.Limits)
	if err != nil {
		log.Fatalw("invalid quota limits", "error", err)
	}
	clock, err := cfg.Quota.Clock()
	if err != nil {
		log.Fatalw("invalid quota timezone", "error", err)
	}
	guard := quota.NewGuard(tenants, docRepo, limits,
		quota.WithClock(clock),
		quota.WithObserver(m),
	)

	// --- Numbering ---
	seqCfg, err := cfg.Numbering.SequencerConfig()
	if err != nil {
		log.Fatalw("invalid numbering config", "error", err)
	}
	var numbers numerator.Store = docRepo
	if seqCfg.Strategy == numerator.StrategyCounter {
		numbers = infranumerator.NewCounterStore(docRepo, pool)
	}
	sequencer, err := numerator.NewSequencer(numbers, seqCfg, numerator.WithObserver(m))
	if err != nil {
		log.Fatalw("failed to create sequencer", "error", err)
	}
	log.Infow("document numbering configured",
		"strategy", seqCfg.Strategy.String(),
		"pad_width", seqCfg.PadWidth,
		"max_attempts", seqCfg.MaxAttempts,
	)

	// --- Clients ---
	clientService := clients.NewService(client_repo.New(txManager), clients.WithClock(clock))

	// --- Documents ---
	auditLog, err := postgres.NewAuditLog(txManager, cfg.Audit.CompressThreshold)
	if err != nil {
		log.Fatalw("failed to create audit log", "error", err)
	}
	docService := documents.NewService(documents.ServiceConfig{
		Repo:      docRepo,
		Quota:     guard,
		Numbers:   sequencer,
		Clients:   clientService,
		TxManager: txManager,
		Events:    postgres.NewOutboxPublisher(txManager),
		Audit:     auditLog,
		Clock:     clock,
	})

	// --- JWT ---
	jwtConfig := auth.DefaultJWTConfig(cfg.Auth.Secret)
	jwtConfig.Issuer = cfg.Auth.Issuer
	jwtConfig.AccessTokenTTL = cfg.Auth.AccessTokenTTL
	jwtService := auth.NewJWTService(jwtConfig)

	// --- Router ---
	ginMode := gin.ReleaseMode
	if cfg.Deployment.IsDevelopment() {
		ginMode = gin.DebugMode
	}
	router := v1.NewRouter(v1.RouterConfig{
		Logger:         log,
		JWTValidator:   jwtService,
		Documents:      docService,
		Clients:        clientService,
		Quota:          guard,
		Health:         pool,
		Idempotency:    postgres.NewIdempotencyStore(txManager, cfg.Idempotency.TTL),
		Metrics:        m,
		MetricsHandler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}),
		Mode:           ginMode,
	})

	// --- HTTP Server ---
	server := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infow("server starting", "address", cfg.Server.Address)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("server failed", "error", err)
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorw("server forced to shutdown", "error", err)
	}
	pool.LogStats(shutdownCtx)

	log.Info("server stopped")
}
