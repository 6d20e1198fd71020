// Package main is the entry point for the background worker.
// It relays outbox events to RabbitMQ and purges expired idempotency keys.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"easyentrepreneur/internal/config"
	"easyentrepreneur/internal/infrastructure/messaging"
	"easyentrepreneur/internal/infrastructure/metrics"
	"easyentrepreneur/internal/infrastructure/storage/postgres"
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
	log = log.WithComponent("worker")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ctx = logger.WithLogger(ctx, log)

	log.Info("starting easyentrepreneur worker")

	pool, err := postgres.NewPool(ctx, cfg.Postgres.PoolConfig("easyentrepreneur-worker"))
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()
	txManager := postgres.NewTxManager(pool)

	m := metrics.New(prometheus.DefaultRegisterer)

	publisher, err := messaging.Dial(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange, m)
	if err != nil {
		log.Fatalw("failed to connect to broker", "error", err)
	}
	defer publisher.Close()
	log.Infow("broker connection established", "exchange", cfg.RabbitMQ.Exchange)

	relay := postgres.NewOutboxRelay(txManager, publisher, cfg.Outbox.BatchSize, cfg.Outbox.MaxRetries)
	idempotency := postgres.NewIdempotencyStore(txManager, cfg.Idempotency.TTL)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := relay.Run(ctx, cfg.Outbox.PollInterval); err != nil && !errors.Is(err, context.Canceled) {
			log.Errorw("outbox relay stopped", "error", err)
		}
	}()
	go func() {
		defer wg.Done()
		runCleanup(ctx, log, idempotency, time.Hour)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down worker...")
	cancel()

	wg.Wait()
	log.Info("worker stopped")
}

func runCleanup(ctx context.Context, log *logger.Logger, store *postgres.IdempotencyStore, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := store.CleanupExpired(ctx)
			if err != nil {
				log.Errorw("idempotency cleanup failed", "error", err)
				continue
			}
			if n > 0 {
				log.Infow("expired idempotency keys removed", "count", n)
			}
		}
	}
}
