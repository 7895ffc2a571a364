package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"example.com/attendance/internal/config"
	"example.com/attendance/internal/logging"
	"example.com/attendance/internal/outbox"
	httptransport "example.com/attendance/internal/transport/http"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	logCloser, err := logging.Setup(cfg.Log, "attendance-dlq ")
	if err != nil {
		log.Fatalf("failed to set up logging: %v", err)
	}
	defer logCloser.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.PostgresURL)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer pool.Close()

	manager := outbox.NewDLQManager(pool, cfg.DLQMaxRetries, cfg.DLQBaseDelay)
	metrics := httptransport.NewServer(httptransport.DefaultServerConfig(cfg.MetricsAddress), promhttp.Handler())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Printf("replaying DLQ every %s (max retries %d, batch %d)", cfg.DLQPollInterval, cfg.DLQMaxRetries, cfg.DLQBatchSize)
		manager.Run(gctx, cfg.DLQPollInterval, cfg.DLQBatchSize)
		return nil
	})
	g.Go(func() error {
		log.Printf("metrics on %s", cfg.MetricsAddress)
		return httptransport.Serve(gctx, metrics, 10*time.Second)
	})

	if err := g.Wait(); err != nil {
		log.Printf("dlq manager stopped: %v", err)
	}
}
