package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"example.com/attendance/internal/api"
	"example.com/attendance/internal/auth"
	"example.com/attendance/internal/config"
	"example.com/attendance/internal/domain"
	"example.com/attendance/internal/jobs"
	"example.com/attendance/internal/logging"
	"example.com/attendance/internal/outbox"
	persistence "example.com/attendance/internal/persistence/postgres"
	httptransport "example.com/attendance/internal/transport/http"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	logCloser, err := logging.Setup(cfg.Log, "attendance-api ")
	if err != nil {
		log.Fatalf("failed to set up logging: %v", err)
	}
	defer logCloser.Close()

	civil, err := domain.LoadCivilTime(cfg.CivilTimezone, domain.SystemClock{})
	if err != nil {
		log.Fatalf("failed to load civil timezone: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.PostgresURL)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer pool.Close()

	repo := persistence.NewRepository(pool)
	producer := outbox.NewKafkaProducer(cfg.KafkaBrokers)
	defer producer.Close()

	registry := outbox.NewSchemaRegistryClient(cfg.SchemaRegistryURL)
	dispatcher := outbox.NewDispatcher(pool, producer, registry, cfg.OutboxPollInterval, cfg.OutboxBatchSize)

	service := domain.NewService(repo, civil, domain.WithAuditSink(repo), domain.WithLogger(log.Default()))
	sweeper := jobs.NewCallSessionSweeper(service, cfg.CallSweepInterval)

	handler := api.NewHandler(service)
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)
	mux.Handle("/metrics", promhttp.Handler())

	authMiddleware := auth.NewMiddleware(auth.Config{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer, Leeway: cfg.JWTLeeway})
	server := httptransport.NewServer(
		httptransport.DefaultServerConfig(cfg.HTTPAddress),
		httptransport.RequestLogger(httptransport.CORS(cfg.CORSOrigin)(authMiddleware.Wrap(mux))),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		dispatcher.Start(gctx)
		return nil
	})
	g.Go(func() error {
		sweeper.Start(gctx)
		return nil
	})
	g.Go(func() error {
		log.Printf("attendance-service listening on %s (civil timezone %s)", cfg.HTTPAddress, cfg.CivilTimezone)
		return httptransport.Serve(gctx, server, 15*time.Second)
	})

	if err := g.Wait(); err != nil {
		log.Printf("server error: %v", err)
	}
	dispatcher.Wait()
	sweeper.Wait()
}
