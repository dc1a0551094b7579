// Command analytics starts the standalone analytics aggregation service.
//
// It consumes search and index-build events from Kafka, aggregates them in
// memory (query totals, latency percentiles, cache hit rate, error kinds, top
// and zero-result queries), snapshots them to PostgreSQL and exposes an HTTP
// API at GET /api/v1/analytics for dashboards.
//
// Usage:
//
//	go run ./cmd/analytics [-config configs/analytics.yaml]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/helpdesk-search/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/helpdesk-search/internal/analytics/aggregator"
	"github.com/Adithya-Monish-Kumar-K/helpdesk-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/helpdesk-search/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/helpdesk-search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/helpdesk-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/helpdesk-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/helpdesk-search/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/helpdesk-search/pkg/postgres"
)

const snapshotInterval = time.Minute

func main() {
	configPath := flag.String("config", "configs/analytics.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting analytics service", "port", cfg.Server.Port)

	if err := run(cfg); err != nil {
		slog.Error("analytics service failed", "error", err)
		os.Exit(1)
	}
	slog.Info("analytics service stopped")
}

func run(cfg *config.Config) error {
	if len(cfg.Kafka.Brokers) == 0 {
		return errors.New("kafka.brokers is empty; the analytics service has nothing to consume")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New(prometheus.DefaultRegisterer)
	agg := analytics.NewAggregator(m)
	checker := health.NewChecker()

	g, gctx := errgroup.WithContext(ctx)

	// Snapshots are optional; without PostgreSQL only live stats are served.
	var snapshots analytics.SnapshotLister
	db, err := postgres.New(ctx, cfg.Postgres)
	if err != nil {
		slog.Warn("postgres unavailable, analytics snapshots disabled", "error", err)
	} else {
		defer db.Close()
		store := aggregator.NewStore(db)
		if err := store.Migrate(ctx); err != nil {
			return fmt.Errorf("migrating analytics store: %w", err)
		}
		snapshots = store
		checker.RegisterOptional("postgres", health.Ping(db.Ping))
		g.Go(func() error {
			return store.RunPeriodicSave(gctx, agg, snapshotInterval)
		})
	}

	events := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents, "analytics", analytics.HandleEvent(agg))
	g.Go(func() error {
		return events.Start(gctx)
	})
	slog.Info("analytics consumer started", "topic", cfg.Kafka.Topics.AnalyticsEvents)

	mux := http.NewServeMux()
	analytics.NewHandler(agg, snapshots).RegisterRoutes(mux)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())
	mux.Handle("GET /metrics", metrics.Handler(prometheus.DefaultGatherer))

	server := &http.Server{
		Addr: fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: middleware.Chain(mux,
			middleware.RequestID,
			middleware.Logging,
			middleware.Metrics(m),
			middleware.Timeout(cfg.Server.RequestTimeout),
		),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	g.Go(func() error {
		slog.Info("analytics service listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
