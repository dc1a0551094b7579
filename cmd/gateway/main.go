// Command gateway starts the helpdesk API gateway.
//
// The gateway is the single entry point for browsers and integrations. Guests
// call it without a key; members present an API key (SHA-256 validated
// against PostgreSQL) and are forwarded to the search service as the
// X-Authenticated-User, which unlocks private pages. It applies per-caller
// rate limits, proxies to the search and analytics services, and serves the
// admin API for keys and pages.
//
// Usage:
//
//	go run ./cmd/gateway [-config configs/development.yaml]
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

	"github.com/Adithya-Monish-Kumar-K/helpdesk-search/internal/auth/apikey"
	"github.com/Adithya-Monish-Kumar-K/helpdesk-search/internal/auth/ratelimit"
	gwhandler "github.com/Adithya-Monish-Kumar-K/helpdesk-search/internal/gateway/handler"
	gwmw "github.com/Adithya-Monish-Kumar-K/helpdesk-search/internal/gateway/middleware"
	"github.com/Adithya-Monish-Kumar-K/helpdesk-search/internal/gateway/router"
	"github.com/Adithya-Monish-Kumar-K/helpdesk-search/internal/pages"
	"github.com/Adithya-Monish-Kumar-K/helpdesk-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/helpdesk-search/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/helpdesk-search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/helpdesk-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/helpdesk-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/helpdesk-search/pkg/postgres"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting gateway",
		"port", cfg.Gateway.Port,
		"searcher_url", cfg.Gateway.SearcherURL,
		"analytics_url", cfg.Gateway.AnalyticsURL,
	)

	if err := run(cfg); err != nil {
		slog.Error("gateway failed", "error", err)
		os.Exit(1)
	}
	slog.Info("gateway stopped")
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := postgres.New(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("connecting to postgres: %w", err)
	}
	defer db.Close()

	validator := apikey.NewValidator(db)
	if err := validator.Migrate(ctx); err != nil {
		return fmt.Errorf("migrating key store: %w", err)
	}
	pageStore := pages.NewPostgresStore(db)
	if err := pageStore.Migrate(ctx); err != nil {
		return fmt.Errorf("migrating page store: %w", err)
	}

	var notifier gwhandler.ChangeNotifier
	if len(cfg.Kafka.Brokers) > 0 {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.PageChanges)
		defer producer.Close()
		notifier = pages.NewNotifier(producer)
	} else {
		slog.Warn("kafka disabled, page edits reach search services on their next rebuild only")
	}

	h, err := gwhandler.New(gwhandler.Config{
		SearcherURL:  cfg.Gateway.SearcherURL,
		AnalyticsURL: cfg.Gateway.AnalyticsURL,
	}, validator, pageStore, notifier)
	if err != nil {
		return err
	}

	checker := health.NewChecker()
	checker.Register("postgres", health.Ping(db.Ping))
	checker.RegisterOptional("searcher", health.Ping(probe(cfg.Gateway.SearcherURL)))
	checker.RegisterOptional("analytics", health.Ping(probe(cfg.Gateway.AnalyticsURL)))

	limiter := ratelimit.New(cfg.Gateway.RateWindow)
	server := &http.Server{
		Addr: fmt.Sprintf(":%d", cfg.Gateway.Port),
		Handler: router.New(h, router.Options{
			Validator:  validator,
			Limiter:    limiter,
			GuestLimit: cfg.Gateway.GuestRateLimit,
			CORS:       gwmw.NewCORSConfig(cfg.Gateway.AllowOrigins),
			Checker:    checker,
			Metrics:    metrics.New(prometheus.DefaultRegisterer),
		}),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return limiter.Run(gctx, 5*time.Minute)
	})
	g.Go(func() error {
		slog.Info("gateway listening", "addr", server.Addr)
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

// probe checks a backend's liveness endpoint.
func probe(baseURL string) func(ctx context.Context) error {
	client := &http.Client{Timeout: 2 * time.Second}
	return func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/health/live", nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err != nil {
			return err
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("status %d", resp.StatusCode)
		}
		return nil
	}
}
