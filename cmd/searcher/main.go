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
	"github.com/Adithya-Monish-Kumar-K/helpdesk-search/internal/indexer/consumer"
	"github.com/Adithya-Monish-Kumar-K/helpdesk-search/internal/pages"
	"github.com/Adithya-Monish-Kumar-K/helpdesk-search/internal/searcher"
	"github.com/Adithya-Monish-Kumar-K/helpdesk-search/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/helpdesk-search/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/helpdesk-search/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/helpdesk-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/helpdesk-search/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/helpdesk-search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/helpdesk-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/helpdesk-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/helpdesk-search/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/helpdesk-search/pkg/postgres"
	pkgredis "github.com/Adithya-Monish-Kumar-K/helpdesk-search/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/helpdesk-search/pkg/resilience"
	"github.com/Adithya-Monish-Kumar-K/helpdesk-search/pkg/tracing"
)

const rebuildDebounce = 500 * time.Millisecond

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting search service",
		"port", cfg.Server.Port,
		"page_source", cfg.Pages.Source,
		"max_results", cfg.Search.MaxResults,
	)

	if err := run(cfg); err != nil {
		slog.Error("search service failed", "error", err)
		os.Exit(1)
	}
	slog.Info("search service stopped")
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New(prometheus.DefaultRegisterer)
	checker := health.NewChecker()

	store, closeStore, err := openStore(ctx, cfg, checker)
	if err != nil {
		return err
	}
	defer closeStore()

	var queryCache *cache.QueryCache
	redisClient, err := pkgredis.NewClient(ctx, cfg.Redis)
	switch {
	case errors.Is(err, pkgredis.ErrDisabled):
		slog.Info("search cache disabled")
	case err != nil:
		slog.Warn("redis unavailable, search caching disabled", "error", err)
	default:
		defer redisClient.Close()
		breaker := resilience.NewCircuitBreaker("redis-cache", resilience.CircuitBreakerConfig{
			OnStateChange: func(name string, to resilience.State) {
				m.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
			},
		})
		queryCache = cache.New(redisClient, cfg.Redis.CacheTTL, breaker)
		checker.RegisterOptional("redis", health.Ping(redisClient.Ping))
		slog.Info("search cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
	}

	serviceCfg := searcher.ServiceConfig{
		Options: searcher.Options{
			MaxResults:    cfg.Search.MaxResults,
			SnippetLength: cfg.Search.SnippetLength,
			Stemming:      cfg.Search.Stemming,
		},
		Timeout: cfg.Search.Timeout,
		Cache:   queryCache,
		Metrics: m,
		Tracer:  tracing.NewTracer(cfg.Tracing.Enabled, cfg.Tracing.SampleRate, slog.Default()),
	}

	kafkaEnabled := len(cfg.Kafka.Brokers) > 0
	var collector *analytics.Collector
	if kafkaEnabled {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents)
		defer producer.Close()
		collector = analytics.NewCollector(producer, 10000, 100, 2*time.Second)
		serviceCfg.Tracker = collector
		slog.Info("analytics collector enabled", "topic", cfg.Kafka.Topics.AnalyticsEvents)
	}

	service := searcher.NewService(store, serviceCfg)
	checker.Register("search_index", func(ctx context.Context) health.ComponentHealth {
		if !service.Ready() {
			return health.ComponentHealth{Status: health.StatusDown, Message: "index not built"}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})

	err = resilience.Retry(ctx, "initial-index-build", resilience.RetryConfig{
		MaxAttempts: 5,
		Retryable: func(err error) bool {
			return errors.Is(err, apperrors.ErrPageSourceUnavailable)
		},
	}, func() error {
		_, err := service.Rebuild(ctx)
		return err
	})
	if err != nil {
		slog.Warn("initial index build failed, serving not ready until a rebuild succeeds", "error", err)
		// RunRebuilds keeps retrying with backoff until the first build lands.
		service.RequestRebuild()
	}

	mux := http.NewServeMux()
	handler.New(service, queryCache).RegisterRoutes(mux)
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

	g, gctx := errgroup.WithContext(ctx)
	if collector != nil {
		collector.Start(gctx)
		defer collector.Close()
	}
	g.Go(func() error {
		return service.RunRebuilds(gctx, rebuildDebounce)
	})
	if catalog, ok := store.(*pages.CatalogStore); ok && cfg.Pages.Watch {
		g.Go(func() error {
			return pages.WatchCatalog(gctx, catalog.Path(), service.RequestRebuild)
		})
	}
	if kafkaEnabled {
		changes := consumer.New(kafka.NewConsumer(
			cfg.Kafka, cfg.Kafka.Topics.PageChanges, "searcher",
			consumer.HandlePageChanges(service),
		))
		g.Go(func() error {
			return changes.Start(gctx)
		})
	}
	if cfg.Metrics.Enabled && cfg.Metrics.Port != cfg.Server.Port {
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port, prometheus.DefaultGatherer)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()
			_ = shutdownMetrics(shutdownCtx)
		}()
	}
	g.Go(func() error {
		slog.Info("search service listening", "addr", server.Addr)
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

// openStore returns the configured page store and a function releasing its
// resources.
func openStore(ctx context.Context, cfg *config.Config, checker *health.Checker) (pages.Store, func(), error) {
	switch cfg.Pages.Source {
	case config.SourcePostgres:
		db, err := postgres.New(ctx, cfg.Postgres)
		if err != nil {
			return nil, nil, fmt.Errorf("connecting to postgres: %w", err)
		}
		store := pages.NewPostgresStore(db)
		if err := store.Migrate(ctx); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("migrating page store: %w", err)
		}
		checker.Register("postgres", health.Ping(db.Ping))
		slog.Info("page source: postgres", "host", cfg.Postgres.Host, "database", cfg.Postgres.Database)
		return store, func() { db.Close() }, nil
	default:
		slog.Info("page source: catalog", "path", cfg.Pages.CatalogPath, "watch", cfg.Pages.Watch)
		return pages.NewCatalogStore(cfg.Pages.CatalogPath), func() {}, nil
	}
}
