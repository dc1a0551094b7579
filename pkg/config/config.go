// Package config loads and validates application configuration from YAML files
// with environment-variable overrides. It provides typed structs for every
// subsystem (Server, Postgres, Kafka, Redis, Pages, Search, etc.).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Gateway  GatewayConfig  `yaml:"gateway"`
	Postgres PostgresConfig `yaml:"postgres"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Redis    RedisConfig    `yaml:"redis"`
	Pages    PagesConfig    `yaml:"pages"`
	Search   SearchConfig   `yaml:"search"`
	Logging  LoggingConfig  `yaml:"logging"`
	Tracing  TracingConfig  `yaml:"tracing"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	RequestTimeout  time.Duration `yaml:"requestTimeout"`
}

// GatewayConfig holds the API gateway's listen port, backend locations and
// caller limits.
type GatewayConfig struct {
	Port           int           `yaml:"port"`
	SearcherURL    string        `yaml:"searcherURL"`
	AnalyticsURL   string        `yaml:"analyticsURL"`
	GuestRateLimit int           `yaml:"guestRateLimit"`
	RateWindow     time.Duration `yaml:"rateWindow"`
	AllowOrigins   []string      `yaml:"allowOrigins"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// KafkaConfig holds Kafka broker and topic settings. An empty broker list
// disables every Kafka integration.
type KafkaConfig struct {
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	AnalyticsEvents string `yaml:"analyticsEvents"`
	PageChanges     string `yaml:"pageChanges"`
}

// RedisConfig holds Redis connection and caching parameters. An empty Addr
// disables the query cache.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// Page source kinds.
const (
	SourceCatalog  = "catalog"
	SourcePostgres = "postgres"
)

// PagesConfig selects where the helpdesk page set comes from.
type PagesConfig struct {
	Source      string `yaml:"source"`
	CatalogPath string `yaml:"catalogPath"`
	Watch       bool   `yaml:"watch"`
}

// SearchConfig controls query execution and result presentation.
type SearchConfig struct {
	MaxResults      int           `yaml:"maxResults"`
	SnippetLength   int           `yaml:"snippetLength"`
	Stemming        bool          `yaml:"stemming"`
	DefaultAudience string        `yaml:"defaultAudience"`
	Timeout         time.Duration `yaml:"timeout"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// TracingConfig controls request tracing (sample rate, endpoint).
type TracingConfig struct {
	Enabled    bool    `yaml:"enabled"`
	Endpoint   string  `yaml:"endpoint"`
	SampleRate float64 `yaml:"sampleRate"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load layers the YAML file at path (optional) and then SP_* environment
// variables over the defaults, and validates the result.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the services cannot run with.
func (c *Config) Validate() error {
	switch c.Pages.Source {
	case SourceCatalog:
		if c.Pages.CatalogPath == "" {
			return fmt.Errorf("pages.catalogPath is required for source %q", SourceCatalog)
		}
	case SourcePostgres:
	default:
		return fmt.Errorf("pages.source must be %q or %q, got %q", SourceCatalog, SourcePostgres, c.Pages.Source)
	}
	if c.Search.MaxResults <= 0 {
		return fmt.Errorf("search.maxResults must be positive, got %d", c.Search.MaxResults)
	}
	if c.Gateway.GuestRateLimit < 0 {
		return fmt.Errorf("gateway.guestRateLimit must not be negative, got %d", c.Gateway.GuestRateLimit)
	}
	if c.Search.SnippetLength < 0 {
		return fmt.Errorf("search.snippetLength must not be negative, got %d", c.Search.SnippetLength)
	}
	return nil
}

// defaultConfig returns a Config with production-ready defaults for local
// development.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			RequestTimeout:  10 * time.Second,
		},
		Gateway: GatewayConfig{
			Port:           8000,
			SearcherURL:    "http://localhost:8080",
			AnalyticsURL:   "http://localhost:8090",
			GuestRateLimit: 60,
			RateWindow:     time.Minute,
			AllowOrigins:   []string{"*"},
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "helpdesk",
			User:            "helpdesk",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "helpdesk-search",
			Topics: KafkaTopics{
				AnalyticsEvents: "analytics-events",
				PageChanges:     "page-changes",
			},
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			Password: "",
			DB:       0,
			PoolSize: 10,
			CacheTTL: 60 * time.Second,
		},
		Pages: PagesConfig{
			Source:      SourceCatalog,
			CatalogPath: "configs/pages.yaml",
			Watch:       true,
		},
		Search: SearchConfig{
			MaxResults:      4,
			SnippetLength:   0,
			DefaultAudience: "guest",
			Timeout:         2 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
	}
}

// envBinding maps one SP_* variable onto a config field. Bindings marked
// allowEmpty apply even when the variable is set to "", which is how a
// deployment switches off Kafka or Redis.
type envBinding struct {
	name       string
	allowEmpty bool
	set        func(v string) error
}

func str(dst *string) func(string) error {
	return func(v string) error { *dst = v; return nil }
}

func integer(dst *int) func(string) error {
	return func(v string) error {
		n, err := strconv.Atoi(v)
		if err == nil {
			*dst = n
		}
		return err
	}
}

func boolean(dst *bool) func(string) error {
	return func(v string) error {
		b, err := strconv.ParseBool(v)
		if err == nil {
			*dst = b
		}
		return err
	}
}

func duration(dst *time.Duration) func(string) error {
	return func(v string) error {
		d, err := time.ParseDuration(v)
		if err == nil {
			*dst = d
		}
		return err
	}
}

func list(dst *[]string) func(string) error {
	return func(v string) error { *dst = splitList(v); return nil }
}

func (c *Config) envBindings() []envBinding {
	return []envBinding{
		{name: "SP_SERVER_PORT", set: integer(&c.Server.Port)},
		{name: "SP_GATEWAY_PORT", set: integer(&c.Gateway.Port)},
		{name: "SP_GATEWAY_SEARCHER_URL", set: str(&c.Gateway.SearcherURL)},
		{name: "SP_GATEWAY_ANALYTICS_URL", set: str(&c.Gateway.AnalyticsURL)},
		{name: "SP_GATEWAY_GUEST_RATE_LIMIT", set: integer(&c.Gateway.GuestRateLimit)},
		{name: "SP_GATEWAY_ALLOW_ORIGINS", allowEmpty: true, set: list(&c.Gateway.AllowOrigins)},
		{name: "SP_POSTGRES_HOST", set: str(&c.Postgres.Host)},
		{name: "SP_POSTGRES_PORT", set: integer(&c.Postgres.Port)},
		{name: "SP_POSTGRES_DATABASE", set: str(&c.Postgres.Database)},
		{name: "SP_POSTGRES_USER", set: str(&c.Postgres.User)},
		{name: "SP_POSTGRES_PASSWORD", set: str(&c.Postgres.Password)},
		{name: "SP_POSTGRES_SSLMODE", set: str(&c.Postgres.SSLMode)},
		{name: "SP_KAFKA_BROKERS", allowEmpty: true, set: list(&c.Kafka.Brokers)},
		{name: "SP_REDIS_ADDR", allowEmpty: true, set: str(&c.Redis.Addr)},
		{name: "SP_REDIS_PASSWORD", set: str(&c.Redis.Password)},
		{name: "SP_REDIS_CACHE_TTL", set: duration(&c.Redis.CacheTTL)},
		{name: "SP_PAGES_SOURCE", set: str(&c.Pages.Source)},
		{name: "SP_PAGES_CATALOG_PATH", set: str(&c.Pages.CatalogPath)},
		{name: "SP_PAGES_WATCH", set: boolean(&c.Pages.Watch)},
		{name: "SP_SEARCH_MAX_RESULTS", set: integer(&c.Search.MaxResults)},
		{name: "SP_SEARCH_SNIPPET_LENGTH", set: integer(&c.Search.SnippetLength)},
		{name: "SP_SEARCH_STEMMING", set: boolean(&c.Search.Stemming)},
		{name: "SP_LOGGING_LEVEL", set: str(&c.Logging.Level)},
		{name: "SP_LOGGING_FORMAT", set: str(&c.Logging.Format)},
		{name: "SP_TRACING_ENABLED", set: boolean(&c.Tracing.Enabled)},
		{name: "SP_METRICS_ENABLED", set: boolean(&c.Metrics.Enabled)},
	}
}

// applyEnvOverrides copies SP_* environment variables over the loaded values.
// A value that does not parse is reported rather than silently ignored.
func applyEnvOverrides(cfg *Config) error {
	for _, b := range cfg.envBindings() {
		v, ok := os.LookupEnv(b.name)
		if !ok || (v == "" && !b.allowEmpty) {
			continue
		}
		if err := b.set(v); err != nil {
			return fmt.Errorf("environment variable %s=%q: %w", b.name, v, err)
		}
	}
	return nil
}

// splitList splits a comma-separated value, dropping blanks, so that an empty
// variable yields an empty list.
func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
