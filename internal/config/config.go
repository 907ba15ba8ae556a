// Package config provides configuration management for the citation enrichment service.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable override.
const EnvPrefix = "CITEENRICH"

// SSL mode constants for database connections.
const (
	// SSLModeDisable disables SSL (use only for local development).
	SSLModeDisable = "disable"
	// SSLModeRequire requires SSL but does not verify certificates.
	SSLModeRequire = "require"
	// SSLModeVerifyCA verifies the server certificate against a CA.
	SSLModeVerifyCA = "verify-ca"
	// SSLModeVerifyFull verifies the server certificate and hostname.
	SSLModeVerifyFull = "verify-full"
)

// Cache backend names.
const (
	CacheBackendFile     = "file"
	CacheBackendRedis    = "redis"
	CacheBackendPostgres = "postgres"
	CacheBackendMemory   = "memory"
)

// Config holds all configuration for the citation enrichment service.
type Config struct {
	// Server contains HTTP server settings.
	Server ServerConfig `mapstructure:"server"`
	// Database contains PostgreSQL connection settings for the postgres cache backend.
	Database DatabaseConfig `mapstructure:"database"`
	// Logging contains structured logging settings.
	Logging LoggingConfig `mapstructure:"logging"`
	// Metrics contains Prometheus metrics exposure settings.
	Metrics MetricsConfig `mapstructure:"metrics"`
	// Enrichment contains batch defaults for the orchestrator.
	Enrichment EnrichmentConfig `mapstructure:"enrichment"`
	// Cache contains citation cache settings.
	Cache CacheConfig `mapstructure:"cache"`
	// Redis contains connection settings for the redis cache backend.
	Redis RedisConfig `mapstructure:"redis"`
	// Kafka contains Kafka publisher settings for batch events.
	Kafka KafkaConfig `mapstructure:"kafka"`
	// PaperSources contains citation provider configurations.
	PaperSources PaperSourcesConfig `mapstructure:"paper_sources"`
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	// Host is the address to bind the server to (default: 0.0.0.0).
	Host string `mapstructure:"host"`
	// HTTPPort is the HTTP server port (default: 8080).
	HTTPPort int `mapstructure:"http_port"`
	// MetricsPort is the metrics server port (default: 9091).
	MetricsPort int `mapstructure:"metrics_port"`
	// ReadTimeout is the maximum duration for reading request body.
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
	// WriteTimeout is the maximum duration for writing response. Batches
	// run synchronously, so this bounds the largest batch the API serves.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// ShutdownTimeout is the maximum duration to wait for graceful shutdown.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	// MaxBatchSize caps the number of papers accepted per API request.
	MaxBatchSize int `mapstructure:"max_batch_size"`
}

// DatabaseConfig holds database connection configuration.
type DatabaseConfig struct {
	// Host is the PostgreSQL server hostname.
	Host string `mapstructure:"host"`
	// Port is the PostgreSQL server port (default: 5432).
	Port int `mapstructure:"port"`
	// User is the database username.
	User string `mapstructure:"user"`
	// Password is the database password (use environment variable in production).
	Password string `mapstructure:"password"`
	// Name is the database name.
	Name string `mapstructure:"name"`
	// SSLMode controls SSL connection security (require, verify-ca, verify-full, disable).
	SSLMode string `mapstructure:"ssl_mode"`
	// MaxConns is the maximum number of connections in the pool.
	MaxConns int32 `mapstructure:"max_conns"`
	// MinConns is the minimum number of connections to keep open.
	MinConns int32 `mapstructure:"min_conns"`
	// MaxConnLifetime is the maximum lifetime of a connection before it's closed.
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	// MaxConnIdleTime is the maximum time a connection can be idle before it's closed.
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
	// HealthCheckPeriod is the interval between health checks of idle connections.
	HealthCheckPeriod time.Duration `mapstructure:"health_check_period"`
	// ConnectTimeout is the maximum time to wait for a connection.
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	// MigrationPath is the path to migration files (relative or absolute).
	MigrationPath string `mapstructure:"migration_path"`
	// MigrationAutoRun enables automatic migration on startup (default: false).
	MigrationAutoRun bool `mapstructure:"migration_auto_run"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the log level (trace, debug, info, warn, error, fatal, panic).
	Level string `mapstructure:"level"`
	// Format is the log format (json, console).
	Format string `mapstructure:"format"`
	// Output is the log output destination (stdout, stderr).
	Output string `mapstructure:"output"`
	// AddSource adds source file and line to log output.
	AddSource bool `mapstructure:"add_source"`
	// TimeFormat is the timestamp format.
	TimeFormat string `mapstructure:"time_format"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	// Enabled enables metrics collection and exposure.
	Enabled bool `mapstructure:"enabled"`
	// Path is the HTTP path for metrics endpoint.
	Path string `mapstructure:"path"`
}

// EnrichmentConfig holds orchestrator defaults. Individual requests may
// override the batch options.
type EnrichmentConfig struct {
	// Concurrency is the worker pool size (default: 5).
	Concurrency int `mapstructure:"concurrency"`
	// RetryCount is the number of primary retries after the first attempt (default: 2).
	RetryCount int `mapstructure:"retry_count"`
	// UseFallback enables the title-based fallback provider.
	UseFallback bool `mapstructure:"use_fallback"`
	// UseCache enables cache reads and writes.
	UseCache bool `mapstructure:"use_cache"`
	// BackoffUnit is multiplied by the attempt number between primary retries (default: 1s).
	BackoffUnit time.Duration `mapstructure:"backoff_unit"`
	// LowSuccessThreshold triggers a warning when the primary success rate
	// of a batch drops below it (default: 0.5).
	LowSuccessThreshold float64 `mapstructure:"low_success_threshold"`
}

// CacheConfig holds citation cache configuration.
type CacheConfig struct {
	// Backend is one of file, redis, postgres or memory (default: file).
	Backend string `mapstructure:"backend"`
	// Path is the JSON cache file for the file backend.
	Path string `mapstructure:"path"`
	// TTLDays is the entry lifetime in days (default: 7).
	TTLDays int `mapstructure:"ttl_days"`
}

// TTL returns the entry lifetime as a duration.
func (c *CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLDays) * 24 * time.Hour
}

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	// Address is the host:port of the Redis server.
	Address string `mapstructure:"address"`
	// Password is loaded from CITEENRICH_REDIS_PASSWORD.
	Password string `mapstructure:"-"`
	// DB is the Redis logical database.
	DB int `mapstructure:"db"`
	// Key is the hash that holds cache entries.
	Key string `mapstructure:"key"`
}

// KafkaConfig holds Kafka publisher configuration.
type KafkaConfig struct {
	// Enabled enables publishing batch events.
	Enabled bool `mapstructure:"enabled"`
	// Brokers is the list of Kafka bootstrap brokers.
	Brokers []string `mapstructure:"brokers"`
	// Topic receives batch completion events.
	Topic string `mapstructure:"topic"`
	// BatchSize is the writer's maximum batch size.
	BatchSize int `mapstructure:"batch_size"`
	// BatchTimeout is how long the writer waits to fill a batch.
	BatchTimeout time.Duration `mapstructure:"batch_timeout"`
}

// PaperSourcesConfig holds provider configurations.
type PaperSourcesConfig struct {
	// SemanticScholar is the primary provider.
	SemanticScholar PaperSourceConfig `mapstructure:"semantic_scholar"`
	// OpenAlex is the fallback provider.
	OpenAlex PaperSourceConfig `mapstructure:"openalex"`
}

// PaperSourceConfig holds configuration for one provider.
type PaperSourceConfig struct {
	// Enabled enables the provider. Disabling OpenAlex disables the fallback.
	Enabled bool `mapstructure:"enabled"`
	// APIKey is loaded from the environment only.
	APIKey string `mapstructure:"-"`
	// BaseURL overrides the provider's API base URL.
	BaseURL string `mapstructure:"base_url"`
	// Timeout is the per-request timeout.
	Timeout time.Duration `mapstructure:"timeout"`
	// Delay is the minimum spacing between requests.
	Delay time.Duration `mapstructure:"delay"`
	// Email is sent as the polite-pool contact where supported.
	Email string `mapstructure:"email"`
}

// DSN returns the PostgreSQL connection string.
func (c *DatabaseConfig) DSN() string {
	params := url.Values{}
	params.Set("sslmode", c.SSLMode)
	if c.ConnectTimeout > 0 {
		params.Set("connect_timeout", fmt.Sprintf("%d", int(c.ConnectTimeout.Seconds())))
	}

	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?%s",
		url.QueryEscape(c.User),
		url.QueryEscape(c.Password),
		c.Host,
		c.Port,
		c.Name,
		params.Encode(),
	)
}

// HTTPAddress returns the HTTP server address.
func (c *ServerConfig) HTTPAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.HTTPPort)
}

// MetricsAddress returns the metrics server address.
func (c *ServerConfig) MetricsAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.MetricsPort)
}

// Load reads configuration from defaults, an optional config.yaml, and
// CITEENRICH_* environment variables, then validates it.
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile is Load with an explicit config file. An empty path searches the
// default locations.
func LoadFile(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/citation-enrichment-service")
	}

	if err := v.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	loadSecrets(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// loadSecrets populates fields that are never read from config files.
func loadSecrets(cfg *Config) {
	cfg.PaperSources.SemanticScholar.APIKey = os.Getenv(EnvPrefix + "_PAPER_SOURCES_SEMANTIC_SCHOLAR_API_KEY")
	cfg.PaperSources.OpenAlex.APIKey = os.Getenv(EnvPrefix + "_PAPER_SOURCES_OPENALEX_API_KEY")
	cfg.Redis.Password = os.Getenv(EnvPrefix + "_REDIS_PASSWORD")
}

// setDefaults configures default values for all configuration options.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.http_port", 8080)
	v.SetDefault("server.metrics_port", 9091)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "10m")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.max_batch_size", 500)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "citeenrich")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "citation_enrichment")
	v.SetDefault("database.ssl_mode", SSLModeRequire)
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 1)
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "30m")
	v.SetDefault("database.health_check_period", "30s")
	v.SetDefault("database.connect_timeout", "10s")
	v.SetDefault("database.migration_path", "migrations")
	v.SetDefault("database.migration_auto_run", false)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("enrichment.concurrency", 5)
	v.SetDefault("enrichment.retry_count", 2)
	v.SetDefault("enrichment.use_fallback", true)
	v.SetDefault("enrichment.use_cache", true)
	v.SetDefault("enrichment.backoff_unit", "1s")
	v.SetDefault("enrichment.low_success_threshold", 0.5)

	v.SetDefault("cache.backend", CacheBackendFile)
	v.SetDefault("cache.path", "./data/citation_cache.json")
	v.SetDefault("cache.ttl_days", 7)

	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.key", "citation_cache")

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic", "events.citation_enrichment")
	v.SetDefault("kafka.batch_size", 100)
	v.SetDefault("kafka.batch_timeout", "10ms")

	v.SetDefault("paper_sources.semantic_scholar.enabled", true)
	v.SetDefault("paper_sources.semantic_scholar.base_url", "https://api.semanticscholar.org/graph/v1")
	v.SetDefault("paper_sources.semantic_scholar.timeout", "10s")
	v.SetDefault("paper_sources.semantic_scholar.delay", "1s")

	v.SetDefault("paper_sources.openalex.enabled", true)
	v.SetDefault("paper_sources.openalex.base_url", "https://api.openalex.org")
	v.SetDefault("paper_sources.openalex.timeout", "10s")
	v.SetDefault("paper_sources.openalex.delay", "2s")
	v.SetDefault("paper_sources.openalex.email", "")
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	// Validate server ports
	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.Server.HTTPPort)
	}
	if c.Server.MetricsPort <= 0 || c.Server.MetricsPort > 65535 {
		return fmt.Errorf("invalid metrics port: %d", c.Server.MetricsPort)
	}
	if c.Server.MaxBatchSize <= 0 {
		return fmt.Errorf("server max_batch_size must be positive")
	}

	// Validate enrichment defaults
	if c.Enrichment.Concurrency < 1 {
		return fmt.Errorf("enrichment concurrency must be at least 1, got %d", c.Enrichment.Concurrency)
	}
	if c.Enrichment.RetryCount < 0 {
		return fmt.Errorf("enrichment retry_count must not be negative, got %d", c.Enrichment.RetryCount)
	}
	if c.Enrichment.BackoffUnit < 0 {
		return fmt.Errorf("enrichment backoff_unit must not be negative")
	}
	if c.Enrichment.LowSuccessThreshold < 0 || c.Enrichment.LowSuccessThreshold > 1 {
		return fmt.Errorf("enrichment low_success_threshold must be between 0 and 1")
	}

	// Validate cache config
	if c.Cache.TTLDays < 1 {
		return fmt.Errorf("cache ttl_days must be at least 1, got %d", c.Cache.TTLDays)
	}
	switch strings.ToLower(c.Cache.Backend) {
	case CacheBackendFile:
		if c.Cache.Path == "" {
			return fmt.Errorf("cache path is required for the file backend")
		}
	case CacheBackendRedis:
		if c.Redis.Address == "" {
			return fmt.Errorf("redis address is required for the redis cache backend")
		}
	case CacheBackendPostgres:
		if err := c.Database.validate(); err != nil {
			return err
		}
	case CacheBackendMemory:
	default:
		return fmt.Errorf("invalid cache backend: %s", c.Cache.Backend)
	}

	// Validate log level
	validLogLevels := map[string]bool{
		"trace": true, "debug": true, "info": true,
		"warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	// Validate Kafka config
	if c.Kafka.Enabled {
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("kafka brokers are required when kafka is enabled")
		}
		if c.Kafka.Topic == "" {
			return fmt.Errorf("kafka topic is required when kafka is enabled")
		}
	}

	if !c.PaperSources.SemanticScholar.Enabled {
		return fmt.Errorf("the semantic_scholar paper source cannot be disabled")
	}

	return nil
}

func (c *DatabaseConfig) validate() error {
	if c.Host == "" {
		return fmt.Errorf("database host is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid database port: %d", c.Port)
	}
	if c.Name == "" {
		return fmt.Errorf("database name is required")
	}
	if c.MaxConns < c.MinConns {
		return fmt.Errorf("max_conns (%d) must be >= min_conns (%d)", c.MaxConns, c.MinConns)
	}
	return nil
}
