// Package config loads the review service configuration from the
// environment.
package config

import (
	"fmt"
	"time"

	pkgconfig "github.com/shinshin4n4n/tube-review-sub001/pkg/config"
	"github.com/shinshin4n4n/tube-review-sub001/pkg/database"
	"github.com/shinshin4n4n/tube-review-sub001/pkg/tracing"
)

const (
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Config holds all configuration for the review service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info" validate:"oneof=debug info warn error"`

	// HTTP server
	HTTPPort        int           `env:"REVIEW_HTTP_PORT" envDefault:"8080" validate:"min=1,max=65535"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"15s"`

	// Storage: postgres in production, memory for demos and local runs.
	StoreBackend string                  `env:"STORE_BACKEND" envDefault:"postgres" validate:"oneof=postgres memory"`
	Postgres     database.PostgresConfig
	// Slow query logging, 0 disables.
	SlowQueryThresholdMs int `env:"LOG_SLOW_QUERY_MS" envDefault:"500" validate:"min=0"`

	// Ranking cache
	RedisEnabled    bool                 `env:"REDIS_ENABLED" envDefault:"false"`
	Redis           database.RedisConfig
	RankingCacheTTL time.Duration        `env:"RANKING_CACHE_TTL" envDefault:"5m"`
	RankingMaxAge   time.Duration        `env:"RANKING_MAX_AGE" envDefault:"60s"`

	// Kafka
	KafkaEnabled bool     `env:"KAFKA_ENABLED" envDefault:"false"`
	KafkaBrokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`

	// Access tokens issued by the identity backend.
	JWTSecret   string        `env:"AUTH_JWT_SECRET,required,notEmpty"`
	JWTAudience string        `env:"AUTH_JWT_AUDIENCE" envDefault:"authenticated"`
	JWTLeeway   time.Duration `env:"AUTH_JWT_LEEWAY" envDefault:"30s"`

	// Video catalog. An empty key disables it and only stored channels can
	// be reviewed.
	YouTubeAPIKey   string        `env:"YOUTUBE_API_KEY"`
	YouTubeEndpoint string        `env:"YOUTUBE_API_ENDPOINT"`
	CatalogTimeout  time.Duration `env:"CATALOG_TIMEOUT" envDefault:"5s"`

	// Channel stats refresh
	StatsRefreshInterval time.Duration `env:"STATS_REFRESH_INTERVAL" envDefault:"1h"`
	StatsRecentWindow    time.Duration `env:"STATS_RECENT_WINDOW" envDefault:"168h"`
	StatsMaxRetries      int           `env:"STATS_REFRESH_MAX_RETRIES" envDefault:"3" validate:"min=1,max=10"`

	AllowSelfHelpfulVote bool `env:"ALLOW_SELF_HELPFUL_VOTE" envDefault:"true"`

	// Per-user throttle on review submission and helpful toggles, 0 disables.
	WriteRateLimitRPS   float64 `env:"WRITE_RATE_LIMIT_RPS" envDefault:"0.5" validate:"min=0"`
	WriteRateLimitBurst int     `env:"WRITE_RATE_LIMIT_BURST" envDefault:"10" validate:"min=1"`

	// CORS
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"http://localhost:3000" envSeparator:","`

	// OpenTelemetry
	Tracing tracing.Config

	// Pprof debug endpoints (IP allowlist in CIDR notation)
	PprofAllowedCIDRs []string `env:"PPROF_ALLOWED_CIDRS" envDefault:"127.0.0.0/8,::1/128" envSeparator:","`
}

// Load reads configuration from environment variables.
func Load(opts ...pkgconfig.Option) (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg, opts...); err != nil {
		return nil, fmt.Errorf("load review config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cfg.Tracing.ServiceName = "review-service"
	cfg.Tracing.Environment = cfg.Environment
	return cfg, nil
}

// validate checks the invariants that struct tags cannot express.
func (c *Config) validate() error {
	if c.StoreBackend == BackendPostgres {
		if c.Postgres.Host == "" {
			return fmt.Errorf("POSTGRES_HOST is required")
		}
		if c.Postgres.Port < 1 || c.Postgres.Port > 65535 {
			return fmt.Errorf("invalid POSTGRES_PORT: %d", c.Postgres.Port)
		}
	}
	if c.StatsRefreshInterval <= 0 {
		return fmt.Errorf("STATS_REFRESH_INTERVAL must be > 0, got %s", c.StatsRefreshInterval)
	}
	if c.StatsRecentWindow <= 0 {
		return fmt.Errorf("STATS_RECENT_WINDOW must be > 0, got %s", c.StatsRecentWindow)
	}
	if c.RedisEnabled && c.RankingCacheTTL <= 0 {
		return fmt.Errorf("RANKING_CACHE_TTL must be > 0 when Redis is enabled, got %s", c.RankingCacheTTL)
	}
	if c.KafkaEnabled && len(c.KafkaBrokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS is required when Kafka is enabled")
	}
	if c.CatalogTimeout <= 0 {
		return fmt.Errorf("CATALOG_TIMEOUT must be > 0, got %s", c.CatalogTimeout)
	}
	return nil
}

// CatalogEnabled reports whether unknown channels are looked up upstream.
func (c *Config) CatalogEnabled() bool {
	return c.YouTubeAPIKey != ""
}

// SlowQueryThreshold is LOG_SLOW_QUERY_MS as a duration.
func (c *Config) SlowQueryThreshold() time.Duration {
	return time.Duration(c.SlowQueryThresholdMs) * time.Millisecond
}
