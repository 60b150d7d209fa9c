package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/yungbote/namespace-orchestrator/internal/data/db"
	"github.com/yungbote/namespace-orchestrator/internal/temporalx"
)

type Config struct {
	LogMode string `env:"LOG_MODE" envDefault:"development"`
	Port    string `env:"PORT" envDefault:"8080"`

	HTTP     HTTPConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Lock     LockConfig
	Merge    MergeConfig
	Fallback FallbackConfig
	Health   HealthConfig
	Jobs     JobsConfig
	Temporal temporalx.Config
	Otel     OtelConfig
	Metrics  MetricsConfig
	Admin    AdminConfig

	EncryptionMasterKey string `env:"ENCRYPTION_MASTER_KEY" envDefault:"dev-master-key"`
}

type HTTPConfig struct {
	CORSOrigins     []string      `env:"CORS_ORIGINS" envSeparator:","`
	DefaultActor    string        `env:"DEFAULT_ACTOR" envDefault:"api"`
	ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"15s"`
}

type DatabaseConfig struct {
	Driver     string `env:"DB_DRIVER" envDefault:"postgres"`
	SQLitePath string `env:"SQLITE_PATH" envDefault:"nsorch.db"`

	PostgresHost     string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort     string `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser     string `env:"POSTGRES_USER" envDefault:"postgres"`
	PostgresPassword string `env:"POSTGRES_PASSWORD"`
	PostgresName     string `env:"POSTGRES_NAME" envDefault:"nsorch"`
	PostgresSSLMode  string `env:"POSTGRES_SSLMODE" envDefault:"disable"`
	PostgresMaxConns int    `env:"POSTGRES_MAX_CONNS" envDefault:"20"`
}

func (c DatabaseConfig) Postgres() db.PostgresConfig {
	return db.PostgresConfig{
		Host:     c.PostgresHost,
		Port:     c.PostgresPort,
		User:     c.PostgresUser,
		Password: c.PostgresPassword,
		Name:     c.PostgresName,
		SSLMode:  c.PostgresSSLMode,
		MaxConns: c.PostgresMaxConns,
	}
}

// RedisConfig: an empty Addr selects the in-process lock, queue and tombstone implementations.
type RedisConfig struct {
	Addr             string `env:"REDIS_ADDR"`
	Password         string `env:"REDIS_PASSWORD"`
	DB               int    `env:"REDIS_DB" envDefault:"0"`
	LockPrefix       string `env:"REDIS_LOCK_PREFIX" envDefault:"nsorch:lock:"`
	QueueKey         string `env:"REDIS_FALLBACK_QUEUE_KEY" envDefault:"nsorch:fallback_queue"`
	TombstoneChannel string `env:"REDIS_TOMBSTONE_CHANNEL" envDefault:"nsorch:tombstones"`
}

func (c RedisConfig) Enabled() bool { return strings.TrimSpace(c.Addr) != "" }

type LockConfig struct {
	Lease time.Duration `env:"LOCK_LEASE" envDefault:"10m"`
	Wait  time.Duration `env:"LOCK_WAIT" envDefault:"2s"`
}

type MergeConfig struct {
	MinInterval time.Duration `env:"MERGE_MIN_INTERVAL" envDefault:"1h"`
	Timeout     time.Duration `env:"MERGE_TIMEOUT"`
}

type FallbackConfig struct {
	Workers        int           `env:"FALLBACK_WORKERS" envDefault:"2"`
	DefaultVersion string        `env:"FALLBACK_DEFAULT_VERSION" envDefault:"last_known_good"`
	Timeout        time.Duration `env:"FALLBACK_TIMEOUT"`
	QueueCapacity  int           `env:"FALLBACK_QUEUE_CAPACITY" envDefault:"1024"`
	PopWait        time.Duration `env:"FALLBACK_POP_WAIT" envDefault:"1s"`
	RequeueDelay   time.Duration `env:"FALLBACK_REQUEUE_DELAY" envDefault:"5s"`
}

type HealthConfig struct {
	PolicyPath string `env:"HEALTH_POLICY_PATH"`
}

// JobsConfig drives the in-process ticker used when Temporal is disabled. A zero interval disables a job.
type JobsConfig struct {
	NightlyMergeInterval time.Duration `env:"NIGHTLY_MERGE_INTERVAL" envDefault:"24h"`
	NightlyConcurrency   int           `env:"NIGHTLY_MERGE_CONCURRENCY" envDefault:"4"`
	HealthCheckInterval  time.Duration `env:"HEALTH_CHECK_INTERVAL" envDefault:"15m"`
	HealthConcurrency    int           `env:"HEALTH_CHECK_CONCURRENCY" envDefault:"8"`
	CleanupInterval      time.Duration `env:"CLEANUP_INTERVAL" envDefault:"24h"`
	CleanupRetention     time.Duration `env:"CLEANUP_RETENTION" envDefault:"720h"`
	CleanupBatch         int           `env:"CLEANUP_BATCH" envDefault:"100"`
	StaleAfter           time.Duration `env:"STALE_OPERATION_AFTER" envDefault:"10m"`
	PageSize             int           `env:"JOBS_PAGE_SIZE" envDefault:"200"`
}

type OtelConfig struct {
	Enabled     bool    `env:"OTEL_ENABLED" envDefault:"false"`
	ServiceName string  `env:"OTEL_SERVICE_NAME" envDefault:"namespace-orchestrator"`
	Environment string  `env:"DEPLOY_ENV" envDefault:"development"`
	Version     string  `env:"SERVICE_VERSION"`
	Endpoint    string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	Headers     string  `env:"OTEL_EXPORTER_OTLP_HEADERS"`
	Insecure    bool    `env:"OTEL_EXPORTER_OTLP_INSECURE" envDefault:"false"`
	SampleRatio float64 `env:"OTEL_SAMPLE_RATIO" envDefault:"1"`
}

type MetricsConfig struct {
	Enabled         bool          `env:"METRICS_ENABLED" envDefault:"true"`
	Addr            string        `env:"METRICS_ADDR"`
	CollectInterval time.Duration `env:"METRICS_COLLECT_INTERVAL" envDefault:"15s"`
}

type AdminConfig struct {
	JWTSecret string `env:"ADMIN_JWT_SECRET"`
}

// LoadConfig reads the process environment.
func LoadConfig() (Config, error) {
	return parseConfig(env.Options{})
}

func parseConfig(opts env.Options) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch strings.ToLower(strings.TrimSpace(c.Database.Driver)) {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("DB_DRIVER must be postgres or sqlite, got %q", c.Database.Driver)
	}
	if c.Lock.Lease <= 0 {
		return fmt.Errorf("LOCK_LEASE must be positive")
	}
	if c.Fallback.Workers < 1 {
		return fmt.Errorf("FALLBACK_WORKERS must be >= 1")
	}
	if strings.TrimSpace(c.EncryptionMasterKey) == "" {
		return fmt.Errorf("ENCRYPTION_MASTER_KEY is required")
	}
	return nil
}
