package temporalx

import (
	"strings"
	"time"
)

// Config is populated by the app config loader. Temporal is disabled when Address is empty.
type Config struct {
	Address   string `env:"TEMPORAL_ADDRESS"`
	Namespace string `env:"TEMPORAL_NAMESPACE" envDefault:"namespace-orchestrator"`
	TaskQueue string `env:"TEMPORAL_TASK_QUEUE" envDefault:"nsorch-jobs"`

	ClientCertPath string `env:"TEMPORAL_CLIENT_CERT_PATH"`
	ClientKeyPath  string `env:"TEMPORAL_CLIENT_KEY_PATH"`
	ClientCAPath   string `env:"TEMPORAL_CLIENT_CA_PATH"`

	DialTimeout    time.Duration `env:"TEMPORAL_DIAL_TIMEOUT" envDefault:"5s"`
	DialMaxWait    time.Duration `env:"TEMPORAL_DIAL_MAX_WAIT" envDefault:"60s"`
	DialBackoff    time.Duration `env:"TEMPORAL_DIAL_BACKOFF" envDefault:"250ms"`
	DialBackoffMax time.Duration `env:"TEMPORAL_DIAL_BACKOFF_MAX" envDefault:"5s"`

	AutoRegisterNamespace  bool `env:"TEMPORAL_AUTO_REGISTER_NAMESPACE" envDefault:"false"`
	NamespaceRetentionDays int  `env:"TEMPORAL_NAMESPACE_RETENTION_DAYS" envDefault:"7"`

	WorkerConcurrency int `env:"TEMPORAL_WORKER_CONCURRENCY" envDefault:"2"`

	// Cron specs for the scheduled sweeps. An empty spec leaves that job unscheduled.
	NightlyMergeCron string `env:"NIGHTLY_MERGE_CRON" envDefault:"0 3 * * *"`
	HealthCheckCron  string `env:"HEALTH_CHECK_CRON" envDefault:"*/15 * * * *"`
	CleanupCron      string `env:"CLEANUP_CRON" envDefault:"30 4 * * *"`
}

func (c Config) Enabled() bool { return strings.TrimSpace(c.Address) != "" }

func (c Config) hasTLS() bool {
	return c.ClientCertPath != "" || c.ClientKeyPath != "" || c.ClientCAPath != ""
}
