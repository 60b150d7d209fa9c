package temporalx

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/yungbote/namespace-orchestrator/internal/platform/logger"

	"go.temporal.io/api/serviceerror"
	"go.temporal.io/api/workflowservice/v1"
	temporalsdkclient "go.temporal.io/sdk/client"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/durationpb"
)

// NewClient dials Temporal with retry. It returns nil, nil when Temporal is not configured.
func NewClient(ctx context.Context, log *logger.Logger, cfg Config) (temporalsdkclient.Client, error) {
	if !cfg.Enabled() {
		log.Warn("TEMPORAL_ADDRESS not set; Temporal disabled")
		return nil, nil
	}

	opts := temporalsdkclient.Options{
		HostPort:  cfg.Address,
		Namespace: cfg.Namespace,
		Logger:    log,
	}
	if cfg.hasTLS() {
		tlsCfg, err := loadTLSConfig(cfg)
		if err != nil {
			return nil, err
		}
		opts.ConnectionOptions.TLS = tlsCfg
	}

	deadline := time.Now().Add(cfg.DialMaxWait)
	for attempt := 1; ; attempt++ {
		dialCtx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
		c, err := temporalsdkclient.DialContext(dialCtx, opts)
		cancel()
		if err == nil {
			if attempt > 1 {
				log.Info("Connected to Temporal", "address", cfg.Address, "namespace", cfg.Namespace, "attempts", attempt)
			}
			if cfg.AutoRegisterNamespace {
				if err := EnsureNamespace(ctx, log, cfg); err != nil {
					c.Close()
					return nil, err
				}
			}
			return c, nil
		}

		if cfg.DialMaxWait <= 0 || time.Now().After(deadline) || ctx.Err() != nil {
			return nil, fmt.Errorf("temporal dial failed (address=%s namespace=%s): %w", cfg.Address, cfg.Namespace, err)
		}
		log.Warn("Temporal not reachable; retrying", "address", cfg.Address, "namespace", cfg.Namespace, "attempt", attempt, "error", err)
		if !sleepCtx(ctx, ClampBackoff(cfg.DialBackoff, cfg.DialBackoffMax, attempt)) {
			return nil, ctx.Err()
		}
	}
}

// EnsureNamespace creates the configured Temporal namespace when it is missing.
// Intended for local/self-hosted Temporal; hosted namespaces should be pre-provisioned.
func EnsureNamespace(ctx context.Context, log *logger.Logger, cfg Config) error {
	namespace := strings.TrimSpace(cfg.Namespace)
	if !cfg.Enabled() || namespace == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, cfg.DialMaxWait+10*time.Second)
	defer cancel()

	// The namespace client carries no namespace header, so it can create one that does not exist yet.
	nsClientOpts := temporalsdkclient.Options{
		HostPort: cfg.Address,
		Logger:   log,
	}
	if cfg.hasTLS() {
		tlsCfg, err := loadTLSConfig(cfg)
		if err != nil {
			return err
		}
		nsClientOpts.ConnectionOptions.TLS = tlsCfg
	}
	nsClient, err := temporalsdkclient.NewNamespaceClient(nsClientOpts)
	if err != nil {
		return fmt.Errorf("temporal namespace ensure: init namespace client: %w", err)
	}
	defer nsClient.Close()

	retentionDays := cfg.NamespaceRetentionDays
	if retentionDays < 1 {
		retentionDays = 7
	}
	if retentionDays > 365 {
		retentionDays = 365
	}

	for attempt := 1; ; attempt++ {
		if ctx.Err() != nil {
			return fmt.Errorf("temporal namespace ensure: timed out (namespace=%s): %w", namespace, ctx.Err())
		}

		_, err := nsClient.Describe(ctx, namespace)
		if err == nil {
			return nil
		}

		var nfe *serviceerror.NamespaceNotFound
		if errors.As(err, &nfe) {
			regErr := nsClient.Register(ctx, &workflowservice.RegisterNamespaceRequest{
				Namespace:                        namespace,
				Description:                      "namespace orchestrator sweeps",
				WorkflowExecutionRetentionPeriod: durationpb.New(time.Duration(retentionDays) * 24 * time.Hour),
			})
			if regErr == nil {
				log.Info("Registered Temporal namespace", "namespace", namespace, "retention_days", retentionDays)
				return nil
			}
			var already *serviceerror.NamespaceAlreadyExists
			if errors.As(regErr, &already) {
				return nil
			}
			if isRetryableRPC(regErr) {
				log.Warn("Temporal namespace register retrying", "namespace", namespace, "attempt", attempt, "error", regErr)
				sleepCtx(ctx, ClampBackoff(cfg.DialBackoff, cfg.DialBackoffMax, attempt))
				continue
			}
			return fmt.Errorf("temporal namespace ensure: register namespace: %w", regErr)
		}

		if isRetryableRPC(err) {
			log.Warn("Temporal namespace describe retrying", "namespace", namespace, "attempt", attempt, "error", err)
			sleepCtx(ctx, ClampBackoff(cfg.DialBackoff, cfg.DialBackoffMax, attempt))
			continue
		}
		return fmt.Errorf("temporal namespace ensure: describe namespace: %w", err)
	}
}

func loadTLSConfig(cfg Config) (*tls.Config, error) {
	if cfg.ClientCertPath == "" || cfg.ClientKeyPath == "" {
		return nil, fmt.Errorf("temporal tls: client cert and key are both required for mTLS")
	}
	cert, err := tls.LoadX509KeyPair(cfg.ClientCertPath, cfg.ClientKeyPath)
	if err != nil {
		return nil, fmt.Errorf("temporal tls: load client cert/key: %w", err)
	}
	tlsCfg := &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}
	if cfg.ClientCAPath != "" {
		pem, err := os.ReadFile(cfg.ClientCAPath)
		if err != nil {
			return nil, fmt.Errorf("temporal tls: read CA: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("temporal tls: invalid CA pem")
		}
		tlsCfg.RootCAs = pool
	}
	return tlsCfg, nil
}

// ClampBackoff doubles base per attempt, capped at max.
func ClampBackoff(base time.Duration, max time.Duration, attempt int) time.Duration {
	if base <= 0 {
		base = 250 * time.Millisecond
	}
	sleep := base
	for i := 1; i < attempt; i++ {
		sleep *= 2
		if max > 0 && sleep >= max {
			return max
		}
	}
	if max > 0 && sleep > max {
		return max
	}
	return sleep
}

func isRetryableRPC(err error) bool {
	if err == nil {
		return false
	}
	s, ok := status.FromError(err)
	if !ok {
		return errors.Is(err, context.DeadlineExceeded)
	}
	switch s.Code() {
	case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted:
		return true
	default:
		return false
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
