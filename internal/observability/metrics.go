package observability

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/yungbote/namespace-orchestrator/internal/platform/logger"
)

// Metrics is constructed once by the app and handed to every component that reports.
// All methods are nil-safe so components may run without it.
type Metrics struct {
	apiRequests *CounterVec
	apiLatency  *HistogramVec
	apiInflight *Gauge

	mergeOps      *CounterVec
	mergeDuration *HistogramVec

	lockAcquire *CounterVec
	lockWait    *HistogramVec

	fallbackQueueDepth *Gauge
	fallbackOutcomes   *CounterVec
	fallbackDuration   *HistogramVec

	healthEvals *CounterVec
	healthScore *HistogramVec

	writeOps     *CounterVec
	writeLatency *HistogramVec
	writeRetries *CounterVec

	jobRuns     *CounterVec
	jobDuration *HistogramVec

	dbStats   *GaugeVec
	redisUp   *Gauge
	redisPing *Gauge
}

func NewMetrics() *Metrics {
	return &Metrics{
		apiRequests: NewCounterVec("nsorch_api_requests_total", "Total API requests by method/route/status.", []string{"method", "route", "status"}),
		apiLatency: NewHistogramVec(
			"nsorch_api_request_duration_seconds",
			"API request latency in seconds by method/route/status.",
			[]string{"method", "route", "status"},
			[]float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		),
		apiInflight: NewGauge("nsorch_api_inflight_requests", "In-flight API requests."),

		mergeOps: NewCounterVec("nsorch_merge_operations_total", "Merge operations by type and terminal status.", []string{"type", "status"}),
		mergeDuration: NewHistogramVec(
			"nsorch_merge_duration_seconds",
			"Merge execution time in seconds by status.",
			[]string{"status"},
			[]float64{0.1, 0.5, 1, 5, 15, 60, 300, 900},
		),

		lockAcquire: NewCounterVec("nsorch_lock_acquisitions_total", "Lock acquisition attempts by purpose/result.", []string{"purpose", "result"}),
		lockWait:    NewHistogramVec("nsorch_lock_wait_seconds", "Time spent acquiring a lock by purpose.", []string{"purpose"}, nil),

		fallbackQueueDepth: NewGauge("nsorch_fallback_queue_depth", "Items waiting in the fallback queue."),
		fallbackOutcomes:   NewCounterVec("nsorch_fallback_operations_total", "Fallback recoveries by reason and status.", []string{"reason", "status"}),
		fallbackDuration:   NewHistogramVec("nsorch_fallback_duration_seconds", "Fallback restore time in seconds by status.", []string{"status"}, nil),

		healthEvals: NewCounterVec("nsorch_health_evaluations_total", "Health evaluations by result.", []string{"result"}),
		healthScore: NewHistogramVec(
			"nsorch_health_integrity_score",
			"Distribution of computed integrity scores.",
			nil,
			[]float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1},
		),

		writeOps:     NewCounterVec("nsorch_store_writes_total", "Transactional store writes by operation/status.", []string{"op", "status"}),
		writeLatency: NewHistogramVec("nsorch_store_write_duration_seconds", "Transactional store write latency by operation.", []string{"op"}, nil),
		writeRetries: NewCounterVec("nsorch_store_write_retryable_total", "Store writes that failed with a retryable error.", []string{"op"}),

		jobRuns:     NewCounterVec("nsorch_job_runs_total", "Scheduled job runs by job/status.", []string{"job", "status"}),
		jobDuration: NewHistogramVec("nsorch_job_duration_seconds", "Scheduled job duration by job.", []string{"job"}, []float64{1, 5, 15, 60, 300, 900, 3600}),

		dbStats:   NewGaugeVec("nsorch_db_pool", "Database connection pool stats.", []string{"stat"}),
		redisUp:   NewGauge("nsorch_redis_up", "Redis reachability (1 up, 0 down)."),
		redisPing: NewGauge("nsorch_redis_ping_seconds", "Redis ping latency in seconds."),
	}
}

func (m *Metrics) StartServer(ctx context.Context, log *logger.Logger, addr string) {
	if m == nil {
		return
	}
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           m.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = srv.Shutdown(shutdownCtx)
		cancel()
	}()
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			if log != nil {
				log.Error("metrics server failed", "error", err, "addr", addr)
			}
		}
	}()
}

func (m *Metrics) Handler() http.Handler { return http.HandlerFunc(m.WriteHTTP) }

func (m *Metrics) WriteHTTP(w http.ResponseWriter, r *http.Request) {
	if m == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	_ = m.WritePrometheus(w)
}

type promWriter interface {
	WritePrometheus(w io.Writer) error
}

func (m *Metrics) WritePrometheus(w io.Writer) error {
	if m == nil {
		return nil
	}
	for _, c := range []promWriter{
		m.apiRequests, m.apiLatency, m.apiInflight,
		m.mergeOps, m.mergeDuration,
		m.lockAcquire, m.lockWait,
		m.fallbackQueueDepth, m.fallbackOutcomes, m.fallbackDuration,
		m.healthEvals, m.healthScore,
		m.writeOps, m.writeLatency, m.writeRetries,
		m.jobRuns, m.jobDuration,
		m.dbStats, m.redisUp, m.redisPing,
	} {
		if err := c.WritePrometheus(w); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) ObserveAPI(method, route, status string, dur time.Duration) {
	if m == nil {
		return
	}
	if method == "" {
		method = "UNKNOWN"
	}
	if route == "" {
		route = "unmatched"
	}
	if status == "" {
		status = "0"
	}
	m.apiRequests.Inc(method, route, status)
	m.apiLatency.Observe(dur.Seconds(), method, route, status)
}

func (m *Metrics) APIInflightInc() {
	if m == nil {
		return
	}
	m.apiInflight.Add(1)
}

func (m *Metrics) APIInflightDec() {
	if m == nil {
		return
	}
	m.apiInflight.Add(-1)
}

// ObserveMergeOperation records a merge reaching status. dur is zero for operations that never ran.
func (m *Metrics) ObserveMergeOperation(opType, status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.mergeOps.Inc(opType, status)
	if dur > 0 {
		m.mergeDuration.Observe(dur.Seconds(), status)
	}
}

func (m *Metrics) ObserveLockAcquire(purpose, result string, wait time.Duration) {
	if m == nil {
		return
	}
	m.lockAcquire.Inc(purpose, result)
	m.lockWait.Observe(wait.Seconds(), purpose)
}

func (m *Metrics) SetFallbackQueueDepth(n int64) {
	if m == nil {
		return
	}
	m.fallbackQueueDepth.Set(float64(n))
}

func (m *Metrics) ObserveFallback(reason, status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.fallbackOutcomes.Inc(reason, status)
	if dur > 0 {
		m.fallbackDuration.Observe(dur.Seconds(), status)
	}
}

func (m *Metrics) ObserveHealth(healthy bool, score float64) {
	if m == nil {
		return
	}
	result := "unhealthy"
	if healthy {
		result = "healthy"
	}
	m.healthEvals.Inc(result)
	m.healthScore.Observe(score)
}

func (m *Metrics) ObserveWriteOperation(op, status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.writeOps.Inc(op, status)
	m.writeLatency.Observe(dur.Seconds(), op)
}

func (m *Metrics) IncWriteRetry(op string) {
	if m == nil {
		return
	}
	m.writeRetries.Inc(op)
}

func (m *Metrics) ObserveJob(job, status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.jobRuns.Inc(job, status)
	m.jobDuration.Observe(dur.Seconds(), job)
}

// StartDBCollector samples the SQL pool every interval until ctx ends.
func (m *Metrics) StartDBCollector(ctx context.Context, log *logger.Logger, db *gorm.DB, interval time.Duration) {
	if m == nil || db == nil {
		return
	}
	m.startCollector(ctx, interval, func() {
		sqlDB, err := db.DB()
		if err != nil {
			if log != nil {
				log.Warn("metrics: db stats unavailable", "error", err)
			}
			return
		}
		stats := sqlDB.Stats()
		m.dbStats.Set(float64(stats.OpenConnections), "open_connections")
		m.dbStats.Set(float64(stats.InUse), "in_use")
		m.dbStats.Set(float64(stats.Idle), "idle")
		m.dbStats.Set(float64(stats.WaitCount), "wait_count")
		m.dbStats.Set(stats.WaitDuration.Seconds(), "wait_duration_seconds")
		m.dbStats.Set(float64(stats.MaxOpenConnections), "max_open_connections")
	})
}

func (m *Metrics) StartRedisCollector(ctx context.Context, log *logger.Logger, rdb goredis.UniversalClient, interval time.Duration) {
	if m == nil || rdb == nil {
		return
	}
	m.startCollector(ctx, interval, func() {
		start := time.Now()
		if err := rdb.Ping(ctx).Err(); err != nil {
			m.redisUp.Set(0)
			if log != nil {
				log.Warn("metrics: redis ping failed", "error", err)
			}
			return
		}
		m.redisUp.Set(1)
		m.redisPing.Set(time.Since(start).Seconds())
	})
}

// StartQueueDepthCollector polls depth (usually FallbackQueue.Len) into the queue depth gauge.
func (m *Metrics) StartQueueDepthCollector(ctx context.Context, log *logger.Logger, depth func(context.Context) (int64, error), interval time.Duration) {
	if m == nil || depth == nil {
		return
	}
	m.startCollector(ctx, interval, func() {
		n, err := depth(ctx)
		if err != nil {
			if log != nil {
				log.Warn("metrics: fallback queue depth failed", "error", err)
			}
			return
		}
		m.SetFallbackQueueDepth(n)
	})
}

func (m *Metrics) startCollector(ctx context.Context, interval time.Duration, sample func()) {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sample()
			}
		}
	}()
}
