package observability

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestMetricsExposition(t *testing.T) {
	m := NewMetrics()
	m.ObserveAPI("GET", "/api/v1/namespaces/:owner_id", "200", 20*time.Millisecond)
	m.ObserveMergeOperation("manual", "completed", 2*time.Second)
	m.ObserveLockAcquire("merge", "contended", time.Second)
	m.SetFallbackQueueDepth(3)
	m.ObserveHealth(true, 1)

	var buf bytes.Buffer
	if err := m.WritePrometheus(&buf); err != nil {
		t.Fatalf("WritePrometheus: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		`nsorch_api_requests_total{method="GET",route="/api/v1/namespaces/:owner_id",status="200"} 1`,
		`nsorch_merge_operations_total{type="manual",status="completed"} 1`,
		`nsorch_lock_acquisitions_total{purpose="merge",result="contended"} 1`,
		`nsorch_fallback_queue_depth 3`,
		`nsorch_health_evaluations_total{result="healthy"} 1`,
		`nsorch_merge_duration_seconds_bucket{status="completed",le="5"} 1`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("exposition missing %q\n%s", want, out)
		}
	}
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.ObserveAPI("GET", "/", "200", time.Millisecond)
	m.ObserveWriteOperation("namespace.create", "ok", time.Millisecond)
	m.IncWriteRetry("namespace.create")
	m.ObserveFallback("MANUAL_REQUEST", "completed", time.Second)
	if err := m.WritePrometheus(&bytes.Buffer{}); err != nil {
		t.Fatalf("nil WritePrometheus: %v", err)
	}
}

func TestHistogramBucketsAreCumulative(t *testing.T) {
	h := NewHistogramVec("x", "x", nil, []float64{1, 2})
	h.Observe(0.5)
	h.Observe(1.5)
	h.Observe(3)
	var buf bytes.Buffer
	_ = h.WritePrometheus(&buf)
	out := buf.String()
	for _, want := range []string{`x_bucket{le="1"} 1`, `x_bucket{le="2"} 2`, `x_bucket{le="+Inf"} 3`, `x_count 3`} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in\n%s", want, out)
		}
	}
}

func TestParseHeaders(t *testing.T) {
	got := ParseHeaders(" a=1, b = 2 ,bad,=x")
	if len(got) != 2 || got["a"] != "1" || got["b"] != "2" {
		t.Fatalf("headers: got=%v", got)
	}
}
