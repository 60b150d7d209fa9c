package temporalx

import (
	"testing"
	"time"
)

func TestConfigCronsSkipsEmpty(t *testing.T) {
	cfg := Config{NightlyMergeCron: "0 3 * * *", HealthCheckCron: "  ", CleanupCron: "30 4 * * *"}
	crons := cfg.Crons()
	if len(crons) != 2 {
		t.Fatalf("crons: want=2 got=%d (%v)", len(crons), crons)
	}
	if crons["nightly-merge"] != "0 3 * * *" {
		t.Fatalf("nightly cron: want=%q got=%q", "0 3 * * *", crons["nightly-merge"])
	}
	if _, ok := crons["health-check"]; ok {
		t.Fatalf("health-check: want unscheduled")
	}
	if got := ScheduleID("cleanup"); got != "nsorch-cleanup" {
		t.Fatalf("schedule id: want=nsorch-cleanup got=%s", got)
	}
}

func TestClampBackoff(t *testing.T) {
	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 250 * time.Millisecond},
		{2, 500 * time.Millisecond},
		{3, time.Second},
		{10, 2 * time.Second},
	}
	for _, tc := range cases {
		if got := ClampBackoff(250*time.Millisecond, 2*time.Second, tc.attempt); got != tc.want {
			t.Fatalf("attempt %d: want=%s got=%s", tc.attempt, tc.want, got)
		}
	}
	if got := ClampBackoff(0, 0, 1); got != 250*time.Millisecond {
		t.Fatalf("zero base: want=250ms got=%s", got)
	}
}

func TestEnabled(t *testing.T) {
	if (Config{}).Enabled() {
		t.Fatalf("empty address: want disabled")
	}
	if !(Config{Address: "localhost:7233"}).Enabled() {
		t.Fatalf("address set: want enabled")
	}
}
