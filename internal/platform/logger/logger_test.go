package logger

import (
	"strings"
	"testing"
)

func TestSanitizeRedactsSecretsAndHashesOwners(t *testing.T) {
	l := &Logger{redact: redaction{enabled: true, salt: "pepper"}}
	out := l.sanitizeKVs([]interface{}{
		"admin_token", "abc",
		"owner_id", "learner-1",
		"namespace_id", "ns-1",
	})
	if len(out) != 6 {
		t.Fatalf("kv length: want=6 got=%d", len(out))
	}
	if out[1] != "[REDACTED]" {
		t.Fatalf("token: want redacted got=%v", out[1])
	}
	hashed, _ := out[3].(string)
	if !strings.HasPrefix(hashed, "hash:") || strings.Contains(hashed, "learner-1") {
		t.Fatalf("owner_id: want salted hash got=%q", hashed)
	}
	if out[5] != "ns-1" {
		t.Fatalf("namespace_id: want passthrough got=%v", out[5])
	}
}

func TestSanitizeDisabledPassesThrough(t *testing.T) {
	l := &Logger{redact: redaction{enabled: false}}
	out := l.sanitizeKVs([]interface{}{"owner_id", "learner-1"})
	if out[1] != "learner-1" {
		t.Fatalf("owner_id: want passthrough got=%v", out[1])
	}
}

func TestHashValueStableForSalt(t *testing.T) {
	a := hashValue("s", "L1")
	b := hashValue("s", "L1")
	c := hashValue("other", "L1")
	if a != b {
		t.Fatalf("hash not stable: %q vs %q", a, b)
	}
	if a == c {
		t.Fatalf("salt ignored: %q", a)
	}
}
