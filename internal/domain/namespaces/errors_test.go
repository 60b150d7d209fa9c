package namespaces

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorsMatchSentinelByCode(t *testing.T) {
	err := NewError(CodeDuplicate, "Namespaces.Create", "owner L1 already has a namespace", nil)
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("errors.Is: want match on duplicate code")
	}
	if errors.Is(err, ErrNotFound) {
		t.Fatalf("errors.Is: unexpected match on not_found")
	}
	wrapped := fmt.Errorf("handler: %w", err)
	if !errors.Is(wrapped, ErrDuplicate) {
		t.Fatalf("errors.Is through fmt wrap: want match")
	}
	if got := CodeOf(wrapped); got != CodeDuplicate {
		t.Fatalf("CodeOf: want=%q got=%q", CodeDuplicate, got)
	}
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("boom")
	err := Wrap(CodeMergeFailed, "Merge.Execute", cause)
	if !errors.Is(err, cause) {
		t.Fatalf("errors.Is cause: want match")
	}
	if !IsCode(err, CodeMergeFailed) {
		t.Fatalf("IsCode: want merge_failed")
	}
	if Wrap(CodeInternal, "x", nil) != nil {
		t.Fatalf("Wrap(nil): want nil")
	}
}

func TestIsRetryable(t *testing.T) {
	if !IsRetryable(NewError(CodeLockContended, "op", "", nil)) {
		t.Fatalf("lock_contended should be retryable")
	}
	if IsRetryable(ErrMergeFailed) {
		t.Fatalf("merge_failed should not be retryable")
	}
	if IsRetryable(errors.New("plain")) {
		t.Fatalf("foreign errors should not be retryable")
	}
}

func TestErrorString(t *testing.T) {
	err := NewError(CodeTooRecent, "Merge.Trigger", "last merge 5m ago", nil)
	if got := err.Error(); got != "Merge.Trigger: last merge 5m ago (too_recent)" {
		t.Fatalf("Error(): got=%q", got)
	}
}
