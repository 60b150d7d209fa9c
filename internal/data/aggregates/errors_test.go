package aggregates

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	domain "github.com/yungbote/namespace-orchestrator/internal/domain/namespaces"
	"gorm.io/gorm"
)

func TestMapError_NotFound(t *testing.T) {
	err := MapError("op", gorm.ErrRecordNotFound)
	if !domain.IsCode(err, domain.CodeNotFound) {
		t.Fatalf("expected not_found code, got %q (%v)", domain.CodeOf(err), err)
	}
}

func TestMapError_PgUniqueViolation(t *testing.T) {
	err := MapError("op", fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"}))
	if !domain.IsCode(err, domain.CodeDuplicate) {
		t.Fatalf("expected duplicate code, got %q (%v)", domain.CodeOf(err), err)
	}
}

func TestMapError_SQLiteUniqueViolation(t *testing.T) {
	err := MapError("op", errors.New("UNIQUE constraint failed: namespace.owner_id"))
	if !domain.IsCode(err, domain.CodeDuplicate) {
		t.Fatalf("expected duplicate code, got %q (%v)", domain.CodeOf(err), err)
	}
}

func TestMapError_Retryable(t *testing.T) {
	for _, in := range []error{
		context.DeadlineExceeded,
		&pgconn.PgError{Code: "40P01"},
		errors.New("database is locked"),
	} {
		if err := MapError("op", in); !domain.IsCode(err, domain.CodeRetryable) {
			t.Fatalf("expected retryable for %v, got %q", in, domain.CodeOf(err))
		}
	}
}

func TestMapError_PassthroughDomainError(t *testing.T) {
	in := domain.NewError(domain.CodeTooRecent, "op", "slow down", nil)
	out := MapError("other", in)
	if out != in {
		t.Fatalf("expected passthrough domain error")
	}
}

func TestMapError_UnknownIsInternal(t *testing.T) {
	if err := MapError("op", errors.New("disk on fire")); !domain.IsCode(err, domain.CodeInternal) {
		t.Fatalf("expected internal, got %q", domain.CodeOf(err))
	}
}
