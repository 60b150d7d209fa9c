package aggregates

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	domain "github.com/yungbote/namespace-orchestrator/internal/domain/namespaces"
	"gorm.io/gorm"
)

// MapError maps infrastructure failures into the orchestrator error taxonomy.
// Errors that already carry a code pass through unchanged.
func MapError(op string, err error) error {
	if err == nil {
		return nil
	}
	if domain.CodeOf(err) != "" {
		return err
	}
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return domain.Wrap(domain.CodeNotFound, op, err)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return domain.Wrap(domain.CodeDuplicate, op, err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return domain.Wrap(domain.CodeRetryable, op, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch strings.TrimSpace(pgErr.Code) {
		case "23505":
			return domain.Wrap(domain.CodeDuplicate, op, err) // unique_violation
		case "40001", "40P01", "55P03":
			return domain.Wrap(domain.CodeRetryable, op, err) // serialization/deadlock/lock_not_available
		}
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "unique constraint failed"), strings.Contains(msg, "duplicate key value"):
		return domain.Wrap(domain.CodeDuplicate, op, err)
	case strings.Contains(msg, "database is locked"), strings.Contains(msg, "deadlock detected"):
		return domain.Wrap(domain.CodeRetryable, op, err)
	}
	return domain.Wrap(domain.CodeInternal, op, err)
}
