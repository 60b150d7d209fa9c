package aggregates

import (
	"context"
	"strings"
	"time"

	domain "github.com/yungbote/namespace-orchestrator/internal/domain/namespaces"
	"github.com/yungbote/namespace-orchestrator/internal/platform/dbctx"
	"gorm.io/gorm"
)

// Base runs write operations in a transaction, maps failures into the error taxonomy
// and reports the outcome to Hooks.
type Base struct {
	Runner TxRunner
	Hooks  Hooks
}

func NewBase(db *gorm.DB, hooks Hooks) Base {
	return Base{Runner: NewNamespaceTxRunner(db), Hooks: hooks}.withDefaults()
}

func (b Base) withDefaults() Base {
	if b.Hooks == nil {
		b.Hooks = noopHooks{}
	}
	return b
}

func (b Base) Write(ctx context.Context, op string, fn func(dbc dbctx.Context) error) error {
	start := time.Now()
	b = b.withDefaults()
	op = strings.TrimSpace(op)
	if op == "" {
		op = "aggregate.write"
	}
	if b.Runner == nil {
		return domain.NewError(domain.CodeInternal, op, "transaction runner not configured", nil)
	}
	mapped := MapError(op, b.Runner.InTx(ctx, fn))

	status := "success"
	if mapped != nil {
		status = string(domain.CodeOf(mapped))
		if domain.IsCode(mapped, domain.CodeRetryable) {
			b.Hooks.IncRetry(op)
		}
	}
	b.Hooks.ObserveOperation(op, status, time.Since(start))
	return mapped
}
