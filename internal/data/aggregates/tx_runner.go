package aggregates

import (
	"context"

	"gorm.io/gorm"

	domain "github.com/yungbote/namespace-orchestrator/internal/domain/namespaces"
	"github.com/yungbote/namespace-orchestrator/internal/platform/dbctx"
)

// TxRunner commits a namespace mutation together with its event log entry.
type TxRunner interface {
	InTx(ctx context.Context, fn func(dbc dbctx.Context) error) error
}

// namespaceTx runs fn in one GORM transaction. Row locks taken inside fn
// (NamespaceRepo.LockByID) are held until commit, so concurrent writers on the
// same namespace queue behind each other in the store as well as in the lock manager.
type namespaceTx struct {
	db *gorm.DB
}

func NewNamespaceTxRunner(db *gorm.DB) TxRunner {
	return &namespaceTx{db: db}
}

func (r *namespaceTx) InTx(ctx context.Context, fn func(dbc dbctx.Context) error) error {
	if fn == nil {
		return nil
	}
	if r == nil || r.db == nil {
		return domain.NewError(domain.CodeInternal, "namespace.tx", "no database configured", nil)
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(dbctx.Context{Ctx: ctx, Tx: tx})
	})
}
