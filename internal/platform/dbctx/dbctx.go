package dbctx

import (
	"context"

	"gorm.io/gorm"
)

// Context bundles a request context with an optional GORM transaction.
type Context struct {
	Ctx context.Context
	Tx  *gorm.DB
}

// DB returns the transaction when present, otherwise the fallback handle, bound to Ctx.
func (c Context) DB(fallback *gorm.DB) *gorm.DB {
	transaction := c.Tx
	if transaction == nil {
		transaction = fallback
	}
	ctx := c.Ctx
	if ctx == nil {
		ctx = context.Background()
	}
	return transaction.WithContext(ctx)
}
