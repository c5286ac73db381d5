package dbctx

import (
	"context"

	"gorm.io/gorm"
)

// Context pairs a request-scoped context.Context with the *gorm.DB handle
// that should be used for this call — either the root DB or an open
// transaction. Repos take this instead of a bare *gorm.DB so callers can
// compose multi-statement transactions without every repo method growing
// a transaction parameter.
type Context struct {
	Ctx context.Context
	Tx  *gorm.DB
}

func New(ctx context.Context, tx *gorm.DB) Context {
	return Context{Ctx: ctx, Tx: tx}
}

func (c Context) WithContext() *gorm.DB {
	return c.Tx.WithContext(c.Ctx)
}
