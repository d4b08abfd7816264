package dbctx

import (
	"context"

	"gorm.io/gorm"
)

// Context bundles a request context with an optional GORM transaction.
// Repos fall back to their own *gorm.DB when Tx is nil.
type Context struct {
	Ctx context.Context
	Tx  *gorm.DB
}

// WithTx returns a copy of c that carries tx.
func (c Context) WithTx(tx *gorm.DB) Context {
	return Context{Ctx: c.Ctx, Tx: tx}
}
