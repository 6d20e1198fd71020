// Package tx lets domain services run work atomically without knowing the driver.
package tx

import (
	"context"
)

// Manager runs fn inside a transaction carried by ctx.
// fn returning an error rolls back; a transaction already in ctx is reused.
type Manager interface {
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// ReadOnlyManager can also open read-only transactions, used by list queries
// that issue a count and a page select.
type ReadOnlyManager interface {
	Manager
	ReadOnly(ctx context.Context, fn func(ctx context.Context) error) error
}
