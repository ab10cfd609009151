package repository

import "context"

// UnitOfWork scopes a multi-step persistence operation to a single
// transaction. One instance serves exactly one logical request;
// sharing an instance across concurrent operations is a caller error.
type UnitOfWork interface {
	// Begin opens the transaction. At most one may be in flight.
	Begin(ctx context.Context) error
	// Commit commits the open transaction. A failed commit rolls the
	// transaction back before the error is returned.
	Commit(ctx context.Context) error
	// Rollback aborts the open transaction. Calling it after a commit
	// or a prior rollback is a no-op, so failure handlers may call it
	// unconditionally.
	Rollback(ctx context.Context) error
	// Accounts returns a repository bound to the open transaction, or
	// to the pool when no transaction is in flight.
	Accounts() AccountRepository
}
