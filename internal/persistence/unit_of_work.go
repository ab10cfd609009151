package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/account-service/internal/repository"
)

// pgxUnitOfWork implements repository.UnitOfWork over a pgx pool with
// at most one in-flight transaction.
type pgxUnitOfWork struct {
	pool *pgxpool.Pool
	tx   pgx.Tx
}

// NewUnitOfWork returns a fresh coordinator. Callers construct one per
// request; instances are not safe for concurrent use.
func NewUnitOfWork(pool *pgxpool.Pool) repository.UnitOfWork {
	return &pgxUnitOfWork{pool: pool}
}

func (u *pgxUnitOfWork) Begin(ctx context.Context) error {
	if u.tx != nil {
		return errors.New("transaction already in progress")
	}
	tx, err := u.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	u.tx = tx
	return nil
}

func (u *pgxUnitOfWork) Commit(ctx context.Context) error {
	if u.tx == nil {
		return errors.New("no transaction in progress")
	}
	tx := u.tx
	u.tx = nil
	if err := tx.Commit(ctx); err != nil {
		_ = tx.Rollback(ctx)
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (u *pgxUnitOfWork) Rollback(ctx context.Context) error {
	if u.tx == nil {
		return nil
	}
	tx := u.tx
	u.tx = nil
	if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("rollback transaction: %w", err)
	}
	return nil
}

func (u *pgxUnitOfWork) Accounts() repository.AccountRepository {
	if u.tx != nil {
		return repository.NewAccountRepository(u.tx)
	}
	return repository.NewAccountRepository(u.pool)
}
