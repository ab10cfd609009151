package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/spec-kit/account-service/internal/domain"
)

// ErrDuplicateEmail is returned when an insert collides with the
// unique email constraint.
var ErrDuplicateEmail = errors.New("email already registered")

// DBTX abstracts over a pgx pool or an open transaction so the same
// queries participate in whichever the caller supplies.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// AccountRepository defines persistence access for accounts.
type AccountRepository interface {
	Create(ctx context.Context, account *domain.Account) error
	Update(ctx context.Context, account *domain.Account) error
	FindByID(ctx context.Context, id int64) (*domain.Account, error)
	FindByEmail(ctx context.Context, email string) (*domain.Account, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	FindByRefreshToken(ctx context.Context, token string) (*domain.Account, error)
}

type accountRepository struct {
	db DBTX
}

// NewAccountRepository returns a Postgres-backed implementation bound
// to the given pool or transaction.
func NewAccountRepository(db DBTX) AccountRepository {
	return &accountRepository{db: db}
}

const accountColumns = `
        id, email, password_hash, first_name, last_name, role,
        refresh_token, refresh_token_expires_at,
        is_active, is_deleted, last_login_at, created_at, updated_at`

func (r *accountRepository) Create(ctx context.Context, account *domain.Account) error {
	const query = `
        INSERT INTO accounts (email, password_hash, first_name, last_name, role, is_active, is_deleted)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING id, created_at, updated_at`

	err := r.db.QueryRow(ctx, query,
		account.Email,
		account.PasswordHash,
		account.FirstName,
		account.LastName,
		account.Role,
		account.IsActive,
		account.IsDeleted,
	).Scan(&account.ID, &account.CreatedAt, &account.UpdatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicateEmail
	}
	return err
}

func (r *accountRepository) Update(ctx context.Context, account *domain.Account) error {
	const query = `
        UPDATE accounts SET
            email=$1, password_hash=$2, first_name=$3, last_name=$4, role=$5,
            refresh_token=$6, refresh_token_expires_at=$7,
            is_active=$8, is_deleted=$9, last_login_at=$10, updated_at=NOW()
        WHERE id=$11
        RETURNING updated_at`

	err := r.db.QueryRow(ctx, query,
		account.Email,
		account.PasswordHash,
		account.FirstName,
		account.LastName,
		account.Role,
		account.RefreshToken,
		account.RefreshTokenExpiresAt,
		account.IsActive,
		account.IsDeleted,
		account.LastLoginAt,
		account.ID,
	).Scan(&account.UpdatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicateEmail
	}
	return err
}

func (r *accountRepository) FindByID(ctx context.Context, id int64) (*domain.Account, error) {
	const query = `SELECT` + accountColumns + `
        FROM accounts WHERE id=$1 AND is_deleted=false`

	return r.scanAccount(r.db.QueryRow(ctx, query, id))
}

// FindByEmail surfaces soft-deleted rows so login can report the
// disabled state instead of pretending the account never existed.
// When a deleted row coexists with a re-registered live one, the live
// row wins.
func (r *accountRepository) FindByEmail(ctx context.Context, email string) (*domain.Account, error) {
	const query = `SELECT` + accountColumns + `
        FROM accounts WHERE lower(email)=lower($1)
        ORDER BY is_deleted, id DESC
        LIMIT 1`

	return r.scanAccount(r.db.QueryRow(ctx, query, email))
}

func (r *accountRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	const query = `
        SELECT EXISTS (
            SELECT 1 FROM accounts WHERE lower(email)=lower($1) AND is_deleted=false
        )`

	var exists bool
	if err := r.db.QueryRow(ctx, query, email).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// FindByRefreshToken matches only tokens whose expiry is set and
// strictly in the future; an expired token yields no row.
func (r *accountRepository) FindByRefreshToken(ctx context.Context, token string) (*domain.Account, error) {
	const query = `SELECT` + accountColumns + `
        FROM accounts
        WHERE refresh_token=$1
          AND refresh_token_expires_at IS NOT NULL
          AND refresh_token_expires_at > NOW()`

	return r.scanAccount(r.db.QueryRow(ctx, query, token))
}

func (r *accountRepository) scanAccount(row pgx.Row) (*domain.Account, error) {
	var account domain.Account
	if err := row.Scan(
		&account.ID,
		&account.Email,
		&account.PasswordHash,
		&account.FirstName,
		&account.LastName,
		&account.Role,
		&account.RefreshToken,
		&account.RefreshTokenExpiresAt,
		&account.IsActive,
		&account.IsDeleted,
		&account.LastLoginAt,
		&account.CreatedAt,
		&account.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &account, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
