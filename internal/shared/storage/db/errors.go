package db

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// Postgres SQLSTATE codes the repositories branch on.
const (
	codeUniqueViolation  = "23505"
	codeLockNotAvailable = "55P03"
	codeSerialization    = "40001"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx so repositories can run inside a
// caller-owned transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// IsLockNotAvailable reports whether err came from a NOWAIT lock that could not be acquired
// or a serialization failure.
func IsLockNotAvailable(err error) bool {
	code := pgCode(err)
	return code == codeLockNotAvailable || code == codeSerialization
}

// IsUniqueViolation reports whether err is a unique constraint violation.
func IsUniqueViolation(err error) bool {
	return pgCode(err) == codeUniqueViolation
}

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

var (
	_ DBTX = (*sql.DB)(nil)
	_ DBTX = (*sql.Tx)(nil)
)
