package db

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

type nopDriver struct{}

func (d nopDriver) Open(name string) (driver.Conn, error) {
	return nopConn{}, nil
}

type nopConn struct{}

func (nopConn) Prepare(query string) (driver.Stmt, error) { return nopStmt{}, nil }
func (nopConn) Close() error                              { return nil }
func (nopConn) Begin() (driver.Tx, error)                 { return nopTx{}, nil }
func (nopConn) Ping(ctx context.Context) error            { return nil }

type nopStmt struct{}

func (nopStmt) Close() error                                   { return nil }
func (nopStmt) NumInput() int                                  { return -1 }
func (nopStmt) Exec(args []driver.Value) (driver.Result, error) { return nopResult{}, nil }
func (nopStmt) Query(args []driver.Value) (driver.Rows, error)  { return nopRows{}, nil }

type nopTx struct{}

func (nopTx) Commit() error   { return nil }
func (nopTx) Rollback() error { return nil }

type nopResult struct{}

func (nopResult) LastInsertId() (int64, error) { return 0, nil }
func (nopResult) RowsAffected() (int64, error) { return 0, nil }

type nopRows struct{}

func (nopRows) Columns() []string              { return []string{} }
func (nopRows) Close() error                   { return nil }
func (nopRows) Next(dest []driver.Value) error { return driver.ErrBadConn }

var registerTestDriverOnce sync.Once

func ensureTestDriverRegistered() {
	registerTestDriverOnce.Do(func() {
		sql.Register("dbtest", nopDriver{})
	})
}

func withTestDriver(t *testing.T) func() {
	t.Helper()
	ensureTestDriverRegistered()
	prev := openDB
	openDB = func(dsn string, _ Options) (*sql.DB, error) {
		return sql.Open("dbtest", dsn)
	}
	return func() {
		openDB = prev
	}
}

func TestOptionsFromEnvAppliesOverrides(t *testing.T) {
	restore := withTestDriver(t)
	defer restore()

	t.Setenv("DB_MAX_OPEN_CONNS", "7")
	t.Setenv("DB_MAX_IDLE_CONNS", "3")
	t.Setenv("DB_CONN_MAX_LIFETIME", "20m")
	t.Setenv("DB_CONN_MAX_IDLE_TIME", "45s")
	t.Setenv("DB_PING_TIMEOUT", "1s")
	t.Setenv("DB_CONNECT_ATTEMPTS", "2")
	t.Setenv("DB_STATEMENT_TIMEOUT", "10s")

	opts := OptionsFromEnv(DefaultServerOptions())
	db, err := Connect(context.Background(), "ignored", opts)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer db.Close()

	stats := db.Stats()
	if stats.MaxOpenConnections != 7 {
		t.Fatalf("expected MaxOpenConnections=7, got %d", stats.MaxOpenConnections)
	}
	if opts.MaxIdleConns != 3 {
		t.Fatalf("expected MaxIdleConns=3, got %d", opts.MaxIdleConns)
	}
	if opts.ConnMaxLifetime != 20*time.Minute {
		t.Fatalf("expected ConnMaxLifetime=20m, got %s", opts.ConnMaxLifetime)
	}
	if opts.ConnMaxIdleTime != 45*time.Second {
		t.Fatalf("expected ConnMaxIdleTime=45s, got %s", opts.ConnMaxIdleTime)
	}
	if opts.PingTimeout != time.Second {
		t.Fatalf("expected PingTimeout=1s, got %s", opts.PingTimeout)
	}
	if opts.ConnectAttempts != 2 || opts.StatementTimeout != 10*time.Second {
		t.Fatalf("expected attempts=2 statement_timeout=10s, got %d %s", opts.ConnectAttempts, opts.StatementTimeout)
	}
}

type failingPingDriver struct{ pings *int }

func (d failingPingDriver) Open(name string) (driver.Conn, error) {
	*d.pings++
	return nil, errors.New("connection refused")
}

func TestConnectRetriesThenFails(t *testing.T) {
	pings := 0
	name := fmt.Sprintf("dbtest-fail-%p", &pings)
	sql.Register(name, failingPingDriver{pings: &pings})
	prev := openDB
	openDB = func(dsn string, _ Options) (*sql.DB, error) { return sql.Open(name, dsn) }
	t.Cleanup(func() { openDB = prev })

	opts := DefaultServerOptions()
	opts.ConnectAttempts = 3
	opts.RetryDelay = time.Millisecond
	if _, err := Connect(context.Background(), "ignored", opts); err == nil {
		t.Fatalf("expected ping failure")
	}
	if pings < 3 {
		t.Fatalf("expected at least 3 connection attempts, got %d", pings)
	}
}

func TestConnectRejectsEmptyURL(t *testing.T) {
	if _, err := Connect(context.Background(), "  ", DefaultServerOptions()); err == nil {
		t.Fatalf("expected error for empty DATABASE_URL")
	}
}

func TestPgErrorClassification(t *testing.T) {
	lockErr := fmt.Errorf("lock job: %w", &pgconn.PgError{Code: "55P03"})
	if !IsLockNotAvailable(lockErr) {
		t.Fatalf("expected 55P03 to be lock-not-available")
	}
	if IsUniqueViolation(lockErr) {
		t.Fatalf("55P03 is not a unique violation")
	}
	if !IsUniqueViolation(&pgconn.PgError{Code: "23505"}) {
		t.Fatalf("expected 23505 to be a unique violation")
	}
	if IsLockNotAvailable(driver.ErrBadConn) {
		t.Fatalf("non-pg errors must not classify")
	}
}
