/*
Package sqlstore provides a database/sql implementation of workforce.Store
for SQLite (mattn/go-sqlite3) and PostgreSQL (jackc/pgx/v5).

PURPOSE:
  One schema and one set of queries serve both databases. Queries are written
  with ? placeholders and rebound to $n for PostgreSQL.

COLUMN ENCODING:
  Instants:   TEXT, UTC, fixed-width nanosecond layout (sorts lexically)
  Dates:      TEXT, YYYY-MM-DD
  Decimals:   TEXT via decimal.Decimal's Valuer/Scanner
  Time of day: INTEGER minutes since midnight

CONCURRENCY:
  PostgreSQL: LockEmployee runs SELECT ... FOR UPDATE on the employee row.
  SQLite:     transactions begin IMMEDIATE (_txlock=immediate) on a single
              connection, so write transactions are already serialized and
              LockEmployee only checks that the employee exists.

UNIQUENESS:
  Partial unique indexes back the "one pending" rules:
  - idx_attempts_pending:     one pending early attempt per (user, scheduled_start)
  - idx_entries_active:       one active time entry per user
  - idx_corrections_pending:  one pending correction per time entry
  Violations are mapped to the matching generic sentinel.

USAGE:
  store, err := sqlstore.Open(ctx, sqlstore.SQLite, "./data/timeclock.db")
  if err != nil {
      return err
  }
  defer store.Close()

SEE ALSO:
  - workforce/store.go: interface definitions
  - store/memory: in-memory implementation for tests
*/
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/mattn/go-sqlite3"

	"github.com/warp/timeclock-engine/generic"
	"github.com/warp/timeclock-engine/workforce"
)

// Dialect selects the database driver.
type Dialect string

const (
	SQLite   Dialect = "sqlite"
	Postgres Dialect = "postgres"
)

func ParseDialect(s string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "sqlite", "sqlite3":
		return SQLite, nil
	case "postgres", "postgresql", "pgx":
		return Postgres, nil
	}
	return "", fmt.Errorf("unknown store driver %q", s)
}

// Store implements workforce.Store on a *sql.DB.
type Store struct {
	*conn
	db *sql.DB
}

var (
	_ workforce.Store = (*Store)(nil)
	_ workforce.Tx    = (*txStore)(nil)
)

// Open connects and migrates the schema. For SQLite, dsn is a file path or
// ":memory:".
func Open(ctx context.Context, dialect Dialect, dsn string) (*Store, error) {
	var (
		db  *sql.DB
		err error
	)
	switch dialect {
	case SQLite:
		db, err = sql.Open("sqlite3", sqliteDSN(dsn))
		if err == nil {
			// A single connection keeps ":memory:" databases shared and
			// serializes writers.
			db.SetMaxOpenConns(1)
		}
	case Postgres:
		db, err = sql.Open("pgx", dsn)
	default:
		return nil, fmt.Errorf("unknown dialect %q", dialect)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	s := &Store{conn: &conn{q: db, dialect: dialect}, db: db}
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

func sqliteDSN(path string) string {
	params := "_foreign_keys=on&_txlock=immediate&_busy_timeout=5000"
	if path != ":memory:" {
		params += "&_journal_mode=WAL"
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + params
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// WithTx executes fn within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(workforce.Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{conn: &conn{q: sqlTx, dialect: s.dialect}}); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

type txStore struct {
	*conn
}

func (t *txStore) LockEmployee(ctx context.Context, userID string) error {
	query := `SELECT id FROM employees WHERE id = ?`
	if t.dialect == Postgres {
		query += ` FOR UPDATE`
	}
	var id string
	err := t.q.QueryRowContext(ctx, t.rebind(query), userID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return generic.NewNotFound("employee", userID)
	}
	if err != nil {
		return fmt.Errorf("failed to lock employee: %w", err)
	}
	return nil
}

// =============================================================================
// CONN - shared query plumbing for Store and txStore
// =============================================================================

type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type conn struct {
	q       queryer
	dialect Dialect
}

// rebind turns ? placeholders into $1, $2, ... for PostgreSQL.
func (c *conn) rebind(query string) string {
	if c.dialect != Postgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (c *conn) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return c.q.ExecContext(ctx, c.rebind(query), args...)
}

func (c *conn) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return c.q.QueryRowContext(ctx, c.rebind(query), args...)
}

// queryAll runs query and scans every row with scan.
func queryAll[T any](ctx context.Context, c *conn, scan func(rowScanner) (T, error), query string, args ...any) ([]T, error) {
	rows, err := c.q.QueryContext(ctx, c.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// queryOne scans a single row, mapping no rows to a NotFoundError.
func queryOne[T any](ctx context.Context, c *conn, kind, id string, scan func(rowScanner) (T, error), query string, args ...any) (T, error) {
	v, err := scan(c.queryRow(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		var zero T
		return zero, generic.NewNotFound(kind, id)
	}
	if err != nil {
		var zero T
		return zero, fmt.Errorf("failed to load %s: %w", kind, err)
	}
	return v, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

// requireRow turns an UPDATE that touched nothing into a NotFoundError.
func requireRow(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return generic.NewNotFound(kind, id)
	}
	return nil
}

// =============================================================================
// ENCODING HELPERS
// =============================================================================

const tsLayout = "2006-01-02T15:04:05.000000000Z07:00"

func ts(t time.Time) string { return t.UTC().Format(tsLayout) }

func nullTS(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: ts(*t), Valid: true}
}

func date(t time.Time) string { return t.Format(generic.DateLayout) }

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func parseTS(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return t, nil
}

func parseNullTS(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid {
		return nil, nil
	}
	t, err := parseTS(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func parseDate(s string) (time.Time, error) {
	t, err := generic.ParseDate(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return t, nil
}

// =============================================================================
// ERROR MAPPING
// =============================================================================

// isUniqueViolation reports a unique constraint failure from either driver.
func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

// mapUnique returns sentinel for unique violations, otherwise wraps err.
func mapUnique(err error, sentinel error, op string) error {
	if err == nil {
		return nil
	}
	if isUniqueViolation(err) {
		return sentinel
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}
