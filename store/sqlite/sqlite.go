/*
Package sqlite provides the SQLite-backed data-access layer of the shop.

PURPOSE:
  Holds the whole ledger: every operation that moves money or stock
  (purchases, deposits, payoffs, department purchases and their
  revocations) plus the plain entity inserts, partial updates, audit log
  and read paths.

TRANSACTIONS:
  Each public write runs inside one *sql.Tx through withTx. Constraint
  checks run first, inside the same transaction, so a failing check aborts
  before any row is touched. Any error rolls the transaction back.

CONCURRENCY:
  One pooled connection and a sync.RWMutex: writes are serialized, reads
  share the lock. Multi-process writers are not supported.

CREDIT:
  Consumer credit has no column. It is the sum of deposits minus the sum of
  non-revoked purchases, computed in SQL on every read.

FOREIGN KEYS:
  Declared in the schema and enabled, but every write checks its
  references beforehand (constraints.go). SQLite reports a violated
  foreign key without naming it, while callers need to know which field
  was wrong.

USAGE:
  store, err := sqlite.New("./data/shop.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  purchase, err := store.InsertPurchase(ctx, p, shop.Pricing{UseKarma: true})

SEE ALSO:
  - shop/fields.go: Validated entities passed in and out
  - constraints.go: Uniqueness and reference checks
  - update.go: Partial updates and audit log rows
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/warp/campus-shop/shop"
	"golang.org/x/crypto/bcrypt"
)

const (
	timeLayout = time.RFC3339
	bankID     = int64(1)
)

// Store is the shop database.
type Store struct {
	db           *sql.DB
	mu           sync.RWMutex
	now          func() time.Time
	passwordCost int
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces time.Now for server-assigned timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithPasswordCost sets the bcrypt cost for consumer passwords.
func WithPasswordCost(cost int) Option {
	return func(s *Store) { s.passwordCost = cost }
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A second connection to ":memory:" would be a second, empty database.
	db.SetMaxOpenConns(1)

	store := &Store{
		db:           db,
		now:          time.Now,
		passwordCost: bcrypt.DefaultCost,
	}
	for _, opt := range opts {
		opt(store)
	}

	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS consumers (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE,
		active BOOLEAN NOT NULL DEFAULT 1,
		karma INTEGER NOT NULL DEFAULT 0,
		email TEXT UNIQUE,
		password TEXT,
		studentnumber INTEGER UNIQUE
	);

	CREATE TABLE IF NOT EXISTS departments (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE,
		budget INTEGER NOT NULL DEFAULT 0,
		income_base INTEGER NOT NULL DEFAULT 0,
		income_karma INTEGER NOT NULL DEFAULT 0,
		expenses INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS products (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE,
		price INTEGER NOT NULL,
		barcode TEXT UNIQUE,
		active BOOLEAN NOT NULL DEFAULT 1,
		countable BOOLEAN NOT NULL DEFAULT 1,
		revocable BOOLEAN NOT NULL DEFAULT 1,
		stock INTEGER,
		department_id INTEGER NOT NULL REFERENCES departments(id),
		creation_date TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS purchases (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		consumer_id INTEGER NOT NULL REFERENCES consumers(id),
		product_id INTEGER NOT NULL REFERENCES products(id),
		amount INTEGER NOT NULL,
		comment TEXT NOT NULL,
		timestamp TEXT NOT NULL,
		revoked BOOLEAN NOT NULL DEFAULT 0,
		paid_base_price_per_product INTEGER NOT NULL,
		paid_karma_per_product INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_purchases_consumer ON purchases(consumer_id);
	CREATE INDEX IF NOT EXISTS idx_purchases_product ON purchases(product_id);

	CREATE TABLE IF NOT EXISTS deposits (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		consumer_id INTEGER NOT NULL REFERENCES consumers(id),
		amount INTEGER NOT NULL,
		comment TEXT NOT NULL,
		timestamp TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_deposits_consumer ON deposits(consumer_id);

	CREATE TABLE IF NOT EXISTS departmentpurchases (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp TEXT NOT NULL,
		product_id INTEGER NOT NULL REFERENCES products(id),
		department_id INTEGER NOT NULL REFERENCES departments(id),
		admin_id INTEGER NOT NULL REFERENCES consumers(id),
		amount INTEGER NOT NULL,
		price_per_product INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS payoffs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		department_id INTEGER NOT NULL REFERENCES departments(id),
		departmentpurchase_id INTEGER REFERENCES departmentpurchases(id),
		amount INTEGER NOT NULL,
		comment TEXT NOT NULL,
		revoked BOOLEAN NOT NULL DEFAULT 0,
		timestamp TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS pricecategories (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		price_lower_bound INTEGER NOT NULL UNIQUE,
		additional_percent INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS workactivities (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE
	);

	CREATE TABLE IF NOT EXISTS activities (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		date_time TEXT NOT NULL,
		deadline TEXT NOT NULL,
		created_by INTEGER NOT NULL REFERENCES consumers(id),
		creation_date TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS activityfeedbacks (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp TEXT NOT NULL,
		consumer_id INTEGER NOT NULL REFERENCES consumers(id),
		activity_id INTEGER NOT NULL REFERENCES activities(id),
		feedback BOOLEAN NOT NULL
	);

	CREATE TABLE IF NOT EXISTS participations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp TEXT NOT NULL,
		workactivity_id INTEGER NOT NULL REFERENCES workactivities(id),
		consumer_id INTEGER NOT NULL REFERENCES consumers(id),
		duration INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS adminroles (
		consumer_id INTEGER NOT NULL REFERENCES consumers(id),
		department_id INTEGER NOT NULL REFERENCES departments(id),
		timestamp TEXT NOT NULL,
		PRIMARY KEY (consumer_id, department_id)
	);

	CREATE TABLE IF NOT EXISTS banks (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		credit INTEGER NOT NULL DEFAULT 0
	);

	INSERT OR IGNORE INTO banks (id, name, credit) VALUES (1, 'Bank', 0);

	-- Audit log, append-only
	CREATE TABLE IF NOT EXISTS logs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		table_name TEXT NOT NULL,
		updated_id INTEGER NOT NULL,
		data_inserted TEXT NOT NULL,
		timestamp TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS stockhistory (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		product_id INTEGER NOT NULL REFERENCES products(id),
		new_stock INTEGER NOT NULL,
		timestamp TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_stockhistory_product ON stockhistory(product_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// withTx executes fn within a database transaction.
func (s *Store) withTx(ctx context.Context, fn func(q querier) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(sqlTx); err != nil {
		return err
	}

	return sqlTx.Commit()
}

// mutate runs fn in a transaction and returns its result.
func mutate[T any](ctx context.Context, s *Store, fn func(q querier) (T, error)) (T, error) {
	var out T
	err := s.withTx(ctx, func(q querier) error {
		var err error
		out, err = fn(q)
		return err
	})
	return out, err
}

// read runs fn outside a transaction under the read lock.
func read[T any](s *Store, fn func(q querier) (T, error)) (T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(s.db)
}

// =============================================================================
// UTILITIES
// =============================================================================

type scanner interface {
	Scan(dest ...any) error
}

func (s *Store) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Second)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(v string) (time.Time, error) {
	t, err := time.Parse(timeLayout, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse time %q: %w", v, err)
	}
	return t, nil
}

// dbValue converts an entity value to its column representation.
func dbValue(v any) any {
	if t, ok := v.(time.Time); ok {
		return formatTime(t)
	}
	return v
}

func nullString(v sql.NullString) any {
	if !v.Valid {
		return nil
	}
	return v.String
}

func nullInt(v sql.NullInt64) any {
	if !v.Valid {
		return nil
	}
	return v.Int64
}

// orderBy returns the ordering clause of a listing. Without a limit rows
// come in insertion order; with a limit the most recent rows come first.
func orderBy(column string, limit int) (string, []any) {
	if limit > 0 {
		return fmt.Sprintf(" ORDER BY %s DESC LIMIT ?", column), []any{limit}
	}
	return fmt.Sprintf(" ORDER BY %s ASC", column), nil
}

// queryAll runs query and maps every row with scan. Rows are closed before
// returning so the single connection is free for the next statement.
func queryAll[T any](ctx context.Context, q querier, query string, args []any, scan func(scanner) (T, error)) ([]T, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}
	defer rows.Close()

	out := make([]T, 0)
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

// setDefaults assigns name/value pairs to the fields of r that are unset.
func setDefaults(r shop.Record, pairs ...any) error {
	for i := 0; i+1 < len(pairs); i += 2 {
		name, _ := pairs[i].(string)
		if r.IsSet(name) {
			continue
		}
		if err := r.Set(name, pairs[i+1]); err != nil {
			return err
		}
	}
	return nil
}

// insertRow inserts the set fields of r that are stored columns of its table.
func insertRow(ctx context.Context, q querier, r shop.Record, columns []string) (int64, error) {
	var (
		names        []string
		placeholders []string
		args         []any
	)
	for _, c := range columns {
		if !r.IsSet(c) {
			continue
		}
		names = append(names, c)
		placeholders = append(placeholders, "?")
		args = append(args, dbValue(r.Value(c)))
	}

	table := r.Schema().Table()
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		table, strings.Join(names, ", "), strings.Join(placeholders, ", "))
	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to insert into %s: %w", table, err)
	}
	return res.LastInsertId()
}
