// Package sqlstore persists players, questions, sessions and submissions in
// Postgres (through pgx) or SQLite (through modernc).
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // driver: pgx
	_ "modernc.org/sqlite"             // driver: sqlite

	"github.com/foursigma/foursigma/pkg/logger"
	"github.com/foursigma/foursigma/pkg/metrics"
)

// Supported drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

const (
	defaultMaxOpenConns = 10
	connMaxLifetime     = 45 * time.Minute
	connMaxIdleTime     = 15 * time.Minute
)

// Store is the relational store behind the game service.
type Store struct {
	db     *sql.DB
	driver string
	dsn    string
	now    func() time.Time
	logger logger.Logger
}

// Option configures Open.
type Option func(*options)

type options struct {
	maxOpenConns int
	now          func() time.Time
}

// WithMaxOpenConns sets the pool size. SQLite always uses one connection.
func WithMaxOpenConns(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxOpenConns = n
		}
	}
}

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// Open connects, verifies connectivity and applies pending migrations.
func Open(ctx context.Context, driver, dsn string, opts ...Option) (*Store, error) {
	o := options{maxOpenConns: defaultMaxOpenConns, now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	var driverName string
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case DriverPostgres, "pgx":
		driver, driverName = DriverPostgres, "pgx"
	case DriverSQLite, "sqlite3":
		driver, driverName = DriverSQLite, "sqlite"
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, driver)
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	tunePool(db, driver, o.maxOpenConns)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}

	s := &Store{db: db, driver: driver, dsn: dsn, now: o.now, logger: logger.Named("sqlstore")}
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// tunePool sizes the pool for the driver. SQLite gets a single connection
// that never expires, which also keeps an in-memory database alive.
func tunePool(db *sql.DB, driver string, maxOpen int) {
	if driver == DriverSQLite {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
		db.SetConnMaxIdleTime(0)
		return
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxOpen / 2)
	db.SetConnMaxLifetime(connMaxLifetime)
	db.SetConnMaxIdleTime(connMaxIdleTime)
}

// Driver returns the canonical driver name.
func (s *Store) Driver() string { return s.driver }

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// Close closes the pool.
func (s *Store) Close() error { return s.db.Close() }

// withTx runs fn in a transaction, committing when it returns nil.
func (s *Store) withTx(ctx context.Context, fn func(*sql.Tx) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		if cerr := tx.Commit(); cerr != nil {
			err = fmt.Errorf("commit: %w", cerr)
		}
	}()
	return fn(tx)
}

// track records query latency and outcome for op. Use with a named error
// result: defer s.track("op", time.Now(), &err).
func (s *Store) track(op string, start time.Time, errp *error) {
	var err error
	if errp != nil {
		err = *errp
	}
	metrics.RecordStoreQuery(op, float64(time.Since(start).Microseconds())/1000, err)
}

func toMillis(t time.Time) int64 { return t.UnixMilli() }

func fromMillis(ms int64) time.Time { return time.UnixMilli(ms).UTC() }

func nullMillis(ms sql.NullInt64) *time.Time {
	if !ms.Valid {
		return nil
	}
	t := fromMillis(ms.Int64)
	return &t
}

func nullInt(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	n := v.Int64
	return &n
}

func optionalInt(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

// placeholders returns "$start, $start+1, ..." for n arguments.
func placeholders(start, n int) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "$%d", start+i)
	}
	return b.String()
}
