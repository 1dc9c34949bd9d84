package sqlstore

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/foursigma/foursigma/pkg/logger"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var migrationsFS embed.FS

// Migrate applies every pending up migration for the store's driver.
func (s *Store) Migrate(ctx context.Context) error {
	src, err := iofs.New(migrationsFS, "migrations/"+s.driver)
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}

	target, closeTarget, err := s.migrationTarget()
	if err != nil {
		_ = src.Close()
		return fmt.Errorf("migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, s.driver, target)
	if err != nil {
		_ = src.Close()
		return fmt.Errorf("init migrations: %w", err)
	}
	defer func() {
		if closeTarget {
			_, _ = m.Close()
			return
		}
		_ = src.Close()
	}()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("read migration version: %w", err)
	}
	s.logger.Info(ctx, "schema ready",
		logger.String("driver", s.driver),
		logger.Int64("version", int64(version)),
		logger.Bool("dirty", dirty),
	)
	return nil
}

// migrationTarget returns the migrate database driver. Closing a migrate
// driver closes its *sql.DB, so Postgres migrates over a dedicated handle
// while SQLite reuses the store's single connection and is never closed.
func (s *Store) migrationTarget() (database.Driver, bool, error) {
	switch s.driver {
	case DriverPostgres:
		db, err := sql.Open("pgx", s.dsn)
		if err != nil {
			return nil, false, err
		}
		target, err := migratepgx.WithInstance(db, &migratepgx.Config{})
		if err != nil {
			_ = db.Close()
			return nil, false, err
		}
		return target, true, nil
	case DriverSQLite:
		target, err := migratesqlite.WithInstance(s.db, &migratesqlite.Config{})
		return target, false, err
	default:
		return nil, false, fmt.Errorf("%w: %q", ErrUnsupportedDriver, s.driver)
	}
}
