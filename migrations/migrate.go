package migrations

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// runner binds a migrate instance to a caller-owned *sql.DB
type runner struct {
	m     *migrate.Migrate
	close func()
}

func newRunner(ctx context.Context, db *sql.DB, driver string) (*runner, error) {
	source, err := iofs.New(Files, driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrations source: %w", err)
	}

	var (
		drv     database.Driver
		release = func() {}
	)

	switch driver {
	case "sqlite":
		// The sqlite driver closes the *sql.DB on Close, so it is never closed here.
		drv, err = sqlite.WithInstance(db, &sqlite.Config{})
	case "postgres":
		conn, cerr := db.Conn(ctx)
		if cerr != nil {
			return nil, fmt.Errorf("failed to acquire migration connection: %w", cerr)
		}
		drv, err = postgres.WithConnection(ctx, conn, &postgres.Config{})
		release = func() { _ = conn.Close() }
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", driver)
	}
	if err != nil {
		release()
		return nil, fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, driver, drv)
	if err != nil {
		release()
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}

	return &runner{m: m, close: func() {
		_ = source.Close()
		release()
	}}, nil
}

// Up applies all pending migrations
func Up(ctx context.Context, db *sql.DB, driver string) error {
	r, err := newRunner(ctx, db, driver)
	if err != nil {
		return err
	}
	defer r.close()

	if err := r.m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// Down rolls back the last steps migrations
func Down(ctx context.Context, db *sql.DB, driver string, steps int) error {
	r, err := newRunner(ctx, db, driver)
	if err != nil {
		return err
	}
	defer r.close()

	if err := r.m.Steps(-steps); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to roll back migrations: %w", err)
	}
	return nil
}

// Version reports the applied schema version. ok is false before the first migration.
func Version(ctx context.Context, db *sql.DB, driver string) (version uint, dirty, ok bool, err error) {
	r, err := newRunner(ctx, db, driver)
	if err != nil {
		return 0, false, false, err
	}
	defer r.close()

	version, dirty, err = r.m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, false, nil
	}
	if err != nil {
		return 0, false, false, fmt.Errorf("failed to read migration version: %w", err)
	}
	return version, dirty, true, nil
}
