package database

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"

	"feedybot/internal/domain"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/mattn/go-sqlite3" // Required by the library implementation.
)

const dsnParams = "?_foreign_keys=on&_busy_timeout=5000"

var (
	ErrNotFound = domain.ErrNotFound
	ErrConflict = domain.ErrConflict
)

type Database struct {
	db  *sql.DB
	log *slog.Logger
}

//go:embed migrations/*.sql
var migrationsFS embed.FS

func New(ctx context.Context, dbPath string, log *slog.Logger) (*Database, error) {
	dbFile, err := sql.Open("sqlite3", "file:"+dbPath+dsnParams)
	if err != nil {
		return nil, fmt.Errorf("open DB file: %w", err)
	}

	// Single writer keeps SQLite away from "database is locked".
	dbFile.SetMaxOpenConns(1)

	if err = migrateUp(ctx, dbFile, dbPath, log); err != nil {
		return nil, errors.Join(err, dbFile.Close())
	}

	return &Database{db: dbFile, log: log}, nil
}

func (d *Database) Close() error {
	return d.db.Close()
}

func migrateUp(ctx context.Context, dbFile *sql.DB, dbPath string, log *slog.Logger) error {
	dbInstance, err := sqlite3.WithInstance(dbFile, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("create DB instance: %w", err)
	}

	srcInstance, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create source instance: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", srcInstance, "sqlite3", dbInstance)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}

	migrateErr := m.Up()

	version, dirty, versionErr := m.Version()
	fields := []any{
		"dbPath", dbPath,
	}

	if versionErr == nil {
		fields = append(fields, "version", version, "dirty", dirty)
	} else if !errors.Is(versionErr, migrate.ErrNilVersion) {
		log.WarnContext(ctx, "Failed to fetch migration version",
			"error", versionErr,
			"dbPath", dbPath)
	}

	if migrateErr != nil {
		if !errors.Is(migrateErr, migrate.ErrNoChange) {
			return fmt.Errorf("apply migrations: %w", migrateErr)
		}

		log.InfoContext(ctx, "No migrations to apply", fields...)
	} else {
		log.InfoContext(ctx, "DB is migrated", fields...)
	}

	return nil
}

func (d *Database) closeRows(ctx context.Context, rows *sql.Rows, operation string, fields ...any) {
	if err := rows.Close(); err != nil {
		d.log.ErrorContext(ctx, "Failed to close rows",
			append([]any{"error", err, "operation", operation}, fields...)...)
	}
}

func (d *Database) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	if err = fn(tx); err != nil {
		if rollbackErr := tx.Rollback(); rollbackErr != nil {
			err = errors.Join(err, fmt.Errorf("rollback tx: %w", rollbackErr))
		}

		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}
