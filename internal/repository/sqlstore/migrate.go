package sqlstore

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// The schema ships inside the binary, one directory per dialect.
//
//go:embed migrations
var migrationsFS embed.FS

// Direction selects which way Migrate moves the schema.
type Direction int

const (
	Up Direction = iota
	Down
)

// Migrate applies (Up) or reverts (Down) every embedded migration against
// databaseURL and returns the resulting schema version. "Already at the
// target version" is not an error.
//
// golang-migrate opens its own connection from the URL, so this can run
// before Open or from the standalone `migrate` command.
func Migrate(ctx context.Context, databaseURL string, dir Direction, logger *slog.Logger) (uint, error) {
	t, err := parseDatabaseURL(databaseURL)
	if err != nil {
		return 0, err
	}

	var migrateURL string
	switch t.dialect {
	case dialectSQLite:
		if err := ensureSQLiteDir(t.path); err != nil {
			return 0, err
		}
		migrateURL = "sqlite://" + t.path
	case dialectPostgres:
		// The pgx/v5 migrate driver registers the "pgx5" scheme.
		_, rest, _ := strings.Cut(databaseURL, "://")
		migrateURL = "pgx5://" + rest
	}

	src, err := iofs.New(migrationsFS, "migrations/"+t.dialect.String())
	if err != nil {
		return 0, fmt.Errorf("sqlstore: loading migrations: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, migrateURL)
	if err != nil {
		return 0, fmt.Errorf("sqlstore: creating migrator: %w", err)
	}
	defer m.Close()

	// Stop between migrations if the caller gives up.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			m.GracefulStop <- true
		case <-done:
		}
	}()

	switch dir {
	case Down:
		err = m.Down()
	default:
		err = m.Up()
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, fmt.Errorf("sqlstore: migrating %s: %w", t.dialect, err)
	}

	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		version, err = 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("sqlstore: reading schema version: %w", err)
	}
	if dirty {
		return version, fmt.Errorf("sqlstore: schema version %d is dirty", version)
	}

	if logger != nil {
		logger.Info("database migrated",
			slog.String("dialect", t.dialect.String()),
			slog.Uint64("version", uint64(version)),
		)
	}
	return version, nil
}
