package db

import (
	"context"
	"database/sql"
	"embed"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrationFiles embed.FS

// goose keeps its dialect and base FS in package globals.
var gooseMu sync.Mutex

func prepareGoose(dialect Dialect) (string, error) {
	goose.SetBaseFS(migrationFiles)
	goose.SetLogger(goose.NopLogger())
	switch dialect {
	case DialectSQLite:
		return "migrations/sqlite", goose.SetDialect("sqlite3")
	case DialectPostgres:
		return "migrations/postgres", goose.SetDialect("postgres")
	default:
		return "", errors.Newf("unsupported dialect %q", dialect)
	}
}

// RunMigrations applies embedded SQL migrations via goose. If database is nil, it's a no-op.
func RunMigrations(ctx context.Context, database *sql.DB, dialect Dialect) error {
	if database == nil {
		return nil
	}
	gooseMu.Lock()
	defer gooseMu.Unlock()
	dir, err := prepareGoose(dialect)
	if err != nil {
		return err
	}
	return goose.UpContext(ctx, database, dir)
}

// RollbackMigration reverts the most recent migration.
func RollbackMigration(ctx context.Context, database *sql.DB, dialect Dialect) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()
	dir, err := prepareGoose(dialect)
	if err != nil {
		return err
	}
	return goose.DownContext(ctx, database, dir)
}

// MigrationVersion reports the current schema version.
func MigrationVersion(ctx context.Context, database *sql.DB, dialect Dialect) (int64, error) {
	gooseMu.Lock()
	defer gooseMu.Unlock()
	if _, err := prepareGoose(dialect); err != nil {
		return 0, err
	}
	return goose.GetDBVersionContext(ctx, database)
}
