package db

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"path/filepath"
	"sync"
	"testing"
	"time"
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
	openDB = func(name, dsn string) (*sql.DB, error) {
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

	opts := OptionsFromEnv(DefaultServerOptions())
	db, dialect, err := Connect(context.Background(), "sqlite:///"+filepath.Join(t.TempDir(), "app.db"), opts)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer db.Close()
	if dialect != DialectSQLite {
		t.Fatalf("expected sqlite dialect, got %s", dialect)
	}

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
}

func TestParseURL(t *testing.T) {
	cases := []struct {
		in      string
		driver  string
		dialect Dialect
		path    string
	}{
		{"postgres://u:p@localhost:5432/docflow?sslmode=disable", "pgx", DialectPostgres, ""},
		{"postgresql://localhost/docflow", "pgx", DialectPostgres, ""},
		{"sqlite:///data/app.db", "sqlite", DialectSQLite, "data/app.db"},
		{"sqlite:////var/lib/docflow/app.db", "sqlite", DialectSQLite, "/var/lib/docflow/app.db"},
		{"sqlite:data/app.db", "sqlite", DialectSQLite, "data/app.db"},
		{"./local.db", "sqlite", DialectSQLite, "./local.db"},
	}
	for _, tc := range cases {
		got, err := ParseURL(tc.in)
		if err != nil {
			t.Fatalf("ParseURL(%q): %v", tc.in, err)
		}
		if got.Driver != tc.driver || got.Dialect != tc.dialect || got.Path != tc.path {
			t.Fatalf("ParseURL(%q) = %+v", tc.in, got)
		}
	}
	if _, err := ParseURL(""); err == nil {
		t.Fatalf("expected error for empty url")
	}
	if _, err := ParseURL("mysql://localhost/db"); err == nil {
		t.Fatalf("expected error for unsupported scheme")
	}
}

func TestRebind(t *testing.T) {
	q := "UPDATE jobs SET status = ?, error = '?' WHERE id = ? AND status = ?"
	if got := Rebind(DialectSQLite, q); got != q {
		t.Fatalf("sqlite query should be unchanged, got %q", got)
	}
	want := "UPDATE jobs SET status = $1, error = '?' WHERE id = $2 AND status = $3"
	if got := Rebind(DialectPostgres, q); got != want {
		t.Fatalf("unexpected rebind %q", got)
	}
}

func TestMigrationsApplyOnSQLite(t *testing.T) {
	ctx := context.Background()
	database, dialect, err := Connect(ctx, "sqlite:///"+filepath.Join(t.TempDir(), "app.db"), DefaultMigrateOptions())
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer database.Close()

	if err := RunMigrations(ctx, database, dialect); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if err := RunMigrations(ctx, database, dialect); err != nil {
		t.Fatalf("second migrate should be a no-op: %v", err)
	}
	version, err := MigrationVersion(ctx, database, dialect)
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if version != 1 {
		t.Fatalf("expected version 1, got %d", version)
	}
	for _, table := range []string{"jobs", "settings", "folders", "word_documents"} {
		var name string
		err := database.QueryRowContext(ctx, "SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?", table).Scan(&name)
		if err != nil {
			t.Fatalf("expected table %s: %v", table, err)
		}
	}
}
