package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log/slog"
	"path"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/cadsdf/ostromd/hours"
	sqlite "modernc.org/sqlite"
)

//go:embed migrations
var migrationsDir embed.FS

// Migration files are named NNN-description.sql; NNN becomes the
// PRAGMA user_version once the file has been applied.
var migrationName = regexp.MustCompile(`^(\d+)[-_]`)

// Database is a thin wrapper around a pair of sqlite connections, one
// pool for concurrent readers and a single-connection pool for writes.
type Database struct {
	logger *slog.Logger
	read   *sql.DB
	write  *sql.DB
	path   string
}

const initSQL = `
	PRAGMA journal_mode = WAL;
	PRAGMA synchronous = NORMAL;
	PRAGMA temp_store = MEMORY;
	PRAGMA busy_timeout = 5000;
	PRAGMA automatic_index = true;
	PRAGMA foreign_keys = ON;
	PRAGMA analysis_limit = 1000;
	PRAGMA trusted_schema = OFF;
`

// New opens the database at path and runs any pending migrations. The
// pragmas above are applied to every new connection in either pool.
func New(ctx context.Context, path string) (*Database, error) {
	sqlite.RegisterConnectionHook(func(conn sqlite.ExecQuerierContext, _ string) error {
		_, err := conn.ExecContext(ctx, initSQL, nil)
		return err
	})

	read, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open read pool: %w", err)
	}
	read.SetMaxOpenConns(10)
	read.SetConnMaxIdleTime(time.Minute)

	write, err := sql.Open("sqlite", path)
	if err != nil {
		read.Close()
		return nil, fmt.Errorf("open write pool: %w", err)
	}
	// sqlite allows a single writer at a time; one connection sidesteps
	// SQLITE_BUSY instead of retrying around it.
	write.SetMaxOpenConns(1)
	write.SetConnMaxIdleTime(time.Minute)

	d := &Database{
		logger: slog.Default().With(slog.String("module", "database")),
		read:   read,
		write:  write,
		path:   path,
	}

	if err := d.migrate(ctx); err != nil {
		d.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return d, nil
}

// SetLogger swaps the logger once the full handler chain exists; the
// database comes up before the sqlite log sink it backs.
func (d *Database) SetLogger(logger *slog.Logger) {
	d.logger = logger
}

func (d *Database) Close() {
	d.read.Close()
	d.write.Close()
}

func (d *Database) migrate(ctx context.Context) error {
	var currVer int
	if err := d.read.QueryRowContext(ctx, "PRAGMA user_version").Scan(&currVer); err != nil {
		return fmt.Errorf("read user_version: %w", err)
	}

	entries, err := migrationsDir.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			names = append(names, e.Name())
		}
	}
	slices.Sort(names)

	backedUp := false
	for _, name := range names {
		ver, err := migrationVersion(name)
		if err != nil {
			return err
		}
		if ver <= currVer {
			continue
		}

		// One backup per run, before the first migration touches an
		// existing database. A fresh file has nothing worth saving.
		if !backedUp && currVer > 0 {
			if err := d.Backup(ctx); err != nil {
				return fmt.Errorf("backup before migration: %w", err)
			}
			backedUp = true
		}

		if err := d.applyMigration(ctx, name, ver); err != nil {
			return err
		}
	}

	return nil
}

func migrationVersion(name string) (int, error) {
	m := migrationName.FindStringSubmatch(name)
	if len(m) < 2 {
		return 0, fmt.Errorf("migration file %s has no version prefix", name)
	}
	ver, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, fmt.Errorf("migration file %s: %w", name, err)
	}
	return ver, nil
}

func (d *Database) applyMigration(ctx context.Context, name string, ver int) error {
	d.logger.Debug("applying migration", slog.String("file", name))

	data, err := migrationsDir.ReadFile(path.Join("migrations", name))
	if err != nil {
		return fmt.Errorf("read migration %s: %w", name, err)
	}

	tx, err := d.write.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration %d: %w", ver, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, string(data)); err != nil {
		return fmt.Errorf("apply migration %d: %w", ver, err)
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d;", ver)); err != nil {
		return fmt.Errorf("bump user_version to %d: %w", ver, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration %d: %w", ver, err)
	}

	return nil
}

// purgeTable deletes rows older than the retention window from a table
// keyed by (date, hour).
func (d *Database) purgeTable(ctx context.Context, table string, retentionDays int) error {
	before := hours.FromTime(time.Now().AddDate(0, 0, -retentionDays))
	res, err := d.write.ExecContext(ctx, fmt.Sprintf(`
		DELETE FROM %s
		WHERE (date = ? AND hour < ?) OR date < ?`, table),
		before.Date, before.Hour, before.Date)
	if err != nil {
		return fmt.Errorf("purge %s: %w", table, err)
	}

	if rows, err := res.RowsAffected(); err == nil && rows > 0 {
		d.logger.Debug("purged stale rows", slog.String("table", table), slog.Int64("rows", rows))
	}

	return nil
}
