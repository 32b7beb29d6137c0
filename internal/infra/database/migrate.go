package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"
)

// Dialect selects the migration directory and placeholder style.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var migrationFS embed.FS

const migrationTableSQL = `CREATE TABLE IF NOT EXISTS schema_migrations (
    name TEXT PRIMARY KEY,
    applied_at BIGINT NOT NULL
)`

// ApplyMigrations executes the embedded migrations for a dialect, each file at
// most once, in file name order.
func ApplyMigrations(db *sql.DB, dialect Dialect) error {
	root := path.Join("migrations", string(dialect))
	entries, err := fs.ReadDir(migrationFS, root)
	if err != nil {
		return fmt.Errorf("read migrations dir %s: %w", root, err)
	}

	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)

	if _, err := db.Exec(migrationTableSQL); err != nil {
		return fmt.Errorf("ensure migration table: %w", err)
	}

	checkSQL := `SELECT COUNT(*) FROM schema_migrations WHERE name = $1`
	recordSQL := `INSERT INTO schema_migrations (name, applied_at) VALUES ($1, $2) ON CONFLICT (name) DO NOTHING`
	if dialect == DialectSQLite {
		checkSQL = `SELECT COUNT(*) FROM schema_migrations WHERE name = ?`
		recordSQL = `INSERT INTO schema_migrations (name, applied_at) VALUES (?, ?) ON CONFLICT (name) DO NOTHING`
	}

	for _, file := range files {
		var applied int
		if err := db.QueryRow(checkSQL, file).Scan(&applied); err != nil {
			return fmt.Errorf("check migration %s: %w", file, err)
		}
		if applied > 0 {
			continue
		}

		content, err := fs.ReadFile(migrationFS, path.Join(root, file))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", file, err)
		}

		txn, err := db.BeginTx(context.Background(), nil)
		if err != nil {
			return fmt.Errorf("begin migration %s: %w", file, err)
		}
		if _, err := txn.Exec(string(content)); err != nil {
			_ = txn.Rollback()
			return fmt.Errorf("exec migration %s: %w", file, err)
		}
		if _, err := txn.Exec(recordSQL, file, time.Now().UTC().UnixMilli()); err != nil {
			_ = txn.Rollback()
			return fmt.Errorf("record migration %s: %w", file, err)
		}
		if err := txn.Commit(); err != nil {
			return fmt.Errorf("commit migration %s: %w", file, err)
		}
	}
	return nil
}
