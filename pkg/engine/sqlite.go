package engine

import (
	"context"
	"database/sql"
	"os"
	"strings"

	"gitlab.com/tozd/go/errors"
	_ "modernc.org/sqlite"
)

// 🪶 sqliteEngine is the embedded, file based engine every shared project ends up on
type sqliteEngine struct{}

// NewSQLiteEngine creates the embedded SQLite engine
func NewSQLiteEngine() Engine {
	return sqliteEngine{}
}

func (sqliteEngine) Class() string {
	return SQLite
}

func (e sqliteEngine) Open(ctx context.Context, link Link, creds Credentials) (*sql.DB, error) {
	path, ok := link.Get(ParamDataSource)
	if !ok || path == "" {
		return nil, errors.Errorf("sqlite link has no %q", ParamDataSource)
	}
	if _, err := os.Stat(path); err != nil {
		return nil, errors.Errorf("sqlite database %s: %w", path, err)
	}
	return e.connect(ctx, path)
}

func (e sqliteEngine) Create(ctx context.Context, link Link) (*sql.DB, error) {
	path, ok := link.Get(ParamDataSource)
	if !ok || path == "" {
		return nil, errors.Errorf("sqlite link has no %q", ParamDataSource)
	}
	if _, err := os.Stat(path); err == nil {
		return nil, errors.Errorf("sqlite database %s already exists", path)
	}
	return e.connect(ctx, path)
}

func (sqliteEngine) connect(ctx context.Context, path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Errorf("opening sqlite database: %w", err)
	}
	// one writer at a time, and the file handle must be released on Close
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.Errorf("pinging sqlite database: %w", err)
	}
	return db, nil
}

func (sqliteEngine) Tables(ctx context.Context, db *sql.DB) ([]string, error) {
	rows, err := db.QueryContext(ctx, "SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name")
	if err != nil {
		return nil, errors.Errorf("listing sqlite tables: %w", err)
	}
	defer rows.Close()
	return scanNames(rows)
}

func (sqliteEngine) Quote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

func scanNames(rows *sql.Rows) ([]string, error) {
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, errors.Errorf("scanning table name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Errorf("iterating table names: %w", err)
	}
	return names, nil
}
