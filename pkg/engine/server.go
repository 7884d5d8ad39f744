package engine

import (
	"context"
	"database/sql"
	"net"
	"net/url"
	"strings"

	_ "github.com/lib/pq"
	_ "github.com/microsoft/go-mssqldb"
	"gitlab.com/tozd/go/errors"
)

// 🏢 sqlServerEngine reaches project databases hosted on Microsoft SQL Server
type sqlServerEngine struct{}

// NewSQLServerEngine creates the SQL Server engine
func NewSQLServerEngine() Engine {
	return sqlServerEngine{}
}

func (sqlServerEngine) Class() string {
	return SQLServer
}

// DSN builds a sqlserver:// connection URL from a link and credentials
func (sqlServerEngine) DSN(link Link, creds Credentials) (string, error) {
	server, ok := link.Get(ParamServer)
	if !ok || server == "" {
		return "", errors.Errorf("sqlserver link has no %q", ParamServer)
	}
	database, _ := link.Get(ParamDatabase)

	host := server
	if port, ok := link.Get(ParamPort); ok && port != "" {
		host = net.JoinHostPort(server, port)
	}

	u := &url.URL{
		Scheme: "sqlserver",
		Host:   host,
	}
	if creds.Username != "" {
		u.User = url.UserPassword(creds.Username, creds.Password)
	}
	if instance, ok := link.Get(ParamInstance); ok && instance != "" {
		u.Path = instance
	}
	q := url.Values{}
	if database != "" {
		q.Set("database", database)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (e sqlServerEngine) Open(ctx context.Context, link Link, creds Credentials) (*sql.DB, error) {
	dsn, err := e.DSN(link, creds)
	if err != nil {
		return nil, err
	}
	return openServer(ctx, "sqlserver", dsn)
}

func (sqlServerEngine) Create(ctx context.Context, link Link) (*sql.DB, error) {
	return nil, errors.Errorf("sqlserver databases are created by the server administrator, not copied into")
}

func (sqlServerEngine) Tables(ctx context.Context, db *sql.DB) ([]string, error) {
	rows, err := db.QueryContext(ctx, "SELECT TABLE_NAME FROM INFORMATION_SCHEMA.TABLES WHERE TABLE_TYPE = 'BASE TABLE' AND TABLE_SCHEMA = 'dbo' ORDER BY TABLE_NAME")
	if err != nil {
		return nil, errors.Errorf("listing sqlserver tables: %w", err)
	}
	defer rows.Close()
	return scanNames(rows)
}

func (sqlServerEngine) Quote(ident string) string {
	return "[" + strings.ReplaceAll(ident, "]", "]]") + "]"
}

// 🐘 postgresEngine reaches project databases hosted on PostgreSQL
type postgresEngine struct{}

// NewPostgresEngine creates the PostgreSQL engine
func NewPostgresEngine() Engine {
	return postgresEngine{}
}

func (postgresEngine) Class() string {
	return Postgres
}

// DSN builds a postgres:// connection URL from a link and credentials
func (postgresEngine) DSN(link Link, creds Credentials) (string, error) {
	server, ok := link.Get(ParamServer)
	if !ok || server == "" {
		return "", errors.Errorf("postgres link has no %q", ParamServer)
	}
	database, ok := link.Get(ParamDatabase)
	if !ok || database == "" {
		return "", errors.Errorf("postgres link has no %q", ParamDatabase)
	}

	host := server
	if port, ok := link.Get(ParamPort); ok && port != "" {
		host = net.JoinHostPort(server, port)
	}

	u := &url.URL{
		Scheme: "postgres",
		Host:   host,
		Path:   "/" + database,
	}
	if creds.Username != "" {
		u.User = url.UserPassword(creds.Username, creds.Password)
	}
	sslMode, ok := link.Get(ParamSSLMode)
	if !ok || sslMode == "" {
		sslMode = "disable"
	}
	u.RawQuery = url.Values{"sslmode": []string{sslMode}}.Encode()
	return u.String(), nil
}

func (e postgresEngine) Open(ctx context.Context, link Link, creds Credentials) (*sql.DB, error) {
	dsn, err := e.DSN(link, creds)
	if err != nil {
		return nil, err
	}
	return openServer(ctx, "postgres", dsn)
}

func (postgresEngine) Create(ctx context.Context, link Link) (*sql.DB, error) {
	return nil, errors.Errorf("postgres databases are created by the server administrator, not copied into")
}

func (postgresEngine) Tables(ctx context.Context, db *sql.DB) ([]string, error) {
	rows, err := db.QueryContext(ctx, "SELECT table_name FROM information_schema.tables WHERE table_type = 'BASE TABLE' AND table_schema = 'public' ORDER BY table_name")
	if err != nil {
		return nil, errors.Errorf("listing postgres tables: %w", err)
	}
	defer rows.Close()
	return scanNames(rows)
}

func (postgresEngine) Quote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

func openServer(ctx context.Context, driver, dsn string) (*sql.DB, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, errors.Errorf("opening %s connection: %w", driver, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.Errorf("connecting to %s: %w", driver, err)
	}
	return db, nil
}
