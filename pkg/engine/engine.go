package engine

import (
	"context"
	"database/sql"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
)

// 🏷️ Built-in engine classes
const (
	SQLite    = "sqlite"
	SQLServer = "sqlserver"
	Postgres  = "postgres"
)

// ErrUnknownEngine is returned when a link names an engine that is not registered
var ErrUnknownEngine = errors.Base("unknown database engine")

// 🔌 Engine is one storage engine a project database can live on
type Engine interface {
	// Class returns the engine class name used in links
	Class() string
	// Open connects to an existing database
	Open(ctx context.Context, link Link, creds Credentials) (*sql.DB, error)
	// Create connects to a new, empty database that a copy will be written into
	Create(ctx context.Context, link Link) (*sql.DB, error)
	// Tables lists the user tables of an open database
	Tables(ctx context.Context, db *sql.DB) ([]string, error)
	// Quote quotes an identifier for this engine's SQL dialect
	Quote(ident string) string
}

// 🗄️ Database is an open project database together with the engine it lives on
type Database struct {
	db     *sql.DB
	engine Engine
	link   Link
}

// NewDatabase wraps an already open connection
func NewDatabase(db *sql.DB, engine Engine, link Link) *Database {
	return &Database{db: db, engine: engine, link: link}
}

// Engine returns the engine class
func (d *Database) Engine() string {
	return d.engine.Class()
}

// Link returns the link the database was opened with
func (d *Database) Link() Link {
	return d.link
}

// DB returns the underlying connection pool
func (d *Database) DB() *sql.DB {
	return d.db
}

// Close closes the database
func (d *Database) Close() error {
	if d.db == nil {
		return nil
	}
	if err := d.db.Close(); err != nil {
		return errors.Errorf("closing %s database: %w", d.engine.Class(), err)
	}
	return nil
}

// 📚 Registry maps engine classes to engines
type Registry struct {
	engines map[string]Engine
}

// NewRegistry creates a registry holding the given engines
func NewRegistry(engines ...Engine) *Registry {
	r := &Registry{engines: make(map[string]Engine, len(engines))}
	for _, e := range engines {
		r.Register(e)
	}
	return r
}

// DefaultRegistry returns a registry with the sqlite, sqlserver and postgres engines
func DefaultRegistry() *Registry {
	return NewRegistry(NewSQLiteEngine(), NewSQLServerEngine(), NewPostgresEngine())
}

// Register adds or replaces an engine
func (r *Registry) Register(e Engine) {
	r.engines[e.Class()] = e
}

// Get returns the engine for a class
func (r *Registry) Get(class string) (Engine, error) {
	e, ok := r.engines[class]
	if !ok {
		options := make([]string, 0, len(r.engines))
		for k := range r.engines {
			options = append(options, k)
		}
		sort.Strings(options)
		return nil, errors.Errorf("%w %q, options: %s", ErrUnknownEngine, class, strings.Join(options, ", "))
	}
	return e, nil
}

// Open opens the database a link points at
func (r *Registry) Open(ctx context.Context, link Link, creds Credentials) (*Database, error) {
	e, err := r.Get(link.Engine)
	if err != nil {
		return nil, err
	}
	db, err := e.Open(ctx, link, creds)
	if err != nil {
		return nil, errors.Errorf("opening %s database: %w", link.Engine, err)
	}
	return NewDatabase(db, e, link), nil
}

// OpenFile opens a DCF file: SQLite files directly, anything else through its
// link descriptor
func (r *Registry) OpenFile(ctx context.Context, path string, creds Credentials) (*Database, error) {
	class, err := Detect(path)
	if err != nil {
		return nil, errors.Errorf("detecting engine: %w", err)
	}

	var link *Link
	if class == SQLite {
		link = NewLink(SQLite)
		link.Add(ParamDataSource, path)
	} else {
		link, err = ReadLink(path)
		if err != nil {
			return nil, err
		}
	}

	return r.Open(ctx, *link, creds)
}

// 📋 CreateCopy copies every user table of source into a new database
// described by target and returns it open. The caller closes both.
func (r *Registry) CreateCopy(ctx context.Context, target Link, source *Database) (*Database, error) {
	logger := zerolog.Ctx(ctx)

	dst, err := r.Get(target.Engine)
	if err != nil {
		return nil, err
	}

	tables, err := source.engine.Tables(ctx, source.db)
	if err != nil {
		return nil, errors.Errorf("listing source tables: %w", err)
	}

	db, err := dst.Create(ctx, target)
	if err != nil {
		return nil, errors.Errorf("creating %s database: %w", target.Engine, err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		db.Close()
		return nil, errors.Errorf("starting copy transaction: %w", err)
	}

	for _, table := range tables {
		if err := ctx.Err(); err != nil {
			tx.Rollback()
			db.Close()
			return nil, errors.Errorf("copying tables: %w", err)
		}
		n, err := copyTable(ctx, source, dst, tx, table)
		if err != nil {
			tx.Rollback()
			db.Close()
			return nil, errors.Errorf("copying table %s: %w", table, err)
		}
		logger.Debug().Str("table", table).Int("rows", n).Msg("copied table")
	}

	if err := tx.Commit(); err != nil {
		db.Close()
		return nil, errors.Errorf("committing copy: %w", err)
	}

	return NewDatabase(db, dst, target), nil
}

func copyTable(ctx context.Context, source *Database, dst Engine, tx *sql.Tx, table string) (int, error) {
	rows, err := source.db.QueryContext(ctx, "SELECT * FROM "+source.engine.Quote(table))
	if err != nil {
		return 0, errors.Errorf("selecting rows: %w", err)
	}
	defer rows.Close()

	cols, err := rows.ColumnTypes()
	if err != nil {
		return 0, errors.Errorf("reading column types: %w", err)
	}

	defs := make([]string, len(cols))
	names := make([]string, len(cols))
	marks := make([]string, len(cols))
	affinities := make([]string, len(cols))
	for i, c := range cols {
		names[i] = dst.Quote(c.Name())
		affinities[i] = sqliteAffinity(c.DatabaseTypeName())
		defs[i] = strings.TrimSpace(names[i] + " " + affinities[i])
		marks[i] = "?"
	}

	create := "CREATE TABLE " + dst.Quote(table) + " (" + strings.Join(defs, ", ") + ")"
	if _, err := tx.ExecContext(ctx, create); err != nil {
		return 0, errors.Errorf("creating table: %w", err)
	}

	insert, err := tx.PrepareContext(ctx, "INSERT INTO "+dst.Quote(table)+" ("+strings.Join(names, ", ")+") VALUES ("+strings.Join(marks, ", ")+")")
	if err != nil {
		return 0, errors.Errorf("preparing insert: %w", err)
	}
	defer insert.Close()

	count := 0
	values := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return count, errors.Errorf("scanning row: %w", err)
		}
		args := make([]any, len(values))
		for i, v := range values {
			if b, ok := v.([]byte); ok && affinities[i] == "TEXT" {
				args[i] = string(b)
				continue
			}
			args[i] = v
		}
		if _, err := insert.ExecContext(ctx, args...); err != nil {
			return count, errors.Errorf("inserting row: %w", err)
		}
		count++
	}
	if err := rows.Err(); err != nil {
		return count, errors.Errorf("iterating rows: %w", err)
	}

	return count, nil
}

// sqliteAffinity maps a server column type onto a SQLite type affinity
func sqliteAffinity(dbType string) string {
	t := strings.ToUpper(dbType)
	switch {
	case t == "":
		return ""
	case strings.Contains(t, "INT"), t == "BIT", strings.HasPrefix(t, "BOOL"):
		return "INTEGER"
	case strings.Contains(t, "CHAR"), strings.Contains(t, "TEXT"), strings.Contains(t, "CLOB"),
		t == "UNIQUEIDENTIFIER", t == "UUID", t == "XML", t == "JSON", t == "JSONB",
		strings.Contains(t, "DATE"), strings.Contains(t, "TIME"):
		return "TEXT"
	case strings.Contains(t, "BLOB"), strings.Contains(t, "BINARY"), t == "IMAGE", t == "BYTEA":
		return "BLOB"
	case strings.Contains(t, "REAL"), strings.Contains(t, "FLOA"), strings.Contains(t, "DOUB"):
		return "REAL"
	default:
		return "NUMERIC"
	}
}
