// Package testutils builds plant projects on disk for tests
package testutils

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/walteh/plantshare/pkg/engine"
	"github.com/walteh/plantshare/pkg/project"
)

// Xref is one reference row of an item
type Xref struct {
	Target string
	Part   project.PartKind
	Attach bool
	Nested bool
}

// Item is one tracked file; a file with Content is written under the project root
type Item struct {
	ID      int64
	Name    string
	Path    string
	Type    project.ItemType
	Content string
	Xrefs   []Xref
}

// Part describes one part of a fixture project
type Part struct {
	Folder string
	Items  []Item
	// Styles are isometric style folders that get an IsoConfig.xml
	Styles []string
}

// Fixture describes a whole project
type Fixture struct {
	Name     string
	Version  string
	Username string
	Password string
	Parts    map[project.PartKind]Part
	// Server puts every part database behind a link descriptor for the
	// ServerEngine instead of a plain sqlite file
	Server bool
	// Files are extra files written relative to the project root
	Files map[string]string
}

// NewProject writes f into dir and returns dir
func NewProject(t testing.TB, dir string, f Fixture) string {
	t.Helper()
	ctx := context.Background()

	if f.Name == "" {
		f.Name = "Demo"
	}
	if f.Version == "" {
		f.Version = "2.0.0"
	}
	require.NoError(t, os.MkdirAll(dir, 0755), "creating project dir")

	m := &project.Manifest{Name: f.Name, Version: f.Version}
	if f.Username != "" {
		m.Credentials = &project.CredentialsXML{Username: f.Username, Password: f.Password}
	}

	backing := t.TempDir()
	for _, kind := range project.Kinds {
		part, ok := f.Parts[kind]
		if !ok {
			continue
		}
		dbName := kind.DefaultDatabase()
		m.Parts = append(m.Parts, project.PartDefinition{Kind: kind, Database: dbName, Folder: part.Folder})

		dbPath := filepath.Join(dir, dbName)
		if f.Server {
			dataPath := filepath.Join(backing, dbName+".db")
			writePartDatabase(t, ctx, dataPath, part)
			link := engine.NewLink(engine.SQLServer)
			link.Add(engine.ParamServer, "plant-sql.local")
			link.Add(engine.ParamDataSource, dataPath)
			require.NoError(t, engine.WriteLink(dbPath, link), "writing link descriptor")
		} else {
			writePartDatabase(t, ctx, dbPath, part)
		}

		if part.Folder != "" {
			require.NoError(t, os.MkdirAll(filepath.Join(dir, part.Folder), 0755), "creating part folder")
		}
		for _, style := range part.Styles {
			styleDir := filepath.Join(dir, part.Folder, style)
			require.NoError(t, os.MkdirAll(styleDir, 0755), "creating style folder")
			require.NoError(t, os.WriteFile(filepath.Join(styleDir, "IsoConfig.xml"), []byte("<IsoConfig/>"), 0644), "writing IsoConfig.xml")
		}
		for _, it := range part.Items {
			if it.Content == "" {
				continue
			}
			writeFile(t, filepath.Join(dir, filepath.FromSlash(it.Path)), it.Content)
		}
	}

	for name, content := range f.Files {
		writeFile(t, filepath.Join(dir, filepath.FromSlash(name)), content)
	}

	require.NoError(t, project.WriteManifest(dir, m), "writing manifest")
	return dir
}

func writeFile(t testing.TB, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755), "creating parent dir")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644), "writing file")
}

func writePartDatabase(t testing.TB, ctx context.Context, path string, part Part) {
	t.Helper()
	link := engine.NewLink(engine.SQLite)
	link.Add(engine.ParamDataSource, path)

	db, err := engine.NewSQLiteEngine().Create(ctx, *link)
	require.NoError(t, err, "creating part database")
	defer db.Close()

	require.NoError(t, project.InitDatabase(ctx, db), "creating part tables")
	for _, it := range part.Items {
		insertItem(t, ctx, db, it)
	}
}

func insertItem(t testing.TB, ctx context.Context, db *sql.DB, it Item) {
	t.Helper()
	typ := it.Type
	if typ == "" {
		typ = project.ItemDrawing
	}
	name := it.Name
	if name == "" {
		name = filepath.Base(it.Path)
	}
	_, err := db.ExecContext(ctx, "INSERT INTO ProjectItems (id, name, relative_path, item_type) VALUES (?, ?, ?, ?)",
		it.ID, name, it.Path, string(typ))
	require.NoError(t, err, "inserting item")

	for _, x := range it.Xrefs {
		_, err := db.ExecContext(ctx, "INSERT INTO ProjectXrefs (source_id, target_path, target_part, is_attach, is_nested) VALUES (?, ?, ?, ?, ?)",
			it.ID, x.Target, string(x.Part), x.Attach, x.Nested)
		require.NoError(t, err, "inserting xref")
	}
}

// 🧪 ServerEngine poses as the sqlserver engine while reading the sqlite file
// named by the link's Data Source. It records every login it sees.
type ServerEngine struct {
	engine.Engine

	mu     sync.Mutex
	logins []engine.Credentials
}

// NewServerEngine creates a ServerEngine
func NewServerEngine() *ServerEngine {
	return &ServerEngine{Engine: engine.NewSQLiteEngine()}
}

// Class poses as sqlserver
func (s *ServerEngine) Class() string {
	return engine.SQLServer
}

// Open records creds and opens the backing sqlite file
func (s *ServerEngine) Open(ctx context.Context, link engine.Link, creds engine.Credentials) (*sql.DB, error) {
	s.mu.Lock()
	s.logins = append(s.logins, creds)
	s.mu.Unlock()
	return s.Engine.Open(ctx, link, creds)
}

// Logins returns the credentials seen so far
func (s *ServerEngine) Logins() []engine.Credentials {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]engine.Credentials(nil), s.logins...)
}

// Registry returns a registry with the real sqlite engine and s
func (s *ServerEngine) Registry() *engine.Registry {
	return engine.NewRegistry(engine.NewSQLiteEngine(), s)
}
