package project

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/plantshare/pkg/engine"
)

// 🧩 PartKind names one discipline of a project
type PartKind string

const (
	PnId   PartKind = "PnId"
	Piping PartKind = "Piping"
	Ortho  PartKind = "Ortho"
	ISO    PartKind = "ISO"
	Misc   PartKind = "Misc"
)

// Kinds lists every part kind in a stable order
var Kinds = []PartKind{PnId, Piping, Ortho, ISO, Misc}

var defaultDatabases = map[PartKind]string{
	PnId:   "ProcessPower.dcf",
	Piping: "Piping.dcf",
	Ortho:  "Ortho.dcf",
	ISO:    "Iso.dcf",
	Misc:   "Misc.dcf",
}

// DefaultDatabase returns the conventional database file name of a part kind
func (k PartKind) DefaultDatabase() string {
	return defaultDatabases[k]
}

// Valid reports whether k is a known part kind
func (k PartKind) Valid() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

// 🔗 Association is one cross-file reference of a project file
type Association struct {
	Source       string   `json:"source"`
	Related      string   `json:"related"`
	RelatedPart  PartKind `json:"related_part"`
	IsXrefAttach bool     `json:"is_xref_attach"`
	IsXrefNested bool     `json:"is_xref_nested"`
}

// 📁 Project is an open plant project
type Project struct {
	name     string
	path     string
	version  string
	creds    engine.Credentials
	parts    Parts
	registry *engine.Registry
	closed   atomic.Bool
}

// OpenOptions configures Open
type OpenOptions struct {
	Registry *engine.Registry
}

// Open reads the manifest of the project at path and resolves its parts
func Open(ctx context.Context, path string, opts OpenOptions) (*Project, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.Errorf("resolving project path: %w", err)
	}

	m, err := ReadManifest(abs)
	if err != nil {
		return nil, errors.Errorf("opening project %s: %w", abs, err)
	}

	registry := opts.Registry
	if registry == nil {
		registry = engine.DefaultRegistry()
	}

	p := &Project{
		name:     m.Name,
		path:     abs,
		version:  m.Version,
		parts:    make(Parts, len(m.Parts)),
		registry: registry,
	}
	if m.Credentials != nil {
		p.creds = engine.Credentials{Username: m.Credentials.Username, Password: m.Credentials.Password}
	}

	for _, def := range m.Parts {
		folder := def.Folder
		if folder == "" {
			folder = "."
		}
		p.parts[def.Kind] = &Part{
			kind:     def.Kind,
			database: filepath.Join(abs, def.Database),
			folder:   filepath.Join(abs, folder),
			root:     abs,
			project:  p,
		}
	}

	zerolog.Ctx(ctx).Debug().Str("project", p.name).Str("path", abs).Int("parts", len(p.parts)).Msg("opened project")
	return p, nil
}

// Name returns the project name
func (p *Project) Name() string { return p.name }

// Path returns the absolute project folder
func (p *Project) Path() string { return p.path }

// Version returns the manifest version
func (p *Project) Version() string { return p.version }

// Credentials returns the storage engine login of the project
func (p *Project) Credentials() engine.Credentials { return p.creds }

// Parts returns the parts keyed by kind
func (p *Project) Parts() Parts { return p.parts }

// PrimaryEngine returns the engine class of the PnId part's database
func (p *Project) PrimaryEngine() (string, error) {
	part, ok := p.parts[PnId]
	if !ok {
		return "", errors.Errorf("project has no %s part", PnId)
	}
	class, err := engine.Detect(part.database)
	if err != nil {
		return "", errors.Errorf("detecting primary engine: %w", err)
	}
	return class, nil
}

// Close closes every part database that was opened
func (p *Project) Close() error {
	p.closed.Store(true)
	var errs []error
	for _, kind := range Kinds {
		part, ok := p.parts[kind]
		if !ok {
			continue
		}
		if err := part.close(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return errors.Errorf("closing project %s: %w", p.name, errors.Join(errs...))
	}
	return nil
}

// Closed reports whether Close was called
func (p *Project) Closed() bool {
	return p.closed.Load()
}

// 🗂️ Parts maps kind to part
type Parts map[PartKind]*Part

// Ordered returns the parts in Kinds order
func (ps Parts) Ordered() []*Part {
	out := make([]*Part, 0, len(ps))
	for _, kind := range Kinds {
		if part, ok := ps[kind]; ok {
			out = append(out, part)
		}
	}
	return out
}

// Iso returns the isometric part, if the project has one
func (ps Parts) Iso() (*IsoPart, bool) {
	part, ok := ps[ISO]
	if !ok {
		return nil, false
	}
	return &IsoPart{Part: part}, true
}

// 📐 IsoPart is a part that produces isometric drawings
type IsoPart struct {
	*Part
}

// IsometricFolder returns the folder holding the isometric styles
func (p *IsoPart) IsometricFolder() string {
	return p.folder
}

// Part is one discipline of a project and its database
type Part struct {
	kind     PartKind
	database string
	folder   string
	root     string
	project  *Project

	mu sync.Mutex
	db *engine.Database
}

// Kind returns the part kind
func (p *Part) Kind() PartKind { return p.kind }

// Database returns the absolute path of the part database file
func (p *Part) Database() string { return p.database }

// Folder returns the absolute folder of the part's drawings
func (p *Part) Folder() string { return p.folder }

// ItemType returns the type of items that carry associations for this part
func (p *Part) ItemType() ItemType {
	if p.kind == Misc {
		return ItemMisc
	}
	return ItemDrawing
}

func (p *Part) open(ctx context.Context) (*engine.Database, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.db != nil {
		return p.db, nil
	}
	db, err := p.project.registry.OpenFile(ctx, p.database, p.project.creds)
	if err != nil {
		return nil, errors.Errorf("opening %s database: %w", p.kind, err)
	}
	p.db = db
	return db, nil
}

func (p *Part) close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.db == nil {
		return nil
	}
	err := p.db.Close()
	p.db = nil
	return err
}
