package remote

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/plantshare/pkg/config"
	"github.com/walteh/plantshare/pkg/project"
	"github.com/walteh/plantshare/pkg/session"
)

// 🏢 Hub is a top-level account of the collaboration service
type Hub struct {
	ID   string
	Name string
}

// 📁 Project is a collaboration project inside a hub
type Project struct {
	ID   string
	Name string
	// RootFolder is the identifier of the project's top folder
	RootFolder string
}

// 📂 Folder is a folder inside a collaboration project
type Folder struct {
	ID   string
	Name string
}

// 🎯 Target is where a share lands. Folder is nil for project level targets.
type Target struct {
	Hub     Hub
	Project Project
	Folder  *Folder
}

func (t Target) String() string {
	s := t.Hub.Name + "/" + t.Project.Name
	if t.Folder != nil {
		s += "/" + t.Folder.Name
	}
	return s
}

// 🔐 Session is a signed in connection to a backend
type Session interface {
	// User returns who is signed in
	User() string
	Hubs(ctx context.Context) ([]Hub, error)
	Projects(ctx context.Context, hub Hub) ([]Project, error)
	Folders(ctx context.Context, hub Hub, project Project) ([]Folder, error)
}

// 🔌 Client is the entry point of a collaboration backend
type Client interface {
	// Name returns the backend name
	Name() string
	// Lookup returns the existing session, or nil when nobody is signed in
	Lookup(ctx context.Context) (Session, error)
	// SignIn runs the interactive sign in
	SignIn(ctx context.Context) error
	// DocumentServer returns the upload endpoint for a session
	DocumentServer(ctx context.Context, session Session) (DocumentServer, error)
}

// 📤 UploadRequest is everything a document server needs to share a project
type UploadRequest struct {
	InstanceID   uuid.UUID
	Target       Target
	ProjectName  string
	Root         string
	Associations map[string][]project.Association
}

// UploadReceipt summarizes a finished upload
type UploadReceipt struct {
	Files    int
	Location string
	// Paths are the uploaded project-relative paths, manifest excluded
	Paths []string
}

// 🗄️ DocumentServer receives staged projects
type DocumentServer interface {
	// InstanceID identifies this document server connection
	InstanceID() uuid.UUID
	// SignIn connects the document server to the collaboration service
	SignIn(ctx context.Context) error
	// Upload submits the staged project at req.Root
	Upload(ctx context.Context, req UploadRequest) (*UploadReceipt, error)
}

// 💬 Prompter asks the user for a secret
type Prompter interface {
	Secret(ctx context.Context, message string) (string, error)
}

// Options are handed to every backend factory
type Options struct {
	Config   *config.Config
	Sessions session.Store
	Prompter Prompter
}

// 🏭 Factory creates a backend client
type Factory func(ctx context.Context, opts Options) (Client, error)

var factories = map[string]Factory{}

// 📝 Register registers a backend factory
func Register(name string, factory Factory) {
	factories[name] = factory
}

// Backends returns the registered backend names
func Backends() []string {
	names := make([]string, 0, len(factories))
	for k := range factories {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// 🎯 New creates the named backend
func New(ctx context.Context, name string, opts Options) (Client, error) {
	factory, ok := factories[name]
	if !ok {
		return nil, errors.Errorf("backend %s not found, options: %s", name, strings.Join(Backends(), ", "))
	}
	client, err := factory(ctx, opts)
	if err != nil {
		return nil, errors.Errorf("creating %s backend: %w", name, err)
	}
	return client, nil
}
