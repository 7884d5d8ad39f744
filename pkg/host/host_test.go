package host

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/plantshare/pkg/config"
	"github.com/walteh/plantshare/pkg/operation"
	"github.com/walteh/plantshare/pkg/project"
	"github.com/walteh/plantshare/pkg/remote"
	"github.com/walteh/plantshare/pkg/status"
	"github.com/walteh/plantshare/pkg/testutils"
)

type fakeSession struct{}

func (fakeSession) User() string { return "tester" }

func (fakeSession) Hubs(ctx context.Context) ([]remote.Hub, error) {
	return []remote.Hub{{ID: "h1", Name: config.DefaultHub}}, nil
}

func (fakeSession) Projects(ctx context.Context, hub remote.Hub) ([]remote.Project, error) {
	return []remote.Project{{ID: config.DefaultProject, Name: "PLNT3D-DEV-ADVOCACY"}}, nil
}

func (fakeSession) Folders(ctx context.Context, hub remote.Hub, p remote.Project) ([]remote.Folder, error) {
	return nil, nil
}

// fakeClient is always signed in. Its uploads wait for block to close when
// block is set.
type fakeClient struct {
	block    chan struct{}
	uploaded []remote.UploadRequest
}

func (c *fakeClient) Name() string { return "fake" }

func (c *fakeClient) Lookup(ctx context.Context) (remote.Session, error) { return fakeSession{}, nil }

func (c *fakeClient) SignIn(ctx context.Context) error { return nil }

func (c *fakeClient) DocumentServer(ctx context.Context, s remote.Session) (remote.DocumentServer, error) {
	return &fakeDocumentServer{client: c, id: uuid.New()}, nil
}

type fakeDocumentServer struct {
	client *fakeClient
	id     uuid.UUID
}

func (d *fakeDocumentServer) InstanceID() uuid.UUID { return d.id }

func (d *fakeDocumentServer) SignIn(ctx context.Context) error { return nil }

func (d *fakeDocumentServer) Upload(ctx context.Context, req remote.UploadRequest) (*remote.UploadReceipt, error) {
	if d.client.block != nil {
		select {
		case <-d.client.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	d.client.uploaded = append(d.client.uploaded, req)
	return &remote.UploadReceipt{Files: 1, Location: "fake://" + req.ProjectName}, nil
}

func newTestHost(t *testing.T, client remote.Client, mutate func(cfg *config.Config)) *Host {
	t.Helper()
	dir := testutils.NewProject(t, filepath.Join(t.TempDir(), "Demo"), testutils.Fixture{
		Name: "Demo",
		Parts: map[project.PartKind]testutils.Part{
			project.PnId: {Folder: "PID DWG", Items: []testutils.Item{{ID: 1, Path: "PID DWG/P-101.dwg", Content: "dwg"}}},
		},
	})

	cfg := &config.Config{
		ProjectPath: dir,
		WorkDir:     t.TempDir(),
		CacheFile:   filepath.Join(t.TempDir(), "cache.json"),
		Heartbeat:   time.Millisecond,
	}
	if mutate != nil {
		mutate(cfg)
	}
	require.NoError(t, cfg.Validate(), "config should be valid")

	h, err := New(Options{Config: cfg, Client: client})
	require.NoError(t, err, "New should succeed")
	return h
}

func TestCommands(t *testing.T) {
	h := newTestHost(t, &fakeClient{}, nil)

	assert.Equal(t, []Command{
		{Name: CommandShare, Description: "Share the project with the collaboration service"},
		{Name: CommandShareAsync, Description: "Share the project on a background worker", Async: true},
	}, h.Commands(), "both share commands should be registered")

	cmd, err := h.Lookup("cliplant360share")
	require.NoError(t, err, "lookup should ignore case")
	assert.Equal(t, CommandShare, cmd.Name, "command should match")

	_, err = h.Lookup("PLANTSYNC")
	require.Error(t, err, "unknown command should fail")
	assert.ErrorIs(t, err, ErrUnknownCommand, "error should be ErrUnknownCommand")
	assert.Contains(t, err.Error(), "CLIPLANT360SHARE, CLIPLANT360SHAREASYNC", "error should list the commands")
}

func TestRun(t *testing.T) {
	tests := []struct {
		name string
		cmd  string
	}{
		{name: "sync", cmd: CommandShare},
		{name: "async", cmd: CommandShareAsync},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &fakeClient{}
			h := newTestHost(t, client, nil)
			rec := status.NewRecorder()

			res, err := h.Run(context.Background(), tt.cmd, rec)
			require.NoError(t, err, "Run should succeed")
			assert.Equal(t, operation.OutcomeDone, res.Outcome, "share should finish: %s", res)

			lines := rec.Lines()
			require.NotEmpty(t, lines, "lines expected")
			assert.Equal(t, StartMessage, lines[0], "start line should come first")

			require.Len(t, client.uploaded, 1, "one upload expected")
			assert.Equal(t, "Demo", client.uploaded[0].ProjectName, "project name should be uploaded")
		})
	}
}

func TestRunTimeout(t *testing.T) {
	client := &fakeClient{block: make(chan struct{})}
	h := newTestHost(t, client, func(cfg *config.Config) {
		cfg.Timeout = 500 * time.Millisecond
	})
	rec := status.NewRecorder()

	res, err := h.Run(context.Background(), CommandShare, rec)
	require.NoError(t, err, "a timeout is an outcome, not a host error")
	assert.Equal(t, operation.OutcomeCanceled, res.Outcome, "timeout should cancel: %s", res)
	assert.True(t, errors.Is(res.Err(), context.DeadlineExceeded), "error should be the deadline")

	lines := rec.Lines()
	assert.Equal(t, operation.CanceledMessage, lines[len(lines)-1], "cancel line should come last")
}

func TestRunErrors(t *testing.T) {
	t.Run("unknown_command", func(t *testing.T) {
		h := newTestHost(t, &fakeClient{}, nil)
		_, err := h.Run(context.Background(), "NOPE", nil)
		assert.ErrorIs(t, err, ErrUnknownCommand, "unknown command is a host error")
	})

	t.Run("no_project_path", func(t *testing.T) {
		h := newTestHost(t, &fakeClient{}, func(cfg *config.Config) { cfg.ProjectPath = "" })
		_, err := h.Run(context.Background(), CommandShare, nil)
		assert.Error(t, err, "missing project path is a host error")
	})

	t.Run("project_cannot_open", func(t *testing.T) {
		h := newTestHost(t, &fakeClient{}, func(cfg *config.Config) { cfg.ProjectPath = t.TempDir() })
		rec := status.NewRecorder()
		res, err := h.Run(context.Background(), CommandShare, rec)
		require.NoError(t, err, "a broken project is an outcome")
		assert.Equal(t, operation.OutcomeFailed, res.Outcome, "share should fail")
		assert.Len(t, rec.Lines(), 2, "start line and one error line expected")
	})
}

func TestNewRequiresOptions(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err, "config is required")

	_, err = New(Options{Config: config.Default()})
	assert.Error(t, err, "client is required")
}
