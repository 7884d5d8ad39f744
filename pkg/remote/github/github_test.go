package github

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/walteh/plantshare/pkg/config"
	"github.com/walteh/plantshare/pkg/project"
	"github.com/walteh/plantshare/pkg/remote"
	"github.com/walteh/plantshare/pkg/session"
)

type fakeGitHub struct {
	mu       sync.Mutex
	token    string
	blobs    []string
	tree     map[string]any
	commit   map[string]any
	refPatch map[string]any
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func (f *fakeGitHub) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	auth := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") != "Bearer "+f.token {
				w.WriteHeader(http.StatusUnauthorized)
				writeJSON(w, map[string]string{"message": "Bad credentials"})
				return
			}
			next(w, r)
		}
	}
	decode := func(r *http.Request) map[string]any {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body), "request body should be JSON")
		return body
	}

	mux.HandleFunc("GET /user", auth(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"login": "octocat", "node_id": "U_1"})
	}))
	mux.HandleFunc("GET /user/orgs", auth(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, []any{map[string]any{"login": "plant-org", "node_id": "O_1"}})
	}))
	mux.HandleFunc("GET /user/repos", auth(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, []any{
			map[string]any{"node_id": "R_1", "full_name": "octocat/demo", "owner": map[string]any{"login": "octocat"}},
			map[string]any{"node_id": "R_X", "full_name": "someone/fork", "owner": map[string]any{"login": "someone"}},
		})
	}))
	mux.HandleFunc("GET /orgs/plant-org/repos", auth(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, []any{map[string]any{"node_id": "R_2", "full_name": "plant-org/plants", "owner": map[string]any{"login": "plant-org"}}})
	}))
	mux.HandleFunc("GET /repos/octocat/demo/contents/", auth(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, []any{
			map[string]any{"type": "dir", "path": "Drawings", "sha": "d1"},
			map[string]any{"type": "file", "path": "README.md", "sha": "f1"},
		})
	}))
	mux.HandleFunc("GET /repos/octocat/demo", auth(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"full_name": "octocat/demo", "default_branch": "main"})
	}))
	mux.HandleFunc("GET /repos/octocat/demo/git/ref/heads/main", auth(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"ref": "refs/heads/main", "object": map[string]any{"sha": "p1", "type": "commit"}})
	}))
	mux.HandleFunc("GET /repos/octocat/demo/git/commits/p1", auth(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"sha": "p1", "tree": map[string]any{"sha": "t0"}})
	}))
	mux.HandleFunc("POST /repos/octocat/demo/git/blobs", auth(func(w http.ResponseWriter, r *http.Request) {
		body := decode(r)
		data, err := base64.StdEncoding.DecodeString(body["content"].(string))
		require.NoError(t, err, "blob should be base64")
		f.mu.Lock()
		f.blobs = append(f.blobs, string(data))
		n := len(f.blobs)
		f.mu.Unlock()
		w.WriteHeader(http.StatusCreated)
		writeJSON(w, map[string]any{"sha": "b" + string(rune('0'+n))})
	}))
	mux.HandleFunc("POST /repos/octocat/demo/git/trees", auth(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.tree = decode(r)
		f.mu.Unlock()
		w.WriteHeader(http.StatusCreated)
		writeJSON(w, map[string]any{"sha": "t1"})
	}))
	mux.HandleFunc("POST /repos/octocat/demo/git/commits", auth(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.commit = decode(r)
		f.mu.Unlock()
		w.WriteHeader(http.StatusCreated)
		writeJSON(w, map[string]any{"sha": "c1"})
	}))
	mux.HandleFunc("PATCH /repos/octocat/demo/git/refs/heads/main", auth(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.refPatch = decode(r)
		f.mu.Unlock()
		writeJSON(w, map[string]any{"ref": "refs/heads/main", "object": map[string]any{"sha": "c1"}})
	}))
	return mux
}

func newTestClient(t *testing.T, fake *fakeGitHub, env map[string]string, prompt string) (*Client, session.Store) {
	t.Helper()
	server := httptest.NewServer(fake.handler(t))
	t.Cleanup(server.Close)

	cfg := config.Default()
	cfg.GitHub.BaseURL = server.URL
	store := session.NewFileStore(t.TempDir())

	c, err := New(context.Background(), remote.Options{Config: cfg, Sessions: store, Prompter: remote.StaticPrompter(prompt)})
	require.NoError(t, err, "New should succeed")
	client := c.(*Client)
	client.getenv = func(k string) string { return env[k] }
	return client, store
}

func TestLookup(t *testing.T) {
	ctx := zerolog.Nop().WithContext(context.Background())

	t.Run("no_token", func(t *testing.T) {
		c, _ := newTestClient(t, &fakeGitHub{token: "good"}, nil, "")
		s, err := c.Lookup(ctx)
		require.NoError(t, err, "Lookup should succeed")
		assert.Nil(t, s, "no session without a token")
	})

	t.Run("env_token", func(t *testing.T) {
		c, _ := newTestClient(t, &fakeGitHub{token: "good"}, map[string]string{"GITHUB_TOKEN": "good"}, "")
		s, err := c.Lookup(ctx)
		require.NoError(t, err, "Lookup should succeed")
		require.NotNil(t, s, "session expected")
		assert.Equal(t, "octocat", s.User(), "user should match")
	})

	t.Run("rejected_stored_token", func(t *testing.T) {
		c, store := newTestClient(t, &fakeGitHub{token: "good"}, nil, "")
		require.NoError(t, store.Save(ctx, &session.Token{Backend: Name, Value: "stale"}), "Save should succeed")

		s, err := c.Lookup(ctx)
		require.NoError(t, err, "Lookup should succeed")
		assert.Nil(t, s, "rejected token yields no session")

		tok, err := store.Load(ctx, Name)
		require.NoError(t, err, "Load should succeed")
		assert.Nil(t, tok, "rejected token should be forgotten")
	})
}

func TestSignIn(t *testing.T) {
	ctx := context.Background()

	c, store := newTestClient(t, &fakeGitHub{token: "good"}, nil, "good")
	require.NoError(t, c.SignIn(ctx), "SignIn should succeed")

	tok, err := store.Load(ctx, Name)
	require.NoError(t, err, "Load should succeed")
	require.NotNil(t, tok, "token should be stored")
	assert.Equal(t, "octocat", tok.User, "user should be stored")

	s, err := c.Lookup(ctx)
	require.NoError(t, err, "Lookup should succeed")
	assert.NotNil(t, s, "stored token should give a session")

	bad, _ := newTestClient(t, &fakeGitHub{token: "good"}, nil, "wrong")
	assert.Error(t, bad.SignIn(ctx), "a rejected token should fail sign in")

	empty, _ := newTestClient(t, &fakeGitHub{token: "good"}, nil, "")
	assert.Error(t, empty.SignIn(ctx), "no answer should fail sign in")
}

func TestBrowse(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestClient(t, &fakeGitHub{token: "good"}, map[string]string{"GITHUB_TOKEN": "good"}, "")
	s, err := c.Lookup(ctx)
	require.NoError(t, err, "Lookup should succeed")

	hubs, err := s.Hubs(ctx)
	require.NoError(t, err, "Hubs should succeed")
	assert.Equal(t, []remote.Hub{{ID: "U_1", Name: "octocat"}, {ID: "O_1", Name: "plant-org"}}, hubs, "hubs should be the user then orgs")

	projects, err := s.Projects(ctx, hubs[0])
	require.NoError(t, err, "Projects should succeed")
	assert.Equal(t, []remote.Project{{ID: "R_1", Name: "octocat/demo", RootFolder: "octocat/demo:/"}}, projects, "only owned repos should be listed")

	projects, err = s.Projects(ctx, hubs[1])
	require.NoError(t, err, "Projects should succeed")
	require.Len(t, projects, 1, "org repos expected")
	assert.Equal(t, "plant-org/plants", projects[0].Name, "org repo should match")

	folders, err := s.Folders(ctx, hubs[0], remote.Project{Name: "octocat/demo"})
	require.NoError(t, err, "Folders should succeed")
	assert.Equal(t, []remote.Folder{{ID: "d1", Name: "Drawings"}}, folders, "only directories should be listed")

	target, err := remote.Resolve(ctx, s, remote.Identifiers{Hub: "octocat", Project: "R_1", Folder: "Drawings"})
	require.NoError(t, err, "Resolve should succeed")
	require.NotNil(t, target, "target expected")
	assert.Equal(t, "octocat/octocat/demo/Drawings", target.String(), "target should resolve to the folder")
}

func TestUpload(t *testing.T) {
	ctx := context.Background()
	fake := &fakeGitHub{token: "good"}
	c, _ := newTestClient(t, fake, map[string]string{"GITHUB_TOKEN": "good"}, "")
	s, err := c.Lookup(ctx)
	require.NoError(t, err, "Lookup should succeed")

	ds, err := c.DocumentServer(ctx, s)
	require.NoError(t, err, "DocumentServer should succeed")
	require.NoError(t, ds.SignIn(ctx), "document server sign in should succeed")

	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "PID DWG"), 0755), "mkdir should succeed")
	require.NoError(t, os.WriteFile(filepath.Join(root, "Project.xml"), []byte("<Project/>"), 0644), "write should succeed")
	require.NoError(t, os.WriteFile(filepath.Join(root, "PID DWG", "P-101.dwg"), []byte("dwg"), 0644), "write should succeed")

	folder := remote.Folder{ID: "d1", Name: "Drawings"}
	receipt, err := ds.Upload(ctx, remote.UploadRequest{
		InstanceID:  ds.InstanceID(),
		ProjectName: "Demo",
		Root:        root,
		Target: remote.Target{
			Hub:     remote.Hub{ID: "U_1", Name: "octocat"},
			Project: remote.Project{ID: "R_1", Name: "octocat/demo"},
			Folder:  &folder,
		},
		Associations: map[string][]project.Association{
			"PID DWG/P-101.dwg": {{Source: "PID DWG/P-101.dwg", Related: "Project.xml", RelatedPart: project.PnId}},
		},
	})
	require.NoError(t, err, "Upload should succeed")
	assert.Equal(t, 2, receipt.Files, "two files should be uploaded")
	assert.Equal(t, "octocat/demo@c1:Drawings/Demo", receipt.Location, "location should name the commit")
	assert.Equal(t, []string{"PID DWG/P-101.dwg", "Project.xml"}, receipt.Paths, "uploaded paths should be listed")
	assert.NotEqual(t, uuid.Nil, ds.InstanceID(), "instance id should be set")

	fake.mu.Lock()
	defer fake.mu.Unlock()

	require.Len(t, fake.blobs, 3, "two files and the manifest should be uploaded")
	assert.Contains(t, fake.blobs[2], `"instance_id": "`+ds.InstanceID().String()+`"`, "manifest should carry the instance id")

	assert.Equal(t, "t0", fake.tree["base_tree"], "tree should build on the parent tree")
	entries := fake.tree["tree"].([]any)
	var paths []string
	for _, e := range entries {
		paths = append(paths, e.(map[string]any)["path"].(string))
	}
	assert.Equal(t, []string{"Drawings/Demo/PID DWG/P-101.dwg", "Drawings/Demo/Project.xml", "Drawings/Demo/" + remote.ManifestPath}, paths, "tree paths should be prefixed")

	assert.Equal(t, []any{"p1"}, fake.commit["parents"], "commit should have the branch head as parent")
	assert.Equal(t, "c1", fake.refPatch["sha"], "branch should move to the new commit")
	assert.Equal(t, false, fake.refPatch["force"], "branch update should not be forced")
}

func TestParseRepo(t *testing.T) {
	owner, name, err := parseRepo("octocat/demo")
	require.NoError(t, err, "parseRepo should succeed")
	assert.Equal(t, "octocat", owner, "owner should match")
	assert.Equal(t, "demo", name, "name should match")

	for _, bad := range []string{"demo", "a/b/c", "/demo", ""} {
		_, _, err := parseRepo(bad)
		assert.Error(t, err, "%q should be rejected", bad)
	}
}
