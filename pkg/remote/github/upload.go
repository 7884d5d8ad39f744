package github

import (
	"context"
	"encoding/base64"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/google/go-github/v60/github"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/plantshare/pkg/remote"
)

// 📤 DocumentServer commits staged projects to a repository in a single commit
type DocumentServer struct {
	session *Session
	id      uuid.UUID
	now     func() time.Time
}

func newDocumentServer(s *Session) *DocumentServer {
	return &DocumentServer{session: s, id: uuid.New(), now: time.Now}
}

func (d *DocumentServer) InstanceID() uuid.UUID {
	return d.id
}

// SignIn checks the session can still reach the API
func (d *DocumentServer) SignIn(ctx context.Context) error {
	if err := d.session.wait(ctx); err != nil {
		return err
	}
	if _, _, err := d.session.api.Users.Get(ctx, ""); err != nil {
		return errors.Errorf("signing in document server: %w", err)
	}
	return nil
}

// Upload writes every staged file plus the share manifest below the request
// prefix and moves the branch to the new commit
func (d *DocumentServer) Upload(ctx context.Context, req remote.UploadRequest) (*remote.UploadReceipt, error) {
	logger := zerolog.Ctx(ctx)
	s := d.session

	owner, repo, err := parseRepo(req.Target.Project.Name)
	if err != nil {
		return nil, err
	}

	files, err := remote.StagedFiles(ctx, req.Root)
	if err != nil {
		return nil, err
	}

	branch := s.client.cfg.Branch
	if branch == "" {
		if err := s.wait(ctx); err != nil {
			return nil, err
		}
		r, _, err := s.api.Repositories.Get(ctx, owner, repo)
		if err != nil {
			return nil, errors.Errorf("getting repository: %w", err)
		}
		branch = r.GetDefaultBranch()
	}

	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	ref, _, err := s.api.Git.GetRef(ctx, owner, repo, "refs/heads/"+branch)
	if err != nil {
		return nil, errors.Errorf("getting branch %s: %w", branch, err)
	}
	parentSHA := ref.GetObject().GetSHA()

	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	parent, _, err := s.api.Git.GetCommit(ctx, owner, repo, parentSHA)
	if err != nil {
		return nil, errors.Errorf("getting parent commit: %w", err)
	}

	prefix := req.Prefix()
	entries := make([]*github.TreeEntry, 0, len(files)+1)
	for _, rel := range files {
		data, err := os.ReadFile(filepath.Join(req.Root, filepath.FromSlash(rel)))
		if err != nil {
			return nil, errors.Errorf("reading %s: %w", rel, err)
		}
		sha, err := d.blob(ctx, owner, repo, data)
		if err != nil {
			return nil, errors.Errorf("uploading %s: %w", rel, err)
		}
		entries = append(entries, treeEntry(path.Join(prefix, rel), sha))
		logger.Debug().Str("file", rel).Str("sha", sha).Msg("uploaded blob")
	}

	manifest, err := remote.BuildManifest(req, files, d.now())
	if err != nil {
		return nil, err
	}
	sha, err := d.blob(ctx, owner, repo, manifest)
	if err != nil {
		return nil, errors.Errorf("uploading manifest: %w", err)
	}
	entries = append(entries, treeEntry(path.Join(prefix, remote.ManifestPath), sha))

	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	tree, _, err := s.api.Git.CreateTree(ctx, owner, repo, parent.GetTree().GetSHA(), entries)
	if err != nil {
		return nil, errors.Errorf("creating tree: %w", err)
	}

	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	commit, _, err := s.api.Git.CreateCommit(ctx, owner, repo, &github.Commit{
		Message: github.String("Share " + req.ProjectName + " (" + req.InstanceID.String() + ")"),
		Tree:    tree,
		Parents: []*github.Commit{{SHA: github.String(parentSHA)}},
	}, nil)
	if err != nil {
		return nil, errors.Errorf("creating commit: %w", err)
	}

	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	_, _, err = s.api.Git.UpdateRef(ctx, owner, repo, &github.Reference{
		Ref:    github.String("refs/heads/" + branch),
		Object: &github.GitObject{SHA: commit.SHA},
	}, false)
	if err != nil {
		return nil, errors.Errorf("updating branch %s: %w", branch, err)
	}

	return &remote.UploadReceipt{
		Files:    len(files),
		Location: req.Target.Project.Name + "@" + commit.GetSHA() + ":" + prefix,
		Paths:    files,
	}, nil
}

func (d *DocumentServer) blob(ctx context.Context, owner, repo string, data []byte) (string, error) {
	if err := d.session.wait(ctx); err != nil {
		return "", err
	}
	b, _, err := d.session.api.Git.CreateBlob(ctx, owner, repo, &github.Blob{
		Content:  github.String(base64.StdEncoding.EncodeToString(data)),
		Encoding: github.String("base64"),
	})
	if err != nil {
		return "", err
	}
	return b.GetSHA(), nil
}

func treeEntry(p, sha string) *github.TreeEntry {
	return &github.TreeEntry{
		Path: github.String(p),
		Mode: github.String("100644"),
		Type: github.String("blob"),
		SHA:  github.String(sha),
	}
}
