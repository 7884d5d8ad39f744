package remote

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/plantshare/pkg/project"
)

// ManifestPath is where the share manifest is written inside the target
const ManifestPath = ".plantshare/associations.json"

// 📜 Manifest describes one share next to the uploaded files
type Manifest struct {
	InstanceID   string                           `json:"instance_id"`
	Project      string                           `json:"project"`
	Hub          string                           `json:"hub"`
	Target       string                           `json:"target"`
	SharedAt     time.Time                        `json:"shared_at"`
	Files        []string                         `json:"files"`
	Associations map[string][]project.Association `json:"associations"`
}

// StagedFiles lists the slash separated paths of every regular file under root
func StagedFiles(ctx context.Context, root string) ([]string, error) {
	fs := osfs.New(root)
	var files []string
	err := util.Walk(fs, "/", func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		files = append(files, strings.TrimPrefix(filepath.ToSlash(path), "/"))
		return nil
	})
	if err != nil {
		return nil, errors.Errorf("listing staged files: %w", err)
	}
	sort.Strings(files)
	return files, nil
}

// BuildManifest renders the share manifest for req
func BuildManifest(req UploadRequest, files []string, now time.Time) ([]byte, error) {
	assoc := req.Associations
	if assoc == nil {
		assoc = map[string][]project.Association{}
	}
	m := Manifest{
		InstanceID:   req.InstanceID.String(),
		Project:      req.ProjectName,
		Hub:          req.Target.Hub.ID,
		Target:       req.Target.String(),
		SharedAt:     now.UTC(),
		Files:        files,
		Associations: assoc,
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, errors.Errorf("marshaling share manifest: %w", err)
	}
	return data, nil
}

// Prefix returns the slash separated location of a share inside its target
// project: the folder, when there is one, then the project name
func (r UploadRequest) Prefix() string {
	parts := []string{}
	if r.Target.Folder != nil {
		parts = append(parts, r.Target.Folder.Name)
	}
	parts = append(parts, r.ProjectName)
	return strings.Join(parts, "/")
}
