package stage

import (
	"os"
	"path"
	"strings"

	"github.com/go-git/go-billy/v5"
	"gitlab.com/tozd/go/errors"
)

// 🗑️ RecycleBin is created at the root of every staged project
const RecycleBin = "Project Recycle Bin"

// IsoConfigFile marks a subfolder of the isometric folder as a style
const IsoConfigFile = "IsoConfig.xml"

// ErrOutsideRoot is returned for an isometric folder that leaves the staged root
var ErrOutsideRoot = errors.Base("isometric folder is outside the project")

// StyleFolders must exist in every isometric style
var StyleFolders = []string{
	"PCFs",
	"ProdIsos/Drawings",
	"QuickIsos/Drawings",
}

// Normalize creates the folders the collaboration service expects in a staged
// project and returns the ones it had to create. isoFolder is relative to root
// and may be empty when the project has no isometric part. It must not leave
// root.
func Normalize(fs billy.Filesystem, root, isoFolder string) ([]string, error) {
	if isoFolder != "" {
		clean := path.Clean(isoFolder)
		if path.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, "../") {
			return nil, errors.Errorf("%w: %s", ErrOutsideRoot, isoFolder)
		}
		isoFolder = clean
	}

	var created []string

	ensure := func(path string) error {
		info, err := fs.Stat(path)
		if err == nil {
			if !info.IsDir() {
				return errors.Errorf("%s exists and is not a folder", path)
			}
			return nil
		}
		if !os.IsNotExist(err) {
			return errors.Errorf("checking %s: %w", path, err)
		}
		if err := fs.MkdirAll(path, 0755); err != nil {
			return errors.Errorf("creating %s: %w", path, err)
		}
		created = append(created, path)
		return nil
	}

	if err := ensure(fs.Join(root, RecycleBin)); err != nil {
		return created, err
	}

	if isoFolder == "" {
		return created, nil
	}

	isoPath := fs.Join(root, isoFolder)
	entries, err := fs.ReadDir(isoPath)
	if err != nil {
		if os.IsNotExist(err) {
			return created, nil
		}
		return created, errors.Errorf("reading isometric folder: %w", err)
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		style := fs.Join(isoPath, entry.Name())
		if _, err := fs.Stat(fs.Join(style, IsoConfigFile)); err != nil {
			continue
		}
		for _, folder := range StyleFolders {
			if err := ensure(fs.Join(style, folder)); err != nil {
				return created, err
			}
		}
	}

	return created, nil
}
