// Copyright 2025 walteh LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package stage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
)

// 📋 Options tunes a staging copy
type Options struct {
	// Exclude holds doublestar patterns matched against slash separated
	// paths relative to the source root
	Exclude []string
}

// Stats counts what a copy wrote
type Stats struct {
	Files    int
	Dirs     int
	Symlinks int
	Skipped  int
}

// WorkingFolder returns the staging folder of a project under workDir
func WorkingFolder(workDir, projectName string) string {
	return filepath.Join(workDir, projectName)
}

// Copy replaces dst with a full copy of the src tree
func Copy(ctx context.Context, src, dst string, opts Options) (*Stats, error) {
	src, err := filepath.Abs(src)
	if err != nil {
		return nil, errors.Errorf("resolving source: %w", err)
	}
	dst, err = filepath.Abs(dst)
	if err != nil {
		return nil, errors.Errorf("resolving destination: %w", err)
	}
	if dst == src || strings.HasPrefix(dst, src+string(filepath.Separator)) {
		return nil, errors.Errorf("staging folder %s is inside the project %s", dst, src)
	}

	info, err := os.Stat(src)
	if err != nil {
		return nil, errors.Errorf("reading source: %w", err)
	}
	if !info.IsDir() {
		return nil, errors.Errorf("source %s is not a directory", src)
	}

	parent := osfs.New(filepath.Dir(dst))
	base := filepath.Base(dst)
	if err := util.RemoveAll(parent, base); err != nil {
		return nil, errors.Errorf("removing previous staging folder: %w", err)
	}
	if err := parent.MkdirAll(base, info.Mode().Perm()); err != nil {
		return nil, errors.Errorf("creating staging folder: %w", err)
	}
	to, err := parent.Chroot(base)
	if err != nil {
		return nil, errors.Errorf("opening staging folder: %w", err)
	}

	stats, err := CopyFS(ctx, osfs.New(src), to, opts)
	if err != nil {
		return stats, err
	}

	zerolog.Ctx(ctx).Debug().
		Str("src", src).
		Str("dst", dst).
		Int("files", stats.Files).
		Int("dirs", stats.Dirs).
		Int("skipped", stats.Skipped).
		Msg("staged project")
	return stats, nil
}

// CopyFS copies every entry of from into to, keeping modes and symlinks
func CopyFS(ctx context.Context, from, to billy.Filesystem, opts Options) (*Stats, error) {
	for _, pattern := range opts.Exclude {
		if !doublestar.ValidatePattern(pattern) {
			return nil, errors.Errorf("invalid exclude pattern %q", pattern)
		}
	}

	stats := &Stats{}
	err := util.Walk(from, "/", func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		rel := strings.TrimPrefix(filepath.ToSlash(path), "/")
		if rel == "" {
			return nil
		}
		if excluded(opts.Exclude, rel) {
			stats.Skipped++
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		switch {
		case info.Mode()&os.ModeSymlink != 0:
			if err := copySymlink(from, to, rel); err != nil {
				return err
			}
			stats.Symlinks++
		case info.IsDir():
			if err := to.MkdirAll(rel, info.Mode().Perm()); err != nil {
				return errors.Errorf("creating %s: %w", rel, err)
			}
			stats.Dirs++
		default:
			if err := copyFile(from, to, rel, info.Mode().Perm()); err != nil {
				return err
			}
			stats.Files++
		}
		return nil
	})
	if err != nil {
		return stats, errors.Errorf("copying project tree: %w", err)
	}
	return stats, nil
}

func excluded(patterns []string, rel string) bool {
	for _, pattern := range patterns {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}

func copyFile(from, to billy.Filesystem, rel string, perm os.FileMode) error {
	in, err := from.Open(rel)
	if err != nil {
		return errors.Errorf("opening %s: %w", rel, err)
	}
	defer in.Close()

	out, err := to.OpenFile(rel, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return errors.Errorf("creating %s: %w", rel, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return errors.Errorf("copying %s: %w", rel, err)
	}
	if err := out.Close(); err != nil {
		return errors.Errorf("closing %s: %w", rel, err)
	}
	return nil
}

func copySymlink(from, to billy.Filesystem, rel string) error {
	target, err := from.Readlink(rel)
	if err != nil {
		return errors.Errorf("reading link %s: %w", rel, err)
	}
	if err := to.Symlink(target, rel); err != nil {
		return errors.Errorf("creating link %s: %w", rel, err)
	}
	return nil
}
