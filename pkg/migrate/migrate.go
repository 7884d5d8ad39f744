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

package migrate

import (
	"context"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/plantshare/pkg/engine"
)

// 📂 Suffixes are the project database files, in conversion order
var Suffixes = []string{
	"ProcessPower.dcf",
	"Piping.dcf",
	"Ortho.dcf",
	"Iso.dcf",
	"Misc.dcf",
}

// TempSuffix is appended to a database file while its copy is written
const TempSuffix = ".new"

// ❌ ConversionError reports which database file failed to convert
type ConversionError struct {
	File string
	Err  error
}

func (e *ConversionError) Error() string {
	return "converting " + e.File + ": " + e.Err.Error()
}

func (e *ConversionError) Unwrap() error {
	return e.Err
}

// 🔁 Converter moves project databases onto the embedded sqlite engine
type Converter struct {
	registry *engine.Registry
}

// NewConverter creates a converter using the given engine registry
func NewConverter(registry *engine.Registry) *Converter {
	if registry == nil {
		registry = engine.DefaultRegistry()
	}
	return &Converter{registry: registry}
}

// Convert converts every project database found in dir. It returns false when
// the context was canceled or any file failed; files converted before the
// failure stay converted.
func (c *Converter) Convert(ctx context.Context, dir string, creds engine.Credentials) bool {
	converted, err := c.ConvertProject(ctx, dir, creds)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Strs("converted", converted).Msg("storage engine migration failed")
		return false
	}
	return true
}

// ConvertProject converts every project database found in dir and returns the
// paths it converted, in order
func (c *Converter) ConvertProject(ctx context.Context, dir string, creds engine.Credentials) ([]string, error) {
	logger := zerolog.Ctx(ctx)
	var converted []string

	for _, suffix := range Suffixes {
		if err := ctx.Err(); err != nil {
			return converted, errors.Errorf("converting project databases: %w", err)
		}

		path := filepath.Join(dir, suffix)
		if _, err := os.Stat(path); err != nil {
			if os.IsNotExist(err) {
				logger.Debug().Str("file", path).Msg("no database for suffix")
				continue
			}
			return converted, &ConversionError{File: path, Err: err}
		}

		if err := c.convertFile(ctx, path, creds); err != nil {
			return converted, &ConversionError{File: path, Err: err}
		}

		logger.Info().Str("file", path).Msg("converted database to sqlite")
		converted = append(converted, path)
	}

	return converted, nil
}

func (c *Converter) convertFile(ctx context.Context, path string, creds engine.Credentials) error {
	tmp := path + TempSuffix
	if err := os.Remove(tmp); err != nil && !os.IsNotExist(err) {
		return errors.Errorf("removing leftover %s: %w", tmp, err)
	}

	source, err := c.registry.OpenFile(ctx, path, creds)
	if err != nil {
		return err
	}

	target := engine.NewLink(engine.SQLite)
	target.Add(engine.ParamDataSource, tmp)

	copied, err := c.registry.CreateCopy(ctx, *target, source)
	source.Close()
	if err != nil {
		os.Remove(tmp)
		return err
	}
	if err := copied.Close(); err != nil {
		os.Remove(tmp)
		return err
	}

	if _, err := os.Stat(tmp); err != nil {
		return errors.Errorf("copy was not written: %w", err)
	}
	if err := os.Remove(path); err != nil {
		return errors.Errorf("removing original: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return errors.Errorf("replacing original: %w", err)
	}
	return nil
}
