package config

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/rs/zerolog"
	"github.com/zclconf/go-cty/cty"
	"gitlab.com/tozd/go/errors"
	"gopkg.in/yaml.v3"
)

// fileConfig is the on-disk shape shared by every format
type fileConfig struct {
	Hub         string         `json:"hub,omitempty" yaml:"hub,omitempty" hcl:"hub,optional"`
	Project     string         `json:"project,omitempty" yaml:"project,omitempty" hcl:"project,optional"`
	Folder      string         `json:"folder,omitempty" yaml:"folder,omitempty" hcl:"folder,optional"`
	Backend     string         `json:"backend,omitempty" yaml:"backend,omitempty" hcl:"backend,optional"`
	ProjectPath string         `json:"project_path,omitempty" yaml:"project_path,omitempty" hcl:"project_path,optional"`
	WorkDir     string         `json:"work_dir,omitempty" yaml:"work_dir,omitempty" hcl:"work_dir,optional"`
	CacheFile   string         `json:"cache_file,omitempty" yaml:"cache_file,omitempty" hcl:"cache_file,optional"`
	Timeout     string         `json:"timeout,omitempty" yaml:"timeout,omitempty" hcl:"timeout,optional"`
	Heartbeat   string         `json:"heartbeat,omitempty" yaml:"heartbeat,omitempty" hcl:"heartbeat,optional"`
	Exclude     []string       `json:"exclude,omitempty" yaml:"exclude,omitempty" hcl:"exclude,optional"`
	Session     *SessionConfig `json:"session,omitempty" yaml:"session,omitempty" hcl:"session,block"`
	GitHub      *GitHubConfig  `json:"github,omitempty" yaml:"github,omitempty" hcl:"github,block"`
	S3          *S3Config      `json:"s3,omitempty" yaml:"s3,omitempty" hcl:"s3,block"`
}

// LoadConfig loads a configuration file from the given path.
// The format is determined by the file extension:
// - .json for JSON
// - .yaml or .yml for YAML
// - .hcl for HCL
func LoadConfig(ctx context.Context, path string) (*Config, error) {
	zerolog.Ctx(ctx).Debug().Str("path", path).Msg("loading configuration")

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Errorf("reading config file: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(path))
	var fc *fileConfig

	switch ext {
	case ".json":
		fc, err = loadJSON(data)
	case ".yaml", ".yml":
		fc, err = loadYAML(data)
	case ".hcl":
		fc, err = loadHCL(data, path)
	default:
		return nil, errors.Errorf("unsupported file extension %q", ext)
	}
	if err != nil {
		return nil, err
	}

	cfg, err := fc.toConfig()
	if err != nil {
		return nil, errors.Errorf("converting config: %w", err)
	}
	cfg.location = path

	if err := cfg.Validate(); err != nil {
		return nil, errors.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// LoadOrDefault loads path when it exists and falls back to Default otherwise
func LoadOrDefault(ctx context.Context, path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		zerolog.Ctx(ctx).Debug().Str("path", path).Msg("config file not found, using defaults")
		return Default(), nil
	}
	return LoadConfig(ctx, path)
}

func (fc *fileConfig) toConfig() (*Config, error) {
	cfg := &Config{
		Hub:         fc.Hub,
		Project:     fc.Project,
		Folder:      fc.Folder,
		Backend:     fc.Backend,
		ProjectPath: fc.ProjectPath,
		WorkDir:     fc.WorkDir,
		CacheFile:   fc.CacheFile,
		Exclude:     fc.Exclude,
	}

	if fc.Timeout != "" {
		d, err := time.ParseDuration(fc.Timeout)
		if err != nil {
			return nil, errors.Errorf("parsing timeout: %w", err)
		}
		cfg.Timeout = d
	}
	if fc.Heartbeat != "" {
		d, err := time.ParseDuration(fc.Heartbeat)
		if err != nil {
			return nil, errors.Errorf("parsing heartbeat: %w", err)
		}
		cfg.Heartbeat = d
	}

	if fc.Session != nil {
		cfg.Session = *fc.Session
	}
	if fc.GitHub != nil {
		cfg.GitHub = *fc.GitHub
	}
	if fc.S3 != nil {
		cfg.S3 = *fc.S3
	}

	return cfg, nil
}

// loadJSON loads a configuration from JSON data
func loadJSON(data []byte) (*fileConfig, error) {
	var fc fileConfig
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&fc); err != nil {
		return nil, errors.Errorf("parsing JSON: %w", err)
	}
	return &fc, nil
}

// loadYAML loads a configuration from YAML data
func loadYAML(data []byte) (*fileConfig, error) {
	var fc fileConfig
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&fc); err != nil {
		return nil, errors.Errorf("parsing YAML: %w", err)
	}
	return &fc, nil
}

// loadHCL loads a configuration from HCL data
func loadHCL(data []byte, filename string) (*fileConfig, error) {
	parser := hclparse.NewParser()
	hclFile, diags := parser.ParseHCL(data, filename)
	if diags.HasErrors() {
		return nil, errors.Errorf("parsing HCL: %s", diags.Error())
	}

	evalCtx := &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"env": envObject(),
		},
	}

	var fc fileConfig
	diags = gohcl.DecodeBody(hclFile.Body, evalCtx, &fc)
	if diags.HasErrors() {
		return nil, errors.Errorf("decoding HCL: %s", diags.Error())
	}

	return &fc, nil
}

// envObject exposes the process environment to HCL as env.NAME
func envObject() cty.Value {
	vals := map[string]cty.Value{}
	for _, kv := range os.Environ() {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			continue
		}
		vals[k] = cty.StringVal(v)
	}
	if len(vals) == 0 {
		return cty.EmptyObjectVal
	}
	return cty.ObjectVal(vals)
}
