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

package config

import (
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/adrg/xdg"
	"gitlab.com/tozd/go/errors"
)

// 📌 Identifiers compiled into the share commands. Configuration may override
// them but the commands themselves never take arguments.
const (
	DefaultHub     = "Developer Advocacy Support"            // HubId - "b.489c5e7a-c6c0-4212-81f3-3529a621210b"
	DefaultProject = "b.1549f155-5acf-4359-a496-f734a2ab05dd" // ProjectId - "PLNT3D-DEV-ADVOCACY"

	DefaultBackend   = "github"
	DefaultTimeout   = 5 * time.Minute
	DefaultHeartbeat = 2 * time.Second

	appName = "plantshare"
)

// 🔐 SessionConfig selects where sign-in tokens are kept
type SessionConfig struct {
	Store     string `json:"store,omitempty" yaml:"store,omitempty" hcl:"store,optional"`                // file | redis
	Dir       string `json:"dir,omitempty" yaml:"dir,omitempty" hcl:"dir,optional"`                      // file store directory
	RedisAddr string `json:"redis_addr,omitempty" yaml:"redis_addr,omitempty" hcl:"redis_addr,optional"` // redis store address
	RedisDB   int    `json:"redis_db,omitempty" yaml:"redis_db,omitempty" hcl:"redis_db,optional"`
}

// 🐙 GitHubConfig configures the github collaboration backend
type GitHubConfig struct {
	TokenEnv string `json:"token_env,omitempty" yaml:"token_env,omitempty" hcl:"token_env,optional"`
	BaseURL  string `json:"base_url,omitempty" yaml:"base_url,omitempty" hcl:"base_url,optional"`
	Branch   string `json:"branch,omitempty" yaml:"branch,omitempty" hcl:"branch,optional"`
}

// 🪣 S3Config configures the s3 collaboration backend
type S3Config struct {
	Region    string `json:"region,omitempty" yaml:"region,omitempty" hcl:"region,optional"`
	Endpoint  string `json:"endpoint,omitempty" yaml:"endpoint,omitempty" hcl:"endpoint,optional"`
	PathStyle bool   `json:"path_style,omitempty" yaml:"path_style,omitempty" hcl:"path_style,optional"`
}

// 📚 Config represents the complete configuration
type Config struct {
	Hub         string        // Hub identifier (ID or name)
	Project     string        // Remote project identifier
	Folder      string        // Optional remote folder identifier
	Backend     string        // Collaboration backend name
	ProjectPath string        // Local Plant project folder
	WorkDir     string        // Collaboration working folder
	CacheFile   string        // Collaboration cache file, removed on every run
	Timeout     time.Duration // Whole-command deadline
	Heartbeat   time.Duration // Upload heartbeat interval
	Exclude     []string      // Doublestar patterns skipped while staging
	Session     SessionConfig
	GitHub      GitHubConfig
	S3          S3Config

	location string
}

// 🏭 Default returns a configuration with every default applied
func Default() *Config {
	cfg := &Config{}
	// defaults cannot fail validation
	_ = cfg.Validate()
	return cfg
}

// 📍 Location returns the file the config was loaded from, if any
func (cfg *Config) Location() string {
	return cfg.location
}

// 🔍 Validate checks the configuration and fills in defaults
func (cfg *Config) Validate() error {
	if cfg.Hub == "" {
		cfg.Hub = DefaultHub
	}
	if cfg.Project == "" {
		cfg.Project = DefaultProject
	}
	if cfg.Backend == "" {
		cfg.Backend = DefaultBackend
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Heartbeat == 0 {
		cfg.Heartbeat = DefaultHeartbeat
	}
	if cfg.Timeout < 0 {
		return errors.Errorf("timeout must be positive, got %s", cfg.Timeout)
	}
	if cfg.Heartbeat < 0 {
		return errors.Errorf("heartbeat must be positive, got %s", cfg.Heartbeat)
	}

	if cfg.WorkDir == "" {
		cfg.WorkDir = filepath.Join(xdg.DataHome, appName, "work")
	}
	if cfg.CacheFile == "" {
		cfg.CacheFile = filepath.Join(xdg.CacheHome, appName, "collaboration-cache.json")
	}

	switch cfg.Session.Store {
	case "":
		cfg.Session.Store = "file"
	case "file", "redis":
	default:
		return errors.Errorf("unknown session store %q", cfg.Session.Store)
	}
	if cfg.Session.Store == "file" && cfg.Session.Dir == "" {
		cfg.Session.Dir = filepath.Join(xdg.ConfigHome, appName)
	}
	if cfg.Session.Store == "redis" && cfg.Session.RedisAddr == "" {
		cfg.Session.RedisAddr = "localhost:6379"
	}

	if cfg.GitHub.TokenEnv == "" {
		cfg.GitHub.TokenEnv = "GITHUB_TOKEN"
	}

	cfg.WorkDir = filepath.Clean(cfg.WorkDir)
	cfg.CacheFile = filepath.Clean(cfg.CacheFile)
	if cfg.ProjectPath != "" {
		cfg.ProjectPath = filepath.Clean(cfg.ProjectPath)
	}

	return nil
}

// 🌱 ApplyEnv overrides fields from PLANTSHARE_* variables
func (cfg *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"PLANTSHARE_HUB":          &cfg.Hub,
		"PLANTSHARE_PROJECT":      &cfg.Project,
		"PLANTSHARE_FOLDER":       &cfg.Folder,
		"PLANTSHARE_BACKEND":      &cfg.Backend,
		"PLANTSHARE_PROJECT_PATH": &cfg.ProjectPath,
		"PLANTSHARE_WORK_DIR":     &cfg.WorkDir,
		"PLANTSHARE_CACHE_FILE":   &cfg.CacheFile,
		"PLANTSHARE_SESSION":      &cfg.Session.Store,
		"PLANTSHARE_REDIS_ADDR":   &cfg.Session.RedisAddr,
	}
	for key, dst := range strs {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	durations := map[string]*time.Duration{
		"PLANTSHARE_TIMEOUT":   &cfg.Timeout,
		"PLANTSHARE_HEARTBEAT": &cfg.Heartbeat,
	}
	for key, dst := range durations {
		v, ok := lookup(key)
		if !ok || v == "" {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return errors.Errorf("parsing %s: %w", key, err)
		}
		*dst = d
	}

	if v, ok := lookup("PLANTSHARE_REDIS_DB"); ok && v != "" {
		db, err := strconv.Atoi(v)
		if err != nil {
			return errors.Errorf("parsing PLANTSHARE_REDIS_DB: %w", err)
		}
		cfg.Session.RedisDB = db
	}

	return cfg.Validate()
}

// 📝 String returns a string representation of the config
func (cfg *Config) String() string {
	target := cfg.Hub + "/" + cfg.Project
	if cfg.Folder != "" {
		target += "/" + cfg.Folder
	}
	return fmt.Sprintf("%s -> %s:%s", cfg.ProjectPath, cfg.Backend, target)
}
