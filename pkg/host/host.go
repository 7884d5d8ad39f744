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

// Package host registers the share commands and runs them against the
// configured project and backend.
package host

import (
	"context"
	"io"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/plantshare/pkg/config"
	"github.com/walteh/plantshare/pkg/engine"
	"github.com/walteh/plantshare/pkg/operation"
	"github.com/walteh/plantshare/pkg/project"
	"github.com/walteh/plantshare/pkg/remote"
	"github.com/walteh/plantshare/pkg/status"
)

const (
	// CommandShare shares the project and waits for the workflow
	CommandShare = "CLIPLANT360SHARE"
	// CommandShareAsync shares the project on a background goroutine
	CommandShareAsync = "CLIPLANT360SHAREASYNC"

	// StartMessage is written before a share command starts
	StartMessage = "Uploading project to Collaboration for Plant3D ACC..."
)

// ErrUnknownCommand is returned for names that are not registered
var ErrUnknownCommand = errors.Base("unknown command")

// 📟 Command is a modal command exposed by the host
type Command struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Async       bool   `json:"async"`
}

// 🔧 Options configure a host
type Options struct {
	Config *config.Config
	Client remote.Client
	// Registry resolves storage engines, the default registry when nil
	Registry *engine.Registry
	// Spinner receives the upload spinner, none when nil
	Spinner io.Writer
}

// 🏠 Host runs share commands
type Host struct {
	cfg      *config.Config
	client   remote.Client
	registry *engine.Registry
	spinner  io.Writer
	commands map[string]Command
}

// 🏭 New creates a host with both share commands registered
func New(opts Options) (*Host, error) {
	if opts.Config == nil {
		return nil, errors.New("config is required")
	}
	if opts.Client == nil {
		return nil, errors.New("client is required")
	}
	registry := opts.Registry
	if registry == nil {
		registry = engine.DefaultRegistry()
	}

	h := &Host{
		cfg:      opts.Config,
		client:   opts.Client,
		registry: registry,
		spinner:  opts.Spinner,
		commands: map[string]Command{},
	}
	h.register(Command{Name: CommandShare, Description: "Share the project with the collaboration service"})
	h.register(Command{Name: CommandShareAsync, Description: "Share the project on a background worker", Async: true})
	return h, nil
}

func (h *Host) register(cmd Command) {
	h.commands[cmd.Name] = cmd
}

// Commands returns the registered commands sorted by name
func (h *Host) Commands() []Command {
	out := make([]Command, 0, len(h.commands))
	for _, cmd := range h.commands {
		out = append(out, cmd)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Lookup finds a command by name, ignoring case
func (h *Host) Lookup(name string) (Command, error) {
	if cmd, ok := h.commands[strings.ToUpper(name)]; ok {
		return cmd, nil
	}
	names := make([]string, 0, len(h.commands))
	for _, cmd := range h.Commands() {
		names = append(names, cmd.Name)
	}
	return Command{}, errors.Errorf("%w %q, options: %s", ErrUnknownCommand, name, strings.Join(names, ", "))
}

// 🚀 Run executes the named command. Workflow outcomes are reported through
// sink and the result; an error means the command could not be started.
func (h *Host) Run(ctx context.Context, name string, sink status.Sink) (*operation.Result, error) {
	cmd, err := h.Lookup(name)
	if err != nil {
		return nil, err
	}
	if h.cfg.ProjectPath == "" {
		return nil, errors.New("no project path configured")
	}
	if sink == nil {
		sink = status.Discard
	}

	logger := zerolog.Ctx(ctx).With().Str("command", cmd.Name).Logger()
	ctx = logger.WithContext(ctx)

	wf, err := operation.New(operation.Options{
		Client: h.client,
		Sink:   sink,
		Target: remote.Identifiers{
			Hub:     h.cfg.Hub,
			Project: h.cfg.Project,
			Folder:  h.cfg.Folder,
		},
		WorkDir:   h.cfg.WorkDir,
		CacheFile: h.cfg.CacheFile,
		Exclude:   h.cfg.Exclude,
		Heartbeat: h.cfg.Heartbeat,
		Spinner:   h.spinner,
		Registry:  h.registry,
	})
	if err != nil {
		return nil, errors.Errorf("creating workflow: %w", err)
	}

	sink.WriteLine(ctx, StartMessage)

	ctx, cancel := context.WithTimeout(ctx, h.cfg.Timeout)
	defer cancel()

	current, err := project.Open(ctx, h.cfg.ProjectPath, project.OpenOptions{Registry: h.registry})
	if err != nil {
		logger.Error().Err(err).Str("path", h.cfg.ProjectPath).Msg("opening project")
		sink.WriteLine(ctx, status.NewDefaultFormatter().FormatError(err))
		return &operation.Result{Outcome: operation.OutcomeFailed, Phase: operation.PhaseIdle, Errors: []error{err}}, nil
	}
	defer func() {
		if !current.Closed() {
			if err := current.Close(); err != nil {
				logger.Warn().Err(err).Msg("closing project")
			}
		}
	}()

	res := operation.NewRunner(wf, cmd.Async).Run(ctx, current)
	logger.Debug().Str("result", res.String()).Msg("command finished")
	return res, nil
}
