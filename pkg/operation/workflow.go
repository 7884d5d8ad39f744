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

package operation

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
	"golang.org/x/sync/errgroup"

	"github.com/walteh/plantshare/pkg/engine"
	"github.com/walteh/plantshare/pkg/migrate"
	"github.com/walteh/plantshare/pkg/progress"
	"github.com/walteh/plantshare/pkg/project"
	"github.com/walteh/plantshare/pkg/remote"
	"github.com/walteh/plantshare/pkg/stage"
	"github.com/walteh/plantshare/pkg/status"
	"github.com/walteh/plantshare/pkg/xref"
)

// 🔧 Options contains everything a workflow needs
type Options struct {
	// Client is the collaboration backend
	Client remote.Client
	// Sink receives the operator facing status lines
	Sink status.Sink
	// Formatter renders status lines, the default formatter when nil
	Formatter status.Formatter
	// Target names the hub, project and optional folder to share into
	Target remote.Identifiers
	// WorkDir holds one staging folder per project name
	WorkDir string
	// CacheFile is removed at the start of every run
	CacheFile string
	// Exclude holds doublestar patterns skipped while staging
	Exclude []string
	// Heartbeat is the interval of the upload heartbeat
	Heartbeat time.Duration
	// Spinner, when set, shows a spinner while uploading
	Spinner io.Writer
	// Registry resolves storage engines, the default registry when nil
	Registry *engine.Registry
	// OpenProject opens the staged project, project.Open when nil
	OpenProject func(ctx context.Context, path string, opts project.OpenOptions) (*project.Project, error)
}

// 🔄 Workflow shares a plant project with a collaboration backend
type Workflow struct {
	client      remote.Client
	sink        status.Sink
	formatter   status.Formatter
	target      remote.Identifiers
	workDir     string
	cacheFile   string
	exclude     []string
	heartbeat   time.Duration
	spinner     io.Writer
	registry    *engine.Registry
	converter   *migrate.Converter
	openProject func(ctx context.Context, path string, opts project.OpenOptions) (*project.Project, error)
}

// 🏭 New creates a workflow
func New(opts Options) (*Workflow, error) {
	if opts.Client == nil {
		return nil, errors.New("client is required")
	}
	if opts.WorkDir == "" {
		return nil, errors.New("work dir is required")
	}
	if opts.Target.Hub == "" || opts.Target.Project == "" {
		return nil, errors.New("hub and project identifiers are required")
	}

	w := &Workflow{
		client:      opts.Client,
		sink:        opts.Sink,
		formatter:   opts.Formatter,
		target:      opts.Target,
		workDir:     opts.WorkDir,
		cacheFile:   opts.CacheFile,
		exclude:     opts.Exclude,
		heartbeat:   opts.Heartbeat,
		spinner:     opts.Spinner,
		registry:    opts.Registry,
		openProject: opts.OpenProject,
	}
	if w.sink == nil {
		w.sink = status.Discard
	}
	if w.formatter == nil {
		w.formatter = status.NewDefaultFormatter()
	}
	if w.registry == nil {
		w.registry = engine.DefaultRegistry()
	}
	if w.openProject == nil {
		w.openProject = project.Open
	}
	w.converter = migrate.NewConverter(w.registry)
	return w, nil
}

// run tracks one execution of the workflow
type run struct {
	*Workflow
	res *Result
}

func (r *run) enter(ctx context.Context, phase Phase) {
	r.res.Phase = phase
	r.res.Phases = append(r.res.Phases, phase)
	zerolog.Ctx(ctx).Debug().Str("phase", string(phase)).Msg("entering phase")
	r.sink.WriteLine(ctx, r.formatter.FormatPhase(string(phase)))
}

// 🚀 Run shares current. current must be open; the workflow closes it once
// the staging copy is complete. Run always returns a result, cleanup has
// finished by the time it does.
func (w *Workflow) Run(ctx context.Context, current *project.Project) *Result {
	res := &Result{RunID: uuid.New()}
	logger := zerolog.Ctx(ctx).With().Str("run", res.RunID.String()).Logger()
	ctx = logger.WithContext(ctx)

	r := &run{Workflow: w, res: res}
	res.Phases = append(res.Phases, PhaseIdle)
	res.Phase = PhaseIdle

	outcome, failedAt, err := r.execute(ctx, current)
	switch {
	case err == nil:
		res.Outcome = outcome
		if outcome == OutcomeDone {
			res.Phase = PhaseDone
			res.Phases = append(res.Phases, PhaseDone)
		}
		logger.Info().Str("outcome", string(outcome)).Msg("share finished")
	case isCanceled(ctx, err):
		res.Outcome = OutcomeCanceled
		res.Phase = failedAt
		res.Phases = append(res.Phases, PhaseCanceled)
		res.Errors = []error{err}
		logger.Warn().Err(err).Str("phase", string(failedAt)).Msg("share canceled")
		w.sink.WriteLine(ctx, CanceledMessage)
	default:
		res.Outcome = OutcomeFailed
		res.Phase = failedAt
		res.Phases = append(res.Phases, PhaseFailed)
		res.Errors = flatten(err)
		logger.Error().Err(err).Str("phase", string(failedAt)).Msg("share failed")
		for _, e := range res.Errors {
			w.sink.WriteLine(ctx, w.formatter.FormatError(e))
		}
	}
	return res
}

// execute walks the phases. It returns the phase that was running when an
// error stopped the run.
func (r *run) execute(ctx context.Context, current *project.Project) (outcome Outcome, failedAt Phase, err error) {
	logger := zerolog.Ctx(ctx)

	if current == nil {
		return "", PhaseIdle, errors.New("no project is open")
	}

	if err := r.clearCache(ctx); err != nil {
		return "", PhaseIdle, err
	}

	// authenticating
	r.enter(ctx, PhaseAuthenticating)
	session, err := r.authenticate(ctx)
	if err != nil {
		return "", PhaseAuthenticating, err
	}
	if session == nil {
		logger.Info().Str("backend", r.client.Name()).Msg("no session after sign in")
		return OutcomeNotReady, "", nil
	}

	// resolving-target
	r.enter(ctx, PhaseResolvingTarget)
	target, err := remote.Resolve(ctx, session, r.target)
	if err != nil {
		return "", PhaseResolvingTarget, err
	}
	if target == nil {
		logger.Info().Str("hub", r.target.Hub).Str("project", r.target.Project).Msg("target not found")
		return OutcomeNothingToDo, "", nil
	}
	r.res.Target = target
	logger.Debug().Str("target", target.String()).Msg("resolved target")

	// staging
	r.enter(ctx, PhaseStaging)
	staged := stage.WorkingFolder(r.workDir, current.Name())
	stats, err := stage.Copy(ctx, current.Path(), staged, stage.Options{Exclude: r.exclude})
	if err != nil {
		return "", PhaseStaging, errors.Errorf("staging project: %w", err)
	}
	logger.Debug().Int("files", stats.Files).Int("dirs", stats.Dirs).Int("skipped", stats.Skipped).Str("path", staged).Msg("staged project")

	// migrating
	class, err := current.PrimaryEngine()
	if err != nil {
		return "", PhaseStaging, err
	}
	if class != engine.SQLite {
		r.enter(ctx, PhaseMigrating)
		if !r.converter.Convert(ctx, staged, current.Credentials()) {
			if err := ctx.Err(); err != nil {
				return "", PhaseMigrating, errors.Errorf("converting project databases: %w", err)
			}
			return "", PhaseMigrating, errors.Errorf("converting %s project databases to sqlite failed", class)
		}
		r.res.Migrated = true
	} else {
		logger.Debug().Msg("project already uses sqlite, skipping migration")
	}

	if err := current.Close(); err != nil {
		logger.Warn().Err(err).Msg("closing source project")
	}

	// reopening-project
	r.enter(ctx, PhaseReopeningProject)
	reopened, err := r.openProject(ctx, staged, project.OpenOptions{Registry: r.registry})
	if err != nil {
		return "", PhaseReopeningProject, errors.Errorf("reopening staged project: %w", err)
	}
	defer func() {
		r.enter(ctx, PhaseClosing)
		if cerr := reopened.Close(); cerr != nil {
			err = errors.Join(err, cerr)
			if failedAt == "" {
				failedAt = PhaseClosing
			}
		}
	}()

	// normalizing-layout
	r.enter(ctx, PhaseNormalizingLayout)
	isoFolder := ""
	if iso, ok := reopened.Parts().Iso(); ok {
		rel, err := filepath.Rel(reopened.Path(), iso.IsometricFolder())
		if err != nil {
			return "", PhaseNormalizingLayout, errors.Errorf("locating isometric folder: %w", err)
		}
		isoFolder = filepath.ToSlash(rel)
	}
	created, err := stage.Normalize(osfs.New(reopened.Path()), "", isoFolder)
	if err != nil {
		return "", PhaseNormalizingLayout, errors.Errorf("normalizing layout: %w", err)
	}
	logger.Debug().Strs("created", created).Msg("normalized layout")

	// collecting-associations
	r.enter(ctx, PhaseCollectingAssociations)
	assoc, err := xref.Collect(ctx, reopened.Parts())
	if err != nil {
		return "", PhaseCollectingAssociations, err
	}
	r.res.Associations = assoc
	logger.Debug().Int("files", len(assoc)).Int("associations", assoc.Count()).Msg("collected associations")

	// signing-in-document-server
	r.enter(ctx, PhaseSigningInDocumentServer)
	ds, err := r.client.DocumentServer(ctx, session)
	if err != nil {
		return "", PhaseSigningInDocumentServer, errors.Errorf("creating document server: %w", err)
	}
	if err := ds.SignIn(ctx); err != nil {
		return "", PhaseSigningInDocumentServer, err
	}

	// uploading
	r.enter(ctx, PhaseUploading)
	receipt, err := r.upload(ctx, ds, remote.UploadRequest{
		InstanceID:   ds.InstanceID(),
		Target:       *target,
		ProjectName:  reopened.Name(),
		Root:         reopened.Path(),
		Associations: assoc,
	})
	if err != nil {
		return "", PhaseUploading, err
	}
	r.res.Uploaded = receipt
	logger.Info().Int("files", receipt.Files).Str("location", receipt.Location).Msg("uploaded project")

	return OutcomeDone, "", nil
}

func (r *run) clearCache(ctx context.Context) error {
	if r.cacheFile == "" {
		return nil
	}
	if err := os.Remove(r.cacheFile); err != nil && !os.IsNotExist(err) {
		return errors.Errorf("removing collaboration cache: %w", err)
	}
	zerolog.Ctx(ctx).Debug().Str("file", r.cacheFile).Msg("cleared collaboration cache")
	return nil
}

// authenticate reuses the backend's session or signs in once
func (r *run) authenticate(ctx context.Context) (remote.Session, error) {
	logger := zerolog.Ctx(ctx)

	session, err := r.client.Lookup(ctx)
	if err != nil {
		return nil, errors.Errorf("looking up session: %w", err)
	}
	if session != nil {
		logger.Debug().Str("user", session.User()).Msg("reusing session")
		return session, nil
	}

	if err := r.client.SignIn(ctx); err != nil {
		if isCanceled(ctx, err) {
			return nil, err
		}
		logger.Warn().Err(err).Str("backend", r.client.Name()).Msg("sign in failed")
	}

	session, err = r.client.Lookup(ctx)
	if err != nil {
		return nil, errors.Errorf("looking up session: %w", err)
	}
	return session, nil
}

// upload runs the upload call next to the heartbeat. The heartbeat is
// canceled once the call returns and is awaited before upload returns.
func (r *run) upload(ctx context.Context, ds remote.DocumentServer, req remote.UploadRequest) (*remote.UploadReceipt, error) {
	g, gctx := errgroup.WithContext(ctx)
	hbCtx, stopHeartbeat := context.WithCancel(gctx)
	defer stopHeartbeat()

	hb := progress.NewHeartbeat(r.sink, progress.Options{
		Interval:  r.heartbeat,
		Formatter: r.formatter,
		Spinner:   r.spinner,
	})
	g.Go(func() error {
		return hb.Run(hbCtx)
	})

	var receipt *remote.UploadReceipt
	g.Go(func() error {
		defer stopHeartbeat()
		out, err := ds.Upload(gctx, req)
		if err != nil {
			return errors.Errorf("uploading project: %w", err)
		}
		receipt = out
		return nil
	})

	err := g.Wait()
	zerolog.Ctx(ctx).Debug().Int("beats", hb.Beats()).Bool("heartbeat_stopped", hb.Stopped()).Msg("upload joined")
	if err != nil {
		return nil, err
	}
	return receipt, nil
}
