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

	"github.com/rs/zerolog"

	"github.com/walteh/plantshare/pkg/project"
)

// 🏃 Runner executes a workflow in the calling goroutine or in its own
type Runner struct {
	workflow *Workflow
	async    bool
}

// 🏗️ NewRunner creates a new runner
func NewRunner(workflow *Workflow, async bool) *Runner {
	return &Runner{
		workflow: workflow,
		async:    async,
	}
}

// 🏃 Run executes the workflow against current
func (r *Runner) Run(ctx context.Context, current *project.Project) *Result {
	if r.async {
		return r.runAsync(ctx, current)
	}
	return r.runSync(ctx, current)
}

// 🔄 runSync runs the workflow in the caller's goroutine. A failed upload is
// not expected on this path and is logged as such.
func (r *Runner) runSync(ctx context.Context, current *project.Project) *Result {
	res := r.workflow.Run(ctx, current)
	if res.Outcome == OutcomeFailed && res.Phase == PhaseUploading {
		zerolog.Ctx(ctx).Error().
			Bool("unexpected", true).
			Strs("errors", res.Messages()).
			Msg("upload failed on the synchronous path")
	}
	return res
}

// ⚡ runAsync runs the workflow on its own goroutine. The workflow honors
// ctx, so a cancel still waits for its cleanup and returns its result.
func (r *Runner) runAsync(ctx context.Context, current *project.Project) *Result {
	done := make(chan *Result, 1)

	go func() {
		done <- r.workflow.Run(ctx, current)
	}()

	select {
	case <-ctx.Done():
		zerolog.Ctx(ctx).Warn().Err(ctx.Err()).Msg("share canceled, waiting for cleanup")
		return <-done
	case res := <-done:
		return res
	}
}
