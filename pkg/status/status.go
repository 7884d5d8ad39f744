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

package status

import (
	"context"
	"sync"
)

// 📣 Sink receives single-line status messages meant for the operator.
// It is the only way the share workflow talks to whoever invoked it.
type Sink interface {
	WriteLine(ctx context.Context, msg string)
}

// SinkFunc adapts a plain function to a Sink
type SinkFunc func(ctx context.Context, msg string)

func (f SinkFunc) WriteLine(ctx context.Context, msg string) {
	f(ctx, msg)
}

// Discard drops every line
var Discard Sink = SinkFunc(func(context.Context, string) {})

// 🔀 Multi fans a line out to every non-nil sink in order
func Multi(sinks ...Sink) Sink {
	filtered := make([]Sink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			filtered = append(filtered, s)
		}
	}
	return SinkFunc(func(ctx context.Context, msg string) {
		for _, s := range filtered {
			s.WriteLine(ctx, msg)
		}
	})
}

// 📼 Recorder keeps every line it receives. Safe for concurrent use, the
// heartbeat writes from its own goroutine.
type Recorder struct {
	mu    sync.Mutex
	lines []string
}

// 🏭 NewRecorder creates an empty recorder
func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) WriteLine(ctx context.Context, msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, msg)
}

// Lines returns a copy of the recorded lines
func (r *Recorder) Lines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.lines))
	copy(out, r.lines)
	return out
}

// Len returns the number of recorded lines
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.lines)
}
