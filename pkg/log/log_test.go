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

package log

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/walteh/plantshare/pkg/status"
)

func fileLine(symbol, path, part, st string) string {
	return strings.TrimSpace(fmt.Sprintf("%s %-*s %-*s %-*s", symbol, nameWidth, path, partWidth, part, statusWidth, st))
}

func TestLogger(t *testing.T) {
	// Disable color for testing
	color.NoColor = true
	defer func() { color.NoColor = false }()

	tests := []struct {
		name     string
		op       func(t *testing.T, logger *Logger)
		wantLogs []string
	}{
		{
			name: "log_file_operation",
			op: func(t *testing.T, logger *Logger) {
				logger.LogFileOperation(context.Background(), FileOperation{
					Path:   "Piping.dcf",
					Part:   "Piping",
					Status: "staged",
					IsNew:  true,
				})
			},
			wantLogs: []string{
				fileLine("✓", "Piping.dcf", "Piping", "staged"),
			},
		},
		{
			name: "log_share_operation",
			op: func(t *testing.T, logger *Logger) {
				logger.StartShareOperation(context.Background(), ShareOperation{
					Project: "Demo",
					Hub:     "Developer Advocacy Support",
					Target:  "PLNT3D-DEV-ADVOCACY",
					WorkDir: "/tmp/work/Demo",
				})
			},
			wantLogs: []string{
				"[sharing /tmp/work/Demo]",
				"◆ Demo → PLNT3D-DEV-ADVOCACY",
			},
		},
		{
			name: "write_line",
			op: func(t *testing.T, logger *Logger) {
				logger.WriteLine(context.Background(), "Uploading project to Collaboration for Plant3D ACC...")
			},
			wantLogs: []string{
				"Uploading project to Collaboration for Plant3D ACC...",
			},
		},
		{
			name: "log_messages",
			op: func(t *testing.T, logger *Logger) {
				logger.Info("info message")
				logger.Warning("warning message")
				logger.Error("error message")
				logger.Success("success message")
			},
			wantLogs: []string{
				"ℹ️  info message",
				"⚠️  warning message",
				"❌ error message",
				"✅ success message",
			},
		},
		{
			name: "log_formatted_messages",
			op: func(t *testing.T, logger *Logger) {
				logger.Infof("info %s", "test")
				logger.Warningf("warning %s", "test")
				logger.Errorf("error %s", "test")
				logger.Successf("success %s", "test")
			},
			wantLogs: []string{
				"ℹ️  info test",
				"⚠️  warning test",
				"❌ error test",
				"✅ success test",
			},
		},
		{
			name: "log_header",
			op: func(t *testing.T, logger *Logger) {
				logger.Header("sharing plant project")
			},
			wantLogs: []string{
				"plantshare • sharing plant project",
			},
		},
		{
			name: "log_newline",
			op: func(t *testing.T, logger *Logger) {
				logger.Info("first")
				logger.LogNewline()
				logger.Info("second")
			},
			wantLogs: []string{
				"ℹ️  first",
				"",
				"ℹ️  second",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			logger := New(buf, zerolog.Nop())

			tt.op(t, logger)

			output := strings.TrimSpace(buf.String())
			lines := strings.Split(output, "\n")

			require.Equal(t, len(tt.wantLogs), len(lines), "number of log lines should match")
			for i, want := range tt.wantLogs {
				assert.Equal(t, want, strings.TrimSpace(lines[i]), "log line %d should match", i)
			}
		})
	}
}

func TestLoggerIsStatusSink(t *testing.T) {
	var sink status.Sink = New(io.Discard, zerolog.Nop())
	assert.NotNil(t, sink, "logger should satisfy status.Sink")
}

func TestFileOperationFormatting(t *testing.T) {
	// Disable color for testing
	color.NoColor = true
	defer func() { color.NoColor = false }()

	tests := []struct {
		name string
		op   FileOperation
		want string
	}{
		{
			name: "staged_file",
			op: FileOperation{
				Path:   "Project.xml",
				Part:   "Project",
				Status: "staged",
				IsNew:  true,
			},
			want: fileLine("✓", "Project.xml", "Project", "staged"),
		},
		{
			name: "converted_file",
			op: FileOperation{
				Path:        "ProcessPower.dcf",
				Part:        "PnId",
				Status:      "converted",
				IsConverted: true,
			},
			want: fileLine("⟳", "ProcessPower.dcf", "PnId", "converted"),
		},
		{
			name: "removed_file",
			op: FileOperation{
				Path:      "collaboration-cache.json",
				Part:      "cache",
				Status:    "removed",
				IsRemoved: true,
			},
			want: fileLine("✗", "collaboration-cache.json", "cache", "removed"),
		},
		{
			name: "uploaded_file_with_xrefs",
			op: FileOperation{
				Path:         "Plant 3D Models/Area1.dwg",
				Part:         "Piping",
				Status:       "uploaded",
				Associations: 2,
			},
			want: fileLine("•", "Plant 3D Models/Area1.dwg", "Piping", "uploaded +2 xref"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			logger := New(buf, zerolog.Nop())

			logger.LogFileOperation(context.Background(), tt.op)

			output := strings.TrimSpace(buf.String())
			assert.Equal(t, tt.want, output, "formatted output should match")
		})
	}
}
