package main

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatVersion(t *testing.T) {
	tests := []struct {
		name     string
		info     VersionInfo
		contains []string
	}{
		{
			name:     "clean",
			info:     VersionInfo{Version: "v1.0.0", Revision: "abc123", GoVersion: "go1.24.0", Platform: "linux/amd64"},
			contains: []string{"plantshare version info", "Version:   v1.0.0", "Revision:  abc123\n", "Platform:  linux/amd64"},
		},
		{
			name:     "modified",
			info:     VersionInfo{Version: "dev", Revision: "abc123", Modified: true},
			contains: []string{"Revision:  abc123 (modified)"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := FormatVersion(&tt.info)
			for _, want := range tt.contains {
				assert.Contains(t, out, want, "formatted version should contain %q", want)
			}
		})
	}
}

func TestVersionCmdJSON(t *testing.T) {
	cmd := newVersionCmd()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetArgs([]string{"--json"})

	require.NoError(t, cmd.Execute(), "version should succeed")

	var info VersionInfo
	require.NoError(t, json.Unmarshal(buf.Bytes(), &info), "output should be JSON")
	assert.NotEmpty(t, info.Version, "version should be set")
	assert.NotEmpty(t, info.GoVersion, "go version should be set")
}
