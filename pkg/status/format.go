package status

import (
	"fmt"
	"time"
)

// Formatter defines how workflow events are rendered as status lines
type Formatter interface {
	// FormatPhase formats the line written when a phase starts
	FormatPhase(phase string) string

	// FormatHeartbeat formats the periodic line written during an upload
	FormatHeartbeat(elapsed time.Duration) string

	// FormatError formats an error message
	FormatError(err error) string
}

// DefaultFormatter provides a default implementation of Formatter
type DefaultFormatter struct{}

// NewDefaultFormatter creates a new DefaultFormatter
func NewDefaultFormatter() *DefaultFormatter {
	return &DefaultFormatter{}
}

var phaseLines = map[string]string{
	"authenticating":             "Signing in to the collaboration service...",
	"resolving-target":           "Resolving hub and project...",
	"staging":                    "Copying project to the collaboration working folder...",
	"migrating":                  "Converting project databases to SQLite...",
	"reopening-project":          "Opening staged project...",
	"normalizing-layout":         "Creating missing project folders...",
	"collecting-associations":    "Collecting xrefs...",
	"signing-in-document-server": "Connecting to the document server...",
	"uploading":                  "Uploading project to Collaboration for Plant3D...",
	"closing":                    "Closing project...",
}

// FormatPhase formats a phase start line
func (f *DefaultFormatter) FormatPhase(phase string) string {
	if line, ok := phaseLines[phase]; ok {
		return line
	}
	return fmt.Sprintf("%s...", phase)
}

// FormatHeartbeat formats the upload heartbeat line
func (f *DefaultFormatter) FormatHeartbeat(elapsed time.Duration) string {
	return fmt.Sprintf("Uploading project... (%s)", elapsed.Truncate(time.Second))
}

// FormatError formats an error message with emoji
func (f *DefaultFormatter) FormatError(err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprintf("❌ Error: %v", err)
}
