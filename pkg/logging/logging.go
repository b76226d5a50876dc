package logging

import (
	"os"
)

// NewRootLogger creates a root logger at the specified level that writes to
// standard error, matching the convention used by daemon and CLI entry
// points.
func NewRootLogger(level Level) *Logger {
	return NewLogger(level, os.Stderr)
}
