package filesystem

import (
	"strings"
)

const (
	// TemporaryNamePrefix is the file name prefix used for all temporary
	// files and directories created by the agent. Poll-based watching
	// (WatchPoll) ignores files with this prefix; the scan engine does not
	// filter on it.
	TemporaryNamePrefix = ".fim-temporary-"
)

// IsTemporaryFileName returns whether or not the specified (base) file name
// indicates a temporary file created by this package.
func IsTemporaryFileName(name string) bool {
	return strings.HasPrefix(name, TemporaryNamePrefix)
}
