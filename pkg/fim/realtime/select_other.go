// +build !linux,!darwin

package realtime

import (
	"time"
)

// New selects the realtime source appropriate for this platform. Neither
// inotify nor FSEvents is available here, so it always falls back to
// poll-based coverage.
func New(root string, enabled bool, window time.Duration, pollInterval uint32) (Source, error) {
	return NewPollSource(root, pollInterval, window), nil
}
