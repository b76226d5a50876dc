package realtime

import (
	"time"
)

// New selects the realtime source appropriate for this platform: an
// inotify watch when enabled is true, otherwise the poll fallback.
func New(root string, enabled bool, window time.Duration, pollInterval uint32) (Source, error) {
	if !enabled {
		return NewPollSource(root, pollInterval, window), nil
	}
	return NewInotifySource(root, window, pollInterval)
}
