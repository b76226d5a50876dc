// +build darwin,!cgo

package realtime

import (
	"time"
)

// New falls back to poll-based coverage on Darwin builds without cgo,
// since the FSEvents binding requires it.
func New(root string, enabled bool, window time.Duration, pollInterval uint32) (Source, error) {
	return NewPollSource(root, pollInterval, window), nil
}
