// +build !linux

package fim

import (
	"context"

	"github.com/sentrylabs/fim/pkg/fim/sink"
)

// DefaultRootkitTask has no hidden-process or promiscuous-interface probes
// implemented outside Linux, but still runs the cross-platform setuid/setgid
// idle-binary check.
func DefaultRootkitTask(ctx context.Context, client *sink.Client, roots []RootConfig) error {
	return checkIdleSetuidBinaries(roots, client)
}
