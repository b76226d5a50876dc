package fim

import (
	"context"

	"github.com/sentrylabs/fim/pkg/fim/sink"
)

// RootkitTask is the contract the scheduler uses to interleave a rootkit
// detection pass between scan cycles. It is a seam, not a built-in
// detector: the upstream project's own rootcheck module runs hundreds of
// signature comparisons that are out of scope here. Implementations report
// findings by writing diagnostic lines directly to the rootcheck sink
// topic and return an error only for a failure of the probe itself (not
// for a positive finding).
type RootkitTask func(ctx context.Context, client *sink.Client, roots []RootConfig) error

// NoopRootkitTask is the default RootkitTask, used when no rootcheck
// signatures are configured. It performs no checks and never fails.
func NoopRootkitTask(ctx context.Context, client *sink.Client, roots []RootConfig) error {
	return nil
}
