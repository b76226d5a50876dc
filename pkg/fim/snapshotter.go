package fim

import "context"

// Snapshotter is the contract the scan engine uses to capture a textual
// diff for a path whose record requests SEECHANGES. On an addition it is
// invoked purely for its side effect of recording a baseline snapshot; the
// returned diff is discarded. On a modification the returned diff, if any,
// is attached to the outbound event. An error means the capture itself
// failed, not that there was no diff to report; the caller logs it and
// proceeds without a diff rather than failing the scan.
type Snapshotter func(ctx context.Context, path string) (diff string, err error)

// NoopSnapshotter is the default Snapshotter, used for roots that do not
// request SEECHANGES or when none is configured. It captures nothing and
// never fails.
func NoopSnapshotter(ctx context.Context, path string) (string, error) {
	return "", nil
}
