// Package realtime provides change-notification sources that supplement
// periodic scan cycles with near-immediate wakeups.
package realtime

import (
	"context"
	"time"

	"github.com/sentrylabs/fim/pkg/filesystem"
	"github.com/sentrylabs/fim/pkg/state"
)

// Source produces a debounced wakeup signal whenever one or more of its
// watched roots change. All implementations route their raw notifications
// through a state.Coalescer before exposing them, so a burst of kernel
// events collapses to a single wake.
type Source interface {
	// Events returns the debounced wakeup channel.
	Events() <-chan struct{}
	// Close stops the source and releases any underlying OS resources.
	Close() error
}

// pollSource wraps filesystem.WatchPoll, the fallback used on platforms
// without a native implementation, or when realtime watching is disabled
// in favor of plain periodic scanning augmented with more frequent polls.
type pollSource struct {
	coalescer *state.Coalescer
	cancel    context.CancelFunc
	done      chan struct{}
}

// NewPollSource starts a poll-based Source over root, polling every
// interval and coalescing notifications within window.
func NewPollSource(root string, interval uint32, window time.Duration) Source {
	ctx, cancel := context.WithCancel(context.Background())
	coalescer := state.NewCoalescer(window)
	raw := make(chan struct{}, 1)
	done := make(chan struct{})

	go func() {
		filesystem.WatchPoll(ctx, root, raw, interval)
	}()
	go func() {
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				return
			case <-raw:
				coalescer.Strobe()
			}
		}
	}()

	return &pollSource{coalescer: coalescer, cancel: cancel, done: done}
}

func (p *pollSource) Events() <-chan struct{} {
	return p.coalescer.Events()
}

func (p *pollSource) Close() error {
	p.cancel()
	<-p.done
	p.coalescer.Terminate()
	return nil
}
