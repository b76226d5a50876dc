// +build darwin,cgo

package realtime

import (
	"os"
	"syscall"
	"time"

	"github.com/mutagen-io/fsevents"
	"github.com/pkg/errors"

	"github.com/sentrylabs/fim/pkg/state"
)

// fsEventsCoalescingLatency is the coalescing latency requested from
// FSEvents itself, ahead of the additional state.Coalescer debounce
// applied uniformly across all Source implementations.
const fsEventsCoalescingLatency = 25 * time.Millisecond

const fsEventsFlags = fsevents.WatchRoot | fsevents.FileEvents

// fsEventsSource watches root using the FSEvents API, grounded on the
// same device-scoped recursive watch approach used elsewhere in this
// codebase's filesystem package.
type fsEventsSource struct {
	stream    *fsevents.EventStream
	coalescer *state.Coalescer
	done      chan struct{}
}

// NewFSEventsSource starts an FSEvents-based Source over root, coalescing
// notifications within window.
func NewFSEventsSource(root string, window time.Duration) (Source, error) {
	info, err := os.Lstat(root)
	if err != nil {
		return nil, errors.Wrap(err, "unable to stat watch root")
	}
	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return nil, errors.New("unable to extract raw root metadata")
	}

	rawEvents := make(chan []fsevents.Event, 10)
	stream := &fsevents.EventStream{
		Events:  rawEvents,
		Paths:   []string{root},
		Latency: fsEventsCoalescingLatency,
		Device:  stat.Dev,
		Flags:   fsEventsFlags,
	}

	source := &fsEventsSource{
		stream:    stream,
		coalescer: state.NewCoalescer(window),
		done:      make(chan struct{}),
	}

	go func() {
		defer close(source.done)
		for range rawEvents {
			source.coalescer.Strobe()
		}
	}()

	stream.Start()

	return source, nil
}

func (s *fsEventsSource) Events() <-chan struct{} {
	return s.coalescer.Events()
}

func (s *fsEventsSource) Close() error {
	s.stream.Stop()
	<-s.done
	s.coalescer.Terminate()
	return nil
}
