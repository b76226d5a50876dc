package realtime

import (
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/golang/groupcache/lru"
	"golang.org/x/sys/unix"

	"github.com/sentrylabs/fim/pkg/filesystem"
	"github.com/sentrylabs/fim/pkg/state"
)

// maxWatchDescriptors bounds the number of live inotify watches kept per
// source, so that a deeply nested root can't exhaust the kernel's
// inotify_add_watch slots. Subtrees evicted from the LRU fall back to
// poll coverage via pollSource, grounded on filesystem.WatchPoll.
const maxWatchDescriptors = 8192

// inotifySource watches a root tree via inotify, falling back to
// poll-based coverage for subtrees whose watch descriptor was evicted
// from the bounded LRU.
type inotifySource struct {
	coalescer *state.Coalescer
	fallback  Source
	fd        int

	mutex      sync.Mutex
	byPath     *lru.Cache // path (string) -> watch descriptor (int)
	pathForFd  map[int32]string

	cancel context.CancelFunc
	done   chan struct{}
}

// NewInotifySource starts an inotify-based Source over root, coalescing
// notifications within window. A poll-based source over the whole root
// (at pollInterval seconds) runs alongside it and its notifications are
// forwarded as well, so any directory whose watch is evicted stays covered.
func NewInotifySource(root string, window time.Duration, pollInterval uint32) (Source, error) {
	fd, err := unix.InotifyInit1(unix.IN_CLOEXEC | unix.IN_NONBLOCK)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	source := &inotifySource{
		coalescer: state.NewCoalescer(window),
		fallback:  NewPollSource(root, pollInterval, window),
		fd:        fd,
		pathForFd: make(map[int32]string),
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	source.byPath = lru.New(maxWatchDescriptors)
	source.byPath.OnEvicted = func(key lru.Key, value interface{}) {
		unix.InotifyRmWatch(fd, uint32(value.(int32)))
		delete(source.pathForFd, value.(int32))
	}

	if err := source.addTree(root); err != nil {
		source.Close()
		return nil, err
	}

	go source.loop(ctx)

	// Forward the poll fallback's notifications so that changes beneath a
	// directory whose watch was evicted still wake the scheduler.
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-source.fallback.Events():
				source.coalescer.Strobe()
			}
		}
	}()

	return source, nil
}

// addTree recursively adds an inotify watch for root and every
// subdirectory beneath it.
func (s *inotifySource) addTree(root string) error {
	return filesystem.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil || !info.IsDir() {
			return nil
		}
		wd, err := unix.InotifyAddWatch(s.fd, path, unix.IN_CREATE|unix.IN_DELETE|unix.IN_MODIFY|unix.IN_MOVE|unix.IN_ATTRIB)
		if err != nil {
			return nil
		}
		s.mutex.Lock()
		s.byPath.Add(path, int32(wd))
		s.pathForFd[int32(wd)] = path
		s.mutex.Unlock()
		return nil
	})
}

// loop reads raw inotify events and strobes the coalescer for each one,
// also growing the watch tree when a new directory is created.
func (s *inotifySource) loop(ctx context.Context) {
	defer close(s.done)

	buffer := make([]byte, 64*1024)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		n, err := unix.Read(s.fd, buffer)
		if err != nil {
			if err == unix.EAGAIN {
				time.Sleep(100 * time.Millisecond)
				continue
			}
			return
		}

		offset := 0
		const headerSize = unix.SizeofInotifyEvent
		for offset+headerSize <= n {
			wd := int32(binary.LittleEndian.Uint32(buffer[offset:]))
			mask := binary.LittleEndian.Uint32(buffer[offset+4:])
			nameLen := int(binary.LittleEndian.Uint32(buffer[offset+12:]))

			var name string
			if nameLen > 0 {
				name = cString(buffer[offset+headerSize : offset+headerSize+nameLen])
			}
			offset += headerSize + nameLen

			if mask&unix.IN_ISDIR != 0 && mask&(unix.IN_CREATE|unix.IN_MOVED_TO) != 0 && name != "" {
				s.mutex.Lock()
				parent := s.pathForFd[wd]
				s.mutex.Unlock()
				if parent != "" {
					s.addTree(filepath.Join(parent, name))
				}
			}

			s.coalescer.Strobe()
		}
	}
}

// cString trims a NUL-padded byte slice down to its leading non-NUL run.
func cString(buffer []byte) string {
	for i, b := range buffer {
		if b == 0 {
			return string(buffer[:i])
		}
	}
	return string(buffer)
}

func (s *inotifySource) Events() <-chan struct{} {
	return s.coalescer.Events()
}

func (s *inotifySource) Close() error {
	s.cancel()
	<-s.done
	unix.Close(s.fd)
	s.coalescer.Terminate()
	return s.fallback.Close()
}
