package fim

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/pkg/errors"

	"github.com/sentrylabs/fim/pkg/filesystem"
	"github.com/sentrylabs/fim/pkg/logging"
)

// RootConfig describes a single monitored root and the checks that apply to
// everything beneath it.
type RootConfig struct {
	Path         string
	Mask         OptionMask
	Restriction  *Restriction
	PrefilterCmd string
	// RecurseLevel bounds traversal depth; 0 means the root itself only, a
	// negative value means unbounded.
	RecurseLevel int
	// CrossDevice permits traversal onto a different device than the root
	// itself resides on. When false (the default) the scan engine reads the
	// device ID of the root once and skips any subdirectory whose device ID
	// differs. The filesystem format is not inspected, so NFS mounts on the
	// root's own device are traversed like any other directory.
	CrossDevice bool
}

// ScanEngine holds everything needed to run repeated scan cycles over a
// fixed set of roots against a single Database (owned
// exclusively by the scheduler's control task).
type ScanEngine struct {
	Roots   []RootConfig
	Ignore  *IgnoreRules
	Logger  *logging.Logger
	// ThrottleEvery and ThrottleSleep implement the sleep_after/tsleep
	// pacing knobs: after every ThrottleEvery files hashed, the scan
	// engine sleeps for ThrottleSleep before continuing.
	ThrottleEvery int
	ThrottleSleep time.Duration
	// Snapshotter is invoked for every regular-file addition or
	// modification whose flags tag requests SEECHANGES. It may be nil, in
	// which case snapshotter() returns NoopSnapshotter.
	Snapshotter Snapshotter
}

// snapshotter returns e.Snapshotter, or NoopSnapshotter if none was
// configured.
func (e *ScanEngine) snapshotter() Snapshotter {
	if e.Snapshotter == nil {
		return NoopSnapshotter
	}
	return e.Snapshotter
}

// ScanCycle is the mutable state of a single pass over all roots. The
// throttle counter lives here, reset at the start of every cycle, rather
// than on ScanEngine: a paced throttle that persisted across cycles would
// let one cycle's pacing bleed into the next.
type ScanCycle struct {
	engine   *ScanEngine
	database *Database
	emit     func(Event)
	counter  int
}

// NewCycle begins a new scan cycle. emit is invoked once per addition,
// modification, or deletion event discovered during the cycle, in
// traversal order for additions/modifications and in sweep order for
// deletions (i.e. emitted after the cycle's traversal completes). The
// exception is a tracked path whose stat fails mid-traversal: its deletion
// is emitted at that point and its record removed immediately.
func (e *ScanEngine) NewCycle(database *Database, emit func(Event)) *ScanCycle {
	return &ScanCycle{engine: e, database: database, emit: emit}
}

// Run performs one full pass over all configured roots: it resets the
// scanned flags, walks each root emitting addition/modification events,
// then sweeps the database for paths that were not touched and emits
// deletion events for them. ctx governs the whole pass: if it is cancelled
// while hashing a file, Run returns promptly instead of completing the
// cycle.
func (c *ScanCycle) Run(ctx context.Context) error {
	c.database.ResetScannedFlags()

	for _, root := range c.engine.Roots {
		if err := c.scanRoot(ctx, root); err != nil {
			return errors.Wrapf(err, "unable to scan root: %s", root.Path)
		}
	}

	c.database.SweepDeleted(func(path string) {
		c.emit(deletionEvent(path))
		c.engine.Logger.Infof("path removed: %s", path)
	})

	return nil
}

// scanRoot walks a single root, honoring the ignore rules, device
// boundary, and recursion depth, dispatching each surviving entry to
// visitEntry. A directory that can't be read is logged at warn and its
// subtree is skipped; the walk continues with the rest of the root.
func (c *ScanCycle) scanRoot(ctx context.Context, root RootConfig) error {
	var boundaryDevice uint64
	var haveBoundaryDevice bool

	if !root.CrossDevice {
		if info, err := os.Lstat(root.Path); err == nil {
			if device, err := filesystem.DeviceID(info); err == nil {
				boundaryDevice = device
				haveBoundaryDevice = true
			}
		}
	}

	rootDepth := strings.Count(filepath.Clean(root.Path), string(filepath.Separator))

	return filesystem.Walk(root.Path, func(path string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			// ENOTDIR: a path that was a directory when first observed has
			// been replaced by a non-directory entry. Re-dispatch it as a
			// plain file rather than propagating the walk error.
			if errors.Is(walkErr, os.ErrNotExist) || isNotDirectory(walkErr) {
				if statInfo, statErr := os.Lstat(path); statErr == nil {
					return c.visitEntry(ctx, path, statInfo, root)
				}
				c.removeVanished(path)
				return nil
			}
			c.engine.Logger.Warnf("unable to walk %s: %v", path, walkErr)
			return filepath.SkipDir
		}

		if root.RecurseLevel >= 0 {
			depth := strings.Count(filepath.Clean(path), string(filepath.Separator)) - rootDepth
			if depth > root.RecurseLevel {
				if info.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
		}

		if info.IsDir() && haveBoundaryDevice {
			if device, err := filesystem.DeviceID(info); err == nil && device != boundaryDevice {
				return filepath.SkipDir
			}
		}

		if c.engine.Ignore.Matches(path) {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !root.Restriction.Matches(path) {
			return nil
		}

		return c.visitEntry(ctx, path, info, root)
	})
}

// visitEntry fingerprints a single entry and reconciles it against the
// database, applying the throttle policy between successive hashes.
func (c *ScanCycle) visitEntry(ctx context.Context, path string, info os.FileInfo, root RootConfig) error {
	if info.IsDir() {
		tag := NewFlagsTag(root.Mask)
		line, deleted, err := Fingerprint(ctx, path, tag, root.PrefilterCmd)
		if deleted {
			c.removeVanished(path)
			return nil
		}
		if err != nil {
			return nil
		}

		record, exists := c.database.Lookup(path)
		if !exists {
			c.database.Insert(path, &Record{FlagsTag: tag, Fingerprint: line, scanned: true})
			c.emit(additionEvent(path, line, ""))
			return nil
		}

		if record.Fingerprint != line {
			c.database.Update(path, line)
			c.emit(modificationEvent(path, line, ""))
			return nil
		}

		c.database.MarkScanned(path)
		return nil
	}

	tag := NewFlagsTag(root.Mask)
	line, deleted, err := Fingerprint(ctx, path, tag, root.PrefilterCmd)
	if deleted {
		c.removeVanished(path)
		return nil
	}
	if err != nil {
		c.engine.Logger.Warnf("unable to fingerprint %s: %v", path, err)
		return nil
	}

	c.throttle()

	record, exists := c.database.Lookup(path)
	if !exists {
		c.database.Insert(path, &Record{FlagsTag: tag, Fingerprint: line, scanned: true})
		if tag.SeeChanges() {
			// Side-effect capture only: the baseline snapshot is stored by
			// the snapshotter for a future diff, not attached to this event.
			if _, err := c.engine.snapshotter()(ctx, path); err != nil {
				c.engine.Logger.Warnf("unable to capture snapshot for %s: %v", path, err)
			}
		}
		c.emit(additionEvent(path, line, ""))
		return nil
	}

	if record.Fingerprint != line {
		c.database.Update(path, line)
		diff := ""
		if tag.SeeChanges() {
			captured, err := c.engine.snapshotter()(ctx, path)
			if err != nil {
				c.engine.Logger.Warnf("unable to capture diff for %s: %v", path, err)
			} else {
				diff = captured
			}
		}
		c.emit(modificationEvent(path, line, diff))
		return nil
	}

	c.database.MarkScanned(path)
	return nil
}

// removeVanished drops the record for a path whose stat failed mid-cycle
// and emits its deletion event, if the path was being tracked.
func (c *ScanCycle) removeVanished(path string) {
	if _, exists := c.database.Lookup(path); !exists {
		return
	}
	c.database.Remove(path)
	c.emit(deletionEvent(path))
}

// throttle implements the sleep_after/tsleep pacing knob: after every N
// files hashed it sleeps for the configured duration.
func (c *ScanCycle) throttle() {
	if c.engine.ThrottleEvery <= 0 {
		return
	}
	c.counter++
	if c.counter%c.engine.ThrottleEvery == 0 {
		time.Sleep(c.engine.ThrottleSleep)
	}
}

// isNotDirectory reports whether err corresponds to ENOTDIR, the walk
// error produced when a path is a directory became a regular entry (or
// vice versa) between the parent listing and the attempt to read it.
func isNotDirectory(err error) bool {
	return errors.Is(err, syscall.ENOTDIR)
}
