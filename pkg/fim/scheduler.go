package fim

import (
	"context"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"

	"github.com/sentrylabs/fim/pkg/contextutil"
	"github.com/sentrylabs/fim/pkg/fim/realtime"
	"github.com/sentrylabs/fim/pkg/fim/sink"
	"github.com/sentrylabs/fim/pkg/logging"
	"github.com/sentrylabs/fim/pkg/state"
	"github.com/sentrylabs/fim/pkg/timeutil"
)

// dbCompletedSentinel is the syscheck-topic line sent once the first scan
// cycle has populated the database, so downstream consumers know the
// baseline is ready.
const dbCompletedSentinel = "db_completed"

// defaultSyscheckWait is the fallback interval the control loop waits on
// its realtime channel (or sleeps, if none is wired) between iterations
// when no other value is configured.
const defaultSyscheckWait = 5 * time.Second

// SchedulerConfig bundles the calendar/interval policy knobs that gate
// scan and rootcheck triggering.
type SchedulerConfig struct {
	// Interval is the minimum time between unconditional scan cycles.
	Interval time.Duration
	// ScanOnStart, if true, runs a scan cycle immediately on Run.
	ScanOnStart bool
	// ScanTime and ScanDay together define an optional once-daily
	// calendar trigger; ScanTime is ignored if zero-valued (unset).
	ScanTime    *timeutil.TimeOfDay
	ScanDay     timeutil.DayMask
	// RootcheckEnabled gates whether the rootkit task runs at all.
	RootcheckEnabled  bool
	RootcheckInterval time.Duration
	// SyscheckWait bounds how long the loop waits on the realtime
	// channel (or sleeps) between iterations.
	SyscheckWait time.Duration
	// PostScanSleep is the pause after a scan cycle's traversal and sweep
	// complete, before the Ending marker and the cycle's deletion events
	// are written, mirroring syscheckd's "tsleep + 20" pacing in
	// run_check.c.
	PostScanSleep time.Duration
}

// Status is a snapshot of the scheduler's progress, safe to copy and read
// independently of the control task.
type Status struct {
	// LastScan is the time at which the most recent scan cycle completed.
	LastScan time.Time
	// EntriesTracked is the database's entry count as of LastScan.
	EntriesTracked int
	// BaselineComplete is true once the first scan cycle has populated the
	// database and the db_completed sentinel has been emitted.
	BaselineComplete bool
}

// Scheduler is the single long-lived control task. It
// owns the Database and ScanEngine exclusively; the only concurrent
// participants it interacts with are the realtime source's channel and
// the sink's connection, both accessed only via their own synchronized
// APIs. Status, guarded by statusLock, may additionally be polled
// concurrently by Status and WaitForStatusChange.
type Scheduler struct {
	engine    *ScanEngine
	database  *Database
	sink      *sink.Client
	realtime  realtime.Source
	rootkit   RootkitTask
	config    SchedulerConfig
	logger    *logging.Logger

	lastScan      time.Time
	lastRootcheck time.Time
	dayScanned    bool
	currentDay    int
	baselineDone  state.Marker

	statusTracker *state.Tracker
	statusLock    *state.TrackingLock
	status        Status
}

// NewScheduler constructs a Scheduler. realtimeSource and rootkit may be
// nil; a nil realtimeSource causes the loop to simply sleep for
// SyscheckWait each iteration, and a nil rootkit disables the rootcheck
// step regardless of config.RootcheckEnabled.
func NewScheduler(engine *ScanEngine, database *Database, sinkClient *sink.Client, realtimeSource realtime.Source, rootkit RootkitTask, config SchedulerConfig, logger *logging.Logger) *Scheduler {
	if config.SyscheckWait <= 0 {
		config.SyscheckWait = defaultSyscheckWait
	}
	if rootkit == nil {
		rootkit = NoopRootkitTask
	}
	tracker := state.NewTracker()
	return &Scheduler{
		engine:        engine,
		database:      database,
		sink:          sinkClient,
		realtime:      realtimeSource,
		rootkit:       rootkit,
		config:        config,
		logger:        logger,
		statusTracker: tracker,
		statusLock:    state.NewTrackingLock(tracker),
	}
}

// Status returns a snapshot of the scheduler's current progress.
func (s *Scheduler) Status() Status {
	s.statusLock.Lock()
	defer s.statusLock.UnlockWithoutNotify()
	return s.status
}

// WaitForStatusChange blocks until the status has changed since
// previousIndex was observed (0 returns immediately with the current
// status), ctx is cancelled, or the scheduler's status tracker is
// terminated by Close. It is safe to call concurrently with Run.
func (s *Scheduler) WaitForStatusChange(ctx context.Context, previousIndex uint64) (Status, uint64, error) {
	index, err := s.statusTracker.WaitForChange(ctx, previousIndex)
	s.statusLock.Lock()
	defer s.statusLock.UnlockWithoutNotify()
	return s.status, index, err
}

// Close terminates the scheduler's status tracker, releasing any callers
// blocked in WaitForStatusChange. It should be called once Run has
// returned.
func (s *Scheduler) Close() {
	s.statusTracker.Terminate()
}

// updateStatus replaces the status snapshot and notifies any callers
// blocked in WaitForStatusChange.
func (s *Scheduler) updateStatus(status Status) {
	s.statusLock.Lock()
	s.status = status
	s.statusLock.Unlock()
}

// Run executes the control loop until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	now := time.Now()
	s.currentDay = now.YearDay()
	if s.calendarConditionMetToday(now) {
		s.dayScanned = true
	}

	if s.config.ScanOnStart {
		if err := s.runScanCycle(ctx); err != nil {
			return err
		}
		s.lastScan = time.Now()
	} else {
		s.lastScan = now
	}
	s.lastRootcheck = now

	for {
		if contextutil.IsCancelled(ctx) {
			return nil
		}

		now = time.Now()
		if now.YearDay() != s.currentDay {
			s.currentDay = now.YearDay()
			s.dayScanned = false
		}

		runNow := false
		if !s.dayScanned && s.calendarConditionMetToday(now) {
			runNow = true
			s.dayScanned = true
		}

		if s.config.RootcheckEnabled && now.Sub(s.lastRootcheck) > s.config.RootcheckInterval {
			if err := s.rootkit(ctx, s.sink, s.engine.Roots); err != nil {
				s.logger.Warnf("rootkit task failed: %v", err)
			}
			s.lastRootcheck = now
		}

		if runNow || (s.config.Interval > 0 && now.Sub(s.lastScan) > s.config.Interval) {
			if err := s.runScanCycle(ctx); err != nil {
				return err
			}
			s.lastScan = time.Now()
		}

		if err := s.waitForRealtimeOrTimeout(ctx); err != nil {
			return nil
		}
	}
}

// calendarConditionMetToday reports whether the configured scan_time/
// scan_day policy has become true as of now, per the original
// implementation's OS_IsAfterTime / OS_IsonDay gating (run_check.c).
func (s *Scheduler) calendarConditionMetToday(now time.Time) bool {
	if s.config.ScanTime == nil {
		return false
	}
	return s.config.ScanTime.IsAfter(now) && s.config.ScanDay.IsOnDay(now.Weekday())
}

// runScanCycle brackets a single scan cycle with the Starting/Ending
// rootcheck-topic markers and the post-scan pacing sleep. Addition and
// modification events are forwarded to the syscheck sink topic as they
// are found; the cycle's deletion events are held back and written after
// the Ending marker. A sink failure that survives one reconnect attempt
// stops further event writes; the cycle's traversal still completes, and
// the error is then returned, which the caller treats as fatal.
func (s *Scheduler) runScanCycle(ctx context.Context) error {
	if err := s.writeRootcheck("Starting syscheck scan."); err != nil {
		return err
	}

	var sinkErr error
	var deletions []Event
	cycle := s.engine.NewCycle(s.database, func(event Event) {
		if event.Kind == EventDeletion {
			deletions = append(deletions, event)
			return
		}
		if sinkErr != nil {
			return
		}
		sinkErr = s.writeSyscheck(event.Line())
	})
	if err := cycle.Run(ctx); err != nil {
		return err
	}
	if sinkErr != nil {
		return sinkErr
	}
	s.logger.Infof("scan cycle complete: %d entries tracked, %s total", s.database.Len(), humanize.Bytes(uint64(s.database.TotalSize())))

	if s.config.PostScanSleep > 0 {
		select {
		case <-time.After(s.config.PostScanSleep):
		case <-ctx.Done():
			return nil
		}
	}

	if err := s.writeRootcheck("Ending syscheck scan."); err != nil {
		return err
	}
	for _, event := range deletions {
		if err := s.writeSyscheck(event.Line()); err != nil {
			return err
		}
	}

	if !s.baselineDone.Marked() {
		if err := s.writeSyscheck(dbCompletedSentinel); err != nil {
			return err
		}
		s.baselineDone.Mark()
	}

	s.updateStatus(Status{
		LastScan:         time.Now(),
		EntriesTracked:   s.database.Len(),
		BaselineComplete: s.baselineDone.Marked(),
	})

	return nil
}

// waitForRealtimeOrTimeout blocks for at most SyscheckWait, waking early
// if the realtime source strobes. A realtime wake simply lets the loop
// iterate again immediately; reconciliation happens on the next
// unconditional or calendar-triggered scan cycle.
func (s *Scheduler) waitForRealtimeOrTimeout(ctx context.Context) error {
	timer := time.NewTimer(s.config.SyscheckWait)
	defer timer.Stop()

	var events <-chan struct{}
	if s.realtime != nil {
		events = s.realtime.Events()
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	case <-events:
		return nil
	}
}

// writeSyscheck forwards a line to the syscheck sink topic, applying the
// reconnect-or-fatal policy.
func (s *Scheduler) writeSyscheck(line string) error {
	return s.write(sinkSyscheckTopic, line)
}

// writeRootcheck forwards a line to the rootcheck sink topic, applying the
// reconnect-or-fatal policy.
func (s *Scheduler) writeRootcheck(line string) error {
	return s.write(sinkRootcheckTopic, line)
}

type sinkTopic int

const (
	sinkSyscheckTopic sinkTopic = iota
	sinkRootcheckTopic
)

// write applies the queue reconnect policy: a failed write triggers one
// attempt to redial both sink endpoints, followed by a single retry of the
// write itself; if the redial or the retried write also fails, write
// returns an error, which the scheduler's control loop treats as fatal and
// exits on rather than silently dropping the event.
func (s *Scheduler) write(topic sinkTopic, line string) error {
	if s.sink == nil {
		return nil
	}

	target := sink.Syscheck
	if topic == sinkRootcheckTopic {
		target = sink.Rootcheck
	}

	if err := s.sink.Write(target, line); err == nil {
		return nil
	} else {
		s.logger.Warnf("sink write failed, reconnecting: %v", err)
	}

	if err := s.sink.Reconnect(); err != nil {
		return errors.Wrap(err, "sink reconnect failed")
	}
	if err := s.sink.Write(target, line); err != nil {
		return errors.Wrap(err, "sink write failed after reconnect")
	}
	return nil
}
