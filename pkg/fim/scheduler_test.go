package fim

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sentrylabs/fim/pkg/logging"
	"github.com/sentrylabs/fim/pkg/timeutil"
)

func TestSchedulerScanOnStartPopulatesDatabase(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "a"), []byte("one"), 0644); err != nil {
		t.Fatalf("unable to create file: %v", err)
	}

	engine, database := newTestEngine(root)
	scheduler := NewScheduler(engine, database, nil, nil, nil, SchedulerConfig{
		ScanOnStart:  true,
		SyscheckWait: 10 * time.Millisecond,
	}, logging.NewLogger(logging.LevelDisabled, os.Stderr))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if err := scheduler.Run(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, ok := database.Lookup(filepath.Join(root, "a")); !ok {
		t.Error("expected scan-on-start to populate the database")
	}
}

func TestSchedulerStatusReflectsCompletedCycle(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "a"), []byte("one"), 0644); err != nil {
		t.Fatalf("unable to create file: %v", err)
	}

	engine, database := newTestEngine(root)
	scheduler := NewScheduler(engine, database, nil, nil, nil, SchedulerConfig{
		ScanOnStart:  true,
		SyscheckWait: 10 * time.Millisecond,
	}, logging.NewLogger(logging.LevelDisabled, os.Stderr))
	defer scheduler.Close()

	if initial := scheduler.Status(); initial.EntriesTracked != 0 {
		t.Errorf("expected zero-value status before any cycle, got %+v", initial)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := scheduler.Run(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	status, _, err := scheduler.WaitForStatusChange(context.Background(), 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !status.BaselineComplete {
		t.Error("expected baseline to be complete after scan-on-start")
	}
	if status.EntriesTracked != 2 {
		t.Errorf("expected two tracked entries (root directory and file), got %d", status.EntriesTracked)
	}
}

func TestSchedulerCalendarConditionMetToday(t *testing.T) {
	tod, err := timeutil.ParseTimeOfDay("00:00:00")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	scheduler := &Scheduler{
		config: SchedulerConfig{ScanTime: &tod},
	}

	if !scheduler.calendarConditionMetToday(time.Now()) {
		t.Error("expected a midnight threshold to always be met")
	}
}
