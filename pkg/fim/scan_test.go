package fim

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/sentrylabs/fim/pkg/logging"
)

func newTestEngine(root string) (*ScanEngine, *Database) {
	return &ScanEngine{
		Roots: []RootConfig{{
			Path:         root,
			Mask:         OptionSize | OptionMD5,
			RecurseLevel: -1,
			CrossDevice:  true,
		}},
		Logger: logging.NewLogger(logging.LevelDisabled, os.Stderr),
	}, NewDatabase()
}

func TestScanCycleDetectsAddition(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "a"), []byte("one"), 0644); err != nil {
		t.Fatalf("unable to create file: %v", err)
	}

	engine, database := newTestEngine(root)

	var events []Event
	cycle := engine.NewCycle(database, func(e Event) { events = append(events, e) })
	if err := cycle.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	additions := 0
	for _, e := range events {
		if e.Kind == EventAddition {
			additions++
		}
	}
	if additions != 2 {
		t.Errorf("expected exactly two addition events (root directory and file), got %d (events: %+v)", additions, events)
	}
}

func TestScanCycleDetectsModification(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "a")
	if err := os.WriteFile(path, []byte("one"), 0644); err != nil {
		t.Fatalf("unable to create file: %v", err)
	}

	engine, database := newTestEngine(root)
	firstCycle := engine.NewCycle(database, func(Event) {})
	if err := firstCycle.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := os.WriteFile(path, []byte("two!"), 0644); err != nil {
		t.Fatalf("unable to modify file: %v", err)
	}

	var events []Event
	secondCycle := engine.NewCycle(database, func(e Event) { events = append(events, e) })
	if err := secondCycle.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	modifications := 0
	for _, e := range events {
		if e.Kind == EventModification {
			modifications++
		}
	}
	if modifications != 1 {
		t.Errorf("expected exactly one modification event, got %d (events: %+v)", modifications, events)
	}
}

func TestScanCycleDetectsDirectoryModification(t *testing.T) {
	root := t.TempDir()
	sub := filepath.Join(root, "sub")
	if err := os.Mkdir(sub, 0755); err != nil {
		t.Fatalf("unable to create directory: %v", err)
	}

	engine, database := newTestEngine(root)
	engine.Roots[0].Mask |= OptionPerm
	firstCycle := engine.NewCycle(database, func(Event) {})
	if err := firstCycle.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := os.Chmod(sub, 0700); err != nil {
		t.Fatalf("unable to chmod directory: %v", err)
	}

	var events []Event
	secondCycle := engine.NewCycle(database, func(e Event) { events = append(events, e) })
	if err := secondCycle.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	modifications := 0
	for _, e := range events {
		if e.Kind == EventModification && e.Path == sub {
			modifications++
		}
	}
	if modifications != 1 {
		t.Errorf("expected exactly one modification event for %s, got %d (events: %+v)", sub, modifications, events)
	}
}

func TestScanCycleDetectsDeletion(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "a")
	if err := os.WriteFile(path, []byte("one"), 0644); err != nil {
		t.Fatalf("unable to create file: %v", err)
	}

	engine, database := newTestEngine(root)
	firstCycle := engine.NewCycle(database, func(Event) {})
	if err := firstCycle.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := os.Remove(path); err != nil {
		t.Fatalf("unable to remove file: %v", err)
	}

	var events []Event
	secondCycle := engine.NewCycle(database, func(e Event) { events = append(events, e) })
	if err := secondCycle.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	deletions := 0
	for _, e := range events {
		if e.Kind == EventDeletion && e.Path == path {
			deletions++
		}
	}
	if deletions != 1 {
		t.Errorf("expected exactly one deletion event for %s, got %d (events: %+v)", path, deletions, events)
	}
	if database.Len() != 1 {
		t.Errorf("expected only the root directory to remain tracked, got %d records", database.Len())
	}
}

func TestScanCycleSeeChangesAttachesDiffOnModificationOnly(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "a")
	if err := os.WriteFile(path, []byte("one"), 0644); err != nil {
		t.Fatalf("unable to create file: %v", err)
	}

	engine, database := newTestEngine(root)
	engine.Roots[0].Mask |= OptionSeeChanges
	var captured int
	engine.Snapshotter = func(ctx context.Context, p string) (string, error) {
		captured++
		return "captured diff", nil
	}

	var additionEvents, modificationEvents []Event
	firstCycle := engine.NewCycle(database, func(e Event) {
		if e.Kind == EventAddition && e.Path == path {
			additionEvents = append(additionEvents, e)
		}
	})
	if err := firstCycle.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(additionEvents) != 1 {
		t.Fatalf("expected exactly one addition event, got %d", len(additionEvents))
	}
	if additionEvents[0].Diff != "" {
		t.Errorf("expected no diff attached to an addition event, got %q", additionEvents[0].Diff)
	}
	if captured != 1 {
		t.Errorf("expected snapshotter to be invoked once on addition, got %d", captured)
	}

	if err := os.WriteFile(path, []byte("two!"), 0644); err != nil {
		t.Fatalf("unable to modify file: %v", err)
	}

	secondCycle := engine.NewCycle(database, func(e Event) {
		if e.Kind == EventModification && e.Path == path {
			modificationEvents = append(modificationEvents, e)
		}
	})
	if err := secondCycle.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(modificationEvents) != 1 {
		t.Fatalf("expected exactly one modification event, got %d", len(modificationEvents))
	}
	if modificationEvents[0].Diff != "captured diff" {
		t.Errorf("expected modification event to carry the captured diff, got %q", modificationEvents[0].Diff)
	}
	if captured != 2 {
		t.Errorf("expected snapshotter to be invoked once on modification, got %d calls total", captured)
	}
}

func TestScanCycleIgnoresConfiguredPaths(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "keep"), []byte("one"), 0644); err != nil {
		t.Fatalf("unable to create file: %v", err)
	}
	if err := os.WriteFile(filepath.Join(root, "skip.tmp"), []byte("two"), 0644); err != nil {
		t.Fatalf("unable to create file: %v", err)
	}

	engine, database := newTestEngine(root)
	ignore, err := NewIgnoreRules(nil, []string{"**/*.tmp"}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	engine.Ignore = ignore

	cycle := engine.NewCycle(database, func(Event) {})
	if err := cycle.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, ok := database.Lookup(filepath.Join(root, "keep")); !ok {
		t.Error("expected non-ignored file to be tracked")
	}
	if _, ok := database.Lookup(filepath.Join(root, "skip.tmp")); ok {
		t.Error("expected ignored file not to be tracked")
	}
}
