package realtime

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestPollSourceSignalsOnChange(t *testing.T) {
	root := t.TempDir()

	source := NewPollSource(root, 1, 10*time.Millisecond)
	defer source.Close()

	// Drain any initial signal produced by the first poll establishing a
	// baseline.
	select {
	case <-source.Events():
	case <-time.After(2 * time.Second):
	}

	if err := os.WriteFile(filepath.Join(root, "new-file"), []byte("x"), 0644); err != nil {
		t.Fatalf("unable to create file: %v", err)
	}

	select {
	case <-source.Events():
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for change notification")
	}
}
