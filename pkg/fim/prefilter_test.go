package fim

import (
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestOpenForHashDirect(t *testing.T) {
	directory := t.TempDir()
	path := filepath.Join(directory, "data")
	if err := os.WriteFile(path, []byte("direct"), 0644); err != nil {
		t.Fatalf("unable to create test file: %v", err)
	}

	reader, closer, err := OpenForHash(path, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer closer.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		t.Fatalf("unable to read: %v", err)
	}
	if string(data) != "direct" {
		t.Errorf("unexpected contents: %q", data)
	}
}

func TestOpenForHashViaPrefilterCommand(t *testing.T) {
	if _, err := os.Stat("/bin/cat"); err != nil {
		t.Skip("/bin/cat not available")
	}

	directory := t.TempDir()
	path := filepath.Join(directory, "data")
	if err := os.WriteFile(path, []byte("via cat"), 0644); err != nil {
		t.Fatalf("unable to create test file: %v", err)
	}

	reader, closer, err := OpenForHash(path, "/bin/cat")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		t.Fatalf("unable to read: %v", err)
	}
	if err := closer.Close(); err != nil {
		t.Fatalf("unexpected error closing prefilter command: %v", err)
	}
	if string(data) != "via cat" {
		t.Errorf("unexpected contents: %q", data)
	}
}
