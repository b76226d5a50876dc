package fim

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCheckIdleSetuidBinariesSkipsOrdinaryFiles(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "plain"), []byte("x"), 0644); err != nil {
		t.Fatalf("unable to create file: %v", err)
	}

	if err := checkIdleSetuidBinaries([]RootConfig{{Path: root}}, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
