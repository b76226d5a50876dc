package fim

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mutagen-io/extstat"

	"github.com/sentrylabs/fim/pkg/fim/sink"
)

// suidIdleThreshold is how long a setuid/setgid binary's access time may
// trail its modification time before it is reported. A privileged binary
// that was modified long after it was last run is a rough signature of
// something planted for later use rather than in active legitimate use.
const suidIdleThreshold = 30 * 24 * time.Hour

// checkIdleSetuidBinaries walks each configured root looking for
// setuid/setgid regular files whose access time trails their modification
// time by more than suidIdleThreshold. Access time is read through extstat
// since neither os.FileInfo nor the standard library expose it portably
// across platforms.
func checkIdleSetuidBinaries(roots []RootConfig, client *sink.Client) error {
	for _, root := range roots {
		err := filepath.Walk(root.Path, func(path string, info os.FileInfo, walkErr error) error {
			if walkErr != nil {
				return nil
			}
			if info.IsDir() || !info.Mode().IsRegular() {
				return nil
			}
			if info.Mode()&(os.ModeSetuid|os.ModeSetgid) == 0 {
				return nil
			}

			stat, statErr := extstat.NewFromFileName(path)
			if statErr != nil {
				return nil
			}
			if info.ModTime().Sub(stat.AccessTime) > suidIdleThreshold {
				client.Write(sink.Rootcheck, fmt.Sprintf("setuid/setgid binary modified long after last use: %s", path))
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}
