// +build !windows

package fim

import (
	"os"
	"syscall"

	"github.com/pkg/errors"
)

// fileOwnership extracts the UID and GID of the file described by info.
func fileOwnership(info os.FileInfo) (uid, gid uint32, err error) {
	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return 0, 0, errors.New("unable to extract raw ownership information")
	}
	return stat.Uid, stat.Gid, nil
}
