// +build !windows

package filesystem

import (
	"os"
	"syscall"

	"github.com/pkg/errors"
)

// DeviceID extracts the identifier of the device holding the file described
// by info. It is used to detect when a recursive scan has crossed onto a
// different filesystem (for example a bind mount or a separately mounted
// volume nested inside a watched root).
func DeviceID(info os.FileInfo) (uint64, error) {
	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return 0, errors.New("unable to extract raw filesystem information")
	}
	return uint64(stat.Dev), nil
}
