package filesystem

import (
	"github.com/pkg/errors"

	"golang.org/x/sys/unix"
)

const (
	// FormatHFS represents an HFS+ (or variant thereof) filesystem format.
	FormatHFS Format = iota + 1
	// FormatAPFS represents an APFS filesystem format.
	FormatAPFS
	// FormatNFS represents an NFS filesystem format.
	FormatNFS
)

// formatFromStatfs extracts the filesystem format from raw statfs metadata.
func formatFromStatfs(metadata *unix.Statfs_t) Format {
	name := metadata.Fstypename[:]
	switch {
	case hasTypeName(name, "apfs"):
		return FormatAPFS
	case hasTypeName(name, "hfs"):
		return FormatHFS
	case hasTypeName(name, "nfs"):
		return FormatNFS
	default:
		return FormatUnknown
	}
}

// hasTypeName checks whether a raw (NUL-padded) fstypename buffer starts with
// the specified name.
func hasTypeName(raw []int8, name string) bool {
	if len(raw) < len(name) {
		return false
	}
	for i := 0; i < len(name); i++ {
		if byte(raw[i]) != name[i] {
			return false
		}
	}
	return true
}

// QueryFormatByPath queries the filesystem format for the specified path.
func QueryFormatByPath(path string) (Format, error) {
	var metadata unix.Statfs_t
	if err := unix.Statfs(path, &metadata); err != nil {
		return FormatUnknown, errors.Wrap(err, "unable to query filesystem metadata")
	}
	return formatFromStatfs(&metadata), nil
}
