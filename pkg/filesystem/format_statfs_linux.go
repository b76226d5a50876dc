package filesystem

import (
	"github.com/pkg/errors"

	"golang.org/x/sys/unix"
)

const (
	// FormatEXT represents an EXT2, EXT3, or EXT4 filesystem format.
	FormatEXT Format = iota + 1
	// FormatNFS represents an NFS filesystem format.
	FormatNFS
)

// formatFromStatfs extracts the filesystem format from raw statfs metadata.
func formatFromStatfs(metadata *unix.Statfs_t) Format {
	switch metadata.Type {
	case unix.EXT4_SUPER_MAGIC:
		return FormatEXT
	case unix.NFS_SUPER_MAGIC:
		return FormatNFS
	default:
		return FormatUnknown
	}
}

// QueryFormatByPath queries the filesystem format for the specified path.
func QueryFormatByPath(path string) (Format, error) {
	var metadata unix.Statfs_t
	if err := unix.Statfs(path, &metadata); err != nil {
		return FormatUnknown, errors.Wrap(err, "unable to query filesystem metadata")
	}
	return formatFromStatfs(&metadata), nil
}
