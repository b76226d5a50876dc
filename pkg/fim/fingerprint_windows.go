package fim

import (
	"os"
)

// fileOwnership is a no-op on Windows, which doesn't expose POSIX UID/GID
// semantics through os.FileInfo. Roots requesting OWNER/GROUP on Windows
// will simply see zero values in those fingerprint fields.
func fileOwnership(_ os.FileInfo) (uid, gid uint32, err error) {
	return 0, 0, nil
}
