package changedetect

import (
	"fmt"
	"io/fs"
	"syscall"
)

// inodeOf extracts the OS file identifier (spec.md §3 File.inode), the
// same syscall.Stat_t access pattern used elsewhere in the pack for
// hardlink detection.
func inodeOf(info fs.FileInfo) (int64, error) {
	sysStat, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return 0, fmt.Errorf("stat info unavailable for inode")
	}
	return int64(sysStat.Ino), nil
}
