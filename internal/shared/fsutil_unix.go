//go:build unix

package shared

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// FreeDiskSpace returns the number of bytes available to unprivileged users on the filesystem holding path.
func FreeDiskSpace(path string) (int64, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return 0, fmt.Errorf("statfs %s: %w", path, err)
	}
	return int64(st.Bavail) * int64(st.Bsize), nil
}

// SyncFilesystems flushes filesystem buffers to disk.
func SyncFilesystems() {
	unix.Sync()
}
