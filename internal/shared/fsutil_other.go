//go:build !unix

package shared

import "fmt"

// FreeDiskSpace is unavailable on this platform.
func FreeDiskSpace(path string) (int64, error) {
	return 0, fmt.Errorf("%w: free space query for %s", ErrNotImplemented, path)
}

// SyncFilesystems is a no-op on this platform.
func SyncFilesystems() {}
