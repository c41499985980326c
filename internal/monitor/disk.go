package monitor

import (
	"errors"
	"fmt"
	"syscall"
)

// DefaultMinFreeBytes is the staging free-space floor (100 MB).
const DefaultMinFreeBytes = 100 * 1024 * 1024

// ErrLowDisk indicates free space under the configured floor.
var ErrLowDisk = errors.New("free disk space below floor")

// FreeDisk returns the bytes available to unprivileged writes on the
// filesystem holding path.
func FreeDisk(path string) (int64, error) {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(path, &stat); err != nil {
		return 0, fmt.Errorf("failed to statfs %s: %w", path, err)
	}
	return int64(stat.Bavail) * int64(stat.Bsize), nil
}

// RequireFreeDisk fails with ErrLowDisk when the filesystem holding
// path has less than floor bytes available.
func RequireFreeDisk(path string, floor int64) error {
	free, err := FreeDisk(path)
	if err != nil {
		return err
	}
	if free < floor {
		return fmt.Errorf("%w: %d bytes free at %s, need %d", ErrLowDisk, free, path, floor)
	}
	return nil
}
