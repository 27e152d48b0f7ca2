package pipeline

import (
	"fmt"

	"golang.org/x/sys/unix"

	"bookspool/internal/services"
)

// statfsFunc reports the free bytes available at a path.
type statfsFunc func(path string) (uint64, error)

func realStatfs(path string) (uint64, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return 0, err
	}
	return stat.Bavail * uint64(stat.Bsize), nil
}

// checkDiskSpace verifies the staging volume has room before any download
// starts. Source sizes are unknown until the files are fetched, so the
// requirement is a floor, not an exact reservation.
func checkDiskSpace(statfs statfsFunc, path string, requiredBytes uint64) error {
	free, err := statfs(path)
	if err != nil {
		return fmt.Errorf("statfs %s: %w", path, err)
	}
	if free < requiredBytes {
		return services.Wrap(services.ErrCapacity, "pipeline", "preflight",
			fmt.Sprintf("%s has %d bytes free, need at least %d", path, free, requiredBytes), nil)
	}
	return nil
}
