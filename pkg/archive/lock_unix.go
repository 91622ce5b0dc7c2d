//go:build !windows

package archive

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// pathLock holds an flock on a sidecar lock file.
type pathLock struct {
	file *os.File
}

// acquirePathLock opens the lock file and takes a non-blocking exclusive
// flock. Another process holding the lock yields ErrPathLocked.
func acquirePathLock(lockPath string) (*pathLock, error) {
	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("archive: failed to open lock file %s: %w", lockPath, err)
	}

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		if err == unix.EWOULDBLOCK {
			return nil, fmt.Errorf("%w: %s", ErrPathLocked, lockPath)
		}
		return nil, fmt.Errorf("archive: flock failed on %s: %w", lockPath, err)
	}

	return &pathLock{file: f}, nil
}

// release drops the flock and removes the lock file.
func (l *pathLock) release() {
	if l.file == nil {
		return
	}
	path := l.file.Name()
	unix.Flock(int(l.file.Fd()), unix.LOCK_UN)
	l.file.Close()
	os.Remove(path)
	l.file = nil
}
