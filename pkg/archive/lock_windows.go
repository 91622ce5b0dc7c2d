//go:build windows

package archive

import (
	"fmt"
	"os"

	"golang.org/x/sys/windows"
)

// pathLock holds a LockFileEx lock on a sidecar lock file.
type pathLock struct {
	file *os.File
}

// acquirePathLock opens the lock file and takes a non-blocking exclusive
// lock. Another process holding the lock yields ErrPathLocked.
func acquirePathLock(lockPath string) (*pathLock, error) {
	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("archive: failed to open lock file %s: %w", lockPath, err)
	}

	var overlapped windows.Overlapped
	err = windows.LockFileEx(
		windows.Handle(f.Fd()),
		windows.LOCKFILE_EXCLUSIVE_LOCK|windows.LOCKFILE_FAIL_IMMEDIATELY,
		0, ^uint32(0), ^uint32(0),
		&overlapped,
	)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: %s", ErrPathLocked, lockPath)
	}

	return &pathLock{file: f}, nil
}

// release drops the lock and removes the lock file.
func (l *pathLock) release() {
	if l.file == nil {
		return
	}
	path := l.file.Name()
	var overlapped windows.Overlapped
	windows.UnlockFileEx(windows.Handle(l.file.Fd()), 0, ^uint32(0), ^uint32(0), &overlapped)
	l.file.Close()
	os.Remove(path)
	l.file = nil
}
