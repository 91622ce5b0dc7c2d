package archive

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// FileOperationProvider abstracts archive file I/O so the repository manager
// never touches the filesystem directly. Desktop builds use DesktopProvider;
// sandboxed hosts supply their own implementation.
type FileOperationProvider interface {
	// ReadArchive reads archive bytes. Returns ErrNotFound or
	// ErrPermissionDenied.
	ReadArchive(path string) ([]byte, error)

	// WriteArchive writes archive bytes. The write is all-or-nothing: on
	// failure the previous file contents are left intact.
	WriteArchive(path string, data []byte) error

	// Exists reports whether an archive is present at the path.
	Exists(path string) bool

	// Lock takes an exclusive advisory lock on the path. A second Lock on
	// the same path fails with ErrPathLocked until Unlock.
	Lock(path string) error

	// Unlock releases the advisory lock. Unlocking an unlocked path is a
	// no-op.
	Unlock(path string)
}

// DesktopProvider implements FileOperationProvider on a local filesystem.
// Writes go through a temp file and rename so a failed save never damages
// the existing archive. Locks combine a per-process registry with an OS
// advisory lock on a sidecar .lock file.
type DesktopProvider struct {
	mu    sync.Mutex
	locks map[string]*pathLock
}

// NewDesktopProvider creates a provider with no held locks.
func NewDesktopProvider() *DesktopProvider {
	return &DesktopProvider{locks: make(map[string]*pathLock)}
}

// ReadArchive reads the archive file at path.
func (p *DesktopProvider) ReadArchive(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		switch {
		case errors.Is(err, fs.ErrNotExist):
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		case errors.Is(err, fs.ErrPermission):
			return nil, fmt.Errorf("%w: %s", ErrPermissionDenied, path)
		default:
			return nil, fmt.Errorf("archive: failed to read %s: %w", path, err)
		}
	}
	return data, nil
}

// WriteArchive atomically replaces the archive file at path.
func (p *DesktopProvider) WriteArchive(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("archive: failed to create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return fmt.Errorf("%w: %s", ErrPermissionDenied, path)
		}
		return fmt.Errorf("archive: failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("archive: failed to write %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("archive: failed to sync %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("archive: failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o600); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("archive: failed to set permissions: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		if errors.Is(err, fs.ErrPermission) {
			return fmt.Errorf("%w: %s", ErrPermissionDenied, path)
		}
		return fmt.Errorf("archive: failed to replace %s: %w", path, err)
	}
	return nil
}

// Exists reports whether a file is present at path.
func (p *DesktopProvider) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Lock acquires the per-process and OS advisory locks for path.
func (p *DesktopProvider) Lock(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, held := p.locks[abs]; held {
		return fmt.Errorf("%w: %s", ErrPathLocked, path)
	}

	lock, err := acquirePathLock(abs + ".lock")
	if err != nil {
		return err
	}
	p.locks[abs] = lock
	return nil
}

// Unlock releases the locks for path.
func (p *DesktopProvider) Unlock(path string) {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if lock, held := p.locks[abs]; held {
		lock.release()
		delete(p.locks, abs)
	}
}

// MockProvider is an in-memory FileOperationProvider for tests.
type MockProvider struct {
	mu       sync.Mutex
	archives map[string][]byte
	locked   map[string]bool

	// FailReads makes every ReadArchive fail with ErrNotFound.
	FailReads bool

	// FailWrites makes every WriteArchive fail with ErrPermissionDenied
	// without touching stored bytes.
	FailWrites bool
}

// NewMockProvider creates an empty mock provider.
func NewMockProvider() *MockProvider {
	return &MockProvider{
		archives: make(map[string][]byte),
		locked:   make(map[string]bool),
	}
}

// Put seeds an archive.
func (p *MockProvider) Put(path string, data []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.archives[path] = append([]byte(nil), data...)
}

// Bytes returns the stored archive bytes, or nil.
func (p *MockProvider) Bytes(path string) []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]byte(nil), p.archives[path]...)
}

// ReadArchive returns the seeded bytes for path.
func (p *MockProvider) ReadArchive(path string) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.FailReads {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	data, ok := p.archives[path]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	return append([]byte(nil), data...), nil
}

// WriteArchive stores bytes for path.
func (p *MockProvider) WriteArchive(path string, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.FailWrites {
		return fmt.Errorf("%w: %s", ErrPermissionDenied, path)
	}
	p.archives[path] = append([]byte(nil), data...)
	return nil
}

// Exists reports whether the mock holds bytes for path.
func (p *MockProvider) Exists(path string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.archives[path]
	return ok
}

// Lock marks the path locked.
func (p *MockProvider) Lock(path string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.locked[path] {
		return fmt.Errorf("%w: %s", ErrPathLocked, path)
	}
	p.locked[path] = true
	return nil
}

// Unlock clears the lock mark.
func (p *MockProvider) Unlock(path string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.locked, path)
}
