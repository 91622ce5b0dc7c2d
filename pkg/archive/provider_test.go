package archive

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestDesktopProviderReadWrite(t *testing.T) {
	provider := NewDesktopProvider()
	path := filepath.Join(t.TempDir(), "store.mv")

	if provider.Exists(path) {
		t.Error("Exists should be false before write")
	}
	if _, err := provider.ReadArchive(path); !errors.Is(err, ErrNotFound) {
		t.Errorf("read missing: got %v, want ErrNotFound", err)
	}

	data := []byte{0x01, 0x02, 0x03}
	if err := provider.WriteArchive(path, data); err != nil {
		t.Fatalf("WriteArchive failed: %v", err)
	}
	if !provider.Exists(path) {
		t.Error("Exists should be true after write")
	}

	got, err := provider.ReadArchive(path)
	if err != nil {
		t.Fatalf("ReadArchive failed: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Error("read bytes differ from written bytes")
	}

	// Overwrite replaces content.
	if err := provider.WriteArchive(path, []byte{0xAA}); err != nil {
		t.Fatalf("overwrite failed: %v", err)
	}
	got, err = provider.ReadArchive(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, []byte{0xAA}) {
		t.Error("overwrite did not replace content")
	}

	// No temp files left behind.
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("directory holds %d entries after writes, want 1", len(entries))
	}
}

func TestDesktopProviderWritePermissions(t *testing.T) {
	provider := NewDesktopProvider()
	path := filepath.Join(t.TempDir(), "store.mv")
	if err := provider.WriteArchive(path, []byte{1}); err != nil {
		t.Fatal(err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("archive permissions = %o, want 600", perm)
	}
}

func TestDesktopProviderLock(t *testing.T) {
	provider := NewDesktopProvider()
	path := filepath.Join(t.TempDir(), "store.mv")

	if err := provider.Lock(path); err != nil {
		t.Fatalf("Lock failed: %v", err)
	}
	if err := provider.Lock(path); !errors.Is(err, ErrPathLocked) {
		t.Errorf("second Lock: got %v, want ErrPathLocked", err)
	}

	provider.Unlock(path)
	if err := provider.Lock(path); err != nil {
		t.Errorf("Lock after Unlock failed: %v", err)
	}
	provider.Unlock(path)

	// Unlocking an unlocked path is a no-op.
	provider.Unlock(path)
}

func TestMockProvider(t *testing.T) {
	provider := NewMockProvider()
	provider.Put("/a", []byte{1, 2})

	got, err := provider.ReadArchive("/a")
	if err != nil {
		t.Fatalf("ReadArchive failed: %v", err)
	}
	if !bytes.Equal(got, []byte{1, 2}) {
		t.Error("seeded bytes mismatch")
	}

	if _, err := provider.ReadArchive("/missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}

	if err := provider.WriteArchive("/b", []byte{3}); err != nil {
		t.Fatal(err)
	}
	if !provider.Exists("/b") {
		t.Error("Exists after write should be true")
	}

	provider.FailWrites = true
	if err := provider.WriteArchive("/b", []byte{4}); !errors.Is(err, ErrPermissionDenied) {
		t.Errorf("got %v, want ErrPermissionDenied", err)
	}
	if !bytes.Equal(provider.Bytes("/b"), []byte{3}) {
		t.Error("failed write must not change stored bytes")
	}

	if err := provider.Lock("/b"); err != nil {
		t.Fatal(err)
	}
	if err := provider.Lock("/b"); !errors.Is(err, ErrPathLocked) {
		t.Errorf("got %v, want ErrPathLocked", err)
	}
	provider.Unlock("/b")
	if err := provider.Lock("/b"); err != nil {
		t.Errorf("Lock after Unlock failed: %v", err)
	}
}
