// Package backup manages timestamped snapshots of an encrypted archive.
//
// The archive container is already sealed, so a snapshot is a verbatim copy
// with a SHA-256 sidecar for bit-rot detection. Restore decrypts the
// snapshot first, so a wrong passphrase or damaged snapshot never replaces
// a working archive.
package backup

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/memvault/memvault/pkg/archive"
)

// timestampLayout names snapshots so lexical order is chronological.
const timestampLayout = "20060102-150405"

// checksumSuffix is appended to the snapshot path for the sidecar.
const checksumSuffix = ".sha256"

// Info describes one snapshot.
type Info struct {
	// Path is the snapshot file location.
	Path string `json:"path"`
	// CreatedAt is when the snapshot was taken.
	CreatedAt time.Time `json:"created_at"`
	// Size is the snapshot size in bytes.
	Size int64 `json:"size"`
}

// Snapshot copies the archive at archivePath into destDir and writes a
// checksum sidecar. Returns the snapshot path.
func Snapshot(provider archive.FileOperationProvider, archivePath, destDir string) (string, error) {
	data, err := provider.ReadArchive(archivePath)
	if err != nil {
		return "", fmt.Errorf("backup: read archive: %w", err)
	}

	if err := os.MkdirAll(destDir, 0700); err != nil {
		return "", fmt.Errorf("backup: create directory: %w", err)
	}

	base := strings.TrimSuffix(filepath.Base(archivePath), filepath.Ext(archivePath))
	name := fmt.Sprintf("%s-%s.mv", base, time.Now().UTC().Format(timestampLayout))
	dest := filepath.Join(destDir, name)

	if err := os.WriteFile(dest, data, 0600); err != nil {
		return "", fmt.Errorf("backup: write snapshot: %w", err)
	}

	sum := sha256.Sum256(data)
	sidecar := hex.EncodeToString(sum[:]) + "\n"
	if err := os.WriteFile(dest+checksumSuffix, []byte(sidecar), 0600); err != nil {
		os.Remove(dest)
		return "", fmt.Errorf("backup: write checksum: %w", err)
	}
	return dest, nil
}

// List returns the snapshots in dir, oldest first.
func List(dir string) ([]Info, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.mv"))
	if err != nil {
		return nil, fmt.Errorf("backup: list snapshots: %w", err)
	}

	var infos []Info
	for _, path := range matches {
		stat, err := os.Stat(path)
		if err != nil {
			continue
		}
		infos = append(infos, Info{
			Path:      path,
			CreatedAt: snapshotTime(path, stat.ModTime()),
			Size:      stat.Size(),
		})
	}

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].CreatedAt.Before(infos[j].CreatedAt)
	})
	return infos, nil
}

// snapshotTime extracts the timestamp embedded in the snapshot name,
// falling back to the file's modification time.
func snapshotTime(path string, fallback time.Time) time.Time {
	name := strings.TrimSuffix(filepath.Base(path), ".mv")
	if len(name) > len(timestampLayout) {
		ts, err := time.Parse(timestampLayout, name[len(name)-len(timestampLayout):])
		if err == nil {
			return ts
		}
	}
	return fallback
}

// Verify checks a snapshot against its checksum sidecar.
func Verify(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return ErrBackupNotFound
		}
		return fmt.Errorf("backup: read snapshot: %w", err)
	}

	sidecar, err := os.ReadFile(path + checksumSuffix)
	if err != nil {
		if os.IsNotExist(err) {
			return ErrChecksumMissing
		}
		return fmt.Errorf("backup: read checksum: %w", err)
	}

	sum := sha256.Sum256(data)
	want := strings.TrimSpace(string(sidecar))
	if hex.EncodeToString(sum[:]) != want {
		return ErrChecksumMismatch
	}
	return nil
}

// Prune deletes the oldest snapshots beyond keep, sidecars included, and
// returns how many were removed. keep <= 0 deletes nothing.
func Prune(dir string, keep int) (int, error) {
	if keep <= 0 {
		return 0, nil
	}
	infos, err := List(dir)
	if err != nil {
		return 0, err
	}
	if len(infos) <= keep {
		return 0, nil
	}

	deleted := 0
	for _, info := range infos[:len(infos)-keep] {
		if err := os.Remove(info.Path); err != nil {
			return deleted, fmt.Errorf("backup: delete %s: %w", info.Path, err)
		}
		os.Remove(info.Path + checksumSuffix)
		deleted++
	}
	return deleted, nil
}

// Restore replaces the archive at archivePath with the snapshot. The
// snapshot is checksum-verified and decrypted with the passphrase before
// anything is written, and the provider write is atomic, so a failure at
// any step leaves the current archive untouched.
func Restore(provider archive.FileOperationProvider, codec archive.Codec, backupPath, archivePath, passphrase string) error {
	if err := Verify(backupPath); err != nil && err != ErrChecksumMissing {
		return err
	}

	data, err := os.ReadFile(backupPath)
	if err != nil {
		if os.IsNotExist(err) {
			return ErrBackupNotFound
		}
		return fmt.Errorf("backup: read snapshot: %w", err)
	}

	if _, err := codec.Extract(data, passphrase); err != nil {
		return fmt.Errorf("backup: validate snapshot: %w", err)
	}

	if err := provider.WriteArchive(archivePath, data); err != nil {
		return fmt.Errorf("backup: write archive: %w", err)
	}
	return nil
}
