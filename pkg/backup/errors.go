// Package backup manages timestamped snapshots of an encrypted archive.
package backup

import "errors"

// Snapshot and restore errors.
var (
	// ErrBackupNotFound indicates no backup exists at the given path.
	ErrBackupNotFound = errors.New("backup: file not found")

	// ErrNoBackups indicates the backup directory holds no snapshots.
	ErrNoBackups = errors.New("backup: no snapshots found")

	// ErrChecksumMismatch indicates the snapshot does not match its
	// checksum sidecar.
	ErrChecksumMismatch = errors.New("backup: checksum mismatch")

	// ErrChecksumMissing indicates the snapshot has no checksum sidecar.
	ErrChecksumMissing = errors.New("backup: checksum sidecar missing")
)
