// Package archive implements the encrypted container format for memvault
// repositories and the file-operation abstraction the repository manager
// persists through.
//
// The container holds a FileMap (repository-relative path to raw bytes)
// compressed with zstd and sealed with AES-256-GCM; the encryption and MAC
// keys are derived from the user passphrase with Argon2id and HKDF-SHA256.
package archive

import "errors"

// File and codec errors.
var (
	// ErrNotFound indicates no archive exists at the given path.
	ErrNotFound = errors.New("archive: file not found")

	// ErrPermissionDenied indicates the archive path is not accessible.
	ErrPermissionDenied = errors.New("archive: permission denied")

	// ErrExtractionFailed indicates the archive could not be extracted.
	ErrExtractionFailed = errors.New("archive: extraction failed")

	// ErrCreationFailed indicates the archive could not be created.
	ErrCreationFailed = errors.New("archive: creation failed")

	// ErrInvalidPassword indicates authentication of the archive failed,
	// which for a password-derived key means the passphrase is wrong.
	ErrInvalidPassword = errors.New("archive: invalid password")

	// ErrCorruptedArchive indicates the archive bytes are structurally
	// damaged.
	ErrCorruptedArchive = errors.New("archive: corrupted archive")

	// ErrEmptyPassword indicates an empty passphrase was supplied.
	ErrEmptyPassword = errors.New("archive: password cannot be empty")

	// ErrUnsupportedVersion indicates the container was written by a newer
	// format version.
	ErrUnsupportedVersion = errors.New("archive: unsupported container version")

	// ErrPathLocked indicates another handle already holds the lock for the
	// path.
	ErrPathLocked = errors.New("archive: path is locked by another handle")
)
