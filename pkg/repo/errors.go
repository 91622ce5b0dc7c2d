// Package repo implements the in-memory credential repository: pure CRUD
// over credential records with serialization to and from the archive
// FileMap. The package performs no file I/O; persistence is the repository
// manager's job.
package repo

import "errors"

// Core errors. The repository and validator raise only these; the manager is
// the sole place file-level errors get wrapped into ErrFileOperation.
var (
	// ErrNotInitialized indicates no repository is open.
	ErrNotInitialized = errors.New("repo: repository not initialized")

	// ErrCredentialNotFound indicates no record exists with the given id.
	ErrCredentialNotFound = errors.New("repo: credential not found")

	// ErrValidation indicates a record failed domain validation.
	ErrValidation = errors.New("repo: validation failed")

	// ErrSerialization indicates encoding or decoding repository data
	// failed.
	ErrSerialization = errors.New("repo: serialization failed")

	// ErrFileOperation wraps a file-level error crossing into core-error
	// space.
	ErrFileOperation = errors.New("repo: file operation failed")

	// ErrDuplicateID indicates a record with the same id already exists.
	ErrDuplicateID = errors.New("repo: duplicate credential id")
)
