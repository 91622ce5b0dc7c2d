package session

import "errors"

// Errors
var (
	ErrRepositoryExists = errors.New("session: repository already exists at this path")
	ErrRepositoryOpen   = errors.New("session: a repository is already open")
	ErrWeakPassphrase   = errors.New("session: master passphrase is too weak")
	ErrPassphraseEmpty  = errors.New("session: master passphrase must not be empty")
	ErrNoArchivePath    = errors.New("session: session has no backing archive path")
)
