package crypto

import (
	"errors"
	"sync"
)

// ErrKeyDestroyed indicates the master key has been wiped and may no longer
// be used.
var ErrKeyDestroyed = errors.New("crypto: master key destroyed")

// MasterKey owns derived key material for the lifetime of a session.
//
// The wrapper exists so the rest of the system never handles raw key bytes
// directly: callers borrow the bytes for the duration of a codec call via
// Bytes and must not retain them. Destroy overwrites the material; every
// later use fails with ErrKeyDestroyed.
type MasterKey struct {
	mu        sync.Mutex
	key       []byte
	destroyed bool
}

// NewMasterKey derives a master key from a passphrase and salt.
func NewMasterKey(passphrase string, salt []byte) *MasterKey {
	pw := []byte(passphrase)
	key := DeriveKey(pw, salt)
	SecureWipe(pw)
	return &MasterKey{key: key}
}

// NewMasterKeyFromBytes wraps existing key material. The wrapper takes
// ownership; the caller must not use raw afterwards.
func NewMasterKeyFromBytes(raw []byte) *MasterKey {
	return &MasterKey{key: raw}
}

// Bytes borrows the key material. The returned slice is owned by the
// MasterKey; callers must not retain it past the current operation.
func (m *MasterKey) Bytes() ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.destroyed {
		return nil, ErrKeyDestroyed
	}
	return m.key, nil
}

// Destroyed reports whether the key has been wiped.
func (m *MasterKey) Destroyed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.destroyed
}

// Destroy overwrites the key material with zeros. Safe to call more than
// once.
func (m *MasterKey) Destroy() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.destroyed {
		return
	}
	SecureWipe(m.key)
	m.key = nil
	m.destroyed = true
}
