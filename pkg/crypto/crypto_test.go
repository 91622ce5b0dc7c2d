package crypto

import (
	"bytes"
	"crypto/rand"
	"testing"
)

func TestDeriveKeyDeterministic(t *testing.T) {
	salt, err := NewSalt()
	if err != nil {
		t.Fatalf("NewSalt failed: %v", err)
	}

	key := DeriveKey([]byte("correct horse"), salt)
	if len(key) != KeyLength {
		t.Fatalf("key length = %d, want %d", len(key), KeyLength)
	}

	again := DeriveKey([]byte("correct horse"), salt)
	if !bytes.Equal(key, again) {
		t.Error("same passphrase and salt should derive the same key")
	}

	other := DeriveKey([]byte("battery staple"), salt)
	if bytes.Equal(key, other) {
		t.Error("different passphrase should derive a different key")
	}

	salt2, err := NewSalt()
	if err != nil {
		t.Fatalf("NewSalt failed: %v", err)
	}
	if bytes.Equal(salt, salt2) {
		t.Error("NewSalt should not repeat")
	}
	other = DeriveKey([]byte("correct horse"), salt2)
	if bytes.Equal(key, other) {
		t.Error("different salt should derive a different key")
	}
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	key := make([]byte, KeyLength)
	if _, err := rand.Read(key); err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}

	cases := []struct {
		name      string
		plaintext []byte
	}{
		{"empty", []byte{}},
		{"small", []byte("x")},
		{"text", []byte("metadata.yml contents go here")},
		{"binary", []byte{0x00, 0xFF, 0x01, 0xFE}},
		{"large", make([]byte, 64*1024)},
	}
	if _, err := rand.Read(cases[4].plaintext); err != nil {
		t.Fatalf("failed to generate random data: %v", err)
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ciphertext, nonce, err := Encrypt(key, tc.plaintext)
			if err != nil {
				t.Fatalf("Encrypt failed: %v", err)
			}
			if len(nonce) != NonceLength {
				t.Errorf("nonce length = %d, want %d", len(nonce), NonceLength)
			}

			plaintext, err := Decrypt(key, ciphertext, nonce)
			if err != nil {
				t.Fatalf("Decrypt failed: %v", err)
			}
			if !bytes.Equal(plaintext, tc.plaintext) {
				t.Error("round trip mismatch")
			}
		})
	}
}

func TestEncryptRejectsBadKey(t *testing.T) {
	for _, n := range []int{0, 16, 24, 48} {
		if _, _, err := Encrypt(make([]byte, n), []byte("data")); err != ErrInvalidKeyLength {
			t.Errorf("key length %d: got %v, want ErrInvalidKeyLength", n, err)
		}
	}
}

func TestDecryptFailures(t *testing.T) {
	key := make([]byte, KeyLength)
	if _, err := rand.Read(key); err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	ciphertext, nonce, err := Encrypt(key, []byte("secret data"))
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}

	wrongKey := make([]byte, KeyLength)
	if _, err := rand.Read(wrongKey); err != nil {
		t.Fatal(err)
	}
	if _, err := Decrypt(wrongKey, ciphertext, nonce); err != ErrDecryptionFailed {
		t.Errorf("wrong key: got %v, want ErrDecryptionFailed", err)
	}

	tampered := append([]byte(nil), ciphertext...)
	tampered[0] ^= 0x01
	if _, err := Decrypt(key, tampered, nonce); err != ErrDecryptionFailed {
		t.Errorf("tampered ciphertext: got %v, want ErrDecryptionFailed", err)
	}

	wrongNonce := make([]byte, NonceLength)
	if _, err := Decrypt(key, ciphertext, wrongNonce); err != ErrDecryptionFailed {
		t.Errorf("wrong nonce: got %v, want ErrDecryptionFailed", err)
	}

	if _, err := Decrypt(key, ciphertext, make([]byte, 8)); err != ErrInvalidNonceLength {
		t.Errorf("short nonce: got %v, want ErrInvalidNonceLength", err)
	}
	if _, err := Decrypt(make([]byte, 16), ciphertext, nonce); err != ErrInvalidKeyLength {
		t.Errorf("short key: got %v, want ErrInvalidKeyLength", err)
	}
	if _, err := Decrypt(key, make([]byte, 10), nonce); err != ErrCiphertextTooShort {
		t.Errorf("short ciphertext: got %v, want ErrCiphertextTooShort", err)
	}
}

func TestEncryptNonceUnique(t *testing.T) {
	key := make([]byte, KeyLength)
	if _, err := rand.Read(key); err != nil {
		t.Fatal(err)
	}

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		_, nonce, err := Encrypt(key, []byte("data"))
		if err != nil {
			t.Fatalf("Encrypt failed: %v", err)
		}
		if seen[string(nonce)] {
			t.Fatalf("duplicate nonce on iteration %d", i)
		}
		seen[string(nonce)] = true
	}
}

func TestSecureWipe(t *testing.T) {
	data := []byte{0x01, 0x02, 0x03, 0x04}
	SecureWipe(data)
	for i, b := range data {
		if b != 0 {
			t.Errorf("byte[%d] = %d, want 0", i, b)
		}
	}

	// Must not panic on empty or nil slices.
	SecureWipe([]byte{})
	SecureWipe(nil)
}

func BenchmarkDeriveKey(b *testing.B) {
	salt, err := NewSalt()
	if err != nil {
		b.Fatal(err)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		DeriveKey([]byte("benchmark passphrase"), salt)
	}
}
