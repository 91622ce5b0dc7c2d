// Package totp generates RFC 6238 time-based one-time codes for credentials
// that carry a totp_secret field.
package totp

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base32"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Defaults match what authenticator apps expect.
const (
	// Period is the code rotation interval in seconds.
	Period = 30

	// Digits is the code length.
	Digits = 6
)

// ErrInvalidSecret is returned when a secret is not valid base32.
var ErrInvalidSecret = errors.New("totp: secret is not valid base32")

// Generate returns the current code for a base32 secret.
func Generate(secret string) (string, error) {
	return GenerateAt(secret, time.Now())
}

// GenerateAt returns the code for a base32 secret at the given time.
// Secrets are accepted the way users paste them: mixed case, with spaces or
// dashes, with or without padding.
func GenerateAt(secret string, t time.Time) (string, error) {
	key, err := decodeSecret(secret)
	if err != nil {
		return "", err
	}

	counter := uint64(t.Unix()) / Period
	var msg [8]byte
	binary.BigEndian.PutUint64(msg[:], counter)

	mac := hmac.New(sha1.New, key)
	mac.Write(msg[:])
	sum := mac.Sum(nil)

	// Dynamic truncation per RFC 4226 §5.3.
	offset := sum[len(sum)-1] & 0x0f
	code := binary.BigEndian.Uint32(sum[offset:offset+4]) & 0x7fffffff

	return fmt.Sprintf("%0*d", Digits, code%digitsModulus()), nil
}

// digitsModulus is 10^Digits, the truncation divisor from RFC 4226 §5.3.
func digitsModulus() uint32 {
	m := uint32(1)
	for i := 0; i < Digits; i++ {
		m *= 10
	}
	return m
}

// Remaining returns the seconds until the code at t rotates.
func Remaining(t time.Time) int {
	return Period - int(t.Unix()%Period)
}

// ValidSecret reports whether a secret decodes to a usable key.
func ValidSecret(secret string) bool {
	_, err := decodeSecret(secret)
	return err == nil
}

func decodeSecret(secret string) ([]byte, error) {
	s := strings.ToUpper(secret)
	s = strings.Map(func(r rune) rune {
		if r == ' ' || r == '-' {
			return -1
		}
		return r
	}, s)
	s = strings.TrimRight(s, "=")
	if s == "" {
		return nil, ErrInvalidSecret
	}

	key, err := base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSecret, err)
	}
	return key, nil
}
