package archive

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/klauspost/compress/zstd"
	"golang.org/x/crypto/hkdf"

	"github.com/memvault/memvault/pkg/crypto"
)

// Codec turns raw archive bytes into a FileMap and back. Implementations are
// stateless between calls; the password is an ephemeral input, never
// retained.
type Codec interface {
	// Extract decrypts archive bytes into a FileMap. Returns
	// ErrInvalidPassword if authentication fails and ErrCorruptedArchive if
	// the bytes are structurally damaged.
	Extract(data []byte, password string) (FileMap, error)

	// Create encrypts a FileMap into archive bytes.
	Create(files FileMap, password string) ([]byte, error)
}

// Container format constants.
const (
	// ContainerVersion is the current container format version.
	ContainerVersion = 1

	// HMACLength is the length of the integrity trailer in bytes.
	HMACLength = 32

	// maxHeaderLength bounds the JSON header during parsing.
	maxHeaderLength = 1024 * 1024
)

// magicNumber identifies a memvault container.
var magicNumber = [8]byte{'M', 'V', 'A', 'U', 'L', 'T', '0', '1'}

// HKDF info strings separating the encryption and MAC keys.
const (
	hkdfInfoEncryption = "memvault-archive-encryption"
	hkdfInfoMAC        = "memvault-archive-mac"
)

// KDFParams records the Argon2id parameters used for a container so archives
// remain readable if the defaults change.
type KDFParams struct {
	Salt        []byte `json:"salt"`
	Memory      uint32 `json:"memory"`
	Iterations  uint32 `json:"iterations"`
	Parallelism uint8  `json:"parallelism"`
}

// containerHeader is the plaintext JSON header of a container.
type containerHeader struct {
	Version      int       `json:"version"`
	CreatedAt    time.Time `json:"created_at"`
	KDF          KDFParams `json:"kdf_params"`
	EntryCount   int       `json:"entry_count"`
	ChecksumAlgo string    `json:"checksum_algorithm"`
}

// ContainerCodec is the default Codec: zstd-compressed FileMap sealed with
// AES-256-GCM and an HMAC-SHA256 trailer over the whole container.
type ContainerCodec struct{}

// NewContainerCodec returns the default codec.
func NewContainerCodec() *ContainerCodec {
	return &ContainerCodec{}
}

// deriveKeys derives the encryption and MAC keys from a passphrase via
// Argon2id followed by HKDF-SHA256 with distinct info strings.
func deriveKeys(password string, salt []byte) (encKey, macKey []byte, err error) {
	if password == "" {
		return nil, nil, ErrEmptyPassword
	}

	pw := []byte(password)
	master := crypto.DeriveKey(pw, salt)
	crypto.SecureWipe(pw)
	defer crypto.SecureWipe(master)

	encKey, err = deriveHKDF(master, []byte(hkdfInfoEncryption))
	if err != nil {
		return nil, nil, fmt.Errorf("archive: failed to derive encryption key: %w", err)
	}
	macKey, err = deriveHKDF(master, []byte(hkdfInfoMAC))
	if err != nil {
		crypto.SecureWipe(encKey)
		return nil, nil, fmt.Errorf("archive: failed to derive mac key: %w", err)
	}
	return encKey, macKey, nil
}

func deriveHKDF(secret, info []byte) ([]byte, error) {
	r := hkdf.New(sha256.New, secret, nil, info)
	key := make([]byte, crypto.KeyLength)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, err
	}
	return key, nil
}

// Create encrypts the FileMap into container bytes.
func (c *ContainerCodec) Create(files FileMap, password string) ([]byte, error) {
	salt, err := crypto.NewSalt()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCreationFailed, err)
	}

	encKey, macKey, err := deriveKeys(password, salt)
	if err != nil {
		return nil, err
	}
	defer crypto.SecureWipe(encKey)
	defer crypto.SecureWipe(macKey)

	plain := encodeFileMap(files)
	defer crypto.SecureWipe(plain)

	compressed, err := zstdEncode(plain)
	if err != nil {
		return nil, fmt.Errorf("%w: compression: %v", ErrCreationFailed, err)
	}

	ciphertext, nonce, err := crypto.Encrypt(encKey, compressed)
	crypto.SecureWipe(compressed)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCreationFailed, err)
	}

	header := containerHeader{
		Version:   ContainerVersion,
		CreatedAt: time.Now().UTC(),
		KDF: KDFParams{
			Salt:        salt,
			Memory:      crypto.Argon2Memory,
			Iterations:  crypto.Argon2Time,
			Parallelism: crypto.Argon2Threads,
		},
		EntryCount:   len(files),
		ChecksumAlgo: "hmac-sha256",
	}
	headerJSON, err := json.Marshal(header)
	if err != nil {
		return nil, fmt.Errorf("%w: header: %v", ErrCreationFailed, err)
	}

	var buf bytes.Buffer
	buf.Write(magicNumber[:])
	if err := binary.Write(&buf, binary.BigEndian, uint32(len(headerJSON))); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCreationFailed, err)
	}
	buf.Write(headerJSON)

	// Payload is nonce-prepended ciphertext.
	payload := make([]byte, 0, len(nonce)+len(ciphertext))
	payload = append(payload, nonce...)
	payload = append(payload, ciphertext...)
	if err := binary.Write(&buf, binary.BigEndian, uint32(len(payload))); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCreationFailed, err)
	}
	buf.Write(payload)

	mac := computeHMAC(buf.Bytes(), macKey)
	buf.Write(mac)

	return buf.Bytes(), nil
}

// Extract decrypts container bytes into a FileMap.
func (c *ContainerCodec) Extract(data []byte, password string) (FileMap, error) {
	if password == "" {
		return nil, ErrEmptyPassword
	}
	if len(data) < len(magicNumber)+4+HMACLength {
		return nil, ErrCorruptedArchive
	}
	if !bytes.Equal(data[:len(magicNumber)], magicNumber[:]) {
		return nil, ErrCorruptedArchive
	}

	r := bytes.NewReader(data[len(magicNumber):])

	var headerLen uint32
	if err := binary.Read(r, binary.BigEndian, &headerLen); err != nil {
		return nil, ErrCorruptedArchive
	}
	if headerLen > maxHeaderLength {
		return nil, ErrCorruptedArchive
	}
	headerJSON := make([]byte, headerLen)
	if _, err := io.ReadFull(r, headerJSON); err != nil {
		return nil, ErrCorruptedArchive
	}
	var header containerHeader
	if err := json.Unmarshal(headerJSON, &header); err != nil {
		return nil, ErrCorruptedArchive
	}
	if header.Version > ContainerVersion {
		return nil, fmt.Errorf("%w: got %d, max supported %d", ErrUnsupportedVersion, header.Version, ContainerVersion)
	}
	if len(header.KDF.Salt) == 0 {
		return nil, ErrCorruptedArchive
	}

	var payloadLen uint32
	if err := binary.Read(r, binary.BigEndian, &payloadLen); err != nil {
		return nil, ErrCorruptedArchive
	}
	if int(payloadLen) != r.Len()-HMACLength {
		return nil, ErrCorruptedArchive
	}
	payload := make([]byte, payloadLen)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, ErrCorruptedArchive
	}
	trailer := make([]byte, HMACLength)
	if _, err := io.ReadFull(r, trailer); err != nil {
		return nil, ErrCorruptedArchive
	}

	encKey, macKey, err := deriveKeys(password, header.KDF.Salt)
	if err != nil {
		return nil, err
	}
	defer crypto.SecureWipe(encKey)
	defer crypto.SecureWipe(macKey)

	// The MAC key comes from the passphrase, so a mismatch here cannot be
	// told apart from a wrong passphrase. Report it as such.
	if !hmac.Equal(computeHMAC(data[:len(data)-HMACLength], macKey), trailer) {
		return nil, ErrInvalidPassword
	}

	if len(payload) < crypto.NonceLength {
		return nil, ErrCorruptedArchive
	}
	compressed, err := crypto.Decrypt(encKey, payload[crypto.NonceLength:], payload[:crypto.NonceLength])
	if err != nil {
		return nil, ErrInvalidPassword
	}
	defer crypto.SecureWipe(compressed)

	plain, err := zstdDecode(compressed)
	if err != nil {
		return nil, ErrCorruptedArchive
	}

	files, err := decodeFileMap(plain)
	if err != nil {
		return nil, ErrCorruptedArchive
	}
	if header.EntryCount != len(files) {
		return nil, ErrCorruptedArchive
	}
	return files, nil
}

// encodeFileMap serializes a FileMap as a length-prefixed binary stream in
// sorted path order.
func encodeFileMap(files FileMap) []byte {
	var buf bytes.Buffer
	paths := files.Paths()
	binary.Write(&buf, binary.BigEndian, uint32(len(paths)))
	for _, p := range paths {
		data := files[p]
		binary.Write(&buf, binary.BigEndian, uint32(len(p)))
		buf.WriteString(p)
		binary.Write(&buf, binary.BigEndian, uint32(len(data)))
		buf.Write(data)
	}
	return buf.Bytes()
}

// decodeFileMap parses the stream written by encodeFileMap.
func decodeFileMap(data []byte) (FileMap, error) {
	r := bytes.NewReader(data)
	var count uint32
	if err := binary.Read(r, binary.BigEndian, &count); err != nil {
		return nil, err
	}
	// count comes from untrusted input; do not use it as an allocation hint.
	files := make(FileMap)
	for i := uint32(0); i < count; i++ {
		var pathLen uint32
		if err := binary.Read(r, binary.BigEndian, &pathLen); err != nil {
			return nil, err
		}
		if int(pathLen) > r.Len() {
			return nil, fmt.Errorf("path length %d exceeds remaining data", pathLen)
		}
		path := make([]byte, pathLen)
		if _, err := io.ReadFull(r, path); err != nil {
			return nil, err
		}
		var dataLen uint32
		if err := binary.Read(r, binary.BigEndian, &dataLen); err != nil {
			return nil, err
		}
		if int(dataLen) > r.Len() {
			return nil, fmt.Errorf("entry length %d exceeds remaining data", dataLen)
		}
		content := make([]byte, dataLen)
		if _, err := io.ReadFull(r, content); err != nil {
			return nil, err
		}
		files[string(path)] = content
	}
	if r.Len() != 0 {
		return nil, fmt.Errorf("%d trailing bytes after last entry", r.Len())
	}
	return files, nil
}

func computeHMAC(data, key []byte) []byte {
	h := hmac.New(sha256.New, key)
	h.Write(data)
	return h.Sum(nil)
}

func zstdEncode(data []byte) ([]byte, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, err
	}
	defer enc.Close()
	return enc.EncodeAll(data, nil), nil
}

func zstdDecode(data []byte) ([]byte, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	return dec.DecodeAll(data, nil)
}
