// Package crypto protects applicant PII. PAN numbers are encrypted with
// AES-256-GCM (random 96-bit nonce prepended to the ciphertext) and indexed
// by a SHA-256 digest so duplicates can be detected without decryption.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
)

const nonceSize = 12

var ErrInvalidCiphertext = errors.New("invalid ciphertext")

// Cipher wraps an AES-256-GCM AEAD.
type Cipher struct {
	aead cipher.AEAD
}

// New builds a Cipher from a base64-encoded 32-byte key.
func New(keyBase64 string) (*Cipher, error) {
	key, err := base64.StdEncoding.DecodeString(keyBase64)
	if err != nil {
		return nil, fmt.Errorf("decode encryption key: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("encryption key must be 32 bytes, got %d", len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &Cipher{aead: aead}, nil
}

// Encrypt returns nonce||ciphertext||tag. The random nonce means the same
// plaintext never encrypts to the same bytes twice.
func (c *Cipher) Encrypt(plaintext string) ([]byte, error) {
	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	return c.aead.Seal(nonce, nonce, []byte(plaintext), nil), nil
}

// Decrypt reverses Encrypt, verifying the authentication tag.
func (c *Cipher) Decrypt(data []byte) (string, error) {
	if len(data) < nonceSize {
		return "", ErrInvalidCiphertext
	}
	plain, err := c.aead.Open(nil, data[:nonceSize], data[nonceSize:], nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidCiphertext, err)
	}
	return string(plain), nil
}

// EncryptToString encrypts and base64-encodes for message transport.
func (c *Cipher) EncryptToString(plaintext string) (string, error) {
	data, err := c.Encrypt(plaintext)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// DecryptFromString decodes base64 transport encoding and decrypts.
func (c *Cipher) DecryptFromString(encoded string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidCiphertext, err)
	}
	return c.Decrypt(data)
}

// Hash returns the hex SHA-256 digest of the plaintext. Deterministic and
// collision-resistant, used for duplicate detection without decryption.
func Hash(plaintext string) string {
	sum := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(sum[:])
}

// MaskPAN hides all but the last five characters (XXXXX1234F). Applied only
// at the query boundary, never stored.
func MaskPAN(pan string) string {
	if len(pan) != 10 {
		return "XXXXXXXXXX"
	}
	return "XXXXX" + pan[5:]
}
