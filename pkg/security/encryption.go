package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"io"
)

var (
	ErrInvalidKeySize = errors.New("payload key must be 16, 24 or 32 bytes")
	ErrSealFailed     = errors.New("failed to seal field")
	ErrOpenFailed     = errors.New("failed to open field")
)

// FieldCipher seals secret notification fields, such as a clinic-issued temporary
// password, for the time they sit in the outbox. A sealed value is bound to the
// field name it was sealed under and opens only under that name.
type FieldCipher interface {
	Seal(field string, plaintext []byte) ([]byte, error)
	Open(field string, sealed []byte) ([]byte, error)
}

// NewFieldCipher returns an AES-GCM FieldCipher. Sealed values are nonce || ciphertext.
func NewFieldCipher(key []byte) (FieldCipher, error) {
	switch len(key) {
	case 16, 24, 32:
	default:
		return nil, ErrInvalidKeySize
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, ErrInvalidKeySize
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &gcmFieldCipher{aead: aead}, nil
}

type gcmFieldCipher struct {
	aead cipher.AEAD
}

func (c *gcmFieldCipher) Seal(field string, plaintext []byte) ([]byte, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, ErrSealFailed
	}
	return c.aead.Seal(nonce, nonce, plaintext, []byte(field)), nil
}

func (c *gcmFieldCipher) Open(field string, sealed []byte) ([]byte, error) {
	n := c.aead.NonceSize()
	if len(sealed) < n+c.aead.Overhead() {
		return nil, ErrOpenFailed
	}
	plaintext, err := c.aead.Open(nil, sealed[:n], sealed[n:], []byte(field))
	if err != nil {
		return nil, ErrOpenFailed
	}
	return plaintext, nil
}
