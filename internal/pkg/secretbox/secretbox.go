// Package secretbox encrypts provider account tokens before they are written
// to the database.
//
// Ciphertexts are base64(nonce || XChaCha20-Poly1305 sealed box). The
// additional data binds a ciphertext to the row it belongs to, so a token
// copied into a different integration row fails to open.
package secretbox

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// ErrMalformed is returned when a stored ciphertext cannot be decoded.
var ErrMalformed = errors.New("secretbox: malformed ciphertext")

// Box seals and opens secrets with a single 32-byte key.
type Box struct {
	key []byte
}

// New creates a Box from a hex-encoded 32-byte key.
func New(hexKey string) (*Box, error) {
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("secretbox: decode key: %w", err)
	}
	if len(key) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("secretbox: key must be %d bytes, got %d", chacha20poly1305.KeySize, len(key))
	}
	return &Box{key: key}, nil
}

// Seal encrypts plaintext. aad is authenticated but not encrypted.
func (b *Box) Seal(plaintext, aad string) (string, error) {
	aead, err := chacha20poly1305.NewX(b.key)
	if err != nil {
		return "", fmt.Errorf("secretbox: init cipher: %w", err)
	}

	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("secretbox: nonce: %w", err)
	}

	sealed := aead.Seal(nonce, nonce, []byte(plaintext), []byte(aad))
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Open decrypts a value produced by Seal with the same aad.
func (b *Box) Open(ciphertext, aad string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", ErrMalformed
	}

	aead, err := chacha20poly1305.NewX(b.key)
	if err != nil {
		return "", fmt.Errorf("secretbox: init cipher: %w", err)
	}
	if len(raw) < aead.NonceSize()+aead.Overhead() {
		return "", ErrMalformed
	}

	nonce, sealed := raw[:aead.NonceSize()], raw[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, sealed, []byte(aad))
	if err != nil {
		return "", fmt.Errorf("secretbox: open: %w", err)
	}
	return string(plain), nil
}
