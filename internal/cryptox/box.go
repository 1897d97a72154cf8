// Package cryptox implements the symmetric crypto used to keep session
// secrets and passwords encrypted at rest.
//
// A Box holds a single AES-256-GCM key derived once at process start from the
// configured passphrase and salt via argon2id. Encrypt produces a base64
// string carrying nonce||ciphertext; Decrypt authenticates the ciphertext and
// returns common.ErrCorruptCiphertext for anything not produced by Encrypt
// with the same key (tampering, truncation, wrong key).
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"github.com/dmitrijs2005/sessionvault/internal/common"
	"golang.org/x/crypto/argon2"
)

const keySize = 32

// DeriveKey stretches the configured passphrase into an AES-256 key.
// The salt comes from configuration as well, never from user input.
func DeriveKey(passphrase, salt []byte) []byte {
	return argon2.IDKey(passphrase, salt, 1, 64*1024, 4, keySize)
}

type Box struct {
	aead cipher.AEAD
}

// NewBox builds a Box around the given 32-byte key.
func NewBox(key []byte) (*Box, error) {
	if len(key) != keySize {
		return nil, fmt.Errorf("key must be %d bytes, got %d", keySize, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &Box{aead: aead}, nil
}

// Encrypt seals plaintext with a fresh random nonce and returns
// base64(nonce || ciphertext).
func (b *Box) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, b.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	sealed := b.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt. Any malformed or unauthenticated input yields
// common.ErrCorruptCiphertext.
func (b *Box) Decrypt(ciphertext string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", common.ErrCorruptCiphertext
	}
	if len(raw) < b.aead.NonceSize() {
		return "", common.ErrCorruptCiphertext
	}
	nonce, sealed := raw[:b.aead.NonceSize()], raw[b.aead.NonceSize():]
	plaintext, err := b.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", common.ErrCorruptCiphertext
	}
	return string(plaintext), nil
}
