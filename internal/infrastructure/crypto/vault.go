// Package crypto implements the credential vault protecting per-tenant
// gateway secrets at rest.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const (
	nonceLength = 12
	iterations  = 65536
	keyLength   = 32
)

// The salt is fixed so the same master secret always derives the same working
// key without storing it separately.
var keySalt = []byte("mealstack-payment-vault-v1")

var ErrDecryptFailed = errors.New("vault: decryption failed")

// Vault encrypts and decrypts credential strings with AES-256-GCM. The working
// key is derived once from the master secret via PBKDF2-HMAC-SHA256.
type Vault struct {
	aead cipher.AEAD
}

func NewVault(masterKey string) (*Vault, error) {
	if masterKey == "" {
		return nil, errors.New("vault: master key is required")
	}

	key := pbkdf2.Key([]byte(masterKey), keySalt, iterations, keyLength, sha256.New)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("vault: init cipher: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("vault: init gcm: %w", err)
	}

	return &Vault{aead: aead}, nil
}

// Encrypt returns the base64 encoding of nonce||ciphertext. A fresh random
// nonce is generated per call. Blank plaintext maps to an empty ciphertext.
func (v *Vault) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}

	nonce := make([]byte, nonceLength)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("vault: generate nonce: %w", err)
	}

	sealed := v.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt. A wrong key, truncated input, or tampered
// ciphertext fails with ErrDecryptFailed rather than returning partial or
// wrong plaintext.
func (v *Vault) Decrypt(ciphertext string) (string, error) {
	if ciphertext == "" {
		return "", nil
	}

	decoded, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecryptFailed, err)
	}
	if len(decoded) < nonceLength {
		return "", fmt.Errorf("%w: ciphertext too short", ErrDecryptFailed)
	}

	nonce, sealed := decoded[:nonceLength], decoded[nonceLength:]
	plaintext, err := v.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecryptFailed, err)
	}

	return string(plaintext), nil
}
