// Package vault encrypts long-lived token secrets at rest with AES-256-GCM.
// Ciphertext is base64(nonce || sealed), so tampering or a wrong key is
// detected on Decrypt instead of yielding a plausible wrong secret.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"brokerage-gateway/domain/apierror"
)

const KeySize = 32

var ErrInvalidKey = errors.New("vault: key must be 32 bytes")

// Vault holds the AEAD for one symmetric key.
type Vault struct {
	aead cipher.AEAD
	rand io.Reader
}

// GenerateKey returns a fresh random key.
func GenerateKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, fmt.Errorf("vault: generate key: %w", err)
	}
	return key, nil
}

// EncodeKey renders a key for configuration files.
func EncodeKey(key []byte) string {
	return base64.StdEncoding.EncodeToString(key)
}

// DecodeKey parses a base64 key from configuration.
func DecodeKey(encoded string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return nil, fmt.Errorf("vault: decode key: %w", err)
	}
	if len(key) != KeySize {
		return nil, ErrInvalidKey
	}
	return key, nil
}

func New(key []byte) (*Vault, error) {
	if len(key) != KeySize {
		return nil, ErrInvalidKey
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("vault: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("vault: %w", err)
	}
	return &Vault{aead: aead, rand: rand.Reader}, nil
}

// Encrypt seals plaintext under a fresh random nonce.
func (v *Vault) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, v.aead.NonceSize())
	if _, err := io.ReadFull(v.rand, nonce); err != nil {
		return "", fmt.Errorf("vault: nonce: %w", err)
	}
	sealed := v.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens ciphertext. Any corruption or key mismatch is ErrDecryptionFailed.
func (v *Vault) Decrypt(ciphertext string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("%w: malformed ciphertext", apierror.ErrDecryptionFailed)
	}
	ns := v.aead.NonceSize()
	if len(raw) < ns+v.aead.Overhead() {
		return "", fmt.Errorf("%w: ciphertext too short", apierror.ErrDecryptionFailed)
	}
	plain, err := v.aead.Open(nil, raw[:ns], raw[ns:], nil)
	if err != nil {
		return "", fmt.Errorf("%w: authentication failed", apierror.ErrDecryptionFailed)
	}
	return string(plain), nil
}

// Encrypt is the one-shot form of Vault.Encrypt.
func Encrypt(plaintext string, key []byte) (string, error) {
	v, err := New(key)
	if err != nil {
		return "", err
	}
	return v.Encrypt(plaintext)
}

// Decrypt is the one-shot form of Vault.Decrypt. A key of the wrong size is
// reported as ErrDecryptionFailed as well.
func Decrypt(ciphertext string, key []byte) (string, error) {
	v, err := New(key)
	if err != nil {
		return "", fmt.Errorf("%w: %v", apierror.ErrDecryptionFailed, err)
	}
	return v.Decrypt(ciphertext)
}
