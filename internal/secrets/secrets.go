// Package secrets seals credentials and OAuth tokens before they reach
// the store or the config file on disk.
package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// EncryptedPrefix marks sealed values wherever they are stored.
	EncryptedPrefix = "enc:v1:"

	// Key derivation parameters
	pbkdf2Iterations = 100000
	keyLength        = 32 // AES-256
	saltLength       = 16
	secretLength     = 32
)

var (
	ErrInvalidCiphertext = errors.New("invalid ciphertext")
	ErrDecryptionFailed  = errors.New("decryption failed")
)

// Box encrypts and decrypts short secret strings with AES-256-GCM.
type Box struct {
	key []byte
}

// NewBox derives the encryption key from a passphrase and salt.
func NewBox(passphrase string, salt []byte) *Box {
	key := pbkdf2.Key([]byte(passphrase), salt, pbkdf2Iterations, keyLength, sha256.New)
	return &Box{key: key}
}

// GenerateSalt creates a random salt for key derivation.
func GenerateSalt() ([]byte, error) {
	salt := make([]byte, saltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, err
	}
	return salt, nil
}

// Encrypt seals a plaintext string and returns it base64-encoded with
// the EncryptedPrefix. Empty input stays empty.
func (b *Box) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}

	block, err := aes.NewCipher(b.key)
	if err != nil {
		return "", err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	ciphertext := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	encoded := base64.StdEncoding.EncodeToString(ciphertext)

	return EncryptedPrefix + encoded, nil
}

// Decrypt opens a value sealed by Encrypt. Values without the
// EncryptedPrefix are returned as-is, so plaintext written by older
// versions keeps working.
func (b *Box) Decrypt(value string) (string, error) {
	if value == "" {
		return "", nil
	}

	if !IsEncrypted(value) {
		return value, nil
	}

	encoded := value[len(EncryptedPrefix):]
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", ErrInvalidCiphertext
	}

	block, err := aes.NewCipher(b.key)
	if err != nil {
		return "", err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}

	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return "", ErrInvalidCiphertext
	}

	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", ErrDecryptionFailed
	}

	return string(plaintext), nil
}

// MustDecrypt opens a value, returning the input unchanged when it
// cannot be opened. Useful during key rotation.
func (b *Box) MustDecrypt(value string) string {
	plaintext, err := b.Decrypt(value)
	if err != nil {
		return value
	}
	return plaintext
}

// IsEncrypted checks whether a value carries the encryption prefix.
func IsEncrypted(value string) bool {
	return strings.HasPrefix(value, EncryptedPrefix)
}

// LoadOrCreateKeyFile reads the key material file at path, creating it
// with fresh random material on first run. It returns the passphrase
// and salt for NewBox.
func LoadOrCreateKeyFile(path string) (string, []byte, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		return parseKeyFile(strings.TrimSpace(string(data)))
	}
	if !os.IsNotExist(err) {
		return "", nil, fmt.Errorf("failed to read key file: %w", err)
	}

	raw := make([]byte, saltLength+secretLength)
	if _, err := io.ReadFull(rand.Reader, raw); err != nil {
		return "", nil, fmt.Errorf("failed to generate key material: %w", err)
	}

	encoded := base64.StdEncoding.EncodeToString(raw)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return "", nil, fmt.Errorf("failed to create key directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(encoded+"\n"), 0o600); err != nil {
		return "", nil, fmt.Errorf("failed to write key file: %w", err)
	}

	return string(raw[saltLength:]), raw[:saltLength], nil
}

func parseKeyFile(encoded string) (string, []byte, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", nil, fmt.Errorf("malformed key file: %w", err)
	}
	if len(raw) != saltLength+secretLength {
		return "", nil, fmt.Errorf("malformed key file: got %d bytes, want %d", len(raw), saltLength+secretLength)
	}
	return string(raw[saltLength:]), raw[:saltLength], nil
}
