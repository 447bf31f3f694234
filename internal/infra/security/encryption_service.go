// File: internal/infra/security/encryption_service.go
package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"strings"
)

// TokenCipher seals secrets (clone bot tokens) before they reach storage.
type TokenCipher interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(sealed string) (string, error)
}

// sealedPrefix marks values written by EncryptionService so rows stored
// before a key was configured can still be read back verbatim.
const sealedPrefix = "gcm1:"

var (
	_ TokenCipher = (*EncryptionService)(nil)
	_ TokenCipher = PlainText{}
)

// EncryptionService is AES-GCM with a random nonce per message.
type EncryptionService struct {
	gcm cipher.AEAD
}

// NewEncryptionService needs a 16, 24 or 32 byte key (AES-128/192/256).
func NewEncryptionService(key string) (*EncryptionService, error) {
	k := []byte(key)
	n := len(k)
	if n != 16 && n != 24 && n != 32 {
		return nil, fmt.Errorf("encryption key must be 16, 24, or 32 bytes; got %d", n)
	}
	block, err := aes.NewCipher(k)
	if err != nil {
		return nil, fmt.Errorf("aes.NewCipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cipher.NewGCM: %w", err)
	}
	return &EncryptionService{gcm: gcm}, nil
}

// NewTokenCipher returns PlainText when no key is configured.
func NewTokenCipher(key string) (TokenCipher, error) {
	if key == "" {
		return PlainText{}, nil
	}
	return NewEncryptionService(key)
}

// Encrypt returns "gcm1:" + base64(nonce || ciphertext).
func (e *EncryptionService) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, e.gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("rand nonce: %w", err)
	}
	ct := e.gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return sealedPrefix + base64.StdEncoding.EncodeToString(ct), nil
}

func (e *EncryptionService) Decrypt(sealed string) (string, error) {
	if !strings.HasPrefix(sealed, sealedPrefix) {
		return sealed, nil
	}
	data, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(sealed, sealedPrefix))
	if err != nil {
		return "", fmt.Errorf("base64 decode: %w", err)
	}
	ns := e.gcm.NonceSize()
	if len(data) < ns {
		return "", fmt.Errorf("ciphertext too short")
	}
	nonce, ct := data[:ns], data[ns:]
	pt, err := e.gcm.Open(nil, nonce, ct, nil)
	if err != nil {
		return "", fmt.Errorf("gcm open: %w", err)
	}
	return string(pt), nil
}

// PlainText stores secrets as-is. Used in dev and when no key is set.
type PlainText struct{}

func (PlainText) Encrypt(s string) (string, error) { return s, nil }

func (PlainText) Decrypt(s string) (string, error) {
	if strings.HasPrefix(s, sealedPrefix) {
		return "", fmt.Errorf("value is encrypted but no key is configured")
	}
	return s, nil
}
