package secret

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/crypto/hkdf"

	"secretvault/internal/apperr"
)

const (
	codecVersion byte = 1
	saltSize          = 16
	keySize           = 32
	nonceSize         = 12
)

var hkdfInfo = []byte("secretvault/secret/v1")

// Codec encrypts secret content at rest.
// Each ciphertext carries its own salt, from which a per-message AES-256 key
// is derived with HKDF-SHA256 over the configured key material. Output is
// base64(version || salt || nonce || sealed).
type Codec struct {
	key []byte
}

// NewCodec creates a codec bound to the given key material.
func NewCodec(key string) (*Codec, error) {
	if strings.TrimSpace(key) == "" {
		return nil, apperr.Crypto(errors.New("encryption key is empty"))
	}
	return &Codec{key: []byte(key)}, nil
}

// Encrypt seals plaintext. Two calls with the same input produce different output.
func (c *Codec) Encrypt(plaintext string) (string, error) {
	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", apperr.Crypto(fmt.Errorf("failed to generate salt: %w", err))
	}

	gcm, err := c.aead(salt)
	if err != nil {
		return "", apperr.Crypto(err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", apperr.Crypto(fmt.Errorf("failed to generate nonce: %w", err))
	}

	out := make([]byte, 0, 1+saltSize+nonceSize+len(plaintext)+gcm.Overhead())
	out = append(out, codecVersion)
	out = append(out, salt...)
	out = append(out, nonce...)
	out = gcm.Seal(out, nonce, []byte(plaintext), nil)

	return base64.StdEncoding.EncodeToString(out), nil
}

// Decrypt opens a value produced by Encrypt with the same key.
func (c *Codec) Decrypt(ciphertext string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", apperr.Crypto(fmt.Errorf("malformed ciphertext: %w", err))
	}
	if len(raw) < 1+saltSize+nonceSize {
		return "", apperr.Crypto(errors.New("ciphertext too short"))
	}
	if raw[0] != codecVersion {
		return "", apperr.Crypto(fmt.Errorf("unsupported ciphertext version %d", raw[0]))
	}

	salt := raw[1 : 1+saltSize]
	nonce := raw[1+saltSize : 1+saltSize+nonceSize]
	sealed := raw[1+saltSize+nonceSize:]

	gcm, err := c.aead(salt)
	if err != nil {
		return "", apperr.Crypto(err)
	}

	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", apperr.Crypto(fmt.Errorf("failed to decrypt: %w", err))
	}
	if !utf8.Valid(plaintext) {
		return "", apperr.Crypto(errors.New("decrypted content is not valid UTF-8"))
	}

	return string(plaintext), nil
}

// aead derives the per-message key from salt and returns an AES-256-GCM cipher.
func (c *Codec) aead(salt []byte) (cipher.AEAD, error) {
	key := make([]byte, keySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, c.key, salt, hkdfInfo), key); err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
