// Package keymanager implements the authenticated-encryption primitive over
// versioned symmetric keys. It has no policy knowledge; classification and
// regional validation live above it in the engine.
package keymanager

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"

	"github.com/edurecord/student-records-compliance/interfaces"
)

// Manager encrypts and decrypts scalar field values with AES-256-GCM.
// Encryption always uses the key store's current version; decryption
// resolves whichever version the field records, including retired ones.
type Manager struct {
	keys interfaces.KeyStore
}

// New creates a key manager over a key store.
func New(keys interfaces.KeyStore) (*Manager, error) {
	if keys == nil {
		return nil, fmt.Errorf("key store is required")
	}
	return &Manager{keys: keys}, nil
}

// aad binds the ciphertext to the key version so a ciphertext cannot be
// replayed against a different version's key.
func aad(version uint32) []byte {
	return []byte(fmt.Sprintf("v%d", version))
}

// Encrypt encrypts a scalar value with the current key version. Returns the
// base64 ciphertext, base64 nonce and the version used.
func (m *Manager) Encrypt(ctx context.Context, plaintext string) (string, string, uint32, error) {
	version, key, err := m.keys.CurrentKey(ctx)
	if err != nil {
		return "", "", 0, fmt.Errorf("failed to get current key: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", "", 0, fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", "", 0, fmt.Errorf("failed to create GCM: %w", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", "", 0, fmt.Errorf("failed to generate nonce: %w", err)
	}

	ciphertext := gcm.Seal(nil, nonce, []byte(plaintext), aad(version))

	return base64.StdEncoding.EncodeToString(ciphertext),
		base64.StdEncoding.EncodeToString(nonce),
		version,
		nil
}

// Decrypt decrypts a single field value. Error messages are sanitized
// descriptions only; they never echo ciphertext or key material. The engine
// aggregates them per field rather than failing the whole call.
func (m *Manager) Decrypt(ctx context.Context, ciphertext, nonce string, keyVersion uint32) (string, error) {
	key, err := m.keys.Key(ctx, keyVersion)
	if err != nil {
		return "", fmt.Errorf("key version %d is not available", keyVersion)
	}

	ciphertextBytes, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("ciphertext is not valid base64")
	}

	nonceBytes, err := base64.StdEncoding.DecodeString(nonce)
	if err != nil {
		return "", fmt.Errorf("nonce is not valid base64")
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("failed to create cipher")
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("failed to create GCM")
	}

	if len(nonceBytes) != gcm.NonceSize() {
		return "", fmt.Errorf("nonce has unexpected length")
	}

	plaintext, err := gcm.Open(nil, nonceBytes, ciphertextBytes, aad(keyVersion))
	if err != nil {
		return "", fmt.Errorf("ciphertext failed authentication")
	}

	return string(plaintext), nil
}

var _ interfaces.KeyManager = (*Manager)(nil)
