// Package keystore supplies versioned symmetric key material to the key
// manager. New encryptions always use the current version; retired versions
// stay readable so fields encrypted before a rotation remain decryptable.
package keystore

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/edurecord/student-records-compliance/interfaces"
)

const keySize = 32 // AES-256

// StaticStore holds key material supplied at construction. Rotation is a
// single-writer atomic swap under the write lock; readers in flight keep
// resolving the version recorded in each encrypted field.
type StaticStore struct {
	mu      sync.RWMutex
	keys    map[uint32][]byte
	current uint32
}

// NewStatic creates a store from explicit key material. Every key must be
// 32 bytes with reasonable entropy, and the current version must exist.
func NewStatic(keys map[uint32][]byte, current uint32) (*StaticStore, error) {
	if len(keys) == 0 {
		return nil, fmt.Errorf("at least one key version is required")
	}
	for version, key := range keys {
		if err := checkKey(key); err != nil {
			return nil, fmt.Errorf("key version %d: %w", version, err)
		}
	}
	if _, ok := keys[current]; !ok {
		return nil, fmt.Errorf("current key version %d is not present in key material", current)
	}

	copied := make(map[uint32][]byte, len(keys))
	for version, key := range keys {
		k := make([]byte, keySize)
		copy(k, key)
		copied[version] = k
	}

	log.Debug().
		Int("versions", len(copied)).
		Uint32("current", current).
		Msg("Static key store initialized")

	return &StaticStore{keys: copied, current: current}, nil
}

// checkKey validates key length and entropy. A key with fewer than 16
// distinct byte values is almost certainly a placeholder, not key material.
func checkKey(key []byte) error {
	if len(key) != keySize {
		return fmt.Errorf("key must be exactly %d bytes, got %d", keySize, len(key))
	}
	uniqueBytes := make(map[byte]bool)
	for _, b := range key {
		uniqueBytes[b] = true
	}
	if len(uniqueBytes) < 16 {
		return fmt.Errorf("key has insufficient entropy")
	}
	return nil
}

// CurrentKey returns the active version and a copy of its material.
func (s *StaticStore) CurrentKey(ctx context.Context) (uint32, []byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	key := s.keys[s.current]
	out := make([]byte, keySize)
	copy(out, key)
	return s.current, out, nil
}

// Key returns the material for a specific version, including retired ones.
func (s *StaticStore) Key(ctx context.Context, version uint32) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	key, ok := s.keys[version]
	if !ok {
		return nil, fmt.Errorf("unknown key version %d", version)
	}
	out := make([]byte, keySize)
	copy(out, key)
	return out, nil
}

// Rotate installs new key material and makes it the current version. The
// version must be strictly greater than the current one; the retired
// version remains readable.
func (s *StaticStore) Rotate(version uint32, key []byte) error {
	if err := checkKey(key); err != nil {
		return fmt.Errorf("rotation key version %d: %w", version, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if version <= s.current {
		return fmt.Errorf("rotation version %d must be greater than current version %d", version, s.current)
	}

	copied := make([]byte, keySize)
	copy(copied, key)
	s.keys[version] = copied
	s.current = version

	log.Info().Uint32("version", version).Msg("Key store rotated to new version")
	return nil
}

var _ interfaces.KeyStore = (*StaticStore)(nil)
