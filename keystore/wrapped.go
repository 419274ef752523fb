package keystore

import (
	"context"
	"crypto/rand"
	"fmt"
	"sync"
	"time"

	wrapping "github.com/hashicorp/go-kms-wrapping/v2"
	"github.com/rs/zerolog/log"

	"github.com/edurecord/student-records-compliance/interfaces"
	"github.com/edurecord/student-records-compliance/kms"
)

const defaultUnwrapCacheTTL = 15 * time.Minute

type cacheEntry struct {
	key       []byte
	expiresAt time.Time
}

// WrappedStore keeps every key version wrapped by a KMS root key and
// unwraps on demand. Unwrapped material is cached with a TTL so steady-state
// encrypt/decrypt traffic does not hit the KMS on every call.
type WrappedStore struct {
	wrapper  wrapping.Wrapper
	cacheTTL time.Duration

	mu      sync.RWMutex
	blobs   map[uint32]*wrapping.BlobInfo
	current uint32

	cache sync.Map // version -> cacheEntry
}

// NewWrapped creates a wrapped store backed by the given KMS provider and
// generates the initial key version.
func NewWrapped(ctx context.Context, provider kms.Provider) (*WrappedStore, error) {
	if provider == nil {
		return nil, fmt.Errorf("KMS provider is required")
	}

	s := &WrappedStore{
		wrapper:  provider.GetWrapper(),
		cacheTTL: defaultUnwrapCacheTTL,
		blobs:    make(map[uint32]*wrapping.BlobInfo),
	}

	if _, err := s.AddVersion(ctx); err != nil {
		return nil, fmt.Errorf("failed to create initial key version: %w", err)
	}
	return s, nil
}

// AddVersion generates fresh key material, wraps it with the KMS root key
// and makes the new version current. This is the store's atomic rotation
// primitive; callers already holding older versions keep resolving them.
func (s *WrappedStore) AddVersion(ctx context.Context) (uint32, error) {
	key := make([]byte, keySize)
	if _, err := rand.Read(key); err != nil {
		return 0, fmt.Errorf("failed to generate key material: %w", err)
	}

	blob, err := s.wrapper.Encrypt(ctx, key)
	if err != nil {
		return 0, fmt.Errorf("failed to wrap key material: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	version := s.current + 1
	s.blobs[version] = blob
	s.current = version

	log.Info().Uint32("version", version).Msg("Wrapped key store added new key version")
	return version, nil
}

// CurrentKey unwraps and returns the active key version.
func (s *WrappedStore) CurrentKey(ctx context.Context) (uint32, []byte, error) {
	s.mu.RLock()
	version := s.current
	s.mu.RUnlock()

	key, err := s.Key(ctx, version)
	if err != nil {
		return 0, nil, err
	}
	return version, key, nil
}

// Key unwraps the material for a specific version, including retired ones.
func (s *WrappedStore) Key(ctx context.Context, version uint32) ([]byte, error) {
	if cached, ok := s.cache.Load(version); ok {
		entry := cached.(cacheEntry)
		if time.Now().Before(entry.expiresAt) {
			out := make([]byte, len(entry.key))
			copy(out, entry.key)
			return out, nil
		}
		s.cache.Delete(version)
	}

	s.mu.RLock()
	blob, ok := s.blobs[version]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown key version %d", version)
	}

	key, err := s.wrapper.Decrypt(ctx, blob)
	if err != nil {
		return nil, fmt.Errorf("failed to unwrap key version %d: %w", version, err)
	}

	s.cache.Store(version, cacheEntry{key: key, expiresAt: time.Now().Add(s.cacheTTL)})

	out := make([]byte, len(key))
	copy(out, key)
	return out, nil
}

// InvalidateCache drops all unwrapped material, forcing fresh KMS unwraps.
func (s *WrappedStore) InvalidateCache() {
	s.cache.Range(func(k, _ interface{}) bool {
		s.cache.Delete(k)
		return true
	})
}

var _ interfaces.KeyStore = (*WrappedStore)(nil)
