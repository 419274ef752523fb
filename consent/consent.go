// Package consent provides purpose-bound consent records and an in-memory
// store. Purpose binding allows selective revocation without affecting
// other processing flows.
package consent

import (
	"context"
	"sync"
	"time"

	"github.com/edurecord/student-records-compliance/interfaces"
)

// Features consent can be granted for.
const (
	FeatureParentalConsent = "parental_consent"
	FeatureDataSharing     = "data_sharing"
	FeatureAnalytics       = "analytics"
)

// Record captures a subject's consent decision for one feature.
type Record struct {
	SubjectID string     `json:"subjectId" bson:"subjectId"`
	Feature   string     `json:"feature" bson:"feature"`
	GrantedAt time.Time  `json:"grantedAt" bson:"grantedAt"`
	ExpiresAt time.Time  `json:"expiresAt,omitempty" bson:"expiresAt,omitempty"` // zero means no expiry
	RevokedAt *time.Time `json:"revokedAt,omitempty" bson:"revokedAt,omitempty"`
}

// IsActive reports whether the consent is currently valid.
func (r Record) IsActive(now time.Time) bool {
	if r.RevokedAt != nil && !r.RevokedAt.After(now) {
		return false
	}
	return r.ExpiresAt.IsZero() || now.Before(r.ExpiresAt)
}

// MemoryStore is an in-memory ConsentStore. Production deployments back
// this interface with the platform's consent service.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]map[string]Record // subject -> feature -> record
	clock   func() time.Time
}

// NewMemoryStore creates an empty consent store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]map[string]Record),
		clock:   time.Now,
	}
}

// Grant records consent for a feature. A zero expiry means the consent does
// not expire.
func (s *MemoryStore) Grant(subjectID, feature string, expiresAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.records[subjectID] == nil {
		s.records[subjectID] = make(map[string]Record)
	}
	s.records[subjectID][feature] = Record{
		SubjectID: subjectID,
		Feature:   feature,
		GrantedAt: s.clock(),
		ExpiresAt: expiresAt,
	}
}

// Revoke withdraws consent for a feature.
func (s *MemoryStore) Revoke(subjectID, feature string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[subjectID][feature]
	if !ok {
		return
	}
	now := s.clock()
	record.RevokedAt = &now
	s.records[subjectID][feature] = record
}

// HasConsent reports whether the subject has active consent for the feature.
func (s *MemoryStore) HasConsent(ctx context.Context, subjectID, feature string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.records[subjectID][feature]
	if !ok {
		return false, nil
	}
	return record.IsActive(s.clock()), nil
}

var _ interfaces.ConsentStore = (*MemoryStore)(nil)
