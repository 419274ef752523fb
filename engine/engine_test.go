package engine

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edurecord/student-records-compliance/access"
	"github.com/edurecord/student-records-compliance/audit"
	"github.com/edurecord/student-records-compliance/interfaces"
	"github.com/edurecord/student-records-compliance/keymanager"
	"github.com/edurecord/student-records-compliance/keystore"
	"github.com/edurecord/student-records-compliance/mfa"
	"github.com/edurecord/student-records-compliance/registry"
	"github.com/edurecord/student-records-compliance/types"
)

func testRegions() []types.RegionConfig {
	return []types.RegionConfig{
		{
			ID:             "europe",
			DataProtection: []string{"GDPR"},
			ContentRestrictions: types.ContentRestrictions{
				AgeRating:            "13+",
				EducationalStandards: []string{"EQF"},
			},
			PrivacySettings: types.PrivacySettings{
				DataRetentionDays:  365,
				ConsentManagement:  true,
				RightToBeForgotten: true,
				DataPortability:    true,
			},
			AuditRequirements: types.AuditRequirements{
				LogRetentionDays:  730,
				AccessLogging:     true,
				ChangeLogging:     true,
				IncidentReporting: true,
				DPOContact:        true,
			},
		},
		{
			ID:             "north_america",
			DataProtection: []string{"FERPA", "COPPA"},
			ContentRestrictions: types.ContentRestrictions{
				AgeRating:      "13+",
				AccessControls: []string{"parental_consent", "mfa_required"},
			},
			PrivacySettings: types.PrivacySettings{
				DataRetentionDays: 1825,
			},
			AuditRequirements: types.AuditRequirements{
				LogRetentionDays: 365,
				AccessLogging:    true,
				ChangeLogging:    true,
			},
		},
		{
			ID:             "singapore",
			DataProtection: []string{"PDPA"},
			PrivacySettings: types.PrivacySettings{
				DataRetentionDays: 730,
				DataMinimization:  true,
			},
			AuditRequirements: types.AuditRequirements{
				LogRetentionDays: 365,
				AccessLogging:    true,
			},
		},
	}
}

// countingKeyManager counts encrypt calls so tests can assert that
// fail-closed paths never touch key material.
type countingKeyManager struct {
	inner    interfaces.KeyManager
	encrypts atomic.Int64
}

func (c *countingKeyManager) Encrypt(ctx context.Context, plaintext string) (string, string, uint32, error) {
	c.encrypts.Add(1)
	return c.inner.Encrypt(ctx, plaintext)
}

func (c *countingKeyManager) Decrypt(ctx context.Context, ciphertext, nonce string, keyVersion uint32) (string, error) {
	return c.inner.Decrypt(ctx, ciphertext, nonce, keyVersion)
}

type testHarness struct {
	engine *Engine
	sink   *audit.MemorySink
	km     *countingKeyManager
}

func newHarness(t *testing.T, mutate func(*Config)) *testHarness {
	t.Helper()

	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)

	store, err := keystore.NewStatic(map[uint32][]byte{1: key}, 1)
	require.NoError(t, err)

	manager, err := keymanager.New(store)
	require.NoError(t, err)
	km := &countingKeyManager{inner: manager}

	reg, err := registry.New(testRegions())
	require.NoError(t, err)

	matrix, err := access.NewMatrix(access.DefaultTable())
	require.NoError(t, err)

	sink := audit.NewMemorySink()

	cfg := Config{
		Registry:   reg,
		Matrix:     matrix,
		KeyManager: km,
		AuditSink:  sink,
	}
	if mutate != nil {
		mutate(&cfg)
	}

	eng, err := New(cfg)
	require.NoError(t, err)

	return &testHarness{engine: eng, sink: sink, km: km}
}

func studentRecord() types.Record {
	return types.Record{
		"name":         {Value: "Jane", Tier: types.TierPublic},
		"email":        {Value: "jane@school.example", Tier: types.TierInternal},
		"grades":       {Value: "A,B+,A-", Tier: types.TierSensitive},
		"health_notes": {Value: "asthma", Tier: types.TierRestricted},
	}
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)

	record := studentRecord()
	encrypted, err := h.engine.Encrypt(ctx, record, types.TierInternal, "europe")
	require.NoError(t, err)
	require.NoError(t, encrypted.AuditWarning)
	require.Len(t, encrypted.Record.Fields, len(record))

	// Ciphertext never equals plaintext and carries the encryption region.
	for name, field := range encrypted.Record.Fields {
		assert.NotEqual(t, record[name].Value, field.Ciphertext)
		assert.Equal(t, "europe", field.Region)
		assert.Equal(t, uint32(1), field.KeyVersion)
	}
	assert.Equal(t, types.TierRestricted, encrypted.Record.OverallTier())

	// A fully privileged role recovers every field.
	decrypted, err := h.engine.Decrypt(ctx, encrypted.Record, types.RoleAdmin, "europe")
	require.NoError(t, err)
	require.Empty(t, decrypted.FieldErrors)
	require.Len(t, decrypted.Fields, len(record))
	for name, value := range record {
		assert.Equal(t, value.Value, decrypted.Fields[name])
	}
}

func TestPartialDecryptForLimitedRole(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)

	record := types.Record{
		"name":         {Value: "Jane", Tier: types.TierPublic},
		"health_notes": {Value: "asthma", Tier: types.TierRestricted},
	}
	encrypted, err := h.engine.Encrypt(ctx, record, types.TierPublic, "europe")
	require.NoError(t, err)

	// A teacher sees exactly the public field; the restricted one is
	// silently omitted, not an error.
	asTeacher, err := h.engine.Decrypt(ctx, encrypted.Record, types.RoleTeacher, "europe")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"name": "Jane"}, asTeacher.Fields)
	assert.Empty(t, asTeacher.FieldErrors)

	denied := 0
	for _, decision := range asTeacher.Decisions {
		if !decision.Allowed {
			denied++
			assert.Equal(t, "health_notes", decision.Field)
		}
	}
	assert.Equal(t, 1, denied)

	// An admin sees both fields.
	asAdmin, err := h.engine.Decrypt(ctx, encrypted.Record, types.RoleAdmin, "europe")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"name": "Jane", "health_notes": "asthma"}, asAdmin.Fields)
}

func TestEncryptFailsClosedForUnknownRegion(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)

	_, err := h.engine.Encrypt(ctx, studentRecord(), types.TierInternal, "atlantis")
	require.Error(t, err)

	var regionErr *types.RegionNotSupportedError
	require.ErrorAs(t, err, &regionErr)
	assert.Equal(t, "atlantis", regionErr.Region)

	// No key material touched, exactly one failure event recorded.
	assert.Equal(t, int64(0), h.km.encrypts.Load())
	events, err := h.sink.Events(ctx, map[string]string{"outcome": audit.OutcomeFailure})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, audit.ActionEncrypt, events[0].Action)
	assert.Equal(t, "atlantis", events[0].Region)
}

func TestPreEncryptionComplianceGate(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)

	// Singapore enforces data minimization; a record with no declared
	// purpose must be rejected before any key material is touched.
	_, err := h.engine.Encrypt(ctx, studentRecord(), types.TierInternal, "singapore")
	require.Error(t, err)

	var violation *types.ComplianceViolationError
	require.ErrorAs(t, err, &violation)
	assert.False(t, violation.Checks[types.CheckPrivacySettings].Valid)
	assert.Equal(t, int64(0), h.km.encrypts.Load())

	// Declaring a purpose clears the gate.
	ctx = audit.WithAttributes(ctx, map[string]string{"purpose": "enrollment"})
	_, err = h.engine.Encrypt(ctx, studentRecord(), types.TierInternal, "singapore")
	require.NoError(t, err)
}

func TestPostDecryptHardGate(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)

	encrypted, err := h.engine.Encrypt(ctx, studentRecord(), types.TierInternal, "europe")
	require.NoError(t, err)

	// The record has aged past the region's retention window; even a fully
	// authorized role gets no plaintext back.
	staleCtx := audit.WithAttributes(ctx, map[string]string{"record_age_days": "400"})
	result, err := h.engine.Decrypt(staleCtx, encrypted.Record, types.RoleAdmin, "europe")
	require.Error(t, err)
	assert.Nil(t, result)

	var violation *types.ComplianceViolationError
	require.ErrorAs(t, err, &violation)
	assert.False(t, violation.Checks[types.CheckPrivacySettings].Valid)

	// Within the window the same decrypt succeeds.
	freshCtx := audit.WithAttributes(ctx, map[string]string{"record_age_days": "10"})
	result, err = h.engine.Decrypt(freshCtx, encrypted.Record, types.RoleAdmin, "europe")
	require.NoError(t, err)
	assert.Len(t, result.Fields, 4)
}

func TestAuditCompleteness(t *testing.T) {
	ctx := audit.WithActor(context.Background(), "auditor-1")
	h := newHarness(t, nil)

	record := studentRecord()

	// Success and failure paths alike must each record exactly one event.
	encrypted, err := h.engine.Encrypt(ctx, record, types.TierInternal, "europe")
	require.NoError(t, err)
	assert.Equal(t, 1, h.sink.Len())

	_, err = h.engine.Encrypt(ctx, record, types.TierInternal, "atlantis")
	require.Error(t, err)
	assert.Equal(t, 2, h.sink.Len())

	_, err = h.engine.Decrypt(ctx, encrypted.Record, types.RoleTeacher, "europe")
	require.NoError(t, err)
	assert.Equal(t, 3, h.sink.Len())

	_, err = h.engine.Validate(ctx, "europe", &types.ValidationInput{})
	require.NoError(t, err)
	assert.Equal(t, 4, h.sink.Len())

	_, err = h.engine.Validate(ctx, "atlantis", nil)
	require.Error(t, err)
	assert.Equal(t, 5, h.sink.Len())

	events, err := h.sink.Events(ctx, map[string]string{"actor": "auditor-1"})
	require.NoError(t, err)
	assert.Len(t, events, 5)
}

type failingSink struct{}

func (failingSink) Append(ctx context.Context, event *types.AuditEvent) error {
	return fmt.Errorf("sink unavailable")
}

func TestAuditDeliveryFailureIsNonFatal(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, func(cfg *Config) {
		cfg.AuditSink = failingSink{}
	})

	encrypted, err := h.engine.Encrypt(ctx, studentRecord(), types.TierInternal, "europe")
	require.NoError(t, err)
	require.NotNil(t, encrypted.Record)

	var deliveryErr *types.AuditDeliveryFailedError
	require.Error(t, encrypted.AuditWarning)
	assert.True(t, errors.As(encrypted.AuditWarning, &deliveryErr))

	decrypted, err := h.engine.Decrypt(ctx, encrypted.Record, types.RoleAdmin, "europe")
	require.NoError(t, err)
	require.Error(t, decrypted.AuditWarning)
}

func TestFieldDecryptionErrorsArePerField(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)

	encrypted, err := h.engine.Encrypt(ctx, types.Record{
		"name":  {Value: "Jane", Tier: types.TierPublic},
		"email": {Value: "jane@school.example", Tier: types.TierInternal},
	}, types.TierPublic, "europe")
	require.NoError(t, err)

	// Corrupt one field; the other must still decrypt.
	corrupted := encrypted.Record.WithField("email", types.EncryptedField{
		Ciphertext:  "AAAA",
		Nonce:       encrypted.Record.Fields["email"].Nonce,
		KeyVersion:  1,
		Tier:        types.TierInternal,
		EncryptedAt: encrypted.Record.Fields["email"].EncryptedAt,
		Region:      "europe",
	})

	result, err := h.engine.Decrypt(ctx, corrupted, types.RoleAdmin, "europe")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"name": "Jane"}, result.Fields)
	require.Contains(t, result.FieldErrors, "email")
	assert.Equal(t, "email", result.FieldErrors["email"].Field)
	assert.NotContains(t, result.FieldErrors["email"].Error(), "jane@school.example")
}

func TestParentalConsentGate(t *testing.T) {
	ctx := context.Background()

	t.Run("Not required region passes without store", func(t *testing.T) {
		h := newHarness(t, nil)
		ok, err := h.engine.ValidateParentalConsent(ctx, "europe", "student-1")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, 1, h.sink.Len())
	})

	t.Run("Required region without store is an error", func(t *testing.T) {
		h := newHarness(t, nil)
		_, err := h.engine.ValidateParentalConsent(ctx, "north_america", "student-1")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no consent store")
	})

	t.Run("Required region consults store", func(t *testing.T) {
		store := &stubConsentStore{granted: map[string]bool{"student-1": true}}
		h := newHarness(t, func(cfg *Config) { cfg.ConsentStore = store })

		ok, err := h.engine.ValidateParentalConsent(ctx, "north_america", "student-1")
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = h.engine.ValidateParentalConsent(ctx, "north_america", "student-2")
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

type stubConsentStore struct {
	granted map[string]bool
}

func (s *stubConsentStore) HasConsent(ctx context.Context, subjectID, feature string) (bool, error) {
	return s.granted[subjectID], nil
}

func TestMFAGate(t *testing.T) {
	ctx := context.Background()

	t.Run("Issue and verify with TOTP provider", func(t *testing.T) {
		h := newHarness(t, func(cfg *Config) {
			cfg.MFAProvider = mfa.NewTOTPProvider("edurecord-test")
		})

		token, err := h.engine.GenerateMFAToken(ctx, "north_america", "parent-1")
		require.NoError(t, err)
		require.NotEmpty(t, token)

		ok, err := h.engine.VerifyMFAToken(ctx, "north_america", "parent-1", token)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = h.engine.VerifyMFAToken(ctx, "north_america", "parent-1", "000000")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("Required region without provider is an error", func(t *testing.T) {
		h := newHarness(t, nil)
		_, err := h.engine.VerifyMFAToken(ctx, "north_america", "parent-1", "123456")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no provider")
	})

	t.Run("MFARequired reflects region configuration", func(t *testing.T) {
		h := newHarness(t, nil)
		required, err := h.engine.MFARequired("north_america")
		require.NoError(t, err)
		assert.True(t, required)

		required, err = h.engine.MFARequired("europe")
		require.NoError(t, err)
		assert.False(t, required)
	})
}

func TestGenerateAuditLog(t *testing.T) {
	ctx := audit.WithActor(context.Background(), "staff-9")
	h := newHarness(t, nil)

	_, err := h.engine.Encrypt(ctx, studentRecord(), types.TierInternal, "europe")
	require.NoError(t, err)
	_, err = h.engine.Encrypt(ctx, studentRecord(), types.TierInternal, "atlantis")
	require.Error(t, err)

	log, err := h.engine.GenerateAuditLog(ctx, map[string]string{
		"actor":   "staff-9",
		"outcome": audit.OutcomeSuccess,
	})
	require.NoError(t, err)
	require.Len(t, log, 1)
	assert.Equal(t, "europe", log[0].Region)
	assert.Equal(t, audit.ActionEncrypt, log[0].Action)
}

func TestGetComplianceReport(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)

	report, err := h.engine.GetComplianceReport(ctx, "europe")
	require.NoError(t, err)
	assert.Equal(t, "europe", report.Region)
	assert.Equal(t, []string{"GDPR"}, report.Regulations)
	assert.Equal(t, 365, report.DataRetentionDays)
	assert.True(t, report.RightToBeForgotten)
	assert.True(t, report.AuditRequirements.DPOContact)
	assert.False(t, report.GeneratedAt.IsZero())

	_, err = h.engine.GetComplianceReport(ctx, "atlantis")
	var regionErr *types.RegionNotSupportedError
	require.ErrorAs(t, err, &regionErr)
}

func TestNewRequiresCollaborators(t *testing.T) {
	reg, err := registry.New(testRegions())
	require.NoError(t, err)
	matrix, err := access.NewMatrix(access.DefaultTable())
	require.NoError(t, err)

	_, err = New(Config{Matrix: matrix, KeyManager: &countingKeyManager{}, AuditSink: audit.NewMemorySink()})
	assert.Error(t, err)

	_, err = New(Config{Registry: reg, KeyManager: &countingKeyManager{}, AuditSink: audit.NewMemorySink()})
	assert.Error(t, err)

	_, err = New(Config{Registry: reg, Matrix: matrix, AuditSink: audit.NewMemorySink()})
	assert.Error(t, err)

	_, err = New(Config{Registry: reg, Matrix: matrix, KeyManager: &countingKeyManager{}})
	assert.Error(t, err)
}
