// Package interfaces defines all service interfaces for the module.
// IMPORTANT: This is the single source of truth for service interfaces.
// Do not define interfaces in other files.
package interfaces

import (
	"context"

	"github.com/edurecord/student-records-compliance/types"
)

// Key Material Interfaces

// KeyStore supplies versioned symmetric key material. New encryptions always
// use the current version; retired versions stay readable until an external
// retirement policy removes them. Rotation is a single-writer atomic swap so
// in-flight decrypts keep using the version recorded in each field.
type KeyStore interface {
	// CurrentKey returns the active key version and its material.
	CurrentKey(ctx context.Context) (uint32, []byte, error)

	// Key returns the material for a specific version, including retired ones.
	Key(ctx context.Context, version uint32) ([]byte, error)
}

// KeyManager is the authenticated-encryption primitive over versioned keys.
// It has no policy knowledge.
type KeyManager interface {
	// Encrypt encrypts a scalar value with the current key version and
	// returns the base64 ciphertext, base64 nonce and the version used.
	Encrypt(ctx context.Context, plaintext string) (ciphertext, nonce string, keyVersion uint32, err error)

	// Decrypt decrypts a single field. Failures are reported as
	// *types.FieldDecryptionError wrapped per field, never engine-wide.
	Decrypt(ctx context.Context, ciphertext, nonce string, keyVersion uint32) (string, error)
}

// Policy Interfaces

// AccessMatrix answers per-field authorization questions. Implementations
// must satisfy the monotonicity invariant: the allowed-role set for a higher
// tier is a subset of the allowed-role set for every lower tier.
type AccessMatrix interface {
	// IsAllowed reports whether the role may read plaintext at the tier.
	IsAllowed(tier types.ClassificationTier, role types.Role) bool

	// AllowedRoles returns the roles authorized for the tier.
	AllowedRoles(tier types.ClassificationTier) []types.Role
}

// Validator is one pluggable regional compliance check. It receives the full
// region configuration plus the candidate data and returns its own
// valid/detail pair. Validators must fail loudly on incomplete
// configuration; an always-valid validator is a defect.
type Validator interface {
	// Name returns the check name, one of the types.Check* constants.
	Name() string

	// Validate runs the check against the candidate data.
	Validate(cfg *types.RegionConfig, input *types.ValidationInput) types.CheckResult
}

// Registry is the per-region configuration and validation surface. New
// regions or new regulation logic are added by registering configs and
// validators, never by modifying the engine.
type Registry interface {
	// GetConfig returns the configuration for a region. Unknown regions
	// return *types.RegionNotSupportedError.
	GetConfig(region string) (*types.RegionConfig, error)

	// Validate runs all registered validators against the candidate data.
	// The aggregate is the logical AND of the individual checks.
	Validate(region string, input *types.ValidationInput) (*types.ValidationResult, error)

	// Regions lists the registered region IDs.
	Regions() []string
}

// Audit Interfaces

// AuditSink receives immutable audit events. Append must either persist the
// event or return an error; events are never mutated after delivery.
type AuditSink interface {
	Append(ctx context.Context, event *types.AuditEvent) error
}

// AuditQuerier is implemented by sinks that support reading events back for
// audit-log generation.
type AuditQuerier interface {
	// Events returns events matching the filters. Supported filter keys:
	// "actor", "action", "region", "outcome", "resourceId".
	Events(ctx context.Context, filters map[string]string) ([]*types.AuditEvent, error)
}

// External Collaborator Interfaces

// ConsentStore answers whether a data subject has granted consent for a
// feature. Verification mechanics are out of scope; the engine only decides
// whether a region requires the check.
type ConsentStore interface {
	HasConsent(ctx context.Context, subjectID, feature string) (bool, error)
}

// MFAProvider issues and verifies second-factor tokens. As with consent,
// the engine enforces whether a region requires MFA and delegates the rest.
type MFAProvider interface {
	Issue(ctx context.Context, subject string) (string, error)
	Verify(ctx context.Context, subject, token string) (bool, error)
}
