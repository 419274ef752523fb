package types

import (
	"fmt"
	"strings"
)

// RegionNotSupportedError is returned when a caller supplies a region that
// has no registered configuration. Fatal for the call; no key material is
// touched.
type RegionNotSupportedError struct {
	Region string
}

func (e *RegionNotSupportedError) Error() string {
	return fmt.Sprintf("region not supported: %q", e.Region)
}

// ComplianceViolationError is returned when one or more of the four regional
// validators rejects the candidate data. Fatal for the call; recoverable
// only by correcting input or escalating policy. The message names the
// failed checks but never field values.
type ComplianceViolationError struct {
	Region string
	Checks map[string]CheckResult
}

func (e *ComplianceViolationError) Error() string {
	var failed []string
	for _, name := range []string{CheckDataProtection, CheckContentRestrictions, CheckPrivacySettings, CheckAuditRequirements} {
		if check, ok := e.Checks[name]; ok && !check.Valid {
			failed = append(failed, name)
		}
	}
	return fmt.Sprintf("compliance violation in region %q: failed checks: %s", e.Region, strings.Join(failed, ", "))
}

// FieldDecryptionError reports a per-field decryption failure (corrupt
// ciphertext, unknown key version). It is aggregated into the decrypt
// result, never raised engine-wide. Reason is a sanitized description and
// must not contain ciphertext.
type FieldDecryptionError struct {
	Field  string
	Reason string
}

func (e *FieldDecryptionError) Error() string {
	return fmt.Sprintf("field %q could not be decrypted: %s", e.Field, e.Reason)
}

// AuditDeliveryFailedError is a warning attached to an otherwise successful
// operation when the audit sink rejected the event. The operation still
// succeeds; dropping the warning silently would itself be a compliance
// defect.
type AuditDeliveryFailedError struct {
	Err error
}

func (e *AuditDeliveryFailedError) Error() string {
	return fmt.Sprintf("audit delivery failed: %v", e.Err)
}

func (e *AuditDeliveryFailedError) Unwrap() error {
	return e.Err
}

// ConfigInvariantViolationError is raised at construction time when the
// access-control matrix ordering or a region configuration is malformed.
// The engine refuses to start.
type ConfigInvariantViolationError struct {
	Detail string
}

func (e *ConfigInvariantViolationError) Error() string {
	return "configuration invariant violated: " + e.Detail
}
