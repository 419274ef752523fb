// Package engine orchestrates the regional compliance and field-level
// encryption pipeline for student records.
package engine

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/edurecord/student-records-compliance/audit"
	"github.com/edurecord/student-records-compliance/interfaces"
	"github.com/edurecord/student-records-compliance/types"
)

// Engine is the compliance root. It consults the access matrix per field,
// the regional registry before encryption and after decryption, and emits
// exactly one audit event per operation. It holds no per-call state and is
// safe for unbounded concurrent use.
type Engine struct {
	registry interfaces.Registry
	matrix   interfaces.AccessMatrix
	keys     interfaces.KeyManager
	pipeline *audit.Pipeline
	consent  interfaces.ConsentStore
	mfa      interfaces.MFAProvider
	clock    func() time.Time
}

// Config wires the engine's collaborators. Registry, Matrix, KeyManager and
// AuditSink are required; ConsentStore and MFAProvider are optional and only
// needed when a region's access controls demand them.
type Config struct {
	Registry     interfaces.Registry
	Matrix       interfaces.AccessMatrix
	KeyManager   interfaces.KeyManager
	AuditSink    interfaces.AuditSink
	ConsentStore interfaces.ConsentStore
	MFAProvider  interfaces.MFAProvider

	// Clock overrides time.Now, for tests.
	Clock func() time.Time
}

// New creates a compliance engine. Construction fails rather than starting
// with a missing collaborator; a silently inert audit trail or access
// matrix must never exist.
func New(cfg Config) (*Engine, error) {
	if cfg.Registry == nil {
		return nil, fmt.Errorf("registry is required")
	}
	if cfg.Matrix == nil {
		return nil, fmt.Errorf("access matrix is required")
	}
	if cfg.KeyManager == nil {
		return nil, fmt.Errorf("key manager is required")
	}

	pipeline, err := audit.NewPipeline(cfg.AuditSink)
	if err != nil {
		return nil, err
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	log.Debug().
		Strs("regions", cfg.Registry.Regions()).
		Bool("hasConsentStore", cfg.ConsentStore != nil).
		Bool("hasMFAProvider", cfg.MFAProvider != nil).
		Msg("Compliance engine constructed")

	return &Engine{
		registry: cfg.Registry,
		matrix:   cfg.Matrix,
		keys:     cfg.KeyManager,
		pipeline: pipeline,
		consent:  cfg.ConsentStore,
		mfa:      cfg.MFAProvider,
		clock:    clock,
	}, nil
}

// EncryptResult is the outcome of a successful Encrypt call.
type EncryptResult struct {
	Record *types.EncryptedRecord

	// AuditWarning carries a *types.AuditDeliveryFailedError when the
	// success event could not be delivered. The operation itself succeeded.
	AuditWarning error
}

// DecryptResult is the outcome of a successful Decrypt call. Fields the
// role is not authorized for are absent, not errors; per-field decryption
// failures are collected in FieldErrors.
type DecryptResult struct {
	Fields       map[string]string
	FieldErrors  map[string]*types.FieldDecryptionError
	Decisions    []types.AccessDecision
	AuditWarning error
}

// ValidateResult pairs the aggregate validation outcome with any audit
// delivery warning.
type ValidateResult struct {
	Result       *types.ValidationResult
	AuditWarning error
}

// Encrypt validates the record against the region's current configuration
// and encrypts every scalar field. Fields without an explicit tier get
// defaultTier. Unknown regions and failed validation are fatal; no partial
// record is ever returned.
func (e *Engine) Encrypt(ctx context.Context, record types.Record, defaultTier types.ClassificationTier, region string) (*EncryptResult, error) {
	cfg, err := e.registry.GetConfig(region)
	if err != nil {
		e.emitFailure(ctx, audit.ActionEncrypt, region, types.AuditRequirements{}, "region_not_supported")
		return nil, err
	}

	if !defaultTier.Valid() {
		e.emitFailure(ctx, audit.ActionEncrypt, region, cfg.AuditRequirements, "invalid_default_tier")
		return nil, fmt.Errorf("invalid default classification tier %d", int(defaultTier))
	}

	input := e.validationInput(ctx, record, defaultTier)
	validation, err := e.registry.Validate(region, input)
	if err != nil {
		e.emitFailure(ctx, audit.ActionEncrypt, region, cfg.AuditRequirements, "validation_error")
		return nil, err
	}
	if !validation.Valid {
		event := audit.NewEvent(ctx, audit.ActionEncrypt, region, cfg.AuditRequirements)
		event.Outcome = audit.OutcomeFailure
		event.Detail["reason"] = "compliance_violation"
		event.Detail["failedChecks"] = strings.Join(validation.FailedChecks(), ",")
		e.emit(ctx, event)
		return nil, &types.ComplianceViolationError{Region: region, Checks: validation.Checks}
	}

	now := e.clock().UTC()
	fields := make(map[string]types.EncryptedField, len(record))
	for name, value := range record {
		tier := value.Tier
		if tier == 0 {
			// Unset tier means unclassified; apply the call's default.
			tier = defaultTier
		}
		if !tier.Valid() {
			e.emitFailure(ctx, audit.ActionEncrypt, region, cfg.AuditRequirements, "invalid_field_tier")
			return nil, fmt.Errorf("field %q has invalid classification tier %d", name, int(value.Tier))
		}

		ciphertext, nonce, keyVersion, err := e.keys.Encrypt(ctx, value.Value)
		if err != nil {
			e.emitFailure(ctx, audit.ActionEncrypt, region, cfg.AuditRequirements, "encryption_error")
			return nil, fmt.Errorf("failed to encrypt field %q: %w", name, err)
		}

		fields[name] = types.EncryptedField{
			Ciphertext:  ciphertext,
			Nonce:       nonce,
			KeyVersion:  keyVersion,
			Tier:        tier,
			EncryptedAt: now,
			Region:      region,
		}
	}

	event := audit.NewEvent(ctx, audit.ActionEncrypt, region, cfg.AuditRequirements)
	event.Detail["fields"] = joinSorted(fieldNames(fields))
	warning := e.emit(ctx, event)

	return &EncryptResult{
		Record:       &types.EncryptedRecord{Fields: fields},
		AuditWarning: warning,
	}, nil
}

// Decrypt applies the per-field authorization filter, decrypts the
// surviving subset and re-validates the disclosure against the region's
// current configuration. Authorization is a soft filter; the post-decrypt
// compliance gate is hard: an invalid disclosure returns no plaintext at
// all.
func (e *Engine) Decrypt(ctx context.Context, record *types.EncryptedRecord, role types.Role, region string) (*DecryptResult, error) {
	cfg, err := e.registry.GetConfig(region)
	if err != nil {
		e.emitFailure(ctx, audit.ActionDecrypt, region, types.AuditRequirements{}, "region_not_supported")
		return nil, err
	}
	if record == nil {
		e.emitFailure(ctx, audit.ActionDecrypt, region, cfg.AuditRequirements, "nil_record")
		return nil, fmt.Errorf("encrypted record is nil")
	}

	decisions := make([]types.AccessDecision, 0, len(record.Fields))
	plaintext := make(map[string]string)
	fieldErrors := make(map[string]*types.FieldDecryptionError)
	maxTier := types.TierPublic

	for _, name := range sortedFieldNames(record) {
		field := record.Fields[name]
		allowed := e.matrix.IsAllowed(field.Tier, role)
		decisions = append(decisions, types.AccessDecision{
			Field:   name,
			Tier:    field.Tier,
			Role:    role,
			Allowed: allowed,
		})
		if !allowed {
			continue
		}

		value, err := e.keys.Decrypt(ctx, field.Ciphertext, field.Nonce, field.KeyVersion)
		if err != nil {
			fieldErrors[name] = &types.FieldDecryptionError{Field: name, Reason: err.Error()}
			continue
		}
		plaintext[name] = value
		if field.Tier > maxTier {
			maxTier = field.Tier
		}
	}

	input := &types.ValidationInput{
		Fields:     plaintext,
		Tier:       maxTier,
		Attributes: audit.AttributesFromContext(ctx),
	}
	validation, err := e.registry.Validate(region, input)
	if err != nil {
		e.emitFailure(ctx, audit.ActionDecrypt, region, cfg.AuditRequirements, "validation_error")
		return nil, err
	}
	if !validation.Valid {
		event := audit.NewEvent(ctx, audit.ActionDecrypt, region, cfg.AuditRequirements)
		event.Outcome = audit.OutcomeFailure
		event.Detail["reason"] = "compliance_violation"
		event.Detail["failedChecks"] = strings.Join(validation.FailedChecks(), ",")
		e.emit(ctx, event)
		return nil, &types.ComplianceViolationError{Region: region, Checks: validation.Checks}
	}

	event := audit.NewEvent(ctx, audit.ActionDecrypt, region, cfg.AuditRequirements)
	event.Detail["fieldsReturned"] = joinSorted(mapKeys(plaintext))
	event.Detail["fieldsDenied"] = strconv.Itoa(len(record.Fields) - len(plaintext) - len(fieldErrors))
	if len(fieldErrors) > 0 {
		event.Detail["fieldErrors"] = joinSorted(errorKeys(fieldErrors))
	}
	warning := e.emit(ctx, event)

	return &DecryptResult{
		Fields:       plaintext,
		FieldErrors:  fieldErrors,
		Decisions:    decisions,
		AuditWarning: warning,
	}, nil
}

// Validate runs the region's four compliance checks against candidate data
// without touching key material. The audit outcome mirrors the validation
// outcome.
func (e *Engine) Validate(ctx context.Context, region string, input *types.ValidationInput) (*ValidateResult, error) {
	cfg, err := e.registry.GetConfig(region)
	if err != nil {
		e.emitFailure(ctx, audit.ActionValidate, region, types.AuditRequirements{}, "region_not_supported")
		return nil, err
	}

	result, err := e.registry.Validate(region, input)
	if err != nil {
		e.emitFailure(ctx, audit.ActionValidate, region, cfg.AuditRequirements, "validation_error")
		return nil, err
	}

	event := audit.NewEvent(ctx, audit.ActionValidate, region, cfg.AuditRequirements)
	if !result.Valid {
		event.Outcome = audit.OutcomeFailure
		event.Detail["failedChecks"] = strings.Join(result.FailedChecks(), ",")
	}
	warning := e.emit(ctx, event)

	return &ValidateResult{Result: result, AuditWarning: warning}, nil
}

// validationInput assembles the validator input for a plaintext record.
// Caller-supplied attributes ride in on the context.
func (e *Engine) validationInput(ctx context.Context, record types.Record, defaultTier types.ClassificationTier) *types.ValidationInput {
	fields := make(map[string]string, len(record))
	maxTier := defaultTier
	for name, value := range record {
		fields[name] = value.Value
		if value.Tier > maxTier {
			maxTier = value.Tier
		}
	}
	return &types.ValidationInput{
		Fields:     fields,
		Tier:       maxTier,
		Attributes: audit.AttributesFromContext(ctx),
	}
}

// emit delivers an audit event, returning a delivery warning if any.
func (e *Engine) emit(ctx context.Context, event *types.AuditEvent) error {
	return e.pipeline.Emit(ctx, event)
}

// emitFailure records a failed operation. Delivery problems are logged by
// the pipeline; the operation's own error is what reaches the caller.
func (e *Engine) emitFailure(ctx context.Context, action, region string, requirements types.AuditRequirements, reason string) {
	event := audit.NewEvent(ctx, action, region, requirements)
	event.Outcome = audit.OutcomeFailure
	event.Detail["reason"] = reason
	_ = e.emit(ctx, event)
}

func fieldNames(fields map[string]types.EncryptedField) []string {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	return names
}

func sortedFieldNames(record *types.EncryptedRecord) []string {
	names := record.FieldNames()
	sort.Strings(names)
	return names
}

func mapKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}

func errorKeys(m map[string]*types.FieldDecryptionError) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}

func joinSorted(names []string) string {
	sort.Strings(names)
	return strings.Join(names, ",")
}
