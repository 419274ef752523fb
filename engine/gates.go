package engine

import (
	"context"
	"fmt"

	"github.com/edurecord/student-records-compliance/audit"
	"github.com/edurecord/student-records-compliance/registry"
	"github.com/edurecord/student-records-compliance/types"
)

// ValidateParentalConsent checks whether a student's record may be processed
// under the region's consent obligations. When the region does not require
// parental consent the gate passes trivially; when it does, the check is
// delegated to the consent store and a missing store is an error, never a
// silent pass.
func (e *Engine) ValidateParentalConsent(ctx context.Context, region, studentID string) (bool, error) {
	cfg, err := e.registry.GetConfig(region)
	if err != nil {
		e.emitFailure(ctx, audit.ActionConsentCheck, region, types.AuditRequirements{}, "region_not_supported")
		return false, err
	}

	event := audit.NewEvent(ctx, audit.ActionConsentCheck, region, cfg.AuditRequirements)
	event.ResourceType = audit.ResourceSubject
	event.ResourceID = studentID

	if !cfg.ContentRestrictions.RequiresAccessControl(registry.ControlParentalConsent) {
		event.Detail["result"] = "not_required"
		_ = e.emit(ctx, event)
		return true, nil
	}

	if e.consent == nil {
		event.Outcome = audit.OutcomeFailure
		event.Detail["reason"] = "consent_store_not_configured"
		_ = e.emit(ctx, event)
		return false, fmt.Errorf("region %q requires parental consent but no consent store is configured", region)
	}

	granted, err := e.consent.HasConsent(ctx, studentID, registry.ControlParentalConsent)
	if err != nil {
		event.Outcome = audit.OutcomeFailure
		event.Detail["reason"] = "consent_store_error"
		_ = e.emit(ctx, event)
		return false, fmt.Errorf("consent check failed: %w", err)
	}

	if !granted {
		event.Outcome = audit.OutcomeFailure
		event.Detail["result"] = "denied"
	} else {
		event.Detail["result"] = "granted"
	}
	_ = e.emit(ctx, event)

	return granted, nil
}

// MFARequired reports whether the region's access controls demand a second
// factor.
func (e *Engine) MFARequired(region string) (bool, error) {
	cfg, err := e.registry.GetConfig(region)
	if err != nil {
		return false, err
	}
	return cfg.ContentRestrictions.RequiresAccessControl(registry.ControlMFARequired), nil
}

// GenerateMFAToken issues a second-factor token for the subject. The engine
// only enforces whether the region requires MFA; issuing mechanics belong
// to the provider.
func (e *Engine) GenerateMFAToken(ctx context.Context, region, subject string) (string, error) {
	cfg, err := e.registry.GetConfig(region)
	if err != nil {
		e.emitFailure(ctx, audit.ActionMFACheck, region, types.AuditRequirements{}, "region_not_supported")
		return "", err
	}

	event := audit.NewEvent(ctx, audit.ActionMFACheck, region, cfg.AuditRequirements)
	event.ResourceType = audit.ResourceSubject
	event.ResourceID = subject
	event.Detail["operation"] = "issue"

	if e.mfa == nil {
		event.Outcome = audit.OutcomeFailure
		event.Detail["reason"] = "mfa_provider_not_configured"
		_ = e.emit(ctx, event)
		return "", fmt.Errorf("no MFA provider is configured")
	}

	token, err := e.mfa.Issue(ctx, subject)
	if err != nil {
		event.Outcome = audit.OutcomeFailure
		event.Detail["reason"] = "issue_failed"
		_ = e.emit(ctx, event)
		return "", fmt.Errorf("failed to issue MFA token: %w", err)
	}

	_ = e.emit(ctx, event)
	return token, nil
}

// VerifyMFAToken verifies a second-factor token. For regions that require
// MFA, a missing provider is an error rather than an open gate.
func (e *Engine) VerifyMFAToken(ctx context.Context, region, subject, token string) (bool, error) {
	cfg, err := e.registry.GetConfig(region)
	if err != nil {
		e.emitFailure(ctx, audit.ActionMFACheck, region, types.AuditRequirements{}, "region_not_supported")
		return false, err
	}

	event := audit.NewEvent(ctx, audit.ActionMFACheck, region, cfg.AuditRequirements)
	event.ResourceType = audit.ResourceSubject
	event.ResourceID = subject
	event.Detail["operation"] = "verify"

	required := cfg.ContentRestrictions.RequiresAccessControl(registry.ControlMFARequired)
	if e.mfa == nil {
		if !required {
			event.Detail["result"] = "not_required"
			_ = e.emit(ctx, event)
			return true, nil
		}
		event.Outcome = audit.OutcomeFailure
		event.Detail["reason"] = "mfa_provider_not_configured"
		_ = e.emit(ctx, event)
		return false, fmt.Errorf("region %q requires MFA but no provider is configured", region)
	}

	ok, err := e.mfa.Verify(ctx, subject, token)
	if err != nil {
		event.Outcome = audit.OutcomeFailure
		event.Detail["reason"] = "verify_failed"
		_ = e.emit(ctx, event)
		return false, fmt.Errorf("MFA verification failed: %w", err)
	}

	if !ok {
		event.Outcome = audit.OutcomeFailure
		event.Detail["result"] = "rejected"
	} else {
		event.Detail["result"] = "verified"
	}
	_ = e.emit(ctx, event)

	return ok, nil
}

// GenerateAuditLog returns audit events matching the filters. Supported
// filter keys: "actor", "action", "region", "outcome", "resourceId". The
// configured sink must support queries.
func (e *Engine) GenerateAuditLog(ctx context.Context, filters map[string]string) ([]*types.AuditEvent, error) {
	querier, ok := e.pipeline.Querier()
	if !ok {
		return nil, fmt.Errorf("configured audit sink does not support queries")
	}
	return querier.Events(ctx, filters)
}

// GetComplianceReport produces a point-in-time snapshot of a region's
// regulatory posture.
func (e *Engine) GetComplianceReport(ctx context.Context, region string) (*types.ComplianceReport, error) {
	cfg, err := e.registry.GetConfig(region)
	if err != nil {
		return nil, err
	}

	return &types.ComplianceReport{
		Region:             cfg.ID,
		Regulations:        append([]string(nil), cfg.DataProtection...),
		DataRetentionDays:  cfg.PrivacySettings.DataRetentionDays,
		DataMinimization:   cfg.PrivacySettings.DataMinimization,
		ConsentManagement:  cfg.PrivacySettings.ConsentManagement,
		RightToBeForgotten: cfg.PrivacySettings.RightToBeForgotten,
		DataPortability:    cfg.PrivacySettings.DataPortability,
		AccessControls:     append([]string(nil), cfg.ContentRestrictions.AccessControls...),
		AuditRequirements:  cfg.AuditRequirements,
		GeneratedAt:        e.clock().UTC(),
	}, nil
}
