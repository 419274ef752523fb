package registry

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/edurecord/student-records-compliance/interfaces"
	"github.com/edurecord/student-records-compliance/types"
)

// Well-known validation input attributes. Callers attach these to describe
// the processing context; validators never read field values.
const (
	AttrStudentAge      = "student_age"      // integer years
	AttrParentalConsent = "parental_consent" // "granted" when consent is on file
	AttrPurpose         = "purpose"          // declared processing purpose
	AttrRecordAgeDays   = "record_age_days"  // integer age of the stored record
)

// Access-control obligations referenced by region configurations.
const (
	ControlParentalConsent = "parental_consent"
	ControlMFARequired     = "mfa_required"
)

// knownRegulations is the closed set of regulation codes a region may
// declare. The substantive rule logic behind each code is policy and lives
// in the validators registered for the region, not here.
var knownRegulations = map[string]struct{}{
	"GDPR":   {},
	"CCPA":   {},
	"PDPA":   {},
	"FERPA":  {},
	"COPPA":  {},
	"LGPD":   {},
	"PIPEDA": {},
	"APPI":   {},
}

// DefaultValidators returns the four standard checks in their canonical
// order. Custom regulation logic is added by registering additional or
// replacement validators, never by modifying the engine.
func DefaultValidators() []interfaces.Validator {
	return []interfaces.Validator{
		DataProtectionValidator{},
		ContentRestrictionValidator{},
		PrivacySettingsValidator{},
		AuditRequirementsValidator{},
	}
}

// DataProtectionValidator checks that the region declares a recognized data
// protection framework. A region with no regulation codes is rejected, not
// silently approved: an unconfigured region must never look compliant.
type DataProtectionValidator struct{}

func (DataProtectionValidator) Name() string { return types.CheckDataProtection }

func (DataProtectionValidator) Validate(cfg *types.RegionConfig, input *types.ValidationInput) types.CheckResult {
	if len(cfg.DataProtection) == 0 {
		return types.CheckResult{
			Valid:  false,
			Detail: "no data protection regulations configured for region",
		}
	}
	for _, code := range cfg.DataProtection {
		if _, ok := knownRegulations[code]; !ok {
			return types.CheckResult{
				Valid:  false,
				Detail: fmt.Sprintf("unrecognized regulation code %q", code),
			}
		}
	}
	return types.CheckResult{
		Valid:  true,
		Detail: fmt.Sprintf("%d regulation(s) in force: %s", len(cfg.DataProtection), strings.Join(cfg.DataProtection, ", ")),
	}
}

// ContentRestrictionValidator enforces the region's age rating and
// access-control obligations against the caller-supplied context.
type ContentRestrictionValidator struct{}

func (ContentRestrictionValidator) Name() string { return types.CheckContentRestrictions }

func (ContentRestrictionValidator) Validate(cfg *types.RegionConfig, input *types.ValidationInput) types.CheckResult {
	restrictions := cfg.ContentRestrictions

	if restrictions.AgeRating != "" {
		minAge, err := parseAgeRating(restrictions.AgeRating)
		if err != nil {
			return types.CheckResult{
				Valid:  false,
				Detail: fmt.Sprintf("malformed age rating %q in region configuration", restrictions.AgeRating),
			}
		}
		if ageStr := input.Attribute(AttrStudentAge); ageStr != "" {
			age, err := strconv.Atoi(ageStr)
			if err != nil {
				return types.CheckResult{
					Valid:  false,
					Detail: "student_age attribute is not an integer",
				}
			}
			// Minors below the rating threshold need parental consent on file.
			if age < minAge && input.Attribute(AttrParentalConsent) != "granted" {
				return types.CheckResult{
					Valid:  false,
					Detail: fmt.Sprintf("student below age rating %s without parental consent", restrictions.AgeRating),
				}
			}
		}
	}

	if restrictions.RequiresAccessControl(ControlParentalConsent) && input.Attribute(AttrParentalConsent) != "granted" {
		return types.CheckResult{
			Valid:  false,
			Detail: "region requires parental consent and none is attested",
		}
	}

	return types.CheckResult{Valid: true, Detail: "content restrictions satisfied"}
}

// parseAgeRating converts a rating like "13+" to its minimum age.
func parseAgeRating(rating string) (int, error) {
	trimmed := strings.TrimSuffix(rating, "+")
	age, err := strconv.Atoi(trimmed)
	if err != nil || age < 0 {
		return 0, fmt.Errorf("invalid age rating: %q", rating)
	}
	return age, nil
}

// PrivacySettingsValidator enforces the region's retention window and data
// minimization posture.
type PrivacySettingsValidator struct{}

func (PrivacySettingsValidator) Name() string { return types.CheckPrivacySettings }

func (PrivacySettingsValidator) Validate(cfg *types.RegionConfig, input *types.ValidationInput) types.CheckResult {
	privacy := cfg.PrivacySettings

	if privacy.DataRetentionDays <= 0 {
		return types.CheckResult{
			Valid:  false,
			Detail: "retention window not configured for region",
		}
	}

	if ageStr := input.Attribute(AttrRecordAgeDays); ageStr != "" {
		recordAge, err := strconv.Atoi(ageStr)
		if err != nil {
			return types.CheckResult{
				Valid:  false,
				Detail: "record_age_days attribute is not an integer",
			}
		}
		if recordAge > privacy.DataRetentionDays {
			return types.CheckResult{
				Valid: false,
				Detail: fmt.Sprintf("record age %d days exceeds retention window of %d days",
					recordAge, privacy.DataRetentionDays),
			}
		}
	}

	if privacy.DataMinimization && len(input.Fields) > 0 && input.Attribute(AttrPurpose) == "" {
		return types.CheckResult{
			Valid:  false,
			Detail: "data minimization requires a declared processing purpose",
		}
	}

	return types.CheckResult{Valid: true, Detail: "privacy settings satisfied"}
}

// AuditRequirementsValidator checks that the region's audit obligations are
// coherent and actually enforceable. Regulated regions cannot run with
// access logging disabled.
type AuditRequirementsValidator struct{}

func (AuditRequirementsValidator) Name() string { return types.CheckAuditRequirements }

func (AuditRequirementsValidator) Validate(cfg *types.RegionConfig, input *types.ValidationInput) types.CheckResult {
	reqs := cfg.AuditRequirements

	if reqs.LogRetentionDays <= 0 {
		return types.CheckResult{
			Valid:  false,
			Detail: "audit log retention not configured for region",
		}
	}
	if len(cfg.DataProtection) > 0 && !reqs.AccessLogging {
		return types.CheckResult{
			Valid:  false,
			Detail: "access logging is disabled in a regulated region",
		}
	}
	if reqs.IncidentReporting && !reqs.DPOContact {
		return types.CheckResult{
			Valid:  false,
			Detail: "incident reporting requires a DPO contact",
		}
	}

	return types.CheckResult{Valid: true, Detail: "audit requirements satisfied"}
}
