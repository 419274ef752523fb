package types

// Names of the four regional compliance checks. The aggregate validation
// result always carries exactly these keys.
const (
	CheckDataProtection      = "data_protection"
	CheckContentRestrictions = "content_restrictions"
	CheckPrivacySettings     = "privacy_settings"
	CheckAuditRequirements   = "audit_requirements"
)

// ValidationInput is the candidate data handed to the regional validators.
// Fields carries plaintext values and is never echoed into results or
// errors; validators may only surface field names. Attributes carries
// caller-supplied processing context such as "student_age",
// "parental_consent", "purpose" or "record_age_days".
type ValidationInput struct {
	Fields     map[string]string
	Tier       ClassificationTier
	Attributes map[string]string
}

// Attribute returns the named attribute or the empty string.
func (in *ValidationInput) Attribute(name string) string {
	if in == nil || in.Attributes == nil {
		return ""
	}
	return in.Attributes[name]
}

// CheckResult is the outcome of one pluggable validator.
type CheckResult struct {
	Valid  bool   `json:"valid" bson:"valid"`
	Detail string `json:"detail,omitempty" bson:"detail,omitempty"`
}

// ValidationResult aggregates the four checks. Valid is the logical AND of
// all checks.
type ValidationResult struct {
	Region string                 `json:"region" bson:"region"`
	Valid  bool                   `json:"valid" bson:"valid"`
	Checks map[string]CheckResult `json:"checks" bson:"checks"`
}

// FailedChecks returns the names of checks that did not pass.
func (r *ValidationResult) FailedChecks() []string {
	var failed []string
	for _, name := range []string{CheckDataProtection, CheckContentRestrictions, CheckPrivacySettings, CheckAuditRequirements} {
		if check, ok := r.Checks[name]; ok && !check.Valid {
			failed = append(failed, name)
		}
	}
	return failed
}
