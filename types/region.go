package types

// RegionConfig holds the regulatory configuration for one jurisdiction.
// Configs are loaded once at registry construction and are immutable
// afterwards; hot reload is an external concern.
type RegionConfig struct {
	ID                  string              `json:"regionId" bson:"_id"`
	DataProtection      []string            `json:"dataProtection" bson:"dataProtection"` // regulation codes, e.g. "GDPR"
	ContentRestrictions ContentRestrictions `json:"contentRestrictions" bson:"contentRestrictions"`
	PrivacySettings     PrivacySettings     `json:"privacySettings" bson:"privacySettings"`
	AuditRequirements   AuditRequirements   `json:"auditRequirements" bson:"auditRequirements"`
}

// ContentRestrictions describes what content may be stored or disclosed in a
// region and which access-control obligations apply.
type ContentRestrictions struct {
	AgeRating            string   `json:"ageRating,omitempty" bson:"ageRating,omitempty"` // e.g. "13+"
	EducationalStandards []string `json:"educationalStandards,omitempty" bson:"educationalStandards,omitempty"`
	AccessControls       []string `json:"accessControls,omitempty" bson:"accessControls,omitempty"` // e.g. "parental_consent", "mfa_required"
}

// RequiresAccessControl reports whether the named access-control obligation
// is configured for the region.
func (c ContentRestrictions) RequiresAccessControl(name string) bool {
	for _, ac := range c.AccessControls {
		if ac == name {
			return true
		}
	}
	return false
}

// PrivacySettings holds the region's privacy posture.
type PrivacySettings struct {
	DataRetentionDays  int  `json:"dataRetentionDays" bson:"dataRetentionDays"`
	DataMinimization   bool `json:"dataMinimization" bson:"dataMinimization"`
	ConsentManagement  bool `json:"consentManagement" bson:"consentManagement"`
	RightToBeForgotten bool `json:"rightToBeForgotten" bson:"rightToBeForgotten"`
	DataPortability    bool `json:"dataPortability" bson:"dataPortability"`
}

// AuditRequirements holds the region's audit obligations. A snapshot of this
// struct is stamped onto every AuditEvent emitted for the region.
type AuditRequirements struct {
	LogRetentionDays  int  `json:"logRetentionDays" bson:"logRetentionDays"`
	AccessLogging     bool `json:"accessLogging" bson:"accessLogging"`
	ChangeLogging     bool `json:"changeLogging" bson:"changeLogging"`
	IncidentReporting bool `json:"incidentReporting" bson:"incidentReporting"`
	DPOContact        bool `json:"dpoContact" bson:"dpoContact"`
}
