package types

import "time"

// ComplianceReport is a point-in-time snapshot of a region's regulatory
// posture, suitable for export to auditors.
type ComplianceReport struct {
	Region             string            `json:"region" bson:"region"`
	Regulations        []string          `json:"regulations" bson:"regulations"`
	DataRetentionDays  int               `json:"dataRetentionDays" bson:"dataRetentionDays"`
	DataMinimization   bool              `json:"dataMinimization" bson:"dataMinimization"`
	ConsentManagement  bool              `json:"consentManagement" bson:"consentManagement"`
	RightToBeForgotten bool              `json:"rightToBeForgotten" bson:"rightToBeForgotten"`
	DataPortability    bool              `json:"dataPortability" bson:"dataPortability"`
	AccessControls     []string          `json:"accessControls,omitempty" bson:"accessControls,omitempty"`
	AuditRequirements  AuditRequirements `json:"auditRequirements" bson:"auditRequirements"`
	GeneratedAt        time.Time         `json:"generatedAt" bson:"generatedAt"`
}
