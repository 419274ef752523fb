package registry

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const regionDocument = `{
  "regions": [
    {
      "regionId": "europe",
      "dataProtection": ["GDPR"],
      "contentRestrictions": {
        "ageRating": "13+",
        "educationalStandards": ["EQF"]
      },
      "privacySettings": {
        "dataRetentionDays": 365,
        "consentManagement": true,
        "rightToBeForgotten": true,
        "dataPortability": true
      },
      "auditRequirements": {
        "logRetentionDays": 730,
        "accessLogging": true,
        "changeLogging": true
      }
    },
    {
      "regionId": "north_america",
      "dataProtection": ["FERPA", "COPPA"],
      "contentRestrictions": {
        "accessControls": ["parental_consent", "mfa_required"]
      },
      "privacySettings": {
        "dataRetentionDays": 1825
      },
      "auditRequirements": {
        "logRetentionDays": 365,
        "accessLogging": true
      }
    }
  ]
}`

func TestLoadReader(t *testing.T) {
	configs, err := LoadReader(strings.NewReader(regionDocument))
	if err != nil {
		t.Fatalf("LoadReader failed: %v", err)
	}
	if len(configs) != 2 {
		t.Fatalf("got %d regions, want 2", len(configs))
	}

	europe := configs[0]
	if europe.ID != "europe" {
		t.Errorf("ID = %q, want %q", europe.ID, "europe")
	}
	if europe.PrivacySettings.DataRetentionDays != 365 {
		t.Errorf("DataRetentionDays = %d, want 365", europe.PrivacySettings.DataRetentionDays)
	}
	if !europe.PrivacySettings.RightToBeForgotten {
		t.Error("expected rightToBeForgotten to be set")
	}

	na := configs[1]
	if !na.ContentRestrictions.RequiresAccessControl(ControlParentalConsent) {
		t.Error("expected parental_consent access control")
	}
	if !na.ContentRestrictions.RequiresAccessControl(ControlMFARequired) {
		t.Error("expected mfa_required access control")
	}
}

func TestLoadReaderRejectsBadDocuments(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{name: "Malformed JSON", doc: `{"regions": [`},
		{name: "Unknown field", doc: `{"regions": [], "extra": true}`},
		{name: "Empty region list", doc: `{"regions": []}`},
		{name: "Missing regions key", doc: `{}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadReader(strings.NewReader(tt.doc)); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "regions.json")
	if err := os.WriteFile(path, []byte(regionDocument), 0o600); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}

	configs, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if len(configs) != 2 {
		t.Errorf("got %d regions, want 2", len(configs))
	}

	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected an error for a missing file")
	}

	// Loaded configurations construct a working registry end to end.
	reg, err := New(configs)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if got := reg.Regions(); len(got) != 2 {
		t.Errorf("Regions = %v, want 2 entries", got)
	}
}
