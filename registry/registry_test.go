package registry

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/edurecord/student-records-compliance/interfaces"
	"github.com/edurecord/student-records-compliance/types"
)

func testConfigs() []types.RegionConfig {
	return []types.RegionConfig{
		*gdprConfig(),
		{
			ID:             "north_america",
			DataProtection: []string{"FERPA"},
			PrivacySettings: types.PrivacySettings{
				DataRetentionDays: 1825,
			},
			AuditRequirements: types.AuditRequirements{
				LogRetentionDays: 365,
				AccessLogging:    true,
			},
		},
	}
}

func TestNewRejectsMalformedConfiguration(t *testing.T) {
	tests := []struct {
		name      string
		configs   []types.RegionConfig
		opts      []Option
		errSubstr string
	}{
		{
			name:      "Empty region ID",
			configs:   []types.RegionConfig{{ID: ""}},
			errSubstr: "empty region ID",
		},
		{
			name:      "Duplicate region ID",
			configs:   []types.RegionConfig{{ID: "europe"}, {ID: "europe"}},
			errSubstr: "duplicate region configuration",
		},
		{
			name:      "Empty validator set",
			configs:   testConfigs(),
			opts:      []Option{WithValidators()},
			errSubstr: "at least one validator",
		},
		{
			name:    "Duplicate validator names",
			configs: testConfigs(),
			opts: []Option{WithValidators(
				DataProtectionValidator{},
				DataProtectionValidator{},
			)},
			errSubstr: "duplicate validator",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.configs, tt.opts...)
			if err == nil {
				t.Fatal("expected construction to fail")
			}
			var invariantErr *types.ConfigInvariantViolationError
			if !errors.As(err, &invariantErr) {
				t.Fatalf("expected ConfigInvariantViolationError, got %T: %v", err, err)
			}
			if !strings.Contains(err.Error(), tt.errSubstr) {
				t.Errorf("error %q does not contain %q", err.Error(), tt.errSubstr)
			}
		})
	}
}

func TestGetConfig(t *testing.T) {
	reg, err := New(testConfigs())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	cfg, err := reg.GetConfig("europe")
	if err != nil {
		t.Fatalf("GetConfig failed: %v", err)
	}
	if cfg.ID != "europe" {
		t.Errorf("ID = %q, want %q", cfg.ID, "europe")
	}

	_, err = reg.GetConfig("atlantis")
	var regionErr *types.RegionNotSupportedError
	if !errors.As(err, &regionErr) {
		t.Fatalf("expected RegionNotSupportedError, got %T: %v", err, err)
	}
	if regionErr.Region != "atlantis" {
		t.Errorf("Region = %q, want %q", regionErr.Region, "atlantis")
	}
}

func TestGetConfigReturnsCopy(t *testing.T) {
	reg, err := New(testConfigs())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	first, err := reg.GetConfig("europe")
	if err != nil {
		t.Fatalf("GetConfig failed: %v", err)
	}
	first.PrivacySettings.DataRetentionDays = 1

	second, err := reg.GetConfig("europe")
	if err != nil {
		t.Fatalf("GetConfig failed: %v", err)
	}
	if second.PrivacySettings.DataRetentionDays != 365 {
		t.Error("mutating a returned config must not affect the registry")
	}
}

func TestValidateAggregatesAllChecks(t *testing.T) {
	reg, err := New(testConfigs())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	result, err := reg.Validate("europe", &types.ValidationInput{})
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if !result.Valid {
		t.Errorf("expected valid result, failed checks: %v", result.FailedChecks())
	}
	if len(result.Checks) != 4 {
		t.Errorf("Checks has %d entries, want 4", len(result.Checks))
	}
	for _, name := range []string{
		types.CheckDataProtection,
		types.CheckContentRestrictions,
		types.CheckPrivacySettings,
		types.CheckAuditRequirements,
	} {
		if _, ok := result.Checks[name]; !ok {
			t.Errorf("missing check %q in aggregate result", name)
		}
	}
}

func TestValidateSingleFailureFailsAggregate(t *testing.T) {
	reg, err := New(testConfigs())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	result, err := reg.Validate("europe", &types.ValidationInput{
		Attributes: map[string]string{AttrRecordAgeDays: "9999"},
	})
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if result.Valid {
		t.Fatal("expected aggregate to fail when one check fails")
	}
	if got := result.FailedChecks(); !reflect.DeepEqual(got, []string{types.CheckPrivacySettings}) {
		t.Errorf("FailedChecks = %v, want only privacy_settings", got)
	}
}

func TestValidateUnknownRegion(t *testing.T) {
	reg, err := New(testConfigs())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	_, err = reg.Validate("atlantis", &types.ValidationInput{})
	var regionErr *types.RegionNotSupportedError
	if !errors.As(err, &regionErr) {
		t.Fatalf("expected RegionNotSupportedError, got %T: %v", err, err)
	}
}

func TestRegionsSorted(t *testing.T) {
	reg, err := New(testConfigs())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	got := reg.Regions()
	want := []string{"europe", "north_america"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Regions = %v, want %v", got, want)
	}
}

func TestCustomValidatorReplacesDefaults(t *testing.T) {
	reg, err := New(testConfigs(), WithValidators(rejectAll{}))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	result, err := reg.Validate("europe", &types.ValidationInput{})
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if result.Valid {
		t.Error("expected custom validator to fail the aggregate")
	}
	if len(result.Checks) != 1 {
		t.Errorf("Checks has %d entries, want 1", len(result.Checks))
	}
}

type rejectAll struct{}

func (rejectAll) Name() string { return "reject_all" }

func (rejectAll) Validate(cfg *types.RegionConfig, input *types.ValidationInput) types.CheckResult {
	return types.CheckResult{Valid: false, Detail: "rejected"}
}

var _ interfaces.Validator = rejectAll{}
