// Package registry implements the per-region compliance configuration and
// its pluggable validation strategies.
package registry

import (
	"fmt"
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/edurecord/student-records-compliance/interfaces"
	"github.com/edurecord/student-records-compliance/types"
)

// Registry holds the regulatory configuration for every supported region
// plus the validators that run against candidate data. It is immutable
// after construction and safe for unbounded concurrent readers.
type Registry struct {
	configs    map[string]types.RegionConfig
	validators []interfaces.Validator
}

// Option configures a Registry at construction time.
type Option func(*Registry)

// WithValidators replaces the default validator set. The registry refuses
// to start with an empty set: a region with no checks would silently
// approve everything.
func WithValidators(validators ...interfaces.Validator) Option {
	return func(r *Registry) {
		r.validators = validators
	}
}

// New builds a registry from region configurations. Duplicate or unnamed
// regions and an empty validator set are construction-time errors.
func New(configs []types.RegionConfig, opts ...Option) (*Registry, error) {
	r := &Registry{
		configs:    make(map[string]types.RegionConfig, len(configs)),
		validators: DefaultValidators(),
	}
	for _, opt := range opts {
		opt(r)
	}

	if len(r.validators) == 0 {
		return nil, &types.ConfigInvariantViolationError{
			Detail: "registry requires at least one validator",
		}
	}
	seen := make(map[string]struct{}, len(r.validators))
	for _, v := range r.validators {
		if _, dup := seen[v.Name()]; dup {
			return nil, &types.ConfigInvariantViolationError{
				Detail: fmt.Sprintf("duplicate validator registered for check %q", v.Name()),
			}
		}
		seen[v.Name()] = struct{}{}
	}

	for _, cfg := range configs {
		if cfg.ID == "" {
			return nil, &types.ConfigInvariantViolationError{
				Detail: "region configuration with empty region ID",
			}
		}
		if _, dup := r.configs[cfg.ID]; dup {
			return nil, &types.ConfigInvariantViolationError{
				Detail: fmt.Sprintf("duplicate region configuration for %q", cfg.ID),
			}
		}
		r.configs[cfg.ID] = cfg
	}

	log.Debug().
		Int("regions", len(r.configs)).
		Int("validators", len(r.validators)).
		Msg("Regional compliance registry constructed")

	return r, nil
}

// GetConfig returns the configuration for a region. Unknown regions return
// *types.RegionNotSupportedError.
func (r *Registry) GetConfig(region string) (*types.RegionConfig, error) {
	cfg, ok := r.configs[region]
	if !ok {
		return nil, &types.RegionNotSupportedError{Region: region}
	}
	return &cfg, nil
}

// Validate runs every registered validator against the candidate data and
// aggregates the results. The aggregate is valid only if all checks pass.
func (r *Registry) Validate(region string, input *types.ValidationInput) (*types.ValidationResult, error) {
	cfg, err := r.GetConfig(region)
	if err != nil {
		return nil, err
	}
	if input == nil {
		input = &types.ValidationInput{}
	}

	result := &types.ValidationResult{
		Region: region,
		Valid:  true,
		Checks: make(map[string]types.CheckResult, len(r.validators)),
	}
	for _, v := range r.validators {
		check := v.Validate(cfg, input)
		result.Checks[v.Name()] = check
		if !check.Valid {
			result.Valid = false
		}
	}

	if !result.Valid {
		log.Debug().
			Str("region", region).
			Strs("failedChecks", result.FailedChecks()).
			Msg("Regional validation failed")
	}

	return result, nil
}

// Regions lists the registered region IDs in sorted order.
func (r *Registry) Regions() []string {
	regions := make([]string, 0, len(r.configs))
	for id := range r.configs {
		regions = append(regions, id)
	}
	sort.Strings(regions)
	return regions
}

var _ interfaces.Registry = (*Registry)(nil)
