// Package access implements the tier-to-role access control matrix.
package access

import (
	"fmt"
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/edurecord/student-records-compliance/interfaces"
	"github.com/edurecord/student-records-compliance/types"
)

// Matrix is a static tier-to-allowed-role-set table. It is immutable after
// construction and safe for unbounded concurrent readers.
//
// Construction enforces the ordering invariant: for tiers t1 < t2,
// AllowedRoles(t1) must be a superset of AllowedRoles(t2). A single ordering
// bug can otherwise create an authorization loophole where a caller cleared
// for restricted data cannot read public data, or vice versa.
type Matrix struct {
	allowed map[types.ClassificationTier]map[types.Role]struct{}
}

// NewMatrix builds a matrix from a tier-to-roles table. Every tier must be
// present. Violations of the ordering invariant return
// *types.ConfigInvariantViolationError and the engine refuses to start.
func NewMatrix(table map[types.ClassificationTier][]types.Role) (*Matrix, error) {
	allowed := make(map[types.ClassificationTier]map[types.Role]struct{}, len(types.Tiers()))

	for _, tier := range types.Tiers() {
		roles, ok := table[tier]
		if !ok {
			return nil, &types.ConfigInvariantViolationError{
				Detail: fmt.Sprintf("access matrix is missing tier %q", tier),
			}
		}
		set := make(map[types.Role]struct{}, len(roles))
		for _, role := range roles {
			if !role.Valid() {
				return nil, &types.ConfigInvariantViolationError{
					Detail: fmt.Sprintf("access matrix tier %q references unknown role %q", tier, role),
				}
			}
			set[role] = struct{}{}
		}
		allowed[tier] = set
	}

	if err := checkMonotonic(allowed); err != nil {
		return nil, err
	}

	log.Debug().Int("tiers", len(allowed)).Msg("Access control matrix constructed")

	return &Matrix{allowed: allowed}, nil
}

// checkMonotonic verifies that allowed-role sets shrink (or stay equal) as
// the tier increases.
func checkMonotonic(allowed map[types.ClassificationTier]map[types.Role]struct{}) error {
	tiers := types.Tiers()
	for i := 0; i < len(tiers)-1; i++ {
		lower, higher := tiers[i], tiers[i+1]
		for role := range allowed[higher] {
			if _, ok := allowed[lower][role]; !ok {
				return &types.ConfigInvariantViolationError{
					Detail: fmt.Sprintf(
						"role %q is allowed for tier %q but not for lower tier %q",
						role, higher, lower),
				}
			}
		}
	}
	return nil
}

// IsAllowed reports whether the role may read plaintext at the tier.
// Unknown tiers and roles are denied.
func (m *Matrix) IsAllowed(tier types.ClassificationTier, role types.Role) bool {
	set, ok := m.allowed[tier]
	if !ok {
		return false
	}
	_, ok = set[role]
	return ok
}

// AllowedRoles returns the roles authorized for the tier, sorted for
// deterministic output.
func (m *Matrix) AllowedRoles(tier types.ClassificationTier) []types.Role {
	set, ok := m.allowed[tier]
	if !ok {
		return nil
	}
	roles := make([]types.Role, 0, len(set))
	for role := range set {
		roles = append(roles, role)
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i] < roles[j] })
	return roles
}

// DefaultTable returns the default student-records authorization table.
// Counselors may read sensitive data (academic interventions, wellbeing
// flags); only admins may read restricted data such as health notes.
func DefaultTable() map[types.ClassificationTier][]types.Role {
	return map[types.ClassificationTier][]types.Role{
		types.TierPublic: {
			types.RoleAdmin, types.RoleDistrictAdmin, types.RoleCounselor,
			types.RoleRegistrar, types.RoleTeacher, types.RoleStudent, types.RoleParent,
		},
		types.TierInternal: {
			types.RoleAdmin, types.RoleDistrictAdmin, types.RoleCounselor,
			types.RoleRegistrar, types.RoleTeacher,
		},
		types.TierSensitive: {
			types.RoleAdmin, types.RoleDistrictAdmin, types.RoleCounselor,
		},
		types.TierRestricted: {
			types.RoleAdmin, types.RoleDistrictAdmin,
		},
	}
}

var _ interfaces.AccessMatrix = (*Matrix)(nil)
