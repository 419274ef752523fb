package types

import "fmt"

// ClassificationTier is the ordered sensitivity label attached to a field.
// Higher values are strictly more sensitive.
type ClassificationTier int

// Classification tier constants, ordered from least to most sensitive. The
// zero value is deliberately not part of the catalog: an unset tier on a
// record field means "use the call's default tier", and everywhere else it
// is invalid rather than silently public.
const (
	tierUnspecified ClassificationTier = iota
	TierPublic
	TierInternal
	TierSensitive
	TierRestricted
)

// Tiers returns all classification tiers in ascending sensitivity order.
func Tiers() []ClassificationTier {
	return []ClassificationTier{TierPublic, TierInternal, TierSensitive, TierRestricted}
}

// Valid reports whether the tier is a member of the closed tier set.
func (t ClassificationTier) Valid() bool {
	return t >= TierPublic && t <= TierRestricted
}

// String returns the canonical name of the tier.
func (t ClassificationTier) String() string {
	switch t {
	case TierPublic:
		return "public"
	case TierInternal:
		return "internal"
	case TierSensitive:
		return "sensitive"
	case TierRestricted:
		return "restricted"
	default:
		return fmt.Sprintf("unknown(%d)", int(t))
	}
}

// ParseTier converts a tier name to a ClassificationTier. Unknown names are
// an error, never a default tier.
func ParseTier(s string) (ClassificationTier, error) {
	switch s {
	case "public":
		return TierPublic, nil
	case "internal":
		return TierInternal, nil
	case "sensitive":
		return TierSensitive, nil
	case "restricted":
		return TierRestricted, nil
	default:
		return 0, fmt.Errorf("unknown classification tier: %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler so tiers serialize by name
// in both JSON and BSON documents.
func (t ClassificationTier) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("cannot marshal invalid classification tier %d", int(t))
	}
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *ClassificationTier) UnmarshalText(data []byte) error {
	parsed, err := ParseTier(string(data))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Role identifies a caller category for field-level authorization.
// The catalog is closed; roles are defined here and nowhere else.
type Role string

// Role constants.
const (
	RoleAdmin         Role = "admin"
	RoleDistrictAdmin Role = "district_admin"
	RoleCounselor     Role = "counselor"
	RoleRegistrar     Role = "registrar"
	RoleTeacher       Role = "teacher"
	RoleStudent       Role = "student"
	RoleParent        Role = "parent"
)

// Roles returns the full role catalog.
func Roles() []Role {
	return []Role{
		RoleAdmin,
		RoleDistrictAdmin,
		RoleCounselor,
		RoleRegistrar,
		RoleTeacher,
		RoleStudent,
		RoleParent,
	}
}

// Valid reports whether the role is a member of the catalog.
func (r Role) Valid() bool {
	for _, known := range Roles() {
		if r == known {
			return true
		}
	}
	return false
}
