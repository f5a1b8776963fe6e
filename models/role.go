package models

import "strings"

// Role is the account variant an identity belongs to
type Role string

const (
	RoleInvestor          Role = "investor"
	RoleNGO               Role = "ngo"
	RoleCorporate         Role = "corporate"
	RoleMarketParticipant Role = "market-participant"
	RoleAdmin             Role = "admin"
)

// Roles lists every role in the fixed probe order used when resolving an identity
var Roles = []Role{RoleInvestor, RoleNGO, RoleCorporate, RoleMarketParticipant, RoleAdmin}

// ParseRole normalizes s and reports whether it names a known role
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Roles {
		if r == known {
			return r, true
		}
	}
	return "", false
}

// Portal names
const (
	PortalInvestor     = "Investor Portal"
	PortalNGO          = "NGO Portal"
	PortalCorporate    = "Corporate Portal"
	PortalCarbonMarket = "Carbon Market Portal"
	PortalAdmin        = "Admin Portal"
)

var rolePortals = map[Role][]string{
	RoleInvestor:          {PortalInvestor},
	RoleNGO:               {PortalNGO},
	RoleCorporate:         {PortalCorporate},
	RoleMarketParticipant: {PortalCarbonMarket},
	RoleAdmin:             {PortalAdmin, PortalInvestor, PortalNGO, PortalCorporate, PortalCarbonMarket},
}

// Portals returns the portals a role grants. The returned slice is a copy.
func (r Role) Portals() []string {
	p := rolePortals[r]
	out := make([]string, len(p))
	copy(out, p)
	return out
}

// GrantsPortal reports whether the role grants access to the named portal
func (r Role) GrantsPortal(portal string) bool {
	_, ok := r.CanonicalPortal(portal)
	return ok
}

// CanonicalPortal returns the table spelling of portal for role r
func (r Role) CanonicalPortal(portal string) (string, bool) {
	for _, p := range rolePortals[r] {
		if strings.EqualFold(p, strings.TrimSpace(portal)) {
			return p, true
		}
	}
	return "", false
}
