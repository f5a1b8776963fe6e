package identities

import (
	"strings"

	"github.com/linesmerrill/esg-identity-api/models"
)

// variant describes one account kind: its label and how its records name the account holder
type variant struct {
	kind string
	// names returns display name candidates in priority order
	names func(rec models.AccountRecord) []string
}

var variants = map[models.Role]variant{
	models.RoleInvestor: {
		kind:  "Individual",
		names: func(rec models.AccountRecord) []string { return []string{rec.Name} },
	},
	models.RoleNGO: {
		kind:  "NGO",
		names: func(rec models.AccountRecord) []string { return []string{rec.ContactPerson, rec.OrganizationName} },
	},
	models.RoleCorporate: {
		kind:  "Corporate",
		names: func(rec models.AccountRecord) []string { return []string{rec.ContactPerson, rec.CompanyName} },
	},
	models.RoleMarketParticipant: {
		kind:  "MarketParticipant",
		names: func(rec models.AccountRecord) []string { return []string{rec.Name} },
	},
	models.RoleAdmin: {
		kind:  "Administrator",
		names: func(rec models.AccountRecord) []string { return []string{rec.Name} },
	},
}

// displayName picks the first non-blank name candidate and falls back to the email
func (v variant) displayName(rec models.AccountRecord) string {
	if v.names == nil {
		return rec.Email
	}
	for _, n := range v.names(rec) {
		if n = strings.TrimSpace(n); n != "" {
			return n
		}
	}
	return rec.Email
}
