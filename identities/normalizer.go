package identities

import (
	"time"

	"github.com/dustin/go-humanize"

	"github.com/linesmerrill/esg-identity-api/models"
)

// neverActive is the lastActiveSummary of an account that never logged in
const neverActive = "Never"

// Normalize converts a record stored in role's collection into its canonical Identity.
// Portal access is derived from the role and left empty unless the identity is active.
func Normalize(rec models.AccountRecord, role models.Role, now time.Time) models.Identity {
	status := normalizeStatus(rec.Status)

	access := []string{}
	if status == models.IdentityActive {
		access = role.Portals()
	}

	summary := neverActive
	if rec.LastLogin != nil && !rec.LastLogin.IsZero() {
		summary = humanize.RelTime(*rec.LastLogin, now, "ago", "from now")
	}

	return models.Identity{
		ID:                rec.ID.Hex(),
		DisplayName:       variants[role].displayName(rec),
		Email:             rec.Email,
		Role:              role,
		Status:            status,
		PortalAccess:      access,
		JoinDate:          rec.CreatedAt,
		LastActiveSummary: summary,
	}
}

// normalizeStatus maps a stored status onto the canonical set. The legacy "inactive"
// value reads as suspended; anything unrecognized reads as pending.
func normalizeStatus(stored string) models.IdentityStatus {
	switch stored {
	case models.StoredStatusActive:
		return models.IdentityActive
	case models.StoredStatusSuspended, models.StoredStatusInactive:
		return models.IdentitySuspended
	default:
		return models.IdentityPending
	}
}
