package models

import "time"

// IdentityStatus is the normalized account status
type IdentityStatus string

const (
	IdentityActive    IdentityStatus = "active"
	IdentityPending   IdentityStatus = "pending"
	IdentitySuspended IdentityStatus = "suspended"
)

// ParseIdentityStatus reports whether s is an accepted status value
func ParseIdentityStatus(s string) (IdentityStatus, bool) {
	switch IdentityStatus(s) {
	case IdentityActive, IdentityPending, IdentitySuspended:
		return IdentityStatus(s), true
	}
	return "", false
}

// Identity is the canonical view of an account regardless of its variant collection.
// It is derived on read and never stored.
type Identity struct {
	ID                string         `json:"id"`
	DisplayName       string         `json:"displayName"`
	Email             string         `json:"email"`
	Role              Role           `json:"role"`
	Status            IdentityStatus `json:"status"`
	PortalAccess      []string       `json:"portalAccess"`
	JoinDate          time.Time      `json:"joinDate"`
	LastActiveSummary string         `json:"lastActiveSummary"`
}

// IdentityFilters are the listing filters for identities
type IdentityFilters struct {
	Search string
	Status IdentityStatus
	Role   Role
	Portal string
}

// IdentityCounts aggregates identities by normalized status
type IdentityCounts struct {
	Total     int `json:"total"`
	Active    int `json:"active"`
	Pending   int `json:"pending"`
	Suspended int `json:"suspended"`
}
