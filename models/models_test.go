package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInvitationStatusTerminal(t *testing.T) {
	assert.False(t, InvitationPending.Terminal())
	assert.False(t, InvitationExpired.Terminal())
	assert.True(t, InvitationAccepted.Terminal())
	assert.True(t, InvitationRevoked.Terminal())
}

func TestRoleGrantsPortal(t *testing.T) {
	assert.True(t, RoleNGO.GrantsPortal("ngo portal"))
	assert.True(t, RoleNGO.GrantsPortal("  NGO Portal "))
	assert.False(t, RoleNGO.GrantsPortal(PortalCorporate))
	assert.True(t, RoleMarketParticipant.GrantsPortal(PortalCarbonMarket))
	for _, p := range []string{PortalAdmin, PortalInvestor, PortalNGO, PortalCorporate, PortalCarbonMarket} {
		assert.True(t, RoleAdmin.GrantsPortal(p), p)
	}
	assert.False(t, Role("auditor").GrantsPortal(PortalAdmin))
}

func TestParseRole(t *testing.T) {
	r, ok := ParseRole(" NGO ")
	assert.True(t, ok)
	assert.Equal(t, RoleNGO, r)

	_, ok = ParseRole("auditor")
	assert.False(t, ok)
}
