package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// InvitationStatus represents the lifecycle status of an invitation
type InvitationStatus string

const (
	InvitationPending  InvitationStatus = "pending"
	InvitationAccepted InvitationStatus = "accepted"
	InvitationExpired  InvitationStatus = "expired"
	InvitationRevoked  InvitationStatus = "revoked"
)

// ParseInvitationStatus reports whether s is a known invitation status
func ParseInvitationStatus(s string) (InvitationStatus, bool) {
	switch InvitationStatus(s) {
	case InvitationPending, InvitationAccepted, InvitationExpired, InvitationRevoked:
		return InvitationStatus(s), true
	}
	return "", false
}

// Terminal reports whether no further transition is allowed from s
func (s InvitationStatus) Terminal() bool {
	return s == InvitationAccepted || s == InvitationRevoked
}

// Invitation represents the structure of an invitation document in MongoDB
type Invitation struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Email          string             `bson:"email" json:"email"`
	InvitationCode string             `bson:"invitationCode" json:"invitationCode"`
	Token          string             `bson:"token" json:"-"`
	Role           Role               `bson:"role" json:"role"`
	Portal         string             `bson:"portal" json:"portal"`
	Status         InvitationStatus   `bson:"status" json:"status"`
	InvitedBy      string             `bson:"invitedBy" json:"invitedBy"`
	InvitedAt      time.Time          `bson:"invitedAt" json:"invitedAt"`
	ExpiresAt      time.Time          `bson:"expiresAt" json:"expiresAt"`
	AcceptedAt     *time.Time         `bson:"acceptedAt,omitempty" json:"acceptedAt,omitempty"`
	RevokedAt      *time.Time         `bson:"revokedAt,omitempty" json:"revokedAt,omitempty"`
	RevokedBy      string             `bson:"revokedBy,omitempty" json:"revokedBy,omitempty"`
	ResendCount    int                `bson:"resendCount" json:"resendCount"`
	LastResentAt   *time.Time         `bson:"lastResentAt,omitempty" json:"lastResentAt,omitempty"`
}

// IsExpiredAt reports whether the invitation is past its expiry at now
func (i *Invitation) IsExpiredAt(now time.Time) bool {
	return now.After(i.ExpiresAt)
}

// InvitationFilters are the listing filters for invitations
type InvitationFilters struct {
	Status InvitationStatus
	Role   Role
	Portal string
	// Search matches email or invitation code, case-insensitive
	Search string
}

// InvitationCounts aggregates invitations by status
type InvitationCounts struct {
	Total    int64 `json:"total"`
	Pending  int64 `json:"pending"`
	Accepted int64 `json:"accepted"`
	Expired  int64 `json:"expired"`
	Revoked  int64 `json:"revoked"`
}

// AcceptedInvitation is what a successful acceptance hands to the account creation flow
type AcceptedInvitation struct {
	Email          string `json:"email"`
	Role           Role   `json:"role"`
	Portal         string `json:"portal"`
	InvitationCode string `json:"invitationCode"`
}
