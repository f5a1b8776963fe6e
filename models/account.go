package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Account statuses as stored. StoredStatusInactive is a legacy value read as suspended.
const (
	StoredStatusActive    = "active"
	StoredStatusPending   = "pending"
	StoredStatusSuspended = "suspended"
	StoredStatusInactive  = "inactive"
)

// AccountRecord is the physical shape of an account in any of the variant collections.
// Fields outside the shared set are kept in Extra so that a record survives a move
// between collections without losing role-specific data.
type AccountRecord struct {
	ID               primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Email            string             `bson:"email" json:"email"`
	Role             Role               `bson:"role,omitempty" json:"role,omitempty"`
	Status           string             `bson:"status" json:"status"`
	Name             string             `bson:"name,omitempty" json:"name,omitempty"`
	ContactPerson    string             `bson:"contactPerson,omitempty" json:"contactPerson,omitempty"`
	OrganizationName string             `bson:"organizationName,omitempty" json:"organizationName,omitempty"`
	CompanyName      string             `bson:"companyName,omitempty" json:"companyName,omitempty"`
	LastLogin        *time.Time         `bson:"lastLogin,omitempty" json:"lastLogin,omitempty"`
	CreatedAt        time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt        time.Time          `bson:"updatedAt" json:"updatedAt"`
	Extra            bson.M             `bson:",inline" json:"extra,omitempty"`
}

// Clone returns a deep enough copy for moving the record: Extra and LastLogin are copied
func (a AccountRecord) Clone() AccountRecord {
	out := a
	if a.LastLogin != nil {
		t := *a.LastLogin
		out.LastLogin = &t
	}
	if a.Extra != nil {
		out.Extra = make(bson.M, len(a.Extra))
		for k, v := range a.Extra {
			out.Extra[k] = v
		}
	}
	return out
}

// AccountFilter narrows a query against a single account collection
type AccountFilter struct {
	// Search matches email and every name field, case-insensitive
	Search string
}
