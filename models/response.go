package models

// HealthCheckResponse returns the health check response duh
type HealthCheckResponse struct {
	Alive bool `json:"alive"`
}

// ErrorResponse is the envelope written for every failed request
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"code"`
}

// CreateInvitationRequest is the body of a create invitation request
type CreateInvitationRequest struct {
	Email           string `json:"email"`
	Role            string `json:"role"`
	Portal          string `json:"portal"`
	InvitedBy       string `json:"invitedBy"`
	DaysUntilExpiry *int   `json:"daysUntilExpiry,omitempty"`
}

// ResendInvitationRequest is the body of a resend request
type ResendInvitationRequest struct {
	DaysUntilExpiry *int `json:"daysUntilExpiry,omitempty"`
}

// RevokeInvitationRequest is the body of a revoke request
type RevokeInvitationRequest struct {
	RevokedBy string `json:"revokedBy"`
}

// AcceptInvitationRequest is the body of an accept request
type AcceptInvitationRequest struct {
	Token string `json:"token"`
}

// ChangeStatusRequest is the body of an identity status change
type ChangeStatusRequest struct {
	Status string `json:"status"`
}

// ChangeRoleRequest is the body of an identity role change
type ChangeRoleRequest struct {
	Role string `json:"role"`
}

// InvitationResponse wraps a single invitation
type InvitationResponse struct {
	Success    bool       `json:"success"`
	Invitation Invitation `json:"invitation"`
}

// InvitationListResponse wraps a list of invitations
type InvitationListResponse struct {
	Success     bool         `json:"success"`
	Invitations []Invitation `json:"invitations"`
	Count       int          `json:"count"`
}

// AcceptInvitationResponse wraps the result of an acceptance
type AcceptInvitationResponse struct {
	Success    bool               `json:"success"`
	Invitation AcceptedInvitation `json:"invitation"`
}

// IdentityResponse wraps a single identity
type IdentityResponse struct {
	Success  bool     `json:"success"`
	Identity Identity `json:"identity"`
}

// IdentityListResponse wraps a list of identities
type IdentityListResponse struct {
	Success    bool       `json:"success"`
	Identities []Identity `json:"identities"`
	Count      int        `json:"count"`
}
