package handlers

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/linesmerrill/esg-identity-api/apperrors"
	"github.com/linesmerrill/esg-identity-api/invitations"
	"github.com/linesmerrill/esg-identity-api/models"
)

// InvitationService is the invitation capability served over HTTP
type InvitationService interface {
	Create(ctx context.Context, p invitations.CreateParams) (*models.Invitation, error)
	Resend(ctx context.Context, id string, daysUntilExpiry *int) (*models.Invitation, error)
	Revoke(ctx context.Context, id, revokedBy string) (*models.Invitation, error)
	Accept(ctx context.Context, token string) (*models.AcceptedInvitation, error)
	List(ctx context.Context, filters models.InvitationFilters) ([]models.Invitation, error)
	Stats(ctx context.Context) (models.InvitationCounts, error)
	Get(ctx context.Context, id string) (*models.Invitation, error)
}

// Invitation exported for testing purposes
type Invitation struct {
	Service InvitationService
}

// CreateInvitationHandler issues a new invitation
func (i Invitation) CreateInvitationHandler(w http.ResponseWriter, r *http.Request) {
	var req models.CreateInvitationRequest
	if err := decodeBody(r, &req, false); err != nil {
		writeError(w, r, err)
		return
	}
	inv, err := i.Service.Create(r.Context(), invitations.CreateParams{
		Email:           req.Email,
		Role:            req.Role,
		Portal:          req.Portal,
		InvitedBy:       req.InvitedBy,
		DaysUntilExpiry: req.DaysUntilExpiry,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, models.InvitationResponse{Success: true, Invitation: *inv})
}

// ListInvitationsHandler lists invitations filtered by status, role, portal and search
func (i Invitation) ListInvitationsHandler(w http.ResponseWriter, r *http.Request) {
	filters, err := invitationFilters(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	list, err := i.Service.List(r.Context(), filters)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, models.InvitationListResponse{Success: true, Invitations: list, Count: len(list)})
}

func invitationFilters(r *http.Request) (models.InvitationFilters, error) {
	q := r.URL.Query()
	filters := models.InvitationFilters{
		Portal: q.Get("portal"),
		Search: q.Get("search"),
	}
	if s := q.Get("status"); s != "" && s != "all" {
		status, ok := models.ParseInvitationStatus(s)
		if !ok {
			return filters, apperrors.Newf(apperrors.KindValidation, "unknown invitation status %q", s)
		}
		filters.Status = status
	}
	if s := q.Get("role"); s != "" && s != "all" {
		role, ok := models.ParseRole(s)
		if !ok {
			return filters, apperrors.Newf(apperrors.KindInvalidRole, "unknown role %q", s)
		}
		filters.Role = role
	}
	return filters, nil
}

// InvitationStatsHandler returns invitation counts by status
func (i Invitation) InvitationStatsHandler(w http.ResponseWriter, r *http.Request) {
	counts, err := i.Service.Stats(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "stats": counts})
}

// InvitationByIDHandler returns one invitation
func (i Invitation) InvitationByIDHandler(w http.ResponseWriter, r *http.Request) {
	inv, err := i.Service.Get(r.Context(), mux.Vars(r)["invitation_id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, models.InvitationResponse{Success: true, Invitation: *inv})
}

// ResendInvitationHandler extends an invitation and sends it again
func (i Invitation) ResendInvitationHandler(w http.ResponseWriter, r *http.Request) {
	var req models.ResendInvitationRequest
	if err := decodeBody(r, &req, true); err != nil {
		writeError(w, r, err)
		return
	}
	inv, err := i.Service.Resend(r.Context(), mux.Vars(r)["invitation_id"], req.DaysUntilExpiry)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, models.InvitationResponse{Success: true, Invitation: *inv})
}

// RevokeInvitationHandler withdraws an invitation
func (i Invitation) RevokeInvitationHandler(w http.ResponseWriter, r *http.Request) {
	var req models.RevokeInvitationRequest
	if err := decodeBody(r, &req, false); err != nil {
		writeError(w, r, err)
		return
	}
	inv, err := i.Service.Revoke(r.Context(), mux.Vars(r)["invitation_id"], req.RevokedBy)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, models.InvitationResponse{Success: true, Invitation: *inv})
}

// AcceptInvitationHandler consumes an invitation token
func (i Invitation) AcceptInvitationHandler(w http.ResponseWriter, r *http.Request) {
	var req models.AcceptInvitationRequest
	if err := decodeBody(r, &req, false); err != nil {
		writeError(w, r, err)
		return
	}
	accepted, err := i.Service.Accept(r.Context(), req.Token)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, models.AcceptInvitationResponse{Success: true, Invitation: *accepted})
}
