package handlers

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/linesmerrill/esg-identity-api/apperrors"
	"github.com/linesmerrill/esg-identity-api/models"
)

// IdentityService is the identity capability served over HTTP
type IdentityService interface {
	List(ctx context.Context, filters models.IdentityFilters) ([]models.Identity, error)
	Stats(ctx context.Context) (models.IdentityCounts, error)
	Get(ctx context.Context, id string) (*models.Identity, error)
	ChangeStatus(ctx context.Context, id, status string) (*models.Identity, error)
	ChangeRole(ctx context.Context, id, role string) (*models.Identity, error)
}

// Identity exported for testing purposes
type Identity struct {
	Service IdentityService
}

// ListIdentitiesHandler lists identities across every account collection
func (i Identity) ListIdentitiesHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filters := models.IdentityFilters{
		Search: q.Get("search"),
		Portal: q.Get("portal"),
	}
	if s := q.Get("status"); s != "" && s != "all" {
		status, ok := models.ParseIdentityStatus(s)
		if !ok {
			writeError(w, r, apperrors.Newf(apperrors.KindValidation, "unknown status %q", s))
			return
		}
		filters.Status = status
	}
	if s := q.Get("role"); s != "" && s != "all" {
		role, ok := models.ParseRole(s)
		if !ok {
			writeError(w, r, apperrors.Newf(apperrors.KindInvalidRole, "unknown role %q", s))
			return
		}
		filters.Role = role
	}

	list, err := i.Service.List(r.Context(), filters)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, models.IdentityListResponse{Success: true, Identities: list, Count: len(list)})
}

// IdentityStatsHandler returns identity counts by normalized status
func (i Identity) IdentityStatsHandler(w http.ResponseWriter, r *http.Request) {
	counts, err := i.Service.Stats(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "stats": counts})
}

// IdentityByIDHandler returns one identity
func (i Identity) IdentityByIDHandler(w http.ResponseWriter, r *http.Request) {
	identity, err := i.Service.Get(r.Context(), mux.Vars(r)["identity_id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, models.IdentityResponse{Success: true, Identity: *identity})
}

// ChangeIdentityStatusHandler sets an identity's status
func (i Identity) ChangeIdentityStatusHandler(w http.ResponseWriter, r *http.Request) {
	var req models.ChangeStatusRequest
	if err := decodeBody(r, &req, false); err != nil {
		writeError(w, r, err)
		return
	}
	identity, err := i.Service.ChangeStatus(r.Context(), mux.Vars(r)["identity_id"], req.Status)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, models.IdentityResponse{Success: true, Identity: *identity})
}

// ChangeIdentityRoleHandler moves an identity to another role's collection
func (i Identity) ChangeIdentityRoleHandler(w http.ResponseWriter, r *http.Request) {
	var req models.ChangeRoleRequest
	if err := decodeBody(r, &req, false); err != nil {
		writeError(w, r, err)
		return
	}
	identity, err := i.Service.ChangeRole(r.Context(), mux.Vars(r)["identity_id"], req.Role)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, models.IdentityResponse{Success: true, Identity: *identity})
}
