// Package identities presents accounts from every variant collection as one canonical
// Identity and moves accounts between collections when their role changes.
package identities

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/linesmerrill/esg-identity-api/apperrors"
	"github.com/linesmerrill/esg-identity-api/databases"
	"github.com/linesmerrill/esg-identity-api/models"
)

const msgNotFound = "identity not found"

// Recorder counts role migration outcomes
type Recorder interface {
	RecordRoleMigration(outcome string)
}

// Directory reads and updates identities across the variant collections
type Directory struct {
	stores   map[models.Role]databases.AccountDatabase
	now      func() time.Time
	recorder Recorder
}

// Option configures a Directory
type Option func(*Directory)

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(d *Directory) { d.now = now }
}

// WithRecorder attaches a metrics recorder
func WithRecorder(r Recorder) Option {
	return func(d *Directory) { d.recorder = r }
}

// NewDirectory creates a Directory over one store per role
func NewDirectory(stores map[models.Role]databases.AccountDatabase, opts ...Option) *Directory {
	d := &Directory{
		stores: stores,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// List fans out to every collection selected by the role filter, normalizes each
// record, then filters on the derived status and portal access. Newest first.
func (d *Directory) List(ctx context.Context, filters models.IdentityFilters) ([]models.Identity, error) {
	roles := models.Roles
	if filters.Role != "" {
		if _, ok := d.stores[filters.Role]; !ok {
			return nil, apperrors.Newf(apperrors.KindInvalidRole, "unknown role %q", filters.Role)
		}
		roles = []models.Role{filters.Role}
	}

	now := d.now()
	out := []models.Identity{}
	for _, role := range roles {
		store, ok := d.stores[role]
		if !ok {
			continue
		}
		records, err := store.Find(ctx, models.AccountFilter{Search: filters.Search})
		if err != nil {
			return nil, storeError(err)
		}
		for _, rec := range records {
			identity := Normalize(rec, role, now)
			if filters.Status != "" && identity.Status != filters.Status {
				continue
			}
			if filters.Portal != "" && (identity.Status != models.IdentityActive || !role.GrantsPortal(filters.Portal)) {
				continue
			}
			out = append(out, identity)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].JoinDate.After(out[j].JoinDate) })
	return out, nil
}

// Stats counts identities in every collection by normalized status
func (d *Directory) Stats(ctx context.Context) (models.IdentityCounts, error) {
	identities, err := d.List(ctx, models.IdentityFilters{})
	if err != nil {
		return models.IdentityCounts{}, err
	}
	counts := models.IdentityCounts{Total: len(identities)}
	for _, identity := range identities {
		switch identity.Status {
		case models.IdentityActive:
			counts.Active++
		case models.IdentityPending:
			counts.Pending++
		case models.IdentitySuspended:
			counts.Suspended++
		}
	}
	return counts, nil
}

// Get resolves id against the collections in role order
func (d *Directory) Get(ctx context.Context, id string) (*models.Identity, error) {
	rec, role, err := d.locate(ctx, id)
	if err != nil {
		return nil, err
	}
	identity := Normalize(*rec, role, d.now())
	return &identity, nil
}

// ChangeStatus sets the stored status of an identity in place
func (d *Directory) ChangeStatus(ctx context.Context, id, status string) (*models.Identity, error) {
	next, ok := models.ParseIdentityStatus(strings.ToLower(strings.TrimSpace(status)))
	if !ok {
		return nil, apperrors.Newf(apperrors.KindValidation, "unknown status %q, expected active, pending or suspended", status)
	}
	_, role, err := d.locate(ctx, id)
	if err != nil {
		return nil, err
	}

	now := d.now().UTC()
	rec, err := d.stores[role].UpdateStatus(ctx, id, string(next), now)
	if errors.Is(err, databases.ErrNotFound) {
		return nil, apperrors.New(apperrors.KindNotFound, msgNotFound)
	}
	if err != nil {
		return nil, storeError(err)
	}

	zap.S().Infow("identity status changed",
		"identityId", id,
		"role", role,
		"status", next,
	)
	identity := Normalize(*rec, role, now)
	return &identity, nil
}

// locate probes each collection in models.Roles order and returns the first match.
// A store failure stops the probe so that an outage is never reported as NotFound.
func (d *Directory) locate(ctx context.Context, id string) (*models.AccountRecord, models.Role, error) {
	id = strings.TrimSpace(id)
	for _, role := range models.Roles {
		store, ok := d.stores[role]
		if !ok {
			continue
		}
		rec, err := store.FindByID(ctx, id)
		if errors.Is(err, databases.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, "", storeError(err)
		}
		return rec, role, nil
	}
	return nil, "", apperrors.New(apperrors.KindNotFound, msgNotFound)
}

func (d *Directory) record(outcome string) {
	if d.recorder != nil {
		d.recorder.RecordRoleMigration(outcome)
	}
}

func storeError(err error) error {
	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		return err
	}
	return apperrors.Wrap(err, apperrors.KindInternal, "identity store error")
}
