// Package invitations owns the invitation state machine.
//
// States are pending, accepted, expired and revoked. Accepted and revoked are terminal.
// Expired returns to pending only through Resend. Expiry is applied lazily: at
// acceptance time, when a new invitation is created for the same email, and by the
// sweep that runs before every listing or stats query.
//
// Notification delivery is fire-and-forget. An invitation is valid whether or not its
// email was delivered.
package invitations

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/linesmerrill/esg-identity-api/apperrors"
	"github.com/linesmerrill/esg-identity-api/databases"
	"github.com/linesmerrill/esg-identity-api/models"
	"github.com/linesmerrill/esg-identity-api/notifications"
)

// DefaultExpiryDays is used when a caller does not pass daysUntilExpiry
const DefaultExpiryDays = 7

// MaxCodeAttempts bounds code generation retries on collision
const MaxCodeAttempts = 10

// Messages shown when an invitation can no longer be used
const (
	msgNotFound        = "invitation not found"
	msgAlreadyAccepted = "invitation has already been accepted"
	msgRevoked         = "invitation has been revoked"
	msgExpired         = "invitation has expired"
	msgConcurrent      = "invitation was changed by another request, reload and retry"
	msgDuplicate       = "a pending invitation already exists for this email"
)

// Notifier hands an invitation message to background delivery
type Notifier interface {
	Dispatch(details notifications.InvitationDetails)
}

// Recorder counts lifecycle events
type Recorder interface {
	RecordInvitationEvent(event string, n int)
}

// Lifecycle implements create, resend, revoke, accept and the expiry sweep
type Lifecycle struct {
	store       databases.InvitationDatabase
	notifier    Notifier
	recorder    Recorder
	acceptURL   string
	defaultDays int
	now         func() time.Time
	codes       CodeGenerator
	tokens      TokenGenerator
}

// Option configures a Lifecycle
type Option func(*Lifecycle)

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(l *Lifecycle) { l.now = now }
}

// WithCodeGenerator replaces GenerateCode
func WithCodeGenerator(g CodeGenerator) Option {
	return func(l *Lifecycle) { l.codes = g }
}

// WithTokenGenerator replaces GenerateToken
func WithTokenGenerator(g TokenGenerator) Option {
	return func(l *Lifecycle) { l.tokens = g }
}

// WithAcceptURL sets the base of the acceptance link; the token is added as ?token=
func WithAcceptURL(base string) Option {
	return func(l *Lifecycle) { l.acceptURL = base }
}

// WithDefaultExpiryDays overrides DefaultExpiryDays
func WithDefaultExpiryDays(days int) Option {
	return func(l *Lifecycle) {
		if days >= 0 {
			l.defaultDays = days
		}
	}
}

// WithRecorder attaches a metrics recorder
func WithRecorder(r Recorder) Option {
	return func(l *Lifecycle) { l.recorder = r }
}

// New creates a Lifecycle over store. notifier may be nil, in which case no
// notifications are sent.
func New(store databases.InvitationDatabase, notifier Notifier, opts ...Option) *Lifecycle {
	l := &Lifecycle{
		store:       store,
		notifier:    notifier,
		defaultDays: DefaultExpiryDays,
		now:         time.Now,
		codes:       GenerateCode,
		tokens:      GenerateToken,
		acceptURL:   "http://localhost:3000/invitations/accept",
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// CreateParams are the inputs of Create. A nil DaysUntilExpiry uses the default.
type CreateParams struct {
	Email           string
	Role            string
	Portal          string
	InvitedBy       string
	DaysUntilExpiry *int
}

// Create issues a new pending invitation and dispatches its email without waiting
// for delivery.
func (l *Lifecycle) Create(ctx context.Context, p CreateParams) (*models.Invitation, error) {
	email := databases.NormalizeEmail(p.Email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, apperrors.New(apperrors.KindValidation, "a valid email is required")
	}
	role, ok := models.ParseRole(p.Role)
	if !ok {
		return nil, apperrors.Newf(apperrors.KindInvalidRole, "unknown role %q", p.Role)
	}
	portal, ok := role.CanonicalPortal(p.Portal)
	if !ok {
		return nil, apperrors.Newf(apperrors.KindValidation, "role %s does not grant access to portal %q", role, p.Portal)
	}
	invitedBy := strings.TrimSpace(p.InvitedBy)
	if invitedBy == "" {
		return nil, apperrors.New(apperrors.KindValidation, "invitedBy is required")
	}
	days, err := l.expiryDays(p.DaysUntilExpiry)
	if err != nil {
		return nil, err
	}

	now := l.now().UTC()
	if err := l.clearPending(ctx, email, "", now); err != nil {
		return nil, err
	}

	invitation := &models.Invitation{
		Email:     email,
		Role:      role,
		Portal:    portal,
		Status:    models.InvitationPending,
		InvitedBy: invitedBy,
		InvitedAt: now,
		ExpiresAt: now.AddDate(0, 0, days),
	}
	if err := l.insertWithFreshCode(ctx, invitation); err != nil {
		return nil, err
	}

	zap.S().Infow("invitation created",
		"invitationId", invitation.ID.Hex(),
		"email", invitation.Email,
		"role", invitation.Role,
		"portal", invitation.Portal,
		"code", invitation.InvitationCode,
		"expiresAt", invitation.ExpiresAt,
	)
	l.record("created", 1)
	l.notify(invitation, false)
	return invitation, nil
}

// clearPending fails with DuplicatePendingInvitation if email already has a live
// pending invitation other than exceptID. A pending invitation that is past its expiry
// is moved to expired first.
func (l *Lifecycle) clearPending(ctx context.Context, email, exceptID string, now time.Time) error {
	existing, err := l.store.FindPendingByEmail(ctx, email)
	if errors.Is(err, databases.ErrNotFound) {
		return nil
	}
	if err != nil {
		return storeError(err)
	}
	if existing.ID.Hex() == exceptID {
		return nil
	}
	if !existing.IsExpiredAt(now) {
		return apperrors.New(apperrors.KindDuplicatePendingInvitation, msgDuplicate)
	}

	existing.Status = models.InvitationExpired
	err = l.store.Replace(ctx, existing, models.InvitationPending)
	switch {
	case err == nil:
		zap.S().Infow("invitation expired", "invitationId", existing.ID.Hex(), "email", existing.Email)
		l.record("expired", 1)
	case errors.Is(err, databases.ErrStaleRecord):
		// another request moved it first; it is no longer pending either way
	default:
		return storeError(err)
	}
	return nil
}

// insertWithFreshCode draws codes until one is free, then inserts. Collisions found
// by the pre-check or rejected by the store's unique index both consume an attempt.
func (l *Lifecycle) insertWithFreshCode(ctx context.Context, invitation *models.Invitation) error {
	for attempt := 0; attempt < MaxCodeAttempts; attempt++ {
		code, err := l.codes(invitation.Role)
		if err != nil {
			return apperrors.Wrap(err, apperrors.KindInternal, "failed to generate invitation code")
		}
		taken, err := l.store.CodeExists(ctx, code)
		if err != nil {
			return storeError(err)
		}
		if taken {
			continue
		}
		token, err := l.tokens()
		if err != nil {
			return apperrors.Wrap(err, apperrors.KindInternal, "failed to generate invitation token")
		}

		invitation.InvitationCode = code
		invitation.Token = token
		err = l.store.InsertOne(ctx, invitation)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, databases.ErrDuplicateCode), errors.Is(err, databases.ErrDuplicateToken):
			continue
		case errors.Is(err, databases.ErrDuplicatePending):
			return apperrors.New(apperrors.KindDuplicatePendingInvitation, msgDuplicate)
		default:
			return storeError(err)
		}
	}
	zap.S().Warnw("invitation code generation exhausted", "role", invitation.Role, "attempts", MaxCodeAttempts)
	return apperrors.Newf(apperrors.KindCodeGenerationExhausted,
		"could not generate a unique invitation code after %d attempts, retry the request", MaxCodeAttempts)
}

// Resend extends the expiry of a pending or expired invitation and sends its email
// again. Resending an expired invitation revives it.
func (l *Lifecycle) Resend(ctx context.Context, id string, daysUntilExpiry *int) (*models.Invitation, error) {
	days, err := l.expiryDays(daysUntilExpiry)
	if err != nil {
		return nil, err
	}
	invitation, err := l.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := terminalError(invitation.Status); err != nil {
		return nil, err
	}

	now := l.now().UTC()
	previous := invitation.Status
	if previous == models.InvitationExpired {
		if err := l.clearPending(ctx, invitation.Email, invitation.ID.Hex(), now); err != nil {
			return nil, err
		}
	}

	invitation.Status = models.InvitationPending
	invitation.ExpiresAt = now.AddDate(0, 0, days)
	invitation.ResendCount++
	invitation.LastResentAt = &now
	if err := l.replace(ctx, invitation, previous); err != nil {
		return nil, err
	}

	zap.S().Infow("invitation resent",
		"invitationId", invitation.ID.Hex(),
		"email", invitation.Email,
		"resendCount", invitation.ResendCount,
		"revived", previous == models.InvitationExpired,
		"expiresAt", invitation.ExpiresAt,
	)
	l.record("resent", 1)
	l.notify(invitation, true)
	return invitation, nil
}

// Revoke permanently withdraws an invitation
func (l *Lifecycle) Revoke(ctx context.Context, id, revokedBy string) (*models.Invitation, error) {
	revokedBy = strings.TrimSpace(revokedBy)
	if revokedBy == "" {
		return nil, apperrors.New(apperrors.KindValidation, "revokedBy is required")
	}
	invitation, err := l.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := terminalError(invitation.Status); err != nil {
		return nil, err
	}

	now := l.now().UTC()
	previous := invitation.Status
	invitation.Status = models.InvitationRevoked
	invitation.RevokedAt = &now
	invitation.RevokedBy = revokedBy
	if err := l.replace(ctx, invitation, previous); err != nil {
		return nil, err
	}

	zap.S().Infow("invitation revoked",
		"invitationId", invitation.ID.Hex(),
		"email", invitation.Email,
		"revokedBy", revokedBy,
	)
	l.record("revoked", 1)
	return invitation, nil
}

// Accept consumes the invitation matching token. The caller creates the account.
func (l *Lifecycle) Accept(ctx context.Context, token string) (*models.AcceptedInvitation, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, apperrors.New(apperrors.KindNotFound, msgNotFound)
	}
	invitation, err := l.store.FindByToken(ctx, token)
	if err != nil {
		return nil, notFoundOr(err)
	}

	switch invitation.Status {
	case models.InvitationPending:
	case models.InvitationExpired:
		return nil, apperrors.New(apperrors.KindInvalidState, msgExpired)
	default:
		return nil, terminalError(invitation.Status)
	}

	now := l.now().UTC()
	if invitation.IsExpiredAt(now) {
		invitation.Status = models.InvitationExpired
		err := l.store.Replace(ctx, invitation, models.InvitationPending)
		if err != nil && !errors.Is(err, databases.ErrStaleRecord) {
			return nil, storeError(err)
		}
		if err == nil {
			zap.S().Infow("invitation expired at acceptance", "invitationId", invitation.ID.Hex(), "email", invitation.Email)
			l.record("expired", 1)
		}
		return nil, apperrors.New(apperrors.KindExpired, msgExpired)
	}

	invitation.Status = models.InvitationAccepted
	invitation.AcceptedAt = &now
	if err := l.replace(ctx, invitation, models.InvitationPending); err != nil {
		return nil, err
	}

	zap.S().Infow("invitation accepted",
		"invitationId", invitation.ID.Hex(),
		"email", invitation.Email,
		"role", invitation.Role,
	)
	l.record("accepted", 1)
	return &models.AcceptedInvitation{
		Email:          invitation.Email,
		Role:           invitation.Role,
		Portal:         invitation.Portal,
		InvitationCode: invitation.InvitationCode,
	}, nil
}

// Sweep moves every pending invitation past its expiry to expired. It is idempotent
// and safe to run from several callers at once.
func (l *Lifecycle) Sweep(ctx context.Context) (int64, error) {
	n, err := l.store.ExpirePending(ctx, l.now().UTC())
	if err != nil {
		return 0, storeError(err)
	}
	if n > 0 {
		zap.S().Infow("expired stale invitations", "count", n)
		l.record("expired", int(n))
	}
	return n, nil
}

// List sweeps, then returns invitations matching filters, newest first
func (l *Lifecycle) List(ctx context.Context, filters models.InvitationFilters) ([]models.Invitation, error) {
	if _, err := l.Sweep(ctx); err != nil {
		return nil, err
	}
	invitations, err := l.store.Find(ctx, filters)
	if err != nil {
		return nil, storeError(err)
	}
	return invitations, nil
}

// Stats sweeps, then counts invitations by status
func (l *Lifecycle) Stats(ctx context.Context) (models.InvitationCounts, error) {
	if _, err := l.Sweep(ctx); err != nil {
		return models.InvitationCounts{}, err
	}
	counts, err := l.store.CountByStatus(ctx)
	if err != nil {
		return models.InvitationCounts{}, storeError(err)
	}
	return counts, nil
}

// Get returns one invitation by id
func (l *Lifecycle) Get(ctx context.Context, id string) (*models.Invitation, error) {
	return l.find(ctx, id)
}

func (l *Lifecycle) find(ctx context.Context, id string) (*models.Invitation, error) {
	invitation, err := l.store.FindByID(ctx, strings.TrimSpace(id))
	if err != nil {
		return nil, notFoundOr(err)
	}
	return invitation, nil
}

func (l *Lifecycle) replace(ctx context.Context, invitation *models.Invitation, expected models.InvitationStatus) error {
	err := l.store.Replace(ctx, invitation, expected)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, databases.ErrStaleRecord):
		return apperrors.New(apperrors.KindInvalidState, msgConcurrent)
	case errors.Is(err, databases.ErrDuplicatePending):
		return apperrors.New(apperrors.KindDuplicatePendingInvitation, msgDuplicate)
	default:
		return storeError(err)
	}
}

func (l *Lifecycle) expiryDays(days *int) (int, error) {
	if days == nil {
		return l.defaultDays, nil
	}
	if *days < 0 {
		return 0, apperrors.New(apperrors.KindValidation, "daysUntilExpiry must not be negative")
	}
	return *days, nil
}

func (l *Lifecycle) notify(invitation *models.Invitation, resend bool) {
	if l.notifier == nil {
		return
	}
	l.notifier.Dispatch(notifications.InvitationDetails{
		InvitationID:   invitation.ID.Hex(),
		Email:          invitation.Email,
		Role:           string(invitation.Role),
		Portal:         invitation.Portal,
		InvitationCode: invitation.InvitationCode,
		AcceptURL:      l.acceptLink(invitation.Token),
		ExpiresAt:      invitation.ExpiresAt,
		Resend:         resend,
	})
}

func (l *Lifecycle) acceptLink(token string) string {
	return l.acceptURL + "?token=" + url.QueryEscape(token)
}

func (l *Lifecycle) record(event string, n int) {
	if l.recorder != nil {
		l.recorder.RecordInvitationEvent(event, n)
	}
}

func terminalError(status models.InvitationStatus) error {
	if !status.Terminal() {
		return nil
	}
	if status == models.InvitationRevoked {
		return apperrors.New(apperrors.KindInvalidState, msgRevoked)
	}
	return apperrors.New(apperrors.KindInvalidState, msgAlreadyAccepted)
}

func notFoundOr(err error) error {
	if errors.Is(err, databases.ErrNotFound) {
		return apperrors.New(apperrors.KindNotFound, msgNotFound)
	}
	return storeError(err)
}

// storeError passes categorized errors through and marks anything else internal.
// It never turns a store failure into NotFound.
func storeError(err error) error {
	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		return err
	}
	return apperrors.Wrap(err, apperrors.KindInternal, "invitation store error")
}
