package invitations

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linesmerrill/esg-identity-api/apperrors"
	"github.com/linesmerrill/esg-identity-api/databases"
	"github.com/linesmerrill/esg-identity-api/models"
	"github.com/linesmerrill/esg-identity-api/notifications"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type captureNotifier struct {
	mu   sync.Mutex
	sent []notifications.InvitationDetails
}

func (n *captureNotifier) Dispatch(d notifications.InvitationDetails) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, d)
}

func (n *captureNotifier) all() []notifications.InvitationDetails {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notifications.InvitationDetails(nil), n.sent...)
}

type fixture struct {
	store    *databases.MemoryInvitationDatabase
	clock    *fakeClock
	notifier *captureNotifier
	l        *Lifecycle
}

func newFixture(opts ...Option) *fixture {
	f := &fixture{
		store:    databases.NewMemoryInvitationDatabase(),
		clock:    &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)},
		notifier: &captureNotifier{},
	}
	opts = append([]Option{WithClock(f.clock.Now), WithAcceptURL("https://app.example.com/invitations/accept")}, opts...)
	f.l = New(f.store, f.notifier, opts...)
	return f
}

func days(n int) *int { return &n }

func ngoParams(email string) CreateParams {
	return CreateParams{Email: email, Role: "ngo", Portal: "NGO Portal", InvitedBy: "admin-1"}
}

func TestCreate_PersistsPendingInvitation(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	inv, err := f.l.Create(ctx, CreateParams{
		Email:     "  A@X.com ",
		Role:      "NGO",
		Portal:    "ngo portal",
		InvitedBy: "admin-1",
	})
	require.NoError(t, err)

	assert.Equal(t, "a@x.com", inv.Email)
	assert.Equal(t, models.RoleNGO, inv.Role)
	assert.Equal(t, "NGO Portal", inv.Portal)
	assert.Equal(t, models.InvitationPending, inv.Status)
	assert.True(t, strings.HasPrefix(inv.InvitationCode, "NGO-"))
	assert.NotEmpty(t, inv.Token)
	assert.NotContains(t, inv.Token, inv.InvitationCode)
	assert.Equal(t, f.clock.Now().AddDate(0, 0, 7), inv.ExpiresAt)
	assert.Equal(t, 0, inv.ResendCount)

	stored, err := f.store.FindByID(ctx, inv.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, inv.Token, stored.Token)

	sent := f.notifier.all()
	require.Len(t, sent, 1)
	assert.Equal(t, "a@x.com", sent[0].Email)
	assert.False(t, sent[0].Resend)
	assert.Equal(t, "https://app.example.com/invitations/accept?token="+inv.Token, sent[0].AcceptURL)
}

func TestCreate_ValidatesInput(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	tests := []struct {
		name   string
		params CreateParams
		kind   apperrors.Kind
	}{
		{"empty email", CreateParams{Email: " ", Role: "ngo", Portal: "NGO Portal", InvitedBy: "a"}, apperrors.KindValidation},
		{"unknown role", CreateParams{Email: "a@x.com", Role: "pirate", Portal: "NGO Portal", InvitedBy: "a"}, apperrors.KindInvalidRole},
		{"portal not granted", CreateParams{Email: "a@x.com", Role: "ngo", Portal: "Corporate Portal", InvitedBy: "a"}, apperrors.KindValidation},
		{"missing inviter", CreateParams{Email: "a@x.com", Role: "ngo", Portal: "NGO Portal"}, apperrors.KindValidation},
		{"negative days", CreateParams{Email: "a@x.com", Role: "ngo", Portal: "NGO Portal", InvitedBy: "a", DaysUntilExpiry: days(-1)}, apperrors.KindValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.l.Create(ctx, tt.params)
			assert.Equal(t, tt.kind, apperrors.KindOf(err))
		})
	}
	assert.Empty(t, f.notifier.all())
}

func TestCreate_DuplicatePendingInvitation(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.l.Create(ctx, ngoParams("a@x.com"))
	require.NoError(t, err)

	_, err = f.l.Create(ctx, ngoParams("a@x.com"))
	assert.True(t, apperrors.Is(err, apperrors.KindDuplicatePendingInvitation))
	assert.Len(t, f.notifier.all(), 1)
}

func TestCreate_ExpiresStalePendingInvitationFirst(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	first, err := f.l.Create(ctx, CreateParams{Email: "a@x.com", Role: "ngo", Portal: "NGO Portal", InvitedBy: "admin-1", DaysUntilExpiry: days(1)})
	require.NoError(t, err)

	f.clock.Advance(48 * time.Hour)

	second, err := f.l.Create(ctx, ngoParams("a@x.com"))
	require.NoError(t, err)
	assert.NotEqual(t, first.Token, second.Token)

	old, err := f.store.FindByID(ctx, first.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, models.InvitationExpired, old.Status)
}

func TestCreate_ConcurrentCallsForSameEmail(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	const callers = 8
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.l.Create(ctx, ngoParams("race@x.com"))
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.True(t, apperrors.Is(err, apperrors.KindDuplicatePendingInvitation), "unexpected error %v", err)
	}
	assert.Equal(t, 1, succeeded)

	pending, err := f.store.Find(ctx, models.InvitationFilters{Status: models.InvitationPending})
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestCreate_RetriesCodeCollisions(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.l.Create(ctx, ngoParams("first@x.com"))
	require.NoError(t, err)
	existing, err := f.store.Find(ctx, models.InvitationFilters{})
	require.NoError(t, err)
	taken := existing[0].InvitationCode

	calls := 0
	f.l.codes = func(role models.Role) (string, error) {
		calls++
		if calls < 3 {
			return taken, nil
		}
		return "NGO-FRESH234", nil
	}

	inv, err := f.l.Create(ctx, ngoParams("second@x.com"))
	require.NoError(t, err)
	assert.Equal(t, "NGO-FRESH234", inv.InvitationCode)
	assert.Equal(t, 3, calls)
}

func TestCreate_CodeGenerationExhausted(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	fixed := func(models.Role) (string, error) { return "NGO-SAMECODE", nil }
	f.l.codes = fixed

	_, err := f.l.Create(ctx, ngoParams("first@x.com"))
	require.NoError(t, err)

	_, err = f.l.Create(ctx, ngoParams("second@x.com"))
	assert.True(t, apperrors.Is(err, apperrors.KindCodeGenerationExhausted))
	assert.True(t, apperrors.Retryable(err))
}

func TestCreateThenAccept_RoundTrip(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	inv, err := f.l.Create(ctx, CreateParams{Email: "c@x.com", Role: "corporate", Portal: "Corporate Portal", InvitedBy: "admin-1"})
	require.NoError(t, err)

	got, err := f.l.Accept(ctx, inv.Token)
	require.NoError(t, err)
	assert.Equal(t, &models.AcceptedInvitation{
		Email:          "c@x.com",
		Role:           models.RoleCorporate,
		Portal:         "Corporate Portal",
		InvitationCode: inv.InvitationCode,
	}, got)

	stored, err := f.store.FindByID(ctx, inv.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, models.InvitationAccepted, stored.Status)
	require.NotNil(t, stored.AcceptedAt)

	_, err = f.l.Accept(ctx, inv.Token)
	assert.True(t, apperrors.Is(err, apperrors.KindInvalidState))
	assert.Equal(t, msgAlreadyAccepted, apperrors.MessageOf(err))
}

func TestAccept_UnknownToken(t *testing.T) {
	f := newFixture()

	_, err := f.l.Accept(context.Background(), "nope")
	assert.True(t, apperrors.Is(err, apperrors.KindNotFound))

	_, err = f.l.Accept(context.Background(), "")
	assert.True(t, apperrors.Is(err, apperrors.KindNotFound))
}

func TestAccept_ExpiredAtAcceptance(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	inv, err := f.l.Create(ctx, CreateParams{Email: "b@x.com", Role: "ngo", Portal: "NGO Portal", InvitedBy: "admin-1", DaysUntilExpiry: days(0)})
	require.NoError(t, err)

	f.clock.Advance(time.Second)

	_, err = f.l.Accept(ctx, inv.Token)
	assert.True(t, apperrors.Is(err, apperrors.KindExpired))
	assert.Equal(t, msgExpired, apperrors.MessageOf(err))

	list, err := f.l.List(ctx, models.InvitationFilters{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, models.InvitationExpired, list[0].Status)

	_, err = f.l.Accept(ctx, inv.Token)
	assert.True(t, apperrors.Is(err, apperrors.KindInvalidState))
	assert.Equal(t, msgExpired, apperrors.MessageOf(err))
}

func TestRevokeThenAccept(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	inv, err := f.l.Create(ctx, ngoParams("r@x.com"))
	require.NoError(t, err)

	revoked, err := f.l.Revoke(ctx, inv.ID.Hex(), "admin-2")
	require.NoError(t, err)
	assert.Equal(t, models.InvitationRevoked, revoked.Status)
	assert.Equal(t, "admin-2", revoked.RevokedBy)
	require.NotNil(t, revoked.RevokedAt)

	_, err = f.l.Accept(ctx, inv.Token)
	assert.True(t, apperrors.Is(err, apperrors.KindInvalidState))
	assert.Equal(t, msgRevoked, apperrors.MessageOf(err))
}

func TestRevoke_RequiresRevoker(t *testing.T) {
	f := newFixture()
	inv, err := f.l.Create(context.Background(), ngoParams("r@x.com"))
	require.NoError(t, err)

	_, err = f.l.Revoke(context.Background(), inv.ID.Hex(), " ")
	assert.True(t, apperrors.Is(err, apperrors.KindValidation))
}

func TestTerminalStatesRejectEveryTransition(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	accepted, err := f.l.Create(ctx, ngoParams("acc@x.com"))
	require.NoError(t, err)
	_, err = f.l.Accept(ctx, accepted.Token)
	require.NoError(t, err)

	revoked, err := f.l.Create(ctx, ngoParams("rev@x.com"))
	require.NoError(t, err)
	_, err = f.l.Revoke(ctx, revoked.ID.Hex(), "admin-1")
	require.NoError(t, err)

	for _, inv := range []*models.Invitation{accepted, revoked} {
		_, err = f.l.Resend(ctx, inv.ID.Hex(), nil)
		assert.True(t, apperrors.Is(err, apperrors.KindInvalidState))
		_, err = f.l.Revoke(ctx, inv.ID.Hex(), "admin-1")
		assert.True(t, apperrors.Is(err, apperrors.KindInvalidState))
		_, err = f.l.Accept(ctx, inv.Token)
		assert.True(t, apperrors.Is(err, apperrors.KindInvalidState))
	}

	_, err = f.l.Accept(ctx, accepted.Token)
	assert.Equal(t, "invitation has already been accepted", apperrors.MessageOf(err))
	_, err = f.l.Accept(ctx, revoked.Token)
	assert.Equal(t, "invitation has been revoked", apperrors.MessageOf(err))
}

func TestResend_RevivesExpiredInvitation(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	inv, err := f.l.Create(ctx, CreateParams{Email: "e@x.com", Role: "investor", Portal: "Investor Portal", InvitedBy: "admin-1", DaysUntilExpiry: days(1)})
	require.NoError(t, err)

	f.clock.Advance(72 * time.Hour)
	_, err = f.l.Sweep(ctx)
	require.NoError(t, err)

	before, err := f.l.Get(ctx, inv.ID.Hex())
	require.NoError(t, err)
	require.Equal(t, models.InvitationExpired, before.Status)

	after, err := f.l.Resend(ctx, inv.ID.Hex(), nil)
	require.NoError(t, err)
	assert.Equal(t, models.InvitationPending, after.Status)
	assert.Equal(t, before.ResendCount+1, after.ResendCount)
	assert.True(t, after.ExpiresAt.After(before.ExpiresAt))
	require.NotNil(t, after.LastResentAt)
	assert.Equal(t, f.clock.Now(), *after.LastResentAt)
	assert.Equal(t, inv.Token, after.Token)

	sent := f.notifier.all()
	require.Len(t, sent, 2)
	assert.True(t, sent[1].Resend)

	_, err = f.l.Accept(ctx, inv.Token)
	assert.NoError(t, err)
}

func TestResend_ExpiredInvitationWhenAnotherIsPending(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	old, err := f.l.Create(ctx, CreateParams{Email: "e@x.com", Role: "ngo", Portal: "NGO Portal", InvitedBy: "admin-1", DaysUntilExpiry: days(1)})
	require.NoError(t, err)
	f.clock.Advance(48 * time.Hour)
	_, err = f.l.Create(ctx, ngoParams("e@x.com"))
	require.NoError(t, err)

	_, err = f.l.Resend(ctx, old.ID.Hex(), nil)
	assert.True(t, apperrors.Is(err, apperrors.KindDuplicatePendingInvitation))
}

func TestResend_PendingExtendsExpiry(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	inv, err := f.l.Create(ctx, ngoParams("p@x.com"))
	require.NoError(t, err)
	f.clock.Advance(time.Hour)

	after, err := f.l.Resend(ctx, inv.ID.Hex(), days(14))
	require.NoError(t, err)
	assert.Equal(t, models.InvitationPending, after.Status)
	assert.Equal(t, f.clock.Now().AddDate(0, 0, 14), after.ExpiresAt)
	assert.Equal(t, 1, after.ResendCount)
}

func TestResend_UnknownID(t *testing.T) {
	f := newFixture()
	_, err := f.l.Resend(context.Background(), "not-an-id", nil)
	assert.True(t, apperrors.Is(err, apperrors.KindNotFound))
}

func TestSweep_Idempotent(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	for _, email := range []string{"1@x.com", "2@x.com"} {
		_, err := f.l.Create(ctx, CreateParams{Email: email, Role: "ngo", Portal: "NGO Portal", InvitedBy: "a", DaysUntilExpiry: days(1)})
		require.NoError(t, err)
	}
	_, err := f.l.Create(ctx, CreateParams{Email: "3@x.com", Role: "ngo", Portal: "NGO Portal", InvitedBy: "a", DaysUntilExpiry: days(30)})
	require.NoError(t, err)

	f.clock.Advance(48 * time.Hour)

	n, err := f.l.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	once, err := f.store.Find(ctx, models.InvitationFilters{Status: models.InvitationExpired})
	require.NoError(t, err)

	n, err = f.l.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
	twice, err := f.store.Find(ctx, models.InvitationFilters{Status: models.InvitationExpired})
	require.NoError(t, err)

	assert.ElementsMatch(t, once, twice)
}

func TestStats_SweepsFirst(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.l.Create(ctx, CreateParams{Email: "1@x.com", Role: "ngo", Portal: "NGO Portal", InvitedBy: "a", DaysUntilExpiry: days(1)})
	require.NoError(t, err)
	inv, err := f.l.Create(ctx, ngoParams("2@x.com"))
	require.NoError(t, err)
	_, err = f.l.Accept(ctx, inv.Token)
	require.NoError(t, err)
	inv, err = f.l.Create(ctx, ngoParams("3@x.com"))
	require.NoError(t, err)
	_, err = f.l.Revoke(ctx, inv.ID.Hex(), "a")
	require.NoError(t, err)
	_, err = f.l.Create(ctx, ngoParams("4@x.com"))
	require.NoError(t, err)

	f.clock.Advance(48 * time.Hour)

	counts, err := f.l.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.InvitationCounts{Total: 4, Pending: 1, Accepted: 1, Expired: 1, Revoked: 1}, counts)
}

func TestList_Filters(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.l.Create(ctx, ngoParams("ngo@x.com"))
	require.NoError(t, err)
	f.clock.Advance(time.Minute)
	corp, err := f.l.Create(ctx, CreateParams{Email: "corp@y.com", Role: "corporate", Portal: "Corporate Portal", InvitedBy: "a"})
	require.NoError(t, err)

	all, err := f.l.List(ctx, models.InvitationFilters{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "corp@y.com", all[0].Email)

	byRole, err := f.l.List(ctx, models.InvitationFilters{Role: models.RoleNGO})
	require.NoError(t, err)
	require.Len(t, byRole, 1)
	assert.Equal(t, "ngo@x.com", byRole[0].Email)

	byCode, err := f.l.List(ctx, models.InvitationFilters{Search: strings.ToLower(corp.InvitationCode)})
	require.NoError(t, err)
	require.Len(t, byCode, 1)

	byPortal, err := f.l.List(ctx, models.InvitationFilters{Portal: "corporate portal"})
	require.NoError(t, err)
	require.Len(t, byPortal, 1)
}

type unavailableStore struct {
	*databases.MemoryInvitationDatabase
}

func (unavailableStore) FindByToken(context.Context, string) (*models.Invitation, error) {
	return nil, apperrors.StoreUnavailable(context.DeadlineExceeded, "invitation token lookup")
}

func (unavailableStore) ExpirePending(context.Context, time.Time) (int64, error) {
	return 0, apperrors.StoreUnavailable(context.DeadlineExceeded, "invitation expiry sweep")
}

func TestStoreUnavailableIsNeverNotFound(t *testing.T) {
	l := New(unavailableStore{databases.NewMemoryInvitationDatabase()}, nil)

	_, err := l.Accept(context.Background(), "token")
	assert.True(t, apperrors.Is(err, apperrors.KindStoreUnavailable))
	assert.False(t, apperrors.Is(err, apperrors.KindNotFound))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))

	_, err = l.List(context.Background(), models.InvitationFilters{})
	assert.True(t, apperrors.Is(err, apperrors.KindStoreUnavailable))
}

type recorderFunc func(event string, n int)

func (f recorderFunc) RecordInvitationEvent(event string, n int) { f(event, n) }

func TestRecorderSeesEvents(t *testing.T) {
	events := map[string]int{}
	f := newFixture(WithRecorder(recorderFunc(func(event string, n int) { events[event] += n })))
	ctx := context.Background()

	inv, err := f.l.Create(ctx, ngoParams("m@x.com"))
	require.NoError(t, err)
	_, err = f.l.Resend(ctx, inv.ID.Hex(), nil)
	require.NoError(t, err)
	_, err = f.l.Accept(ctx, inv.Token)
	require.NoError(t, err)

	assert.Equal(t, map[string]int{"created": 1, "resent": 1, "accepted": 1}, events)
}

func TestCreate_SucceedsWhileDeliveryBlocksAndFails(t *testing.T) {
	release := make(chan struct{})
	sender := notifications.SenderFunc(func(ctx context.Context, _ notifications.InvitationDetails) notifications.Outcome {
		select {
		case <-release:
		case <-ctx.Done():
		}
		return notifications.Outcome{Delivered: false, Reason: "provider rejected message", StatusCode: 502}
	})

	var mu sync.Mutex
	var outcomes []notifications.Outcome
	dispatcher := notifications.NewDispatcher(sender, time.Minute, func(_ notifications.InvitationDetails, o notifications.Outcome) {
		mu.Lock()
		defer mu.Unlock()
		outcomes = append(outcomes, o)
	})

	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	l := New(databases.NewMemoryInvitationDatabase(), dispatcher, WithClock(clock.Now))
	ctx := context.Background()

	inv, err := l.Create(ctx, ngoParams("blocked@x.com"))
	require.NoError(t, err)
	assert.Equal(t, models.InvitationPending, inv.Status)

	close(release)
	dispatcher.Wait()

	mu.Lock()
	require.Len(t, outcomes, 1)
	assert.False(t, outcomes[0].Delivered)
	mu.Unlock()

	stored, err := l.Get(ctx, inv.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, models.InvitationPending, stored.Status)

	accepted, err := l.Accept(ctx, inv.Token)
	require.NoError(t, err)
	assert.Equal(t, "blocked@x.com", accepted.Email)
}
