package databases

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/linesmerrill/esg-identity-api/models"
)

// In-memory stores back local runs without DB_URI and the package tests. They enforce
// the same unique constraints as the Mongo indexes.

// MemoryInvitationDatabase is an InvitationDatabase held in process memory
type MemoryInvitationDatabase struct {
	mu          sync.RWMutex
	invitations map[primitive.ObjectID]models.Invitation
}

// NewMemoryInvitationDatabase constructs an empty in-memory invitation store
func NewMemoryInvitationDatabase() *MemoryInvitationDatabase {
	return &MemoryInvitationDatabase{invitations: make(map[primitive.ObjectID]models.Invitation)}
}

// conflict checks the unique constraints for inv against every other stored record
func (m *MemoryInvitationDatabase) conflict(inv *models.Invitation) error {
	for id, other := range m.invitations {
		if id == inv.ID {
			continue
		}
		switch {
		case other.InvitationCode == inv.InvitationCode:
			return ErrDuplicateCode
		case other.Token == inv.Token:
			return ErrDuplicateToken
		case inv.Status == models.InvitationPending && other.Status == models.InvitationPending && other.Email == inv.Email:
			return ErrDuplicatePending
		}
	}
	return nil
}

func (m *MemoryInvitationDatabase) InsertOne(ctx context.Context, invitation *models.Invitation) error {
	if err := ctxErr(ctx, "invitation insert"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if invitation.ID.IsZero() {
		invitation.ID = primitive.NewObjectID()
	}
	if err := m.conflict(invitation); err != nil {
		return err
	}
	m.invitations[invitation.ID] = *invitation
	return nil
}

func (m *MemoryInvitationDatabase) first(ctx context.Context, op string, match func(models.Invitation) bool) (*models.Invitation, error) {
	if err := ctxErr(ctx, op); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, inv := range m.invitations {
		if match(inv) {
			out := inv
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryInvitationDatabase) FindByID(ctx context.Context, id string) (*models.Invitation, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}
	return m.first(ctx, "invitation lookup", func(inv models.Invitation) bool { return inv.ID == oid })
}

func (m *MemoryInvitationDatabase) FindByToken(ctx context.Context, token string) (*models.Invitation, error) {
	return m.first(ctx, "invitation token lookup", func(inv models.Invitation) bool { return inv.Token == token })
}

func (m *MemoryInvitationDatabase) FindPendingByEmail(ctx context.Context, email string) (*models.Invitation, error) {
	return m.first(ctx, "pending invitation lookup", func(inv models.Invitation) bool {
		return inv.Email == email && inv.Status == models.InvitationPending
	})
}

func (m *MemoryInvitationDatabase) CodeExists(ctx context.Context, code string) (bool, error) {
	_, err := m.first(ctx, "invitation code check", func(inv models.Invitation) bool { return inv.InvitationCode == code })
	if err == ErrNotFound {
		return false, nil
	}
	return err == nil, err
}

func (m *MemoryInvitationDatabase) Replace(ctx context.Context, invitation *models.Invitation, expected models.InvitationStatus) error {
	if err := ctxErr(ctx, "invitation update"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.invitations[invitation.ID]
	if !ok || current.Status != expected {
		return ErrStaleRecord
	}
	if err := m.conflict(invitation); err != nil {
		return err
	}
	m.invitations[invitation.ID] = *invitation
	return nil
}

func (m *MemoryInvitationDatabase) ExpirePending(ctx context.Context, now time.Time) (int64, error) {
	if err := ctxErr(ctx, "invitation expiry sweep"); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for id, inv := range m.invitations {
		if inv.Status == models.InvitationPending && inv.ExpiresAt.Before(now) {
			inv.Status = models.InvitationExpired
			m.invitations[id] = inv
			n++
		}
	}
	return n, nil
}

func (m *MemoryInvitationDatabase) Find(ctx context.Context, filters models.InvitationFilters) ([]models.Invitation, error) {
	if err := ctxErr(ctx, "invitation list"); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	search := strings.ToLower(strings.TrimSpace(filters.Search))
	out := []models.Invitation{}
	for _, inv := range m.invitations {
		if filters.Status != "" && inv.Status != filters.Status {
			continue
		}
		if filters.Role != "" && inv.Role != filters.Role {
			continue
		}
		if filters.Portal != "" && !strings.EqualFold(inv.Portal, filters.Portal) {
			continue
		}
		if search != "" && !strings.Contains(inv.Email, search) && !strings.Contains(strings.ToLower(inv.InvitationCode), search) {
			continue
		}
		out = append(out, inv)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].InvitedAt.After(out[j].InvitedAt) })
	return out, nil
}

func (m *MemoryInvitationDatabase) CountByStatus(ctx context.Context) (models.InvitationCounts, error) {
	if err := ctxErr(ctx, "invitation stats"); err != nil {
		return models.InvitationCounts{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	counts := models.InvitationCounts{}
	for _, inv := range m.invitations {
		addInvitationCount(&counts, inv.Status, 1)
	}
	return counts, nil
}

func (m *MemoryInvitationDatabase) EnsureIndexes(context.Context) error {
	return nil
}

// MemoryAccountDatabase is an AccountDatabase for one variant collection held in memory
type MemoryAccountDatabase struct {
	mu       sync.RWMutex
	name     string
	accounts map[primitive.ObjectID]models.AccountRecord
}

// NewMemoryAccountDatabase constructs an empty in-memory account collection
func NewMemoryAccountDatabase(name string) *MemoryAccountDatabase {
	return &MemoryAccountDatabase{name: name, accounts: make(map[primitive.ObjectID]models.AccountRecord)}
}

// NewMemoryAccountDatabases builds one in-memory AccountDatabase per role
func NewMemoryAccountDatabases() map[models.Role]AccountDatabase {
	out := make(map[models.Role]AccountDatabase, len(AccountCollectionNames))
	for role, name := range AccountCollectionNames {
		out[role] = NewMemoryAccountDatabase(name)
	}
	return out
}

func (m *MemoryAccountDatabase) Name() string {
	return m.name
}

func (m *MemoryAccountDatabase) InsertOne(ctx context.Context, account *models.AccountRecord) error {
	if err := ctxErr(ctx, m.name+" insert"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	account.Email = NormalizeEmail(account.Email)
	for _, other := range m.accounts {
		if other.Email == account.Email {
			return ErrDuplicateEmail
		}
	}
	if account.ID.IsZero() {
		account.ID = primitive.NewObjectID()
	}
	m.accounts[account.ID] = account.Clone()
	return nil
}

func (m *MemoryAccountDatabase) FindByID(ctx context.Context, id string) (*models.AccountRecord, error) {
	if err := ctxErr(ctx, m.name+" lookup"); err != nil {
		return nil, err
	}
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	account, ok := m.accounts[oid]
	if !ok {
		return nil, ErrNotFound
	}
	out := account.Clone()
	return &out, nil
}

func (m *MemoryAccountDatabase) Find(ctx context.Context, filter models.AccountFilter) ([]models.AccountRecord, error) {
	if err := ctxErr(ctx, m.name+" list"); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	search := strings.ToLower(strings.TrimSpace(filter.Search))
	out := []models.AccountRecord{}
	for _, account := range m.accounts {
		if search != "" && !accountMatches(account, search) {
			continue
		}
		out = append(out, account.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func accountMatches(account models.AccountRecord, search string) bool {
	for _, field := range []string{account.Email, account.Name, account.ContactPerson, account.OrganizationName, account.CompanyName} {
		if strings.Contains(strings.ToLower(field), search) {
			return true
		}
	}
	return false
}

func (m *MemoryAccountDatabase) UpdateStatus(ctx context.Context, id string, status string, now time.Time) (*models.AccountRecord, error) {
	if err := ctxErr(ctx, m.name+" status update"); err != nil {
		return nil, err
	}
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	account, ok := m.accounts[oid]
	if !ok {
		return nil, ErrNotFound
	}
	account.Status = status
	account.UpdatedAt = now
	m.accounts[oid] = account
	out := account.Clone()
	return &out, nil
}

func (m *MemoryAccountDatabase) DeleteOne(ctx context.Context, id string) error {
	if err := ctxErr(ctx, m.name+" delete"); err != nil {
		return err
	}
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.accounts[oid]; !ok {
		return ErrNotFound
	}
	delete(m.accounts, oid)
	return nil
}

func (m *MemoryAccountDatabase) EnsureIndexes(context.Context) error {
	return nil
}
