package databases

import (
	"context"
	"regexp"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/linesmerrill/esg-identity-api/models"
)

// AccountCollectionNames maps every role to the collection holding its accounts
var AccountCollectionNames = map[models.Role]string{
	models.RoleInvestor:          "individuals",
	models.RoleNGO:               "ngos",
	models.RoleCorporate:         "corporates",
	models.RoleMarketParticipant: "market_participants",
	models.RoleAdmin:             "administrators",
}

// AccountDatabase contains the methods to use with one account variant collection.
// Email is unique within the collection only.
type AccountDatabase interface {
	Name() string
	InsertOne(ctx context.Context, account *models.AccountRecord) error
	FindByID(ctx context.Context, id string) (*models.AccountRecord, error)
	Find(ctx context.Context, filter models.AccountFilter) ([]models.AccountRecord, error)
	UpdateStatus(ctx context.Context, id string, status string, now time.Time) (*models.AccountRecord, error)
	DeleteOne(ctx context.Context, id string) error
	EnsureIndexes(ctx context.Context) error
}

type accountDatabase struct {
	db      DatabaseHelper
	name    string
	timeout time.Duration
}

// NewAccountDatabase initializes an account database bound to one collection
func NewAccountDatabase(db DatabaseHelper, collection string, timeout time.Duration) AccountDatabase {
	return &accountDatabase{
		db:      db,
		name:    collection,
		timeout: timeout,
	}
}

// NewAccountDatabases builds one AccountDatabase per role
func NewAccountDatabases(db DatabaseHelper, timeout time.Duration) map[models.Role]AccountDatabase {
	out := make(map[models.Role]AccountDatabase, len(AccountCollectionNames))
	for role, name := range AccountCollectionNames {
		out[role] = NewAccountDatabase(db, name, timeout)
	}
	return out
}

func (a *accountDatabase) Name() string {
	return a.name
}

func (a *accountDatabase) coll() CollectionHelper {
	return a.db.Collection(a.name)
}

// NormalizeEmail lowercases and trims an email address
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (a *accountDatabase) InsertOne(ctx context.Context, account *models.AccountRecord) error {
	ctx, cancel := withTimeout(ctx, a.timeout)
	defer cancel()

	account.Email = NormalizeEmail(account.Email)
	if account.ID.IsZero() {
		account.ID = primitive.NewObjectID()
	}
	_, err := a.coll().InsertOne(ctx, account)
	return translate(err, a.name+" insert")
}

func (a *accountDatabase) FindByID(ctx context.Context, id string) (*models.AccountRecord, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}
	ctx, cancel := withTimeout(ctx, a.timeout)
	defer cancel()

	account := &models.AccountRecord{}
	if err := a.coll().FindOne(ctx, bson.M{"_id": oid}).Decode(account); err != nil {
		return nil, translate(err, a.name+" lookup")
	}
	return account, nil
}

func (a *accountDatabase) Find(ctx context.Context, filter models.AccountFilter) ([]models.AccountRecord, error) {
	ctx, cancel := withTimeout(ctx, a.timeout)
	defer cancel()

	cur, err := a.coll().Find(ctx, accountQuery(filter), options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
	if err != nil {
		return nil, translate(err, a.name+" list")
	}
	accounts := []models.AccountRecord{}
	if err := cur.All(ctx, &accounts); err != nil {
		return nil, translate(err, a.name+" list")
	}
	return accounts, nil
}

func accountQuery(filter models.AccountFilter) bson.M {
	s := strings.TrimSpace(filter.Search)
	if s == "" {
		return bson.M{}
	}
	pattern := primitive.Regex{Pattern: regexp.QuoteMeta(s), Options: "i"}
	return bson.M{"$or": bson.A{
		bson.M{"email": pattern},
		bson.M{"name": pattern},
		bson.M{"contactPerson": pattern},
		bson.M{"organizationName": pattern},
		bson.M{"companyName": pattern},
	}}
}

func (a *accountDatabase) UpdateStatus(ctx context.Context, id string, status string, now time.Time) (*models.AccountRecord, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}
	ctx, cancel := withTimeout(ctx, a.timeout)
	defer cancel()

	res, err := a.coll().UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": bson.M{"status": status, "updatedAt": now}})
	if err != nil {
		return nil, translate(err, a.name+" status update")
	}
	if res.MatchedCount == 0 {
		return nil, ErrNotFound
	}

	account := &models.AccountRecord{}
	if err := a.coll().FindOne(ctx, bson.M{"_id": oid}).Decode(account); err != nil {
		return nil, translate(err, a.name+" lookup")
	}
	return account, nil
}

func (a *accountDatabase) DeleteOne(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}
	ctx, cancel := withTimeout(ctx, a.timeout)
	defer cancel()

	deleted, err := a.coll().DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return translate(err, a.name+" delete")
	}
	if deleted == 0 {
		return ErrNotFound
	}
	return nil
}

func (a *accountDatabase) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := withTimeout(ctx, a.timeout)
	defer cancel()

	return translate(a.coll().CreateIndexes(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetName(indexEmailUnique).SetUnique(true),
		},
	}), a.name+" index creation")
}
