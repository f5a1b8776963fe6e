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

const invitationCollectionName = "invitations"

// InvitationDatabase contains the methods to use with the invitation database
type InvitationDatabase interface {
	InsertOne(ctx context.Context, invitation *models.Invitation) error
	FindByID(ctx context.Context, id string) (*models.Invitation, error)
	FindByToken(ctx context.Context, token string) (*models.Invitation, error)
	FindPendingByEmail(ctx context.Context, email string) (*models.Invitation, error)
	CodeExists(ctx context.Context, code string) (bool, error)
	// Replace writes invitation back only if its stored status still equals expected
	Replace(ctx context.Context, invitation *models.Invitation, expected models.InvitationStatus) error
	ExpirePending(ctx context.Context, now time.Time) (int64, error)
	Find(ctx context.Context, filters models.InvitationFilters) ([]models.Invitation, error)
	CountByStatus(ctx context.Context) (models.InvitationCounts, error)
	EnsureIndexes(ctx context.Context) error
}

type invitationDatabase struct {
	db      DatabaseHelper
	timeout time.Duration
}

// NewInvitationDatabase initializes a new instance of invitation database with the provided db connection.
// Every call is bounded by timeout.
func NewInvitationDatabase(db DatabaseHelper, timeout time.Duration) InvitationDatabase {
	return &invitationDatabase{
		db:      db,
		timeout: timeout,
	}
}

func (i *invitationDatabase) coll() CollectionHelper {
	return i.db.Collection(invitationCollectionName)
}

func (i *invitationDatabase) InsertOne(ctx context.Context, invitation *models.Invitation) error {
	ctx, cancel := withTimeout(ctx, i.timeout)
	defer cancel()

	if invitation.ID.IsZero() {
		invitation.ID = primitive.NewObjectID()
	}
	_, err := i.coll().InsertOne(ctx, invitation)
	return translate(err, "invitation insert")
}

func (i *invitationDatabase) findOne(ctx context.Context, filter bson.M, op string) (*models.Invitation, error) {
	ctx, cancel := withTimeout(ctx, i.timeout)
	defer cancel()

	invitation := &models.Invitation{}
	err := i.coll().FindOne(ctx, filter).Decode(invitation)
	if err != nil {
		return nil, translate(err, op)
	}
	return invitation, nil
}

func (i *invitationDatabase) FindByID(ctx context.Context, id string) (*models.Invitation, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}
	return i.findOne(ctx, bson.M{"_id": oid}, "invitation lookup")
}

func (i *invitationDatabase) FindByToken(ctx context.Context, token string) (*models.Invitation, error) {
	return i.findOne(ctx, bson.M{"token": token}, "invitation token lookup")
}

func (i *invitationDatabase) FindPendingByEmail(ctx context.Context, email string) (*models.Invitation, error) {
	return i.findOne(ctx, bson.M{"email": email, "status": models.InvitationPending}, "pending invitation lookup")
}

func (i *invitationDatabase) CodeExists(ctx context.Context, code string) (bool, error) {
	ctx, cancel := withTimeout(ctx, i.timeout)
	defer cancel()

	count, err := i.coll().CountDocuments(ctx, bson.M{"invitationCode": code}, options.Count().SetLimit(1))
	if err != nil {
		return false, translate(err, "invitation code check")
	}
	return count > 0, nil
}

func (i *invitationDatabase) Replace(ctx context.Context, invitation *models.Invitation, expected models.InvitationStatus) error {
	ctx, cancel := withTimeout(ctx, i.timeout)
	defer cancel()

	res, err := i.coll().ReplaceOne(ctx, bson.M{"_id": invitation.ID, "status": expected}, invitation)
	if err != nil {
		return translate(err, "invitation update")
	}
	if res.MatchedCount == 0 {
		return ErrStaleRecord
	}
	return nil
}

func (i *invitationDatabase) ExpirePending(ctx context.Context, now time.Time) (int64, error) {
	ctx, cancel := withTimeout(ctx, i.timeout)
	defer cancel()

	res, err := i.coll().UpdateMany(ctx,
		bson.M{"status": models.InvitationPending, "expiresAt": bson.M{"$lt": now}},
		bson.M{"$set": bson.M{"status": models.InvitationExpired}},
	)
	if err != nil {
		return 0, translate(err, "invitation expiry sweep")
	}
	return res.ModifiedCount, nil
}

func (i *invitationDatabase) Find(ctx context.Context, filters models.InvitationFilters) ([]models.Invitation, error) {
	ctx, cancel := withTimeout(ctx, i.timeout)
	defer cancel()

	cur, err := i.coll().Find(ctx, invitationQuery(filters), options.Find().SetSort(bson.D{{Key: "invitedAt", Value: -1}}))
	if err != nil {
		return nil, translate(err, "invitation list")
	}
	invitations := []models.Invitation{}
	if err := cur.All(ctx, &invitations); err != nil {
		return nil, translate(err, "invitation list")
	}
	return invitations, nil
}

func invitationQuery(filters models.InvitationFilters) bson.M {
	query := bson.M{}
	if filters.Status != "" {
		query["status"] = filters.Status
	}
	if filters.Role != "" {
		query["role"] = filters.Role
	}
	if filters.Portal != "" {
		query["portal"] = primitive.Regex{Pattern: "^" + regexp.QuoteMeta(filters.Portal) + "$", Options: "i"}
	}
	if s := strings.TrimSpace(filters.Search); s != "" {
		pattern := primitive.Regex{Pattern: regexp.QuoteMeta(s), Options: "i"}
		query["$or"] = bson.A{
			bson.M{"email": pattern},
			bson.M{"invitationCode": pattern},
		}
	}
	return query
}

func (i *invitationDatabase) CountByStatus(ctx context.Context) (models.InvitationCounts, error) {
	ctx, cancel := withTimeout(ctx, i.timeout)
	defer cancel()

	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$status"},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
	}
	cur, err := i.coll().Aggregate(ctx, pipeline)
	if err != nil {
		return models.InvitationCounts{}, translate(err, "invitation stats")
	}
	var rows []struct {
		Status models.InvitationStatus `bson:"_id"`
		Count  int64                   `bson:"count"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return models.InvitationCounts{}, translate(err, "invitation stats")
	}

	counts := models.InvitationCounts{}
	for _, row := range rows {
		addInvitationCount(&counts, row.Status, row.Count)
	}
	return counts, nil
}

func addInvitationCount(counts *models.InvitationCounts, status models.InvitationStatus, n int64) {
	counts.Total += n
	switch status {
	case models.InvitationPending:
		counts.Pending += n
	case models.InvitationAccepted:
		counts.Accepted += n
	case models.InvitationExpired:
		counts.Expired += n
	case models.InvitationRevoked:
		counts.Revoked += n
	}
}

func (i *invitationDatabase) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := withTimeout(ctx, i.timeout)
	defer cancel()

	return translate(i.coll().CreateIndexes(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "invitationCode", Value: 1}},
			Options: options.Index().SetName(indexCodeUnique).SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "token", Value: 1}},
			Options: options.Index().SetName(indexTokenUnique).SetUnique(true),
		},
		{
			// at most one pending invitation per email
			Keys: bson.D{{Key: "email", Value: 1}},
			Options: options.Index().
				SetName(indexEmailPendingUnique).
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"status": models.InvitationPending}),
		},
		{
			Keys:    bson.D{{Key: "status", Value: 1}, {Key: "expiresAt", Value: 1}},
			Options: options.Index().SetName(indexStatusExpiresAt),
		},
	}), "invitation index creation")
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
