package databases_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/linesmerrill/esg-identity-api/apperrors"
	"github.com/linesmerrill/esg-identity-api/databases"
	"github.com/linesmerrill/esg-identity-api/databases/mocks"
	"github.com/linesmerrill/esg-identity-api/models"
)

func invitationMocks() (*mocks.DatabaseHelper, *mocks.CollectionHelper) {
	dbHelper := &mocks.DatabaseHelper{}
	collectionHelper := &mocks.CollectionHelper{}
	dbHelper.On("Collection", "invitations").Return(collectionHelper)
	return dbHelper, collectionHelper
}

func TestInvitationDatabase_FindByToken(t *testing.T) {
	dbHelper, collectionHelper := invitationMocks()

	srHelperErr := &mocks.SingleResultHelper{}
	srHelperErr.On("Decode", mock.Anything).Return(mongo.ErrNoDocuments)

	srHelperCorrect := &mocks.SingleResultHelper{}
	srHelperCorrect.On("Decode", mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		arg := args.Get(0).(*models.Invitation)
		arg.Email = "a@x.com"
		arg.Status = models.InvitationPending
	})

	collectionHelper.On("FindOne", mock.Anything, bson.M{"token": "missing"}).Return(srHelperErr)
	collectionHelper.On("FindOne", mock.Anything, bson.M{"token": "good"}).Return(srHelperCorrect)

	invitationDB := databases.NewInvitationDatabase(dbHelper, time.Second)

	invitation, err := invitationDB.FindByToken(context.Background(), "missing")
	assert.Nil(t, invitation)
	assert.ErrorIs(t, err, databases.ErrNotFound)

	invitation, err = invitationDB.FindByToken(context.Background(), "good")
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", invitation.Email)
}

func TestInvitationDatabase_FindByID_InvalidHex(t *testing.T) {
	dbHelper, _ := invitationMocks()
	invitationDB := databases.NewInvitationDatabase(dbHelper, time.Second)

	_, err := invitationDB.FindByID(context.Background(), "not-hex")
	assert.ErrorIs(t, err, databases.ErrNotFound)
}

func TestInvitationDatabase_InsertOne(t *testing.T) {
	dbHelper, collectionHelper := invitationMocks()
	resultHelper := &mocks.InsertOneResultHelper{}

	collectionHelper.On("InsertOne", mock.Anything, mock.MatchedBy(func(inv *models.Invitation) bool {
		return inv.Email == "ok@x.com"
	})).Return(resultHelper, nil)
	collectionHelper.On("InsertOne", mock.Anything, mock.MatchedBy(func(inv *models.Invitation) bool {
		return inv.Email == "dup@x.com"
	})).Return(nil, mongo.WriteException{WriteErrors: mongo.WriteErrors{{
		Code:    11000,
		Message: "E11000 duplicate key error index: email_pending_unique dup key",
	}}})

	invitationDB := databases.NewInvitationDatabase(dbHelper, time.Second)

	inv := &models.Invitation{Email: "ok@x.com"}
	require.NoError(t, invitationDB.InsertOne(context.Background(), inv))
	assert.False(t, inv.ID.IsZero())

	err := invitationDB.InsertOne(context.Background(), &models.Invitation{Email: "dup@x.com"})
	assert.ErrorIs(t, err, databases.ErrDuplicatePending)
}

func TestInvitationDatabase_Replace(t *testing.T) {
	dbHelper, collectionHelper := invitationMocks()
	id := primitive.NewObjectID()
	inv := &models.Invitation{ID: id, Status: models.InvitationRevoked}

	collectionHelper.On("ReplaceOne", mock.Anything, bson.M{"_id": id, "status": models.InvitationPending}, inv).
		Return(&mongo.UpdateResult{MatchedCount: 1, ModifiedCount: 1}, nil).Once()
	collectionHelper.On("ReplaceOne", mock.Anything, bson.M{"_id": id, "status": models.InvitationPending}, inv).
		Return(&mongo.UpdateResult{}, nil).Once()

	invitationDB := databases.NewInvitationDatabase(dbHelper, time.Second)

	assert.NoError(t, invitationDB.Replace(context.Background(), inv, models.InvitationPending))
	assert.ErrorIs(t, invitationDB.Replace(context.Background(), inv, models.InvitationPending), databases.ErrStaleRecord)
}

func TestInvitationDatabase_ExpirePending(t *testing.T) {
	dbHelper, collectionHelper := invitationMocks()
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	collectionHelper.On("UpdateMany", mock.Anything,
		bson.M{"status": models.InvitationPending, "expiresAt": bson.M{"$lt": now}},
		bson.M{"$set": bson.M{"status": models.InvitationExpired}},
	).Return(&mongo.UpdateResult{MatchedCount: 3, ModifiedCount: 3}, nil).Once()
	collectionHelper.On("UpdateMany", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, context.DeadlineExceeded).Once()

	invitationDB := databases.NewInvitationDatabase(dbHelper, time.Second)

	n, err := invitationDB.ExpirePending(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	_, err = invitationDB.ExpirePending(context.Background(), now)
	assert.True(t, apperrors.Is(err, apperrors.KindStoreUnavailable))
}

func TestInvitationDatabase_CodeExists(t *testing.T) {
	dbHelper, collectionHelper := invitationMocks()

	collectionHelper.On("CountDocuments", mock.Anything, bson.M{"invitationCode": "NGO-TAKEN234"}, mock.Anything).Return(int64(1), nil)
	collectionHelper.On("CountDocuments", mock.Anything, bson.M{"invitationCode": "NGO-FREE2345"}, mock.Anything).Return(int64(0), nil)

	invitationDB := databases.NewInvitationDatabase(dbHelper, time.Second)

	taken, err := invitationDB.CodeExists(context.Background(), "NGO-TAKEN234")
	require.NoError(t, err)
	assert.True(t, taken)

	taken, err = invitationDB.CodeExists(context.Background(), "NGO-FREE2345")
	require.NoError(t, err)
	assert.False(t, taken)
}

func TestInvitationDatabase_Find(t *testing.T) {
	dbHelper, collectionHelper := invitationMocks()
	cursor := &mocks.CursorHelper{}

	cursor.On("All", mock.Anything, mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		arg := args.Get(1).(*[]models.Invitation)
		*arg = []models.Invitation{{Email: "a@x.com"}, {Email: "b@x.com"}}
	})
	collectionHelper.On("Find", mock.Anything, mock.MatchedBy(func(q bson.M) bool {
		_, hasSearch := q["$or"]
		return q["status"] == models.InvitationPending && q["role"] == models.RoleNGO && hasSearch
	}), mock.Anything).Return(cursor, nil)

	invitationDB := databases.NewInvitationDatabase(dbHelper, time.Second)

	list, err := invitationDB.Find(context.Background(), models.InvitationFilters{
		Status: models.InvitationPending,
		Role:   models.RoleNGO,
		Search: "x.com",
	})
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestInvitationDatabase_CountByStatus(t *testing.T) {
	dbHelper, collectionHelper := invitationMocks()
	cursor := &mocks.CursorHelper{}

	cursor.On("All", mock.Anything, mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		// decode the rows the aggregation would return
		raw := []bson.M{
			{"_id": "pending", "count": int64(2)},
			{"_id": "accepted", "count": int64(5)},
			{"_id": "revoked", "count": int64(1)},
		}
		data, err := bson.Marshal(bson.M{"rows": raw})
		require.NoError(t, err)
		holder := bson.Raw(data).Lookup("rows")
		require.NoError(t, holder.Unmarshal(args.Get(1)))
	})
	collectionHelper.On("Aggregate", mock.Anything, mock.Anything).Return(cursor, nil)

	invitationDB := databases.NewInvitationDatabase(dbHelper, time.Second)

	counts, err := invitationDB.CountByStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.InvitationCounts{Total: 8, Pending: 2, Accepted: 5, Revoked: 1}, counts)
}

func TestInvitationDatabase_EnsureIndexes(t *testing.T) {
	dbHelper, collectionHelper := invitationMocks()

	collectionHelper.On("CreateIndexes", mock.Anything, mock.MatchedBy(func(idx []mongo.IndexModel) bool {
		return len(idx) == 4
	})).Return(nil).Once()
	collectionHelper.On("CreateIndexes", mock.Anything, mock.Anything).Return(errors.New("boom")).Once()

	invitationDB := databases.NewInvitationDatabase(dbHelper, time.Second)

	assert.NoError(t, invitationDB.EnsureIndexes(context.Background()))
	assert.True(t, apperrors.Is(invitationDB.EnsureIndexes(context.Background()), apperrors.KindInternal))
}
