package databases

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/linesmerrill/esg-identity-api/apperrors"
)

func duplicateKeyError(index string) error {
	return mongo.WriteException{WriteErrors: mongo.WriteErrors{{
		Code:    11000,
		Message: fmt.Sprintf("E11000 duplicate key error collection: esg_identity.invitations index: %s dup key", index),
	}}}
}

func TestTranslate(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		sentinel error
		kind     apperrors.Kind
	}{
		{name: "no documents", err: mongo.ErrNoDocuments, sentinel: ErrNotFound},
		{name: "pending email", err: duplicateKeyError(indexEmailPendingUnique), sentinel: ErrDuplicatePending},
		{name: "code", err: duplicateKeyError(indexCodeUnique), sentinel: ErrDuplicateCode},
		{name: "token", err: duplicateKeyError(indexTokenUnique), sentinel: ErrDuplicateToken},
		{name: "account email", err: duplicateKeyError(indexEmailUnique), sentinel: ErrDuplicateEmail},
		{name: "deadline", err: context.DeadlineExceeded, kind: apperrors.KindStoreUnavailable},
		{name: "canceled", err: fmt.Errorf("find: %w", context.Canceled), kind: apperrors.KindStoreUnavailable},
		{name: "server selection", err: errors.New("server selection error: context deadline"), kind: apperrors.KindStoreUnavailable},
		{name: "command error", err: mongo.CommandError{Code: 2, Message: "bad value"}, kind: apperrors.KindInternal},
		{name: "other", err: errors.New("boom"), kind: apperrors.KindInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := translate(tt.err, "test op")
			if tt.sentinel != nil {
				assert.ErrorIs(t, got, tt.sentinel)
				return
			}
			assert.Equal(t, tt.kind, apperrors.KindOf(got))
			assert.ErrorIs(t, got, tt.err)
		})
	}

	assert.NoError(t, translate(nil, "test op"))
}

func TestCtxErr(t *testing.T) {
	assert.NoError(t, ctxErr(context.Background(), "op"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := ctxErr(ctx, "op")
	assert.True(t, apperrors.Is(err, apperrors.KindStoreUnavailable))
}
