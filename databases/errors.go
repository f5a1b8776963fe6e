package databases

import (
	"context"
	"errors"
	"strings"

	"go.mongodb.org/mongo-driver/mongo"

	"github.com/linesmerrill/esg-identity-api/apperrors"
)

// Sentinel errors for store facts. Callers translate them into domain errors.
var (
	ErrNotFound         = errors.New("record not found")
	ErrDuplicateEmail   = errors.New("duplicate email")
	ErrDuplicatePending = errors.New("duplicate pending invitation for email")
	ErrDuplicateCode    = errors.New("duplicate invitation code")
	ErrDuplicateToken   = errors.New("duplicate invitation token")
	ErrStaleRecord      = errors.New("record changed since it was read")
)

// Index names referenced when classifying duplicate key errors
const (
	indexEmailUnique        = "email_unique"
	indexEmailPendingUnique = "email_pending_unique"
	indexCodeUnique         = "invitationCode_unique"
	indexTokenUnique        = "token_unique"
	indexStatusExpiresAt    = "status_expiresAt"
)

// translate classifies a raw driver error. Timeouts and connectivity failures become
// StoreUnavailable; a missing document becomes ErrNotFound; duplicate keys map to the
// sentinel of the index that rejected the write.
func translate(err error, op string) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return ErrNotFound
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled),
		mongo.IsTimeout(err), mongo.IsNetworkError(err):
		return apperrors.StoreUnavailable(err, op)
	case mongo.IsDuplicateKeyError(err):
		return duplicateKind(err)
	}
	var sse mongo.ServerError
	if errors.As(err, &sse) {
		return apperrors.Wrap(err, apperrors.KindInternal, "store rejected "+op)
	}
	if strings.Contains(err.Error(), "server selection") {
		return apperrors.StoreUnavailable(err, op)
	}
	return apperrors.Wrap(err, apperrors.KindInternal, "store failure during "+op)
}

func duplicateKind(err error) error {
	msg := err.Error()
	switch {
	case strings.Contains(msg, indexEmailPendingUnique):
		return ErrDuplicatePending
	case strings.Contains(msg, indexCodeUnique):
		return ErrDuplicateCode
	case strings.Contains(msg, indexTokenUnique):
		return ErrDuplicateToken
	default:
		return ErrDuplicateEmail
	}
}

// ctxErr reports a cancelled or expired context the same way translate does
func ctxErr(ctx context.Context, op string) error {
	if err := ctx.Err(); err != nil {
		return apperrors.StoreUnavailable(err, op)
	}
	return nil
}
