package identities

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/linesmerrill/esg-identity-api/apperrors"
	"github.com/linesmerrill/esg-identity-api/databases"
	"github.com/linesmerrill/esg-identity-api/models"
)

// ChangeRole moves an identity to the collection of newRole.
//
// The move is copy-then-delete with no cross-collection transaction. If the copy fails
// the source record is untouched. If the copy succeeds and the delete fails the account
// exists in both collections and a PARTIAL_MIGRATION error names both records.
func (d *Directory) ChangeRole(ctx context.Context, id, newRole string) (*models.Identity, error) {
	role, ok := models.ParseRole(newRole)
	if !ok {
		return nil, apperrors.Newf(apperrors.KindInvalidRole, "unknown role %q", newRole)
	}
	dest, ok := d.stores[role]
	if !ok {
		return nil, apperrors.Newf(apperrors.KindInvalidRole, "no collection for role %q", role)
	}

	rec, current, err := d.locate(ctx, id)
	if err != nil {
		return nil, err
	}
	if current == role {
		identity := Normalize(*rec, role, d.now())
		return &identity, nil
	}
	source := d.stores[current]

	now := d.now().UTC()
	moved := rec.Clone()
	moved.ID = primitive.NilObjectID
	moved.Role = role
	moved.CreatedAt = now
	moved.UpdatedAt = now

	if err := dest.InsertOne(ctx, &moved); err != nil {
		d.record("failed")
		if errors.Is(err, databases.ErrDuplicateEmail) {
			return nil, apperrors.Newf(apperrors.KindDuplicateAccount,
				"%s already holds an account for %s", dest.Name(), rec.Email)
		}
		return nil, storeError(err)
	}
	zap.S().Infow("role migration copied record",
		"identityId", id,
		"from", source.Name(),
		"to", dest.Name(),
		"newId", moved.ID.Hex(),
	)

	if err := source.DeleteOne(ctx, id); err != nil {
		d.record("partial")
		zap.S().Errorw("role migration left record in both collections",
			"identityId", id,
			"newId", moved.ID.Hex(),
			"from", source.Name(),
			"to", dest.Name(),
			"error", err,
		)
		return nil, apperrors.Wrap(err, apperrors.KindPartialMigration,
			fmt.Sprintf("identity copied to %s as %s but %s record %s was not removed",
				dest.Name(), moved.ID.Hex(), source.Name(), id))
	}

	zap.S().Infow("role migration completed",
		"identityId", id,
		"newId", moved.ID.Hex(),
		"from", current,
		"to", role,
	)
	d.record("completed")
	identity := Normalize(moved, role, now)
	return &identity, nil
}
