package records

import (
	"context"

	"github.com/dmitrijs2005/marinelog/internal/server/models"
)

type Repository interface {
	// List returns every record owned by userID, newest update first.
	List(ctx context.Context, userID string) ([]*models.Record, error)

	// Get returns common.ErrorNotFound when id is unknown.
	Get(ctx context.Context, id string) (*models.Record, error)

	// Upsert stores rec unless the stored copy is newer or owned by someone
	// else, and returns what is stored afterwards.
	Upsert(ctx context.Context, rec *models.Record) (*models.Record, error)

	// Delete removes id if userID owns it and reports whether a row went away.
	Delete(ctx context.Context, userID, id string) (bool, error)
}
