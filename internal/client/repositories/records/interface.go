package records

import (
	"context"

	"github.com/dmitrijs2005/marinelog/internal/client/models"
)

type Repository interface {
	// PutAll atomically replaces the stored set with records.
	PutAll(ctx context.Context, records []models.ServiceRecord) error

	// GetAll returns every stored record, newest first.
	GetAll(ctx context.Context) ([]models.ServiceRecord, error)

	// Clear removes every record.
	Clear(ctx context.Context) error
}
