package records

import (
	"context"
	"sync"

	"github.com/dmitrijs2005/marinelog/internal/client/models"
	"github.com/dmitrijs2005/marinelog/internal/logging"
)

// MemoryRepository keeps the record set in process memory with the same
// validation and read normalization as the SQLite store.
type MemoryRepository struct {
	mu      sync.RWMutex
	records []models.ServiceRecord
	logger  logging.Logger
}

func NewMemoryRepository(logger logging.Logger) *MemoryRepository {
	if logger == nil {
		logger = logging.Nop{}
	}
	return &MemoryRepository{logger: logger}
}

func (r *MemoryRepository) PutAll(ctx context.Context, records []models.ServiceRecord) error {
	next := accept(ctx, r.logger, records)

	r.mu.Lock()
	r.records = next
	r.mu.Unlock()
	return nil
}

func (r *MemoryRepository) GetAll(ctx context.Context) ([]models.ServiceRecord, error) {
	r.mu.RLock()
	out := make([]models.ServiceRecord, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, models.Normalize(rec))
	}
	r.mu.RUnlock()

	models.SortByUpdatedDesc(out)
	return out, nil
}

func (r *MemoryRepository) Clear(ctx context.Context) error {
	r.mu.Lock()
	r.records = nil
	r.mu.Unlock()
	return nil
}
