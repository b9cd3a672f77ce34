package tombstones

import (
	"context"
	"sort"
	"sync"
	"time"
)

type MemoryRepository struct {
	mu    sync.Mutex
	items map[string]time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{items: make(map[string]time.Time)}
}

func (r *MemoryRepository) Add(_ context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[id]; !ok {
		r.items[id] = at.UTC()
	}
	return nil
}

func (r *MemoryRepository) List(_ context.Context) ([]Tombstone, error) {
	r.mu.Lock()
	out := make([]Tombstone, 0, len(r.items))
	for id, at := range r.items {
		out = append(out, Tombstone{ID: id, RequestedAt: at})
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].RequestedAt.Equal(out[j].RequestedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].RequestedAt.Before(out[j].RequestedAt)
	})
	return out, nil
}

func (r *MemoryRepository) Remove(_ context.Context, id string) error {
	r.mu.Lock()
	delete(r.items, id)
	r.mu.Unlock()
	return nil
}
