// Package tombstones records deletions made locally that the server has
// not acknowledged yet. The sync engine replays them at the start of each
// reconciliation pass and filters tombstoned ids out of the remote set.
package tombstones

import (
	"context"
	"time"
)

type Tombstone struct {
	ID          string
	RequestedAt time.Time
}

type Repository interface {
	// Add is idempotent; re-adding keeps the original request time.
	Add(ctx context.Context, id string, at time.Time) error
	// List returns tombstones oldest first.
	List(ctx context.Context) ([]Tombstone, error)
	Remove(ctx context.Context, id string) error
}
