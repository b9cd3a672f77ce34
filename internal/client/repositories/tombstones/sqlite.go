package tombstones

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/marinelog/internal/dbx"
)

const timeLayout = "2006-01-02T15:04:05.000Z07:00"

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Add(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO pending_deletes (id, requested_at) VALUES (?, ?) ON CONFLICT(id) DO NOTHING`,
		id, at.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("failed to add tombstone %s: %w", id, err)
	}
	return nil
}

func (r *SQLiteRepository) List(ctx context.Context) ([]Tombstone, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, requested_at FROM pending_deletes ORDER BY requested_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tombstones: %w", err)
	}
	defer rows.Close()

	var out []Tombstone
	for rows.Next() {
		var id, at string
		if err := rows.Scan(&id, &at); err != nil {
			return nil, fmt.Errorf("failed to scan tombstone: %w", err)
		}
		ts, err := time.Parse(time.RFC3339Nano, at)
		if err != nil {
			// keep the tombstone; losing it would resurrect the record
			ts = time.Time{}
		}
		out = append(out, Tombstone{ID: id, RequestedAt: ts})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tombstones: %w", err)
	}
	return out, nil
}

func (r *SQLiteRepository) Remove(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM pending_deletes WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to remove tombstone %s: %w", id, err)
	}
	return nil
}
