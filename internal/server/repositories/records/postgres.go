// Package records is the PostgreSQL store behind the service_records
// resource.
package records

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/marinelog/internal/common"
	"github.com/dmitrijs2005/marinelog/internal/dbx"
	"github.com/dmitrijs2005/marinelog/internal/server/models"
)

const selectColumns = `id, user_id, client_name, vessel_name, start_date_time, details, photo_url, photo_urls, created_at, updated_at`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) List(ctx context.Context, userID string) ([]*models.Record, error) {
	query := `SELECT ` + selectColumns + `
		FROM service_records
		WHERE user_id = $1
		ORDER BY updated_at DESC, id`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	result := make([]*models.Record, 0)
	for rows.Next() {
		rec, err := scan(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*models.Record, error) {
	query := `SELECT ` + selectColumns + `
		FROM service_records
		WHERE id = $1`

	rec, err := scan(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, err
	}
	return rec, nil
}

// Upsert writes rec when no row with its id exists, or when the stored row
// belongs to the same user and is not newer. Otherwise the stored row is
// returned unchanged, or common.ErrorForbidden when another user owns it.
func (r *PostgresRepository) Upsert(ctx context.Context, rec *models.Record) (*models.Record, error) {
	urls := rec.PhotoURLs
	if urls == nil {
		urls = []string{}
	}
	photos, err := json.Marshal(urls)
	if err != nil {
		return nil, fmt.Errorf("failed to encode photo urls: %w", err)
	}

	query := `
		INSERT INTO service_records (id, user_id, client_name, vessel_name, start_date_time, details, photo_url, photo_urls, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			client_name = EXCLUDED.client_name,
			vessel_name = EXCLUDED.vessel_name,
			start_date_time = EXCLUDED.start_date_time,
			details = EXCLUDED.details,
			photo_url = EXCLUDED.photo_url,
			photo_urls = EXCLUDED.photo_urls,
			updated_at = EXCLUDED.updated_at
		WHERE service_records.user_id = EXCLUDED.user_id
			AND service_records.updated_at <= EXCLUDED.updated_at
		RETURNING ` + selectColumns

	stored, err := scan(r.db.QueryRowContext(ctx, query,
		rec.ID, rec.UserID, rec.ClientName, rec.VesselName, rec.StartDateTime.UTC(), rec.Details,
		nullString(rec.PhotoURL), string(photos), rec.CreatedAt.UTC(), rec.UpdatedAt.UTC()))
	if err == nil {
		return stored, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	// the conflict guard rejected the write
	current, err := r.Get(ctx, rec.ID)
	if err != nil {
		return nil, err
	}
	if current.UserID != rec.UserID {
		return nil, common.ErrorForbidden
	}
	return current, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, userID, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM service_records WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return n > 0, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scan(s scanner) (*models.Record, error) {
	rec := &models.Record{}
	var photoURL sql.NullString
	var photos []byte

	err := s.Scan(&rec.ID, &rec.UserID, &rec.ClientName, &rec.VesselName, &rec.StartDateTime,
		&rec.Details, &photoURL, &photos, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	rec.PhotoURL = photoURL.String
	rec.PhotoURLs = []string{}
	if len(photos) > 0 {
		if err := json.Unmarshal(photos, &rec.PhotoURLs); err != nil {
			return nil, fmt.Errorf("record %s: malformed photo_urls: %w", rec.ID, err)
		}
	}
	return rec, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
