package records

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dmitrijs2005/marinelog/internal/client/models"
	"github.com/dmitrijs2005/marinelog/internal/dbx"
	"github.com/dmitrijs2005/marinelog/internal/logging"
)

// DefaultChunkSize keeps a multi-row INSERT well under SQLite's bound
// parameter limit.
const DefaultChunkSize = 50

const columns = 9

// timeLayout is fixed-width so stored stamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000Z07:00"

type SQLiteRepository struct {
	db        *sql.DB
	logger    logging.Logger
	chunkSize int
}

func NewSQLiteRepository(db *sql.DB, logger logging.Logger) *SQLiteRepository {
	if logger == nil {
		logger = logging.Nop{}
	}
	return &SQLiteRepository{db: db, logger: logger, chunkSize: DefaultChunkSize}
}

// WithChunkSize overrides the number of rows per INSERT statement.
func (r *SQLiteRepository) WithChunkSize(n int) *SQLiteRepository {
	if n > 0 {
		r.chunkSize = n
	}
	return r
}

func (r *SQLiteRepository) PutAll(ctx context.Context, records []models.ServiceRecord) error {
	valid := accept(ctx, r.logger, records)

	rows := make([][]any, 0, len(valid))
	for _, rec := range valid {
		args, err := encode(rec)
		if err != nil {
			return fmt.Errorf("failed to encode record %s: %w", rec.ID, err)
		}
		rows = append(rows, args)
	}

	return dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM records`); err != nil {
			return fmt.Errorf("failed to clear records: %w", err)
		}
		return dbx.Chunks(len(rows), r.chunkSize, func(lo, hi int) error {
			query := `INSERT INTO records (id, client_name, vessel_name, start_date_time, details, photos, created_at, updated_at, synced)
				VALUES ` + dbx.Placeholders(hi-lo, columns)
			args := make([]any, 0, (hi-lo)*columns)
			for _, row := range rows[lo:hi] {
				args = append(args, row...)
			}
			if _, err := tx.ExecContext(ctx, query, args...); err != nil {
				return fmt.Errorf("failed to insert records [%d:%d]: %w", lo, hi, err)
			}
			return nil
		})
	})
}

func (r *SQLiteRepository) GetAll(ctx context.Context) ([]models.ServiceRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, client_name, vessel_name, start_date_time, details, photos, created_at, updated_at, synced
		FROM records
		ORDER BY updated_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to select records: %w", err)
	}
	defer rows.Close()

	result := make([]models.ServiceRecord, 0)
	for rows.Next() {
		var s storedRow
		if err := rows.Scan(&s.id, &s.clientName, &s.vesselName, &s.start, &s.details,
			&s.photos, &s.createdAt, &s.updatedAt, &s.synced); err != nil {
			return nil, fmt.Errorf("failed to scan record row: %w", err)
		}
		rec, err := s.decode()
		if err != nil {
			r.logger.Warn(ctx, "dropping malformed stored record", "id", s.id.String, "reason", err.Error())
			continue
		}
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate record rows: %w", err)
	}

	models.SortByUpdatedDesc(result)
	return result, nil
}

func (r *SQLiteRepository) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM records`); err != nil {
		return fmt.Errorf("failed to clear records: %w", err)
	}
	return nil
}

// accept filters out records that must not be persisted and collapses
// duplicate ids, keeping the last occurrence.
func accept(ctx context.Context, logger logging.Logger, in []models.ServiceRecord) []models.ServiceRecord {
	pos := make(map[string]int, len(in))
	out := make([]models.ServiceRecord, 0, len(in))
	for _, rec := range in {
		if err := models.Validate(rec); err != nil {
			logger.Warn(ctx, "rejecting record at store boundary", "id", rec.ID, "reason", err.Error())
			continue
		}
		rec = models.Normalize(rec)
		if i, ok := pos[rec.ID]; ok {
			logger.Warn(ctx, "duplicate record id in write, keeping the last one", "id", rec.ID)
			out[i] = rec
			continue
		}
		pos[rec.ID] = len(out)
		out = append(out, rec)
	}
	return out
}

func encode(rec models.ServiceRecord) ([]any, error) {
	photos, err := json.Marshal(rec.Photos)
	if err != nil {
		return nil, err
	}
	synced := 0
	if rec.Synced {
		synced = 1
	}
	return []any{
		rec.ID,
		rec.ClientName,
		rec.VesselName,
		formatTime(rec.StartDateTime),
		rec.Details,
		string(photos),
		formatTime(rec.CreatedAt),
		formatTime(rec.UpdatedAt),
		synced,
	}, nil
}

type storedRow struct {
	id, clientName, vesselName, start, details, photos, createdAt, updatedAt sql.NullString
	synced                                                                   sql.NullInt64
}

func (s storedRow) decode() (models.ServiceRecord, error) {
	rec := models.ServiceRecord{
		ID:         s.id.String,
		ClientName: s.clientName.String,
		VesselName: s.vesselName.String,
		Details:    s.details.String,
		Synced:     s.synced.Valid && s.synced.Int64 != 0,
	}

	var err error
	if rec.StartDateTime, err = parseTime(s.start); err != nil {
		return rec, fmt.Errorf("start_date_time: %w", err)
	}
	if rec.CreatedAt, err = parseTime(s.createdAt); err != nil {
		return rec, fmt.Errorf("created_at: %w", err)
	}
	if rec.UpdatedAt, err = parseTime(s.updatedAt); err != nil {
		return rec, fmt.Errorf("updated_at: %w", err)
	}
	if s.photos.Valid && s.photos.String != "" {
		if err := json.Unmarshal([]byte(s.photos.String), &rec.Photos); err != nil {
			return rec, fmt.Errorf("photos: %w", err)
		}
	}
	if err := models.Validate(rec); err != nil {
		return rec, err
	}
	return models.Normalize(rec), nil
}

func formatTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(s sql.NullString) (time.Time, error) {
	if !s.Valid || s.String == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, s.String)
}
