package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/marinelog/internal/api"
	"github.com/dmitrijs2005/marinelog/internal/common"
	"github.com/dmitrijs2005/marinelog/internal/logging"
	"github.com/dmitrijs2005/marinelog/internal/server/metrics"
	"github.com/dmitrijs2005/marinelog/internal/server/models"
	"github.com/dmitrijs2005/marinelog/internal/server/notifier"
	"github.com/dmitrijs2005/marinelog/internal/server/repositories/repomanager"
)

const maxRecordIDLen = 128

// RecordService owns the per-user service_records resource. Every
// successful write is announced through the notifier.
type RecordService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	notifier    notifier.Notifier
	logger      logging.Logger
	now         func() time.Time
}

func NewRecordService(db *sql.DB, m repomanager.RepositoryManager, n notifier.Notifier, logger logging.Logger) *RecordService {
	if logger == nil {
		logger = logging.Nop{}
	}
	return &RecordService{db: db, repomanager: m, notifier: n, logger: logger, now: time.Now}
}

func (s *RecordService) List(ctx context.Context, userID string) ([]*models.Record, error) {
	recs, err := s.repomanager.Records(s.db).List(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("error listing records: %w", err)
	}
	return recs, nil
}

// Upsert stores rec for userID. When the stored copy is newer the stored
// copy is returned and nothing changes.
func (s *RecordService) Upsert(ctx context.Context, userID string, rec *models.Record) (*models.Record, error) {
	if rec.UserID != "" && rec.UserID != userID {
		metrics.RecordWritesTotal.WithLabelValues(api.OpUpsert, "rejected").Inc()
		return nil, common.ErrorForbidden
	}
	rec.UserID = userID

	if err := s.prepare(rec); err != nil {
		metrics.RecordWritesTotal.WithLabelValues(api.OpUpsert, "rejected").Inc()
		return nil, err
	}

	stored, err := s.repomanager.Records(s.db).Upsert(ctx, rec)
	if err != nil {
		if errors.Is(err, common.ErrorForbidden) {
			metrics.RecordWritesTotal.WithLabelValues(api.OpUpsert, "rejected").Inc()
			return nil, err
		}
		metrics.RecordWritesTotal.WithLabelValues(api.OpUpsert, "error").Inc()
		return nil, fmt.Errorf("error storing record %s: %w", rec.ID, err)
	}

	if stored.UpdatedAt.After(rec.UpdatedAt) {
		metrics.RecordWritesTotal.WithLabelValues(api.OpUpsert, "stale").Inc()
		s.logger.Info(ctx, "kept newer stored record", "id", rec.ID, "user_id", userID)
		return stored, nil
	}

	metrics.RecordWritesTotal.WithLabelValues(api.OpUpsert, "stored").Inc()
	s.publish(ctx, userID, rec.ID, api.OpUpsert)
	return stored, nil
}

// Delete removes id for userID. Deleting an absent record succeeds.
func (s *RecordService) Delete(ctx context.Context, userID, id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: id is required", common.ErrorValidation)
	}

	deleted, err := s.repomanager.Records(s.db).Delete(ctx, userID, id)
	if err != nil {
		metrics.RecordWritesTotal.WithLabelValues(api.OpDelete, "error").Inc()
		return fmt.Errorf("error deleting record %s: %w", id, err)
	}
	if !deleted {
		metrics.RecordWritesTotal.WithLabelValues(api.OpDelete, "absent").Inc()
		return nil
	}

	metrics.RecordWritesTotal.WithLabelValues(api.OpDelete, "stored").Inc()
	s.publish(ctx, userID, id, api.OpDelete)
	return nil
}

// prepare validates rec and fills defaults: missing timestamps become now,
// and the photo columns are made consistent.
func (s *RecordService) prepare(rec *models.Record) error {
	rec.ID = strings.TrimSpace(rec.ID)
	if rec.ID == "" || len(rec.ID) > maxRecordIDLen {
		return fmt.Errorf("%w: id must be 1-%d characters", common.ErrorValidation, maxRecordIDLen)
	}
	if rec.StartDateTime.IsZero() {
		return fmt.Errorf("%w: start_date_time is required", common.ErrorValidation)
	}

	now := s.now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = rec.CreatedAt
	}
	if rec.UpdatedAt.Before(rec.CreatedAt) {
		return fmt.Errorf("%w: updated_at is before created_at", common.ErrorValidation)
	}

	rec.PhotoURLs = PhotoUnion(rec.PhotoURL, rec.PhotoURLs)
	rec.PhotoURL = ""
	if len(rec.PhotoURLs) > 0 {
		rec.PhotoURL = rec.PhotoURLs[0]
	}
	return nil
}

func (s *RecordService) publish(ctx context.Context, userID, id, op string) {
	if s.notifier == nil {
		return
	}
	ev := api.ChangeEvent{UserID: userID, RecordID: id, Op: op, At: s.now().UTC()}
	if err := s.notifier.Publish(ctx, ev); err != nil {
		s.logger.Warn(ctx, "failed to publish change event", "id", id, "op", op, "error", err.Error())
	}
}

// PhotoUnion is legacy first, then the list, without blanks or repeats.
func PhotoUnion(legacy string, urls []string) []string {
	out := make([]string, 0, len(urls)+1)
	seen := make(map[string]struct{}, len(urls)+1)
	add := func(u string) {
		u = strings.TrimSpace(u)
		if u == "" {
			return
		}
		if _, ok := seen[u]; ok {
			return
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	add(legacy)
	for _, u := range urls {
		add(u)
	}
	return out
}
