package services

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/dmitrijs2005/marinelog/internal/api"
	"github.com/dmitrijs2005/marinelog/internal/common"
	"github.com/dmitrijs2005/marinelog/internal/dbx"
	"github.com/dmitrijs2005/marinelog/internal/server/models"
	"github.com/dmitrijs2005/marinelog/internal/server/repositories/records"
	"github.com/dmitrijs2005/marinelog/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/marinelog/internal/server/repositories/users"
)

type errBoom struct{}

func (errBoom) Error() string { return "boom" }

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

type fakeUsersRepo struct {
	createOut *models.User
	createErr error
	created   *models.User

	getOut *models.User
	getErr error
}

func (f *fakeUsersRepo) Create(_ context.Context, u *models.User) (*models.User, error) {
	f.created = u
	if f.createErr != nil {
		return nil, f.createErr
	}
	return f.createOut, nil
}

func (f *fakeUsersRepo) GetUserByLogin(context.Context, string) (*models.User, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.getOut, nil
}

type fakeRefreshRepo struct {
	findOut *models.RefreshToken
	findErr error

	delErr  error
	deleted []string

	createErr error
	created   []time.Time

	pruned   int64
	pruneErr error
}

func (f *fakeRefreshRepo) Create(_ context.Context, _ string, _ string, expiresAt time.Time) error {
	f.created = append(f.created, expiresAt)
	return f.createErr
}

func (f *fakeRefreshRepo) Find(context.Context, string) (*models.RefreshToken, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	return f.findOut, nil
}

func (f *fakeRefreshRepo) Delete(_ context.Context, token string) error {
	f.deleted = append(f.deleted, token)
	return f.delErr
}

func (f *fakeRefreshRepo) DeleteExpired(context.Context, time.Time) (int64, error) {
	return f.pruned, f.pruneErr
}

// fakeRecordsRepo keeps rows in memory and applies the same conflict rule
// as the postgres upsert.
type fakeRecordsRepo struct {
	mu   sync.Mutex
	rows map[string]models.Record
	err  error
}

func newFakeRecordsRepo() *fakeRecordsRepo {
	return &fakeRecordsRepo{rows: map[string]models.Record{}}
}

func (f *fakeRecordsRepo) List(_ context.Context, userID string) ([]*models.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	out := []*models.Record{}
	for _, r := range f.rows {
		if r.UserID == userID {
			r := r
			out = append(out, &r)
		}
	}
	return out, nil
}

func (f *fakeRecordsRepo) Get(_ context.Context, id string) (*models.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rows[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &r, nil
}

func (f *fakeRecordsRepo) Upsert(_ context.Context, rec *models.Record) (*models.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if cur, ok := f.rows[rec.ID]; ok {
		if cur.UserID != rec.UserID {
			return nil, common.ErrorForbidden
		}
		if cur.UpdatedAt.After(rec.UpdatedAt) {
			return &cur, nil
		}
	}
	f.rows[rec.ID] = *rec
	out := *rec
	return &out, nil
}

func (f *fakeRecordsRepo) Delete(_ context.Context, userID, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	cur, ok := f.rows[id]
	if !ok || cur.UserID != userID {
		return false, nil
	}
	delete(f.rows, id)
	return true, nil
}

type fakeRepoManager struct {
	u  *fakeUsersRepo
	r  *fakeRefreshRepo
	rc *fakeRecordsRepo
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error    { return nil }
func (m *fakeRepoManager) Users(dbx.DBTX) users.Repository                 { return m.u }
func (m *fakeRepoManager) RefreshTokens(dbx.DBTX) refreshtokens.Repository { return m.r }
func (m *fakeRepoManager) Records(dbx.DBTX) records.Repository             { return m.rc }

type recordingNotifier struct {
	mu     sync.Mutex
	events []api.ChangeEvent
	err    error
}

func (n *recordingNotifier) Publish(_ context.Context, ev api.ChangeEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
	return n.err
}

func (n *recordingNotifier) Subscribe(string) (<-chan api.ChangeEvent, func()) {
	ch := make(chan api.ChangeEvent)
	return ch, func() {}
}

func (n *recordingNotifier) published() []api.ChangeEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]api.ChangeEvent(nil), n.events...)
}
