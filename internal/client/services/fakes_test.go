package services

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitrijs2005/marinelog/internal/api"
	"github.com/dmitrijs2005/marinelog/internal/client/client"
	"github.com/dmitrijs2005/marinelog/internal/client/models"
	"github.com/dmitrijs2005/marinelog/internal/cryptox"
)

// fakeClient is an in-memory Remote Gateway.
type fakeClient struct {
	mu   sync.Mutex
	rows map[string]models.ServiceRecord

	// auth
	CloseErr    error
	RegisterErr error
	GetSaltRet  []byte
	GetSaltErr  error
	LoginRet    client.Session
	LoginErr    error
	PingErr     error

	LastRegisterUser string
	LastRegisterSalt []byte
	LastRegisterKey  []byte
	LastLoginUser    string
	LastLoginKey     []byte
	LastSession      client.Session

	// records
	fetchErr    error
	fetchGate   chan struct{}
	fetchEnter  chan struct{}
	upsertErr   map[string]error
	deleteErr   error
	uploadErr   error
	beforePush  func(r models.ServiceRecord)
	fetchCalls  atomic.Int32
	upsertCalls map[string]int
	deleteCalls []string
	uploads     int
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		rows:        make(map[string]models.ServiceRecord),
		upsertErr:   make(map[string]error),
		upsertCalls: make(map[string]int),
	}
}

func (f *fakeClient) Close() error { return f.CloseErr }

func (f *fakeClient) Register(ctx context.Context, username string, salt []byte, key []byte) error {
	f.LastRegisterUser = username
	f.LastRegisterSalt = append([]byte(nil), salt...)
	f.LastRegisterKey = append([]byte(nil), key...)
	return f.RegisterErr
}

func (f *fakeClient) GetSalt(ctx context.Context, username string) ([]byte, error) {
	return append([]byte(nil), f.GetSaltRet...), f.GetSaltErr
}

func (f *fakeClient) Login(ctx context.Context, username string, key []byte) (client.Session, error) {
	f.LastLoginUser = username
	f.LastLoginKey = append([]byte(nil), key...)
	return f.LoginRet, f.LoginErr
}

func (f *fakeClient) SetSession(s client.Session) { f.LastSession = s }

func (f *fakeClient) Ping(ctx context.Context) error { return f.PingErr }

func (f *fakeClient) FetchAll(ctx context.Context, userID string) ([]models.ServiceRecord, error) {
	f.fetchCalls.Add(1)
	if f.fetchEnter != nil {
		f.fetchEnter <- struct{}{}
	}
	if f.fetchGate != nil {
		<-f.fetchGate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	out := make([]models.ServiceRecord, 0, len(f.rows))
	for _, r := range f.rows {
		out = append(out, onWire(r))
	}
	models.SortByUpdatedDesc(out)
	return out, nil
}

func (f *fakeClient) Upsert(ctx context.Context, userID string, r models.ServiceRecord) (models.ServiceRecord, error) {
	if hook := f.takeHook(); hook != nil {
		hook(r)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.upsertCalls[r.ID]++
	if err := f.upsertErr[r.ID]; err != nil {
		return models.ServiceRecord{}, err
	}
	if pendingPhotos(r) > 0 {
		return models.ServiceRecord{}, client.ErrInlinePhoto
	}

	if cur, ok := f.rows[r.ID]; ok && cur.UpdatedAt.After(r.UpdatedAt) {
		return onWire(cur), nil
	}
	stored := onWire(r)
	stored.Synced = true
	f.rows[r.ID] = stored
	return onWire(stored), nil
}

// onWire copies r the way it comes back from the gateway: only photo URLs
// survive the round trip.
func onWire(r models.ServiceRecord) models.ServiceRecord {
	out := models.Clone(r)
	for i := range out.Photos {
		out.Photos[i].FP = 0
	}
	return out
}

// pendingPhotos counts inline photos that still need uploading.
func pendingPhotos(r models.ServiceRecord) int {
	n := 0
	for _, p := range r.Photos {
		if !p.Remote() && len(p.Data) > 0 {
			n++
		}
	}
	return n
}

func (f *fakeClient) takeHook() func(models.ServiceRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	h := f.beforePush
	f.beforePush = nil
	return h
}

func (f *fakeClient) Delete(ctx context.Context, userID string, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleteCalls = append(f.deleteCalls, id)
	if f.deleteErr != nil {
		return f.deleteErr
	}
	delete(f.rows, id)
	return nil
}

func (f *fakeClient) UploadPhoto(ctx context.Context, data []byte, contentType string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads++
	if f.uploadErr != nil {
		return "", f.uploadErr
	}
	return "https://cdn.example/" + cryptox.ContentSHA256(data), nil
}

func (f *fakeClient) Watch(ctx context.Context, fn func(api.ChangeEvent)) error {
	<-ctx.Done()
	return nil
}

func (f *fakeClient) seed(records ...models.ServiceRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range records {
		r = models.Normalize(r)
		r.Synced = true
		f.rows[r.ID] = r
	}
}

func (f *fakeClient) row(id string) (models.ServiceRecord, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rows[id]
	return r, ok
}

func (f *fakeClient) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rows)
}

func (f *fakeClient) set(fn func(f *fakeClient)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

type fakeConn struct {
	online atomic.Bool
}

func (c *fakeConn) Online() bool { return c.online.Load() }

// stepClock advances one second per reading.
type stepClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}
