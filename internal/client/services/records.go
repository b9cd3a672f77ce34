package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dmitrijs2005/marinelog/internal/client/client"
	"github.com/dmitrijs2005/marinelog/internal/client/models"
	"github.com/dmitrijs2005/marinelog/internal/client/notice"
	"github.com/dmitrijs2005/marinelog/internal/client/photo"
	"github.com/dmitrijs2005/marinelog/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/marinelog/internal/client/repositories/records"
	"github.com/dmitrijs2005/marinelog/internal/client/repositories/tombstones"
	"github.com/dmitrijs2005/marinelog/internal/logging"
	"github.com/dmitrijs2005/marinelog/internal/retryx"
)

const DefaultPushConcurrency = 4

var ErrRecordNotFound = errors.New("record not found")

// SessionSource yields the signed-in identity used to scope remote calls.
type SessionSource interface {
	Load(ctx context.Context) (metadata.Session, error)
	MarkSynced(ctx context.Context, at time.Time) error
}

// Connectivity reports whether the gateway is currently reachable.
type Connectivity interface {
	Online() bool
}

// SkipReason explains why a reconciliation pass did nothing.
type SkipReason string

const (
	SkipNone        SkipReason = ""
	SkipNotSignedIn SkipReason = "not signed in"
	SkipOffline     SkipReason = "offline"
)

// Report is the outcome of one reconciliation request.
type Report struct {
	// Records is the local set after the pass, newest first.
	Records []models.ServiceRecord
	Pulled  int
	Pushed  int
	// Failed holds the push error of every record that stays dirty.
	Failed           map[string]error
	DeletesConfirmed int
	// Degraded is set when the remote set could not be fetched and
	// Records is the cached local set.
	Degraded bool
	Skipped  SkipReason
	// Coalesced is set when a pass was already running; it will run
	// again once more after finishing.
	Coalesced bool
}

// RecordService is the sync engine. It is the only writer of the local
// record store and the only component that changes Synced.
type RecordService struct {
	client   client.Client
	store    records.Repository
	tombs    tombstones.Repository
	sessions SessionSource
	conn     Connectivity

	codec       *photo.Codec
	notices     notice.Sink
	logger      logging.Logger
	now         func() time.Time
	remote      retryx.Policy
	storePolicy retryx.Policy
	concurrency int

	// commitMu serializes every read-modify-write of the local set.
	commitMu sync.Mutex

	// mirror holds the last known set; it serves reads while the store
	// is unavailable.
	mirror   *records.MemoryRepository
	stateMu  sync.RWMutex
	memOnly  bool
	degraded bool

	syncMu  sync.Mutex
	running bool
	rerun   bool
}

type RecordOption func(*RecordService)

func WithNotices(n notice.Sink) RecordOption {
	return func(s *RecordService) {
		if n != nil {
			s.notices = n
		}
	}
}

func WithLogger(l logging.Logger) RecordOption {
	return func(s *RecordService) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithClock(now func() time.Time) RecordOption {
	return func(s *RecordService) { s.now = now }
}

func WithCodec(c *photo.Codec) RecordOption {
	return func(s *RecordService) {
		if c != nil {
			s.codec = c
		}
	}
}

func WithRemotePolicy(p retryx.Policy) RecordOption {
	return func(s *RecordService) { s.remote = p }
}

func WithStorePolicy(p retryx.Policy) RecordOption {
	return func(s *RecordService) { s.storePolicy = p }
}

func WithPushConcurrency(n int) RecordOption {
	return func(s *RecordService) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

func NewRecordService(c client.Client, store records.Repository, tombs tombstones.Repository,
	sessions SessionSource, conn Connectivity, opts ...RecordOption) *RecordService {
	s := &RecordService{
		client:      c,
		store:       store,
		tombs:       tombs,
		sessions:    sessions,
		conn:        conn,
		codec:       photo.NewCodec(0, 0),
		notices:     notice.Nop{},
		logger:      logging.Nop{},
		now:         time.Now,
		remote:      retryx.DefaultRemotePolicy,
		storePolicy: retryx.DefaultStorePolicy,
		concurrency: DefaultPushConcurrency,
	}
	for _, o := range opts {
		o(s)
	}
	s.mirror = records.NewMemoryRepository(s.logger)
	if s.store == nil {
		s.memOnly = true
	}
	return s
}

// Degraded reports whether the last reconciliation could not reach the
// server or the local store is unavailable.
func (s *RecordService) Degraded() bool {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.degraded || s.memOnly
}

// StoreAvailable is false while mutations are kept in memory only.
func (s *RecordService) StoreAvailable() bool {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return !s.memOnly
}

// List returns the local set, newest first.
func (s *RecordService) List(ctx context.Context) ([]models.ServiceRecord, error) {
	s.recoverStore(ctx)
	return s.readLocal(ctx), nil
}

func (s *RecordService) Get(ctx context.Context, id string) (models.ServiceRecord, error) {
	s.recoverStore(ctx)
	for _, r := range s.readLocal(ctx) {
		if r.ID == id {
			return r, nil
		}
	}
	return models.ServiceRecord{}, fmt.Errorf("%w: %s", ErrRecordNotFound, id)
}

// save commits r locally as dirty and, when possible, pushes it right away.
// Only EditSession.Submit calls it.
func (s *RecordService) save(ctx context.Context, r models.ServiceRecord) (models.ServiceRecord, error) {
	s.recoverStore(ctx)
	s.commitMu.Lock()
	current := s.readLocal(ctx)

	var prev time.Time
	for _, c := range current {
		if c.ID == r.ID {
			prev = c.UpdatedAt
			r.CreatedAt = c.CreatedAt
			break
		}
	}
	now := s.now()
	r.UpdatedAt = models.NextUpdatedAt(prev, now)
	if r.CreatedAt.IsZero() {
		r.CreatedAt = r.UpdatedAt
	}
	r.Photos = photo.Dedupe(r.Photos)
	r.Synced = false
	r = models.Normalize(r)

	if err := models.Validate(r); err != nil {
		s.commitMu.Unlock()
		return models.ServiceRecord{}, err
	}

	next := replace(current, r)
	s.writeLocal(ctx, next)
	s.commitMu.Unlock()

	sess, ok := s.remoteSession(ctx)
	if !ok {
		s.notify(ctx, notice.LevelInfo, notice.SavedLocal)
		return r, nil
	}

	stored, err := s.push(ctx, sess.UserID, r)
	if err != nil {
		s.logger.Warn(ctx, "immediate push failed", "id", r.ID, "error", err)
		s.notify(ctx, notice.LevelWarning, notice.SavedNotSynced)
		return r, nil
	}

	if adopted, ok := s.adoptPushed(ctx, r, stored); ok {
		r = adopted
	}
	s.notify(ctx, notice.LevelSuccess, notice.SavedSynced)
	return r, nil
}

// adoptPushed replaces the local copy with the server's stored version
// unless the record changed locally since it was pushed.
func (s *RecordService) adoptPushed(ctx context.Context, pushed, stored models.ServiceRecord) (models.ServiceRecord, bool) {
	s.commitMu.Lock()
	defer s.commitMu.Unlock()

	current := s.readLocal(ctx)
	for _, c := range current {
		if c.ID != pushed.ID {
			continue
		}
		if !c.UpdatedAt.Equal(pushed.UpdatedAt) {
			return models.ServiceRecord{}, false
		}
		stored.Synced = true
		s.writeLocal(ctx, replace(current, stored))
		return stored, true
	}
	return models.ServiceRecord{}, false
}

// Delete removes the record locally at once. A tombstone keeps the remote
// delete pending until the server confirms it.
func (s *RecordService) Delete(ctx context.Context, id string) error {
	s.recoverStore(ctx)
	s.commitMu.Lock()
	current := s.readLocal(ctx)

	idx := -1
	for i, c := range current {
		if c.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.commitMu.Unlock()
		return fmt.Errorf("%w: %s", ErrRecordNotFound, id)
	}

	if err := s.tombs.Add(ctx, id, s.now()); err != nil {
		s.logger.Warn(ctx, "failed to persist pending delete", "id", id, "error", err)
	}
	next := append(current[:idx:idx], current[idx+1:]...)
	s.writeLocal(ctx, next)
	s.commitMu.Unlock()

	sess, ok := s.remoteSession(ctx)
	if !ok {
		s.notify(ctx, notice.LevelInfo, notice.DeletedLocal)
		return nil
	}

	err := retryx.Do(ctx, s.remote, client.IsTransient, func(ctx context.Context) error {
		return s.client.Delete(ctx, sess.UserID, id)
	})
	if err != nil {
		s.logger.Warn(ctx, "remote delete failed, kept pending", "id", id, "error", err)
		s.notify(ctx, notice.LevelWarning, notice.DeletedNotRemote)
		return nil
	}

	if err := s.tombs.Remove(ctx, id); err != nil {
		s.logger.Warn(ctx, "failed to clear pending delete", "id", id, "error", err)
	}
	s.notify(ctx, notice.LevelSuccess, notice.DeletedEverywhere)
	return nil
}

// Reconcile runs a reconciliation pass. A call made while a pass is in
// flight returns immediately with Coalesced set and causes exactly one more
// pass after the current one. The pass is not cancelled with ctx.
func (s *RecordService) Reconcile(ctx context.Context) (Report, error) {
	s.syncMu.Lock()
	if s.running {
		s.rerun = true
		s.syncMu.Unlock()
		return Report{Coalesced: true}, nil
	}
	s.running = true
	s.syncMu.Unlock()

	ctx = context.WithoutCancel(ctx)
	for {
		report := s.pass(ctx)

		s.syncMu.Lock()
		if !s.rerun {
			s.running = false
			s.syncMu.Unlock()
			return report, nil
		}
		s.rerun = false
		s.syncMu.Unlock()
	}
}

func (s *RecordService) pass(ctx context.Context) Report {
	sess, err := s.sessions.Load(ctx)
	if err != nil {
		if !errors.Is(err, metadata.ErrNoSession) {
			s.logger.Warn(ctx, "cannot load session", "error", err)
		}
		s.notify(ctx, notice.LevelInfo, notice.NotSignedIn)
		return Report{Records: s.readLocal(ctx), Skipped: SkipNotSignedIn}
	}
	if !s.conn.Online() {
		s.notify(ctx, notice.LevelInfo, notice.WentOffline)
		return Report{Records: s.readLocal(ctx), Skipped: SkipOffline}
	}

	s.recoverStore(ctx)

	report := Report{Failed: map[string]error{}}
	report.DeletesConfirmed = s.replayDeletes(ctx, sess.UserID)

	remote, err := retryx.Value(ctx, s.remote, client.IsTransient, func(ctx context.Context) ([]models.ServiceRecord, error) {
		return s.client.FetchAll(ctx, sess.UserID)
	})
	if errors.Is(err, client.ErrUnauthorized) {
		s.logger.Warn(ctx, "session rejected by server, sync skipped", "error", err)
		s.notify(ctx, notice.LevelInfo, notice.NotSignedIn)
		return Report{Records: s.readLocal(ctx), Skipped: SkipNotSignedIn, DeletesConfirmed: report.DeletesConfirmed}
	}
	if err != nil {
		s.logger.Warn(ctx, "fetch failed, serving cached records", "error", err)
		s.setDegraded(true)
		s.notify(ctx, notice.LevelError, notice.RefreshFailed)
		report.Records = s.readLocal(ctx)
		report.Degraded = true
		return report
	}
	s.setDegraded(false)
	report.Pulled = len(remote)

	remoteByID := models.Index(remote)
	dirty := models.Dirty(s.readLocal(ctx))

	var (
		mu     sync.Mutex
		pushed = make(map[string]models.ServiceRecord)
		sent   = make(map[string]time.Time)
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, d := range dirty {
		if rr, ok := remoteByID[d.ID]; ok && !d.UpdatedAt.After(rr.UpdatedAt) {
			s.logger.Info(ctx, "remote version is newer, local edit discarded", "id", d.ID)
			continue
		}
		g.Go(func() error {
			stored, err := s.push(gctx, sess.UserID, d)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				s.logger.Warn(ctx, "push failed", "id", d.ID, "error", err)
				report.Failed[d.ID] = err
				return nil
			}
			pushed[d.ID] = stored
			sent[d.ID] = d.UpdatedAt
			return nil
		})
	}
	_ = g.Wait()
	report.Pushed = len(pushed)

	report.Records = s.commitPass(ctx, remote, pushed, sent)

	if err := s.sessions.MarkSynced(ctx, s.now()); err != nil {
		s.logger.Warn(ctx, "failed to record sync time", "error", err)
	}
	if n := len(report.Failed); n > 0 {
		s.notify(ctx, notice.LevelWarning, notice.SyncPartial, n, n+report.Pushed)
	} else {
		s.notify(ctx, notice.LevelSuccess, notice.SyncDone, report.Pushed)
	}
	return report
}

// commitPass builds the next local set from the remote baseline and the
// current local state, re-read under the commit lock so edits made during
// the pass are not lost.
func (s *RecordService) commitPass(ctx context.Context, remote []models.ServiceRecord,
	pushed map[string]models.ServiceRecord, sent map[string]time.Time) []models.ServiceRecord {
	s.commitMu.Lock()
	defer s.commitMu.Unlock()

	pending := s.pendingDeletes(ctx)
	next := make(map[string]models.ServiceRecord, len(remote))
	for _, r := range remote {
		if _, gone := pending[r.ID]; gone {
			continue
		}
		next[r.ID] = r
	}

	local := s.readLocal(ctx)
	for _, cur := range local {
		if stored, ok := pushed[cur.ID]; ok && cur.UpdatedAt.Equal(sent[cur.ID]) {
			stored.Synced = true
			next[cur.ID] = stored
			continue
		}
		if cur.Synced {
			// synced and absent remotely: deleted elsewhere
			continue
		}
		if rr, ok := next[cur.ID]; ok {
			next[cur.ID] = models.Resolve(cur, rr)
			continue
		}
		next[cur.ID] = cur
	}

	// remote rows carry URLs only
	for _, cur := range local {
		if r, ok := next[cur.ID]; ok {
			r.Photos = photo.CarryFingerprints(r.Photos, cur.Photos)
			next[cur.ID] = r
		}
	}

	out := make([]models.ServiceRecord, 0, len(next))
	for _, r := range next {
		out = append(out, r)
	}
	models.SortByUpdatedDesc(out)
	s.writeLocal(ctx, out)
	return out
}

func (s *RecordService) replayDeletes(ctx context.Context, userID string) int {
	list, err := s.tombs.List(ctx)
	if err != nil {
		s.logger.Warn(ctx, "cannot read pending deletes", "error", err)
		return 0
	}

	confirmed := 0
	for _, t := range list {
		err := retryx.Do(ctx, s.remote, client.IsTransient, func(ctx context.Context) error {
			return s.client.Delete(ctx, userID, t.ID)
		})
		if err != nil {
			s.logger.Warn(ctx, "pending delete still failing", "id", t.ID, "error", err)
			continue
		}
		if err := s.tombs.Remove(ctx, t.ID); err != nil {
			s.logger.Warn(ctx, "failed to clear pending delete", "id", t.ID, "error", err)
			continue
		}
		confirmed++
	}
	return confirmed
}

func (s *RecordService) pendingDeletes(ctx context.Context) map[string]struct{} {
	out := make(map[string]struct{})
	list, err := s.tombs.List(ctx)
	if err != nil {
		s.logger.Warn(ctx, "cannot read pending deletes", "error", err)
		return out
	}
	for _, t := range list {
		out[t.ID] = struct{}{}
	}
	return out
}

// push uploads inline photos and upserts the record, both with retry.
func (s *RecordService) push(ctx context.Context, userID string, r models.ServiceRecord) (models.ServiceRecord, error) {
	out := models.Clone(r)
	for i, p := range out.Photos {
		if p.Remote() {
			continue
		}
		url, err := retryx.Value(ctx, s.remote, client.IsTransient, func(ctx context.Context) (string, error) {
			return s.client.UploadPhoto(ctx, p.Data, photo.ContentType)
		})
		if err != nil {
			return models.ServiceRecord{}, fmt.Errorf("upload photo %d: %w", i, err)
		}
		out.Photos[i] = photo.Uploaded(p, url)
	}
	out.Photos = photo.Dedupe(out.Photos)

	stored, err := retryx.Value(ctx, s.remote, client.IsTransient, func(ctx context.Context) (models.ServiceRecord, error) {
		return s.client.Upsert(ctx, userID, out)
	})
	if err != nil {
		return models.ServiceRecord{}, err
	}
	stored.Photos = photo.CarryFingerprints(stored.Photos, out.Photos)
	return stored, nil
}

func (s *RecordService) remoteSession(ctx context.Context) (metadata.Session, bool) {
	if !s.conn.Online() {
		return metadata.Session{}, false
	}
	sess, err := s.sessions.Load(ctx)
	if err != nil {
		return metadata.Session{}, false
	}
	return sess, true
}

// readLocal never fails: when the store cannot be read the in-memory
// mirror is served instead.
func (s *RecordService) readLocal(ctx context.Context) []models.ServiceRecord {
	if !s.StoreAvailable() {
		out, _ := s.mirror.GetAll(ctx)
		return out
	}

	out, err := retryx.Value(ctx, s.storePolicy, retryx.Always, s.store.GetAll)
	if err != nil {
		s.storeFailed(ctx, err)
		out, _ = s.mirror.GetAll(ctx)
		return out
	}
	_ = s.mirror.PutAll(ctx, out)
	return out
}

func (s *RecordService) writeLocal(ctx context.Context, next []models.ServiceRecord) {
	_ = s.mirror.PutAll(ctx, next)
	if !s.StoreAvailable() {
		return
	}

	err := retryx.Do(ctx, s.storePolicy, retryx.Always, func(ctx context.Context) error {
		return s.store.PutAll(ctx, next)
	})
	if err != nil {
		s.storeFailed(ctx, err)
	}
}

// recoverStore tries to flush the in-memory set back to the store. It runs
// before every operation while the store is down; a service built without a
// store stays in memory.
func (s *RecordService) recoverStore(ctx context.Context) {
	if s.StoreAvailable() || s.store == nil {
		return
	}

	s.commitMu.Lock()
	defer s.commitMu.Unlock()

	mem, _ := s.mirror.GetAll(ctx)
	if err := s.store.PutAll(ctx, mem); err != nil {
		s.logger.Debug(ctx, "store still unavailable", "error", err)
		return
	}
	s.stateMu.Lock()
	s.memOnly = false
	s.stateMu.Unlock()
	s.logger.Info(ctx, "local store recovered", "records", len(mem))
}

func (s *RecordService) storeFailed(ctx context.Context, err error) {
	s.stateMu.Lock()
	already := s.memOnly
	s.memOnly = true
	s.stateMu.Unlock()

	s.logger.Error(ctx, "local store unavailable, keeping changes in memory", "error", err)
	if !already {
		s.notify(ctx, notice.LevelError, notice.StoreDegraded)
	}
}

func (s *RecordService) setDegraded(v bool) {
	s.stateMu.Lock()
	s.degraded = v
	s.stateMu.Unlock()
}

func (s *RecordService) notify(ctx context.Context, level notice.Level, key notice.Key, args ...any) {
	s.notices.Notify(ctx, notice.New(level, key, args...))
}

// replace returns records with r substituted by id, or appended.
func replace(records []models.ServiceRecord, r models.ServiceRecord) []models.ServiceRecord {
	out := make([]models.ServiceRecord, 0, len(records)+1)
	found := false
	for _, c := range records {
		if c.ID == r.ID {
			out = append(out, r)
			found = true
			continue
		}
		out = append(out, c)
	}
	if !found {
		out = append(out, r)
	}
	models.SortByUpdatedDesc(out)
	return out
}
