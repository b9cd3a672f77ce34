package metadata

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Keys used by SessionStore.
const (
	KeyUsername     = "username"
	KeyUserID       = "user_id"
	KeyAccessToken  = "access_token"
	KeyRefreshToken = "refresh_token"
	KeyLastSync     = "last_sync"
)

// ErrNoSession is returned by Load when nobody is signed in.
var ErrNoSession = errors.New("no session")

// Session is the signed-in identity and its tokens.
type Session struct {
	Username     string
	UserID       string
	AccessToken  string
	RefreshToken string
}

// SessionStore persists a Session on top of a metadata Repository.
type SessionStore struct {
	repo Repository
}

func NewSessionStore(repo Repository) *SessionStore {
	return &SessionStore{repo: repo}
}

func (s *SessionStore) Save(ctx context.Context, sess Session) error {
	pairs := []struct{ k, v string }{
		{KeyUsername, sess.Username},
		{KeyUserID, sess.UserID},
		{KeyAccessToken, sess.AccessToken},
		{KeyRefreshToken, sess.RefreshToken},
	}
	for _, p := range pairs {
		if err := s.repo.Set(ctx, p.k, []byte(p.v)); err != nil {
			return err
		}
	}
	return nil
}

// Load returns the stored session or ErrNoSession when there is no user id.
func (s *SessionStore) Load(ctx context.Context) (Session, error) {
	all, err := s.repo.List(ctx)
	if err != nil {
		return Session{}, err
	}
	sess := Session{
		Username:     string(all[KeyUsername]),
		UserID:       string(all[KeyUserID]),
		AccessToken:  string(all[KeyAccessToken]),
		RefreshToken: string(all[KeyRefreshToken]),
	}
	if sess.UserID == "" {
		return Session{}, ErrNoSession
	}
	return sess, nil
}

// UpdateTokens replaces only the token pair.
func (s *SessionStore) UpdateTokens(ctx context.Context, access, refresh string) error {
	if err := s.repo.Set(ctx, KeyAccessToken, []byte(access)); err != nil {
		return err
	}
	return s.repo.Set(ctx, KeyRefreshToken, []byte(refresh))
}

// Clear forgets the session. Other metadata is left alone.
func (s *SessionStore) Clear(ctx context.Context) error {
	for _, k := range []string{KeyUsername, KeyUserID, KeyAccessToken, KeyRefreshToken} {
		if err := s.repo.Delete(ctx, k); err != nil {
			return err
		}
	}
	return nil
}

// MarkSynced records the completion time of a reconciliation pass.
func (s *SessionStore) MarkSynced(ctx context.Context, at time.Time) error {
	return s.repo.Set(ctx, KeyLastSync, []byte(at.UTC().Format(time.RFC3339)))
}

// LastSync returns the zero time if no pass has completed yet.
func (s *SessionStore) LastSync(ctx context.Context) (time.Time, error) {
	v, err := s.repo.Get(ctx, KeyLastSync)
	if err != nil || len(v) == 0 {
		return time.Time{}, err
	}
	t, err := time.Parse(time.RFC3339, string(v))
	if err != nil {
		return time.Time{}, fmt.Errorf("bad %s value: %w", KeyLastSync, err)
	}
	return t, nil
}
