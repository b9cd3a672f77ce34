// Package services contains the client application services: the sync
// engine with its edit sessions, authentication, and the background
// daemon that ties connectivity and realtime events to reconciliation.
package services

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/marinelog/internal/client/client"
	"github.com/dmitrijs2005/marinelog/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/marinelog/internal/common"
	"github.com/dmitrijs2005/marinelog/internal/cryptox"
)

const saltSize = 32

// AuthService defines authentication operations for the CLI.
//
// Contract:
//   - Register: create a new user on the server.
//   - Login: authenticate and persist the session (user id and tokens).
//   - Restore: hand a persisted session to the gateway client.
//   - Logout: forget the session; local records are kept.
//   - Ping: check server liveness.
type AuthService interface {
	Register(ctx context.Context, username string, password []byte) error
	Login(ctx context.Context, username string, password []byte) (metadata.Session, error)
	Restore(ctx context.Context) (metadata.Session, error)
	Logout(ctx context.Context) error
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

type authService struct {
	client   client.Client
	sessions *metadata.SessionStore
}

// NewAuthService constructs an AuthService bound to the given API client and
// session store.
func NewAuthService(c client.Client, sessions *metadata.SessionStore) AuthService {
	return &authService{client: c, sessions: sessions}
}

// Register generates a random salt, derives a master key from the password
// and sends salt and verifier to the server.
func (a *authService) Register(ctx context.Context, username string, password []byte) error {
	salt := common.GenerateRandByteArray(saltSize)
	key := cryptox.DeriveMasterKey(password, salt)
	defer common.WipeByteArray(key)

	if err := a.client.Register(ctx, username, salt, cryptox.MakeVerifier(key)); err != nil {
		return fmt.Errorf("register error: %w", err)
	}
	return nil
}

// Login fetches the salt, derives the verifier candidate and exchanges it
// for a token pair, which is then persisted.
func (a *authService) Login(ctx context.Context, username string, password []byte) (metadata.Session, error) {
	salt, err := a.client.GetSalt(ctx, username)
	if err != nil {
		return metadata.Session{}, fmt.Errorf("get salt error: %w", err)
	}

	key := cryptox.DeriveMasterKey(password, salt)
	defer common.WipeByteArray(key)

	s, err := a.client.Login(ctx, username, cryptox.MakeVerifier(key))
	if err != nil {
		return metadata.Session{}, fmt.Errorf("login error: %w", err)
	}

	sess := metadata.Session{
		Username:     username,
		UserID:       s.UserID,
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
	}
	if err := a.sessions.Save(ctx, sess); err != nil {
		return metadata.Session{}, fmt.Errorf("session saving error: %w", err)
	}
	return sess, nil
}

func (a *authService) Restore(ctx context.Context) (metadata.Session, error) {
	sess, err := a.sessions.Load(ctx)
	if err != nil {
		return metadata.Session{}, err
	}
	a.client.SetSession(client.Session{
		UserID:       sess.UserID,
		AccessToken:  sess.AccessToken,
		RefreshToken: sess.RefreshToken,
	})
	return sess, nil
}

func (a *authService) Logout(ctx context.Context) error {
	a.client.SetSession(client.Session{})
	return a.sessions.Clear(ctx)
}

// Ping proxies a liveness check to the underlying client.
func (a *authService) Ping(ctx context.Context) error {
	return a.client.Ping(ctx)
}

// Close releases resources held by the underlying client.
func (a *authService) Close(ctx context.Context) error {
	return a.client.Close()
}
