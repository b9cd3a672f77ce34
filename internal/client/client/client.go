package client

import (
	"context"

	"github.com/dmitrijs2005/marinelog/internal/api"
	"github.com/dmitrijs2005/marinelog/internal/client/models"
)

// Session is what a successful login yields.
type Session struct {
	UserID       string
	AccessToken  string
	RefreshToken string
}

// Client is the Remote Gateway as seen by the client. Every record
// operation is scoped to userID; the server rejects a mismatch with the
// authenticated identity.
type Client interface {
	Close() error

	Register(ctx context.Context, username string, salt []byte, verifier []byte) error
	GetSalt(ctx context.Context, username string) ([]byte, error)
	Login(ctx context.Context, username string, verifier []byte) (Session, error)
	// SetSession installs tokens restored from local storage.
	SetSession(s Session)
	Ping(ctx context.Context) error

	// FetchAll returns the caller's complete remote set, newest first. It
	// fails rather than returning an empty list when the server is not
	// reachable.
	FetchAll(ctx context.Context, userID string) ([]models.ServiceRecord, error)
	// Upsert stores r and returns the authoritative stored version.
	Upsert(ctx context.Context, userID string, r models.ServiceRecord) (models.ServiceRecord, error)
	// Delete is idempotent: deleting an absent record succeeds.
	Delete(ctx context.Context, userID string, id string) error
	// UploadPhoto stores inline image bytes and returns their public URL.
	UploadPhoto(ctx context.Context, data []byte, contentType string) (string, error)

	// Watch streams change events until ctx is done or the channel drops.
	Watch(ctx context.Context, fn func(api.ChangeEvent)) error
}
