package client

import "errors"

var (
	ErrUnavailable  = errors.New("server unavailable")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrRejected     = errors.New("rejected by server")
	ErrInlinePhoto  = errors.New("record still has inline photos")
)

// IsTransient reports whether a gateway error is worth retrying.
func IsTransient(err error) bool {
	return errors.Is(err, ErrUnavailable)
}
