// Package models contains the client-side domain types and the pure
// functions the sync engine builds on: dirty-set query, last-writer-wins
// resolution and read-boundary normalization.
package models

import (
	"errors"
	"slices"
	"strings"
	"time"
)

var (
	ErrMissingID    = errors.New("record id is required")
	ErrMissingStart = errors.New("record start date-time is required")
)

// Precision is the timestamp resolution kept for records. Stored and wire
// formats round-trip it without loss.
const Precision = time.Millisecond

// PhotoRef is either a remote URL (already uploaded) or inline content
// waiting for upload. Exactly one of URL and Data is set. FP keeps the
// content fingerprint of an uploaded photo so re-attaching the same image
// is still recognised; it is zero when unknown.
type PhotoRef struct {
	URL  string `json:"url,omitempty"`
	Data []byte `json:"data,omitempty"`
	FP   uint64 `json:"fp,omitempty"`
}

// Remote reports whether the reference points at uploaded content.
func (p PhotoRef) Remote() bool { return p.URL != "" }

// Empty reports whether the reference carries nothing at all.
func (p PhotoRef) Empty() bool { return p.URL == "" && len(p.Data) == 0 }

// ServiceRecord is one marine-service visit.
type ServiceRecord struct {
	ID            string
	ClientName    string
	VesselName    string
	StartDateTime time.Time
	Details       string
	Photos        []PhotoRef
	CreatedAt     time.Time
	UpdatedAt     time.Time
	Synced        bool
}

// Validate checks the fields every stored record must have.
func Validate(r ServiceRecord) error {
	if strings.TrimSpace(r.ID) == "" {
		return ErrMissingID
	}
	if r.StartDateTime.IsZero() {
		return ErrMissingStart
	}
	return nil
}

// Clone returns a deep copy, so photo slices are never shared.
func Clone(r ServiceRecord) ServiceRecord {
	out := r
	out.Photos = make([]PhotoRef, 0, len(r.Photos))
	for _, p := range r.Photos {
		cp := PhotoRef{URL: p.URL, FP: p.FP}
		if p.Data != nil {
			cp.Data = slices.Clone(p.Data)
		}
		out.Photos = append(out.Photos, cp)
	}
	return out
}

// Normalize returns r in its total shape: UTC timestamps at Precision, a
// non-nil photo list without empty references, and
// CreatedAt <= UpdatedAt with missing values derived from the others.
func Normalize(r ServiceRecord) ServiceRecord {
	out := Clone(r)
	out.Photos = slices.DeleteFunc(out.Photos, PhotoRef.Empty)

	out.StartDateTime = Truncate(out.StartDateTime)
	out.CreatedAt = Truncate(out.CreatedAt)
	out.UpdatedAt = Truncate(out.UpdatedAt)

	if out.CreatedAt.IsZero() {
		out.CreatedAt = out.UpdatedAt
	}
	if out.CreatedAt.IsZero() {
		out.CreatedAt = out.StartDateTime
	}
	if out.UpdatedAt.Before(out.CreatedAt) {
		out.UpdatedAt = out.CreatedAt
	}
	return out
}

// Truncate converts t to UTC at record precision. The zero time stays zero.
func Truncate(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.UTC().Truncate(Precision)
}

// NextUpdatedAt returns the modification stamp for a mutation happening at
// now on a record last stamped prev. It is always strictly after prev.
func NextUpdatedAt(prev, now time.Time) time.Time {
	now = Truncate(now)
	if prev.IsZero() {
		return now
	}
	floor := Truncate(prev).Add(Precision)
	if now.Before(floor) {
		return floor
	}
	return now
}

// Dirty returns the records whose local content is not confirmed remotely.
// This is the push queue; there is no other one.
func Dirty(records []ServiceRecord) []ServiceRecord {
	out := make([]ServiceRecord, 0)
	for _, r := range records {
		if !r.Synced {
			out = append(out, r)
		}
	}
	return out
}

// Resolve applies last-writer-wins between a local and a remote version of
// the same record. Equal stamps keep the remote version.
func Resolve(local, remote ServiceRecord) ServiceRecord {
	if local.UpdatedAt.After(remote.UpdatedAt) {
		return local
	}
	return remote
}

// SortByUpdatedDesc orders records newest first, breaking ties by id.
func SortByUpdatedDesc(records []ServiceRecord) {
	slices.SortStableFunc(records, func(a, b ServiceRecord) int {
		if c := b.UpdatedAt.Compare(a.UpdatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
}

// Index maps records by id.
func Index(records []ServiceRecord) map[string]ServiceRecord {
	out := make(map[string]ServiceRecord, len(records))
	for _, r := range records {
		out[r.ID] = r
	}
	return out
}
