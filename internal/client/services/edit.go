package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/marinelog/internal/client/models"
	"github.com/dmitrijs2005/marinelog/internal/client/photo"
)

var (
	ErrSessionClosed = errors.New("edit session is closed")
	ErrPhotoIndex    = errors.New("photo index out of range")
)

// EditSession holds a working copy of one record. Nothing reaches the store
// until Submit; Cancel discards the copy. Setters are ignored once the
// session is closed.
type EditSession struct {
	svc *RecordService

	mu      sync.Mutex
	working models.ServiceRecord
	isNew   bool
	closed  bool
}

// NewRecord opens a session for a record that does not exist yet.
func (s *RecordService) NewRecord() *EditSession {
	return &EditSession{
		svc:     s,
		working: models.ServiceRecord{ID: uuid.NewString(), Photos: []models.PhotoRef{}},
		isNew:   true,
	}
}

// Edit opens a session on a copy of the stored record id.
func (s *RecordService) Edit(ctx context.Context, id string) (*EditSession, error) {
	r, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &EditSession{svc: s, working: models.Clone(r)}, nil
}

func (e *EditSession) IsNew() bool {
	return e.isNew
}

// Record returns a copy of the working state.
func (e *EditSession) Record() models.ServiceRecord {
	e.mu.Lock()
	defer e.mu.Unlock()
	return models.Clone(e.working)
}

func (e *EditSession) update(fn func(r *models.ServiceRecord)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.closed {
		fn(&e.working)
	}
}

func (e *EditSession) SetClientName(v string) {
	e.update(func(r *models.ServiceRecord) { r.ClientName = v })
}

func (e *EditSession) SetVesselName(v string) {
	e.update(func(r *models.ServiceRecord) { r.VesselName = v })
}

func (e *EditSession) SetStartDateTime(v time.Time) {
	e.update(func(r *models.ServiceRecord) { r.StartDateTime = v })
}

func (e *EditSession) SetDetails(v string) {
	e.update(func(r *models.ServiceRecord) { r.Details = v })
}

// AttachPhoto compresses data and appends it unless an identical photo is
// already attached. It reports whether the photo was added.
func (e *EditSession) AttachPhoto(data []byte) (bool, error) {
	p, err := e.svc.codec.Compress(models.PhotoRef{Data: data})
	if err != nil {
		return false, fmt.Errorf("attach photo: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return false, ErrSessionClosed
	}
	if photo.Contains(e.working.Photos, p) {
		return false, nil
	}
	e.working.Photos = append(e.working.Photos, p)
	return true, nil
}

// RemovePhoto drops the i-th photo, counting from zero.
func (e *EditSession) RemovePhoto(i int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrSessionClosed
	}
	if i < 0 || i >= len(e.working.Photos) {
		return fmt.Errorf("%w: %d", ErrPhotoIndex, i)
	}
	e.working.Photos = append(e.working.Photos[:i:i], e.working.Photos[i+1:]...)
	return nil
}

// Submit commits the working copy through the sync engine and closes the
// session. A validation error leaves the session open for correction.
func (e *EditSession) Submit(ctx context.Context) (models.ServiceRecord, error) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return models.ServiceRecord{}, ErrSessionClosed
	}
	r := models.Clone(e.working)
	e.mu.Unlock()

	saved, err := e.svc.save(ctx, r)
	if err != nil {
		return models.ServiceRecord{}, err
	}

	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()
	return saved, nil
}

// Cancel discards the working copy.
func (e *EditSession) Cancel() {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()
}
