// Package notifier fans record change events out to the realtime channels
// of the affected user.
package notifier

import (
	"context"
	"sync"

	"github.com/dmitrijs2005/marinelog/internal/api"
)

// SubscriberBuffer is the number of events queued per subscriber before
// new ones are dropped. Events are refetch triggers, so a dropped event is
// covered by any later one.
const SubscriberBuffer = 16

type Notifier interface {
	Publish(ctx context.Context, ev api.ChangeEvent) error
	// Subscribe returns a channel receiving userID's events until cancel is
	// called.
	Subscribe(userID string) (events <-chan api.ChangeEvent, cancel func())
}

// Hub is the in-process Notifier.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]map[chan api.ChangeEvent]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[chan api.ChangeEvent]struct{})}
}

func (h *Hub) Publish(_ context.Context, ev api.ChangeEvent) error {
	h.deliver(ev)
	return nil
}

func (h *Hub) deliver(ev api.ChangeEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs[ev.UserID] {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (h *Hub) Subscribe(userID string) (<-chan api.ChangeEvent, func()) {
	ch := make(chan api.ChangeEvent, SubscriberBuffer)

	h.mu.Lock()
	set, ok := h.subs[userID]
	if !ok {
		set = make(map[chan api.ChangeEvent]struct{})
		h.subs[userID] = set
	}
	set[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs[userID], ch)
			if len(h.subs[userID]) == 0 {
				delete(h.subs, userID)
			}
			h.mu.Unlock()
			close(ch)
		})
	}
}

// Subscribers reports how many channels are open for userID.
func (h *Hub) Subscribers(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[userID])
}
