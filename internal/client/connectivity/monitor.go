// Package connectivity tracks whether the Remote Gateway is reachable and
// reports each online/offline transition exactly once.
package connectivity

import (
	"context"
	"sync"
	"time"

	"github.com/looplab/fsm"

	"github.com/dmitrijs2005/marinelog/internal/logging"
)

const (
	StateUnknown = "unknown"
	StateOnline  = "online"
	StateOffline = "offline"

	EventWentOnline  = "went_online"
	EventWentOffline = "went_offline"
)

const (
	DefaultInterval = 3 * time.Second
	DefaultDebounce = time.Second
	eventBuffer     = 8
)

// Transition is emitted once per state change.
type Transition struct {
	Online bool
	At     time.Time
}

// Prober checks reachability; client.Client satisfies it.
type Prober interface {
	Ping(ctx context.Context) error
}

type Monitor struct {
	prober   Prober
	interval time.Duration
	debounce time.Duration
	logger   logging.Logger
	now      func() time.Time

	mu         sync.Mutex
	machine    *fsm.FSM
	lastChange time.Time
	events     chan Transition
}

type Option func(*Monitor)

func WithInterval(d time.Duration) Option {
	return func(m *Monitor) {
		if d > 0 {
			m.interval = d
		}
	}
}

// WithDebounce sets the minimum time between two accepted transitions.
func WithDebounce(d time.Duration) Option {
	return func(m *Monitor) {
		if d >= 0 {
			m.debounce = d
		}
	}
}

func WithLogger(l logging.Logger) Option {
	return func(m *Monitor) {
		if l != nil {
			m.logger = l
		}
	}
}

func withClock(now func() time.Time) Option {
	return func(m *Monitor) { m.now = now }
}

func NewMonitor(prober Prober, opts ...Option) *Monitor {
	m := &Monitor{
		prober:   prober,
		interval: DefaultInterval,
		debounce: DefaultDebounce,
		logger:   logging.Nop{},
		now:      time.Now,
		events:   make(chan Transition, eventBuffer),
	}
	for _, o := range opts {
		o(m)
	}

	m.machine = fsm.NewFSM(
		StateUnknown,
		fsm.Events{
			{Name: EventWentOnline, Src: []string{StateUnknown, StateOffline}, Dst: StateOnline},
			{Name: EventWentOffline, Src: []string{StateUnknown, StateOnline}, Dst: StateOffline},
		},
		fsm.Callbacks{
			"enter_state": m.enterState,
		},
	)
	return m
}

// Events delivers transitions. The channel is buffered; when the consumer
// falls behind the oldest pending transition is dropped.
func (m *Monitor) Events() <-chan Transition {
	return m.events
}

// Online is false until the first observation.
func (m *Monitor) Online() bool {
	return m.State() == StateOnline
}

func (m *Monitor) State() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.machine.Current()
}

// Observe feeds one reachability sample. It reports whether the sample
// caused a transition. The first sample always does; later changes are
// ignored until the debounce interval since the previous transition has
// passed.
func (m *Monitor) Observe(ctx context.Context, online bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	event := EventWentOffline
	if online {
		event = EventWentOnline
	}
	if !m.machine.Can(event) {
		return false
	}

	if m.machine.Current() != StateUnknown && m.now().Sub(m.lastChange) < m.debounce {
		m.logger.Debug(ctx, "connectivity change debounced", "event", event)
		return false
	}

	if err := m.machine.Event(ctx, event); err != nil {
		m.logger.Warn(ctx, "connectivity transition failed", "event", event, "error", err)
		return false
	}
	return true
}

// Probe pings the gateway once and feeds the outcome to Observe.
func (m *Monitor) Probe(ctx context.Context) bool {
	pctx, cancel := context.WithTimeout(ctx, m.interval)
	defer cancel()

	err := m.prober.Ping(pctx)
	if err != nil {
		m.logger.Debug(ctx, "probe failed", "error", err)
	}
	return m.Observe(ctx, err == nil)
}

// Run probes immediately and then every interval until ctx is done.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.Probe(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Probe(ctx)
		}
	}
}

// enterState runs inside machine.Event with m.mu held.
func (m *Monitor) enterState(ctx context.Context, e *fsm.Event) {
	at := m.now()
	m.lastChange = at
	m.logger.Info(ctx, "connectivity changed", "from", e.Src, "to", e.Dst)
	m.emit(Transition{Online: e.Dst == StateOnline, At: at})
}

func (m *Monitor) emit(t Transition) {
	select {
	case m.events <- t:
		return
	default:
	}
	select {
	case <-m.events:
	default:
	}
	select {
	case m.events <- t:
	default:
	}
}
