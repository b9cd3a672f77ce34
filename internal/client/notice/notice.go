// Package notice carries user-facing messages out of the sync engine. The
// engine emits keyed notices; a Sink decides how to show them.
package notice

import (
	"context"
	"fmt"
	"io"
	"sync"
)

type Level int

const (
	LevelInfo Level = iota
	LevelSuccess
	LevelWarning
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelSuccess:
		return "ok"
	case LevelWarning:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "info"
	}
}

type Notice struct {
	Level Level
	Key   Key
	Args  []any
}

func New(level Level, key Key, args ...any) Notice {
	return Notice{Level: level, Key: key, Args: args}
}

type Sink interface {
	Notify(ctx context.Context, n Notice)
}

// Nop drops every notice.
type Nop struct{}

func (Nop) Notify(context.Context, Notice) {}

// Collector keeps notices in memory.
type Collector struct {
	mu    sync.Mutex
	items []Notice
}

func (c *Collector) Notify(_ context.Context, n Notice) {
	c.mu.Lock()
	c.items = append(c.items, n)
	c.mu.Unlock()
}

func (c *Collector) Notices() []Notice {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Notice, len(c.items))
	copy(out, c.items)
	return out
}

// Keys returns the keys received so far, in order.
func (c *Collector) Keys() []Key {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Key, 0, len(c.items))
	for _, n := range c.items {
		out = append(out, n.Key)
	}
	return out
}

// Printer writes translated notices as single lines.
type Printer struct {
	mu sync.Mutex
	w  io.Writer
	tr *Translator
}

func NewPrinter(w io.Writer, tr *Translator) *Printer {
	return &Printer{w: w, tr: tr}
}

func (p *Printer) Notify(_ context.Context, n Notice) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, "[%s] %s\n", n.Level, p.tr.Text(n))
}
