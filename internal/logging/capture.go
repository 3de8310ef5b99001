package logging

import (
	"context"
	"log/slog"
	"sync"
)

// Capture is a slog handler that keeps every record in memory.
type Capture struct {
	mu      sync.Mutex
	records []slog.Record
}

// NewCapture returns a logger backed by a Capture handler.
func NewCapture() (*slog.Logger, *Capture) {
	c := &Capture{}
	return slog.New(c), c
}

func (c *Capture) Enabled(context.Context, slog.Level) bool { return true }

func (c *Capture) Handle(_ context.Context, r slog.Record) error {
	c.mu.Lock()
	c.records = append(c.records, r.Clone())
	c.mu.Unlock()
	return nil
}

// Attributes added through With are not retained.
func (c *Capture) WithAttrs([]slog.Attr) slog.Handler { return c }
func (c *Capture) WithGroup(string) slog.Handler      { return c }

// Records returns the records captured so far.
func (c *Capture) Records() []slog.Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]slog.Record(nil), c.records...)
}

// Messages returns the messages of records at or above level.
func (c *Capture) Messages(level slog.Level) []string {
	var out []string
	for _, r := range c.Records() {
		if r.Level >= level {
			out = append(out, r.Message)
		}
	}
	return out
}
