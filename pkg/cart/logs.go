package cart

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// LogHandler is a slog.Handler that formats records into short lines for
// the dashboard log box. Lines are dropped when nobody keeps up. Records
// are also passed to Next when set.
type LogHandler struct {
	ch     chan string
	level  slog.Leveler
	next   slog.Handler
	attrs  []slog.Attr
	prefix string
}

// NewLogHandler creates a handler buffering up to size lines.
func NewLogHandler(size int, level slog.Leveler, next slog.Handler) *LogHandler {
	if size <= 0 {
		size = 10
	}
	if level == nil {
		level = slog.LevelInfo
	}
	return &LogHandler{ch: make(chan string, size), level: level, next: next}
}

// Lines returns the channel of formatted log lines.
func (h *LogHandler) Lines() <-chan string { return h.ch }

func (h *LogHandler) Enabled(ctx context.Context, l slog.Level) bool {
	if l >= h.level.Level() {
		return true
	}
	return h.next != nil && h.next.Enabled(ctx, l)
}

func (h *LogHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.next != nil && h.next.Enabled(ctx, r.Level) {
		if err := h.next.Handle(ctx, r); err != nil {
			return err
		}
	}
	if r.Level < h.level.Level() {
		return nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] %s %s", r.Time.Format("15:04:05"), r.Level, r.Message)
	for _, a := range h.attrs {
		writeAttr(&sb, "", a)
	}
	r.Attrs(func(a slog.Attr) bool {
		writeAttr(&sb, h.prefix, a)
		return true
	})

	select {
	case h.ch <- sb.String():
	default:
		// Drop if channel full
	}
	return nil
}

func writeAttr(sb *strings.Builder, prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	if a.Value.Kind() == slog.KindGroup {
		for _, g := range a.Value.Group() {
			writeAttr(sb, prefix+a.Key+".", g)
		}
		return
	}
	fmt.Fprintf(sb, " %s%s=%v", prefix, a.Key, a.Value)
}

func (h *LogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	c := *h
	c.attrs = make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	c.attrs = append(c.attrs, h.attrs...)
	for _, a := range attrs {
		if h.prefix != "" {
			a.Key = h.prefix + a.Key
		}
		c.attrs = append(c.attrs, a)
	}
	if h.next != nil {
		c.next = h.next.WithAttrs(attrs)
	}
	return &c
}

func (h *LogHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	c := *h
	c.prefix = h.prefix + name + "."
	if h.next != nil {
		c.next = h.next.WithGroup(name)
	}
	return &c
}
