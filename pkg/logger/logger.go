// Package logger provides the slog handler used across the module: a
// human-oriented text handler that colors output by level when writing to
// a terminal. Highlight keywords let long-running store operations stand
// out in session logs.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// ANSI escape sequences.
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
)

// Highlight keywords: messages containing one of these render green so
// persistence and index activity is easy to spot.
var highlightWords = []string{"persist", "indexed", "swept", "archived", "imported", "exported"}

// Options configures the handler.
type Options struct {
	Level slog.Level

	// NoColor disables ANSI colors. Colors are also disabled when the
	// NO_COLOR environment variable is set.
	NoColor bool
}

// Handler is a colored slog.Handler for terminal output.
type Handler struct {
	opts  Options
	mu    *sync.Mutex
	out   io.Writer
	attrs []slog.Attr
	group string
}

// NewHandler creates a colored handler writing to out.
func NewHandler(out io.Writer, opts Options) *Handler {
	if os.Getenv("NO_COLOR") != "" {
		opts.NoColor = true
	}
	return &Handler{opts: opts, mu: &sync.Mutex{}, out: out}
}

// NewLogger wraps a colored handler in a slog.Logger.
func NewLogger(out io.Writer, opts Options) *slog.Logger {
	return slog.New(NewHandler(out, opts))
}

// NewDefaultLogger returns a colored logger on stderr at the given level.
func NewDefaultLogger(level slog.Level) *slog.Logger {
	return NewLogger(os.Stderr, Options{Level: level})
}

func (h *Handler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.opts.Level
}

func (h *Handler) Handle(_ context.Context, r slog.Record) error {
	var b strings.Builder
	b.WriteString(r.Time.Format("15:04:05.000"))
	b.WriteString(" ")

	color := h.colorFor(r)
	if color != "" {
		b.WriteString(color)
	}
	b.WriteString(levelTag(r.Level))
	b.WriteString(" ")
	b.WriteString(r.Message)

	for _, a := range h.attrs {
		writeAttr(&b, h.group, a)
	}
	r.Attrs(func(a slog.Attr) bool {
		writeAttr(&b, h.group, a)
		return true
	})

	if color != "" {
		b.WriteString(colorReset)
	}
	b.WriteString("\n")

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.out, b.String())
	return err
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	return &next
}

func (h *Handler) WithGroup(name string) slog.Handler {
	next := *h
	if next.group != "" {
		next.group += "."
	}
	next.group += name
	return &next
}

func (h *Handler) colorFor(r slog.Record) string {
	if h.opts.NoColor {
		return ""
	}
	switch {
	case r.Level >= slog.LevelError:
		return colorRed
	case r.Level >= slog.LevelWarn:
		return colorYellow
	}
	msg := strings.ToLower(r.Message)
	for _, w := range highlightWords {
		if strings.Contains(msg, w) {
			return colorGreen
		}
	}
	return ""
}

func levelTag(l slog.Level) string {
	switch {
	case l >= slog.LevelError:
		return "ERROR"
	case l >= slog.LevelWarn:
		return "WARN "
	case l >= slog.LevelInfo:
		return "INFO "
	}
	return "DEBUG"
}

func writeAttr(b *strings.Builder, group string, a slog.Attr) {
	if a.Equal(slog.Attr{}) {
		return
	}
	b.WriteString(" ")
	if group != "" {
		b.WriteString(group)
		b.WriteString(".")
	}
	b.WriteString(a.Key)
	b.WriteString("=")
	fmt.Fprintf(b, "%v", a.Value.Resolve().Any())
}
