// Package logging builds the process logger: one slog.Logger writing
// "<timestamp> - <LEVEL> - <message>" lines to a log file and to the console.
package logging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
)

const timeFormat = "2006-01-02 15:04:05,000"

// Options selects the sinks and threshold of a logger. A nil sink is skipped.
type Options struct {
	File    io.Writer
	Console io.Writer
	Level   slog.Leveler
	// Color renders the level name on the console sink with ANSI colours.
	// The file sink is always plain.
	Color bool
}

// New returns a logger that writes every record to both sinks of opts.
func New(opts Options) *slog.Logger {
	return slog.New(NewHandler(opts))
}

// OpenFile opens path for appending, creating it when missing.
func OpenFile(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return f, nil
}

// ParseLevel accepts debug, info, warn/warning and error in any case.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if strings.EqualFold(s, "warning") {
		return slog.LevelWarn, nil
	}
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid log level %q", s)
	}
	return l, nil
}

// LevelName maps slog levels onto DEBUG, INFO, WARNING and ERROR.
func LevelName(l slog.Level) string {
	switch {
	case l < slog.LevelInfo:
		return "DEBUG"
	case l < slog.LevelWarn:
		return "INFO"
	case l < slog.LevelError:
		return "WARNING"
	default:
		return "ERROR"
	}
}

var levelColors = map[string]*color.Color{
	"DEBUG":   color.New(color.FgCyan),
	"INFO":    color.New(color.FgGreen),
	"WARNING": color.New(color.FgYellow),
	"ERROR":   color.New(color.FgRed, color.Bold),
}

func init() {
	// Colour is decided per logger through Options.Color, not by tty detection.
	for _, c := range levelColors {
		c.EnableColor()
	}
}

// Handler is a slog.Handler producing one text line per record.
type Handler struct {
	opts   Options
	mu     *sync.Mutex
	attrs  string
	prefix string
}

func NewHandler(opts Options) *Handler {
	return &Handler{opts: opts, mu: &sync.Mutex{}}
}

func (h *Handler) Enabled(_ context.Context, l slog.Level) bool {
	threshold := slog.LevelInfo
	if h.opts.Level != nil {
		threshold = h.opts.Level.Level()
	}
	return l >= threshold
}

func (h *Handler) Handle(_ context.Context, r slog.Record) error {
	t := r.Time
	if t.IsZero() {
		t = time.Now()
	}
	var sb strings.Builder
	sb.WriteString(h.attrs)
	r.Attrs(func(a slog.Attr) bool {
		appendAttr(&sb, h.prefix, a)
		return true
	})
	level := LevelName(r.Level)
	ts := t.Format(timeFormat)
	tail := r.Message + sb.String() + "\n"

	h.mu.Lock()
	defer h.mu.Unlock()
	var errs []error
	if h.opts.File != nil {
		if _, err := io.WriteString(h.opts.File, ts+" - "+level+" - "+tail); err != nil {
			errs = append(errs, err)
		}
	}
	if h.opts.Console != nil {
		shown := level
		if h.opts.Color {
			shown = levelColors[level].Sprint(level)
		}
		if _, err := io.WriteString(h.opts.Console, ts+" - "+shown+" - "+tail); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	var sb strings.Builder
	sb.WriteString(h.attrs)
	for _, a := range attrs {
		appendAttr(&sb, h.prefix, a)
	}
	h2 := *h
	h2.attrs = sb.String()
	return &h2
}

func (h *Handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	h2 := *h
	h2.prefix = h.prefix + name + "."
	return &h2
}

func appendAttr(sb *strings.Builder, prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	if a.Value.Kind() == slog.KindGroup {
		p := prefix
		if a.Key != "" {
			p += a.Key + "."
		}
		for _, ga := range a.Value.Group() {
			appendAttr(sb, p, ga)
		}
		return
	}
	var v string
	if a.Value.Kind() == slog.KindTime {
		v = a.Value.Time().Format(timeFormat)
	} else {
		v = a.Value.String()
	}
	if v == "" || strings.ContainsAny(v, " \t\n\"=") {
		v = strconv.Quote(v)
	}
	sb.WriteString(" ")
	sb.WriteString(prefix)
	sb.WriteString(a.Key)
	sb.WriteString("=")
	sb.WriteString(v)
}
