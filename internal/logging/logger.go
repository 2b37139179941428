// Package logging configures the process-wide slog logger used by the console.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"sync"

	"golang.org/x/term"
)

var isTerminal = term.IsTerminal

var sensitiveKeys = map[string]bool{
	"authorization": true,
	"bearer":        true,
	"password":      true,
	"secret":        true,
	"token":         true,
}

var sensitiveKeySubstrings = []string{
	"token",
	"secret",
	"password",
	"authorization",
}

var sensitiveValuePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bbearer\s+[A-Za-z0-9\-._~+/]+=*`),
	regexp.MustCompile(`\beyJ[A-Za-z0-9_-]{8,}\.[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+`),
}

// RedactAttr is a slog.ReplaceAttr function that hides credentials.
func RedactAttr(_ []string, a slog.Attr) slog.Attr {
	if shouldRedact(a) {
		return slog.String(a.Key, "[REDACTED]")
	}
	return a
}

func shouldRedact(a slog.Attr) bool {
	key := strings.ToLower(a.Key)
	if sensitiveKeys[key] {
		return true
	}
	for _, sub := range sensitiveKeySubstrings {
		if strings.Contains(key, sub) {
			return true
		}
	}
	if a.Value.Kind() != slog.KindString {
		return false
	}
	value := a.Value.String()
	for _, re := range sensitiveValuePatterns {
		if re.MatchString(value) {
			return true
		}
	}
	return false
}

// ParseLevel maps "debug", "info", "warn" and "error" to slog levels.
// Anything else is info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Init installs the default logger. Console output goes to stderr; when
// logFile is non-nil every record is also written there as JSON lines.
func Init(level slog.Level, logFile io.Writer) *slog.Logger {
	return InitWriter(os.Stderr, level, logFile)
}

// InitWriter is Init with an explicit console writer.
func InitWriter(console io.Writer, level slog.Level, logFile io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: RedactAttr,
	}

	useColor := false
	if f, ok := console.(*os.File); ok {
		useColor = isTerminal(int(f.Fd()))
	}

	var handler slog.Handler = NewPrettyHandler(console, opts, useColor)
	if logFile != nil {
		handler = &multiHandler{
			handlers: []slog.Handler{handler, slog.NewJSONHandler(logFile, opts)},
		}
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// PrettyHandler writes compact single-line records for humans.
type PrettyHandler struct {
	mu     *sync.Mutex
	w      io.Writer
	opts   *slog.HandlerOptions
	attrs  []slog.Attr
	groups []string
	color  bool
}

// NewPrettyHandler creates a PrettyHandler.
func NewPrettyHandler(w io.Writer, opts *slog.HandlerOptions, color bool) *PrettyHandler {
	if opts == nil {
		opts = &slog.HandlerOptions{}
	}
	return &PrettyHandler{mu: &sync.Mutex{}, w: w, opts: opts, color: color}
}

func (h *PrettyHandler) Enabled(_ context.Context, level slog.Level) bool {
	min := slog.LevelInfo
	if h.opts.Level != nil {
		min = h.opts.Level.Level()
	}
	return level >= min
}

func (h *PrettyHandler) Handle(_ context.Context, r slog.Record) error {
	levelColor, reset := "", ""
	if h.color {
		switch {
		case r.Level >= slog.LevelError:
			levelColor = "\033[31m"
		case r.Level >= slog.LevelWarn:
			levelColor = "\033[33m"
		case r.Level >= slog.LevelInfo:
			levelColor = "\033[32m"
		default:
			levelColor = "\033[90m"
		}
		reset = "\033[0m"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s%-5s%s %s",
		r.Time.Format("15:04:05"),
		levelColor, r.Level.String(), reset,
		r.Message,
	)

	write := func(a slog.Attr) {
		if h.opts.ReplaceAttr != nil {
			a = h.opts.ReplaceAttr(h.groups, a)
		}
		if a.Key == "" {
			return
		}
		key := a.Key
		for i := len(h.groups) - 1; i >= 0; i-- {
			key = h.groups[i] + "." + key
		}
		if h.color {
			fmt.Fprintf(&b, " \033[90m%s=\033[0m%v", key, a.Value)
			return
		}
		fmt.Fprintf(&b, " %s=%v", key, a.Value)
	}

	for _, a := range h.attrs {
		write(a)
	}
	r.Attrs(func(a slog.Attr) bool {
		write(a)
		return true
	})
	b.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, b.String())
	return err
}

func (h *PrettyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	h2 := *h
	h2.attrs = append(h2.attrs[:len(h2.attrs):len(h2.attrs)], attrs...)
	return &h2
}

func (h *PrettyHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	h2 := *h
	h2.groups = append(h2.groups[:len(h2.groups):len(h2.groups)], name)
	return &h2
}

type multiHandler struct {
	handlers []slog.Handler
}

func (m *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range m.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (m *multiHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, h := range m.handlers {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil {
			return err
		}
	}
	return nil
}

func (m *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	handlers := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		handlers[i] = h.WithAttrs(attrs)
	}
	return &multiHandler{handlers: handlers}
}

func (m *multiHandler) WithGroup(name string) slog.Handler {
	handlers := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		handlers[i] = h.WithGroup(name)
	}
	return &multiHandler{handlers: handlers}
}
