package prerotate

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/pkg/errors"
)

// LogConfig selects the minimum level and an optional directory for the
// per-level log files.
type LogConfig struct {
	Level string `toml:"level" yaml:"level"`
	Dir   string `toml:"dir" yaml:"dir"`
}

var pkgLogger atomic.Pointer[slog.Logger]

// Logger returns the package logger, slog.Default until SetLogger is called.
func Logger() *slog.Logger {
	if l := pkgLogger.Load(); l != nil {
		return l
	}
	return slog.Default()
}

func SetLogger(l *slog.Logger) {
	pkgLogger.Store(l)
}

// NewLogger builds a text logger on stderr. When cfg.Dir is set, records are
// also appended to info_log.txt, warn_log.txt and error_log.txt by level.
// The returned closer releases the files.
func NewLogger(cfg LogConfig) (*slog.Logger, io.Closer, error) {
	var level slog.Level
	if cfg.Level != "" {
		if err := level.UnmarshalText([]byte(strings.ToUpper(cfg.Level))); err != nil {
			return nil, nil, configError("log level", errors.Wrap(ErrInvalidConfig, err.Error()))
		}
	}
	opts := &slog.HandlerOptions{Level: level}
	handlers := fanout{slog.NewTextHandler(os.Stderr, opts)}
	files := closers{}

	if cfg.Dir != "" {
		bands := []struct {
			name     string
			min, max slog.Level
			bounded  bool
		}{
			{"info_log.txt", slog.LevelInfo, slog.LevelWarn, true},
			{"warn_log.txt", slog.LevelWarn, slog.LevelError, true},
			{"error_log.txt", slog.LevelError, 0, false},
		}
		for _, b := range bands {
			f, err := os.OpenFile(filepath.Join(cfg.Dir, b.name), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0666)
			if err != nil {
				files.Close()
				return nil, nil, errors.Wrap(err, "open log file")
			}
			files = append(files, f)
			handlers = append(handlers, bandHandler{
				Handler: slog.NewTextHandler(f, &slog.HandlerOptions{AddSource: true}),
				min:     b.min,
				max:     b.max,
				bounded: b.bounded,
			})
		}
	}
	return slog.New(handlers), files, nil
}

type closers []io.Closer

func (c closers) Close() error {
	var first error
	for _, cl := range c {
		if err := cl.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// bandHandler passes records with min <= level < max (no upper bound unless bounded).
type bandHandler struct {
	slog.Handler
	min, max slog.Level
	bounded  bool
}

func (h bandHandler) Enabled(ctx context.Context, l slog.Level) bool {
	if l < h.min || (h.bounded && l >= h.max) {
		return false
	}
	return h.Handler.Enabled(ctx, l)
}

func (h bandHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return bandHandler{Handler: h.Handler.WithAttrs(attrs), min: h.min, max: h.max, bounded: h.bounded}
}

func (h bandHandler) WithGroup(name string) slog.Handler {
	return bandHandler{Handler: h.Handler.WithGroup(name), min: h.min, max: h.max, bounded: h.bounded}
}

type fanout []slog.Handler

func (f fanout) Enabled(ctx context.Context, l slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, l) {
			return true
		}
	}
	return false
}

func (f fanout) Handle(ctx context.Context, r slog.Record) error {
	var first error
	for _, h := range f {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (f fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (f fanout) WithGroup(name string) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithGroup(name)
	}
	return out
}
