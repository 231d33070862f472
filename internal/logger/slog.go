package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

const (
	LevelTrace = slog.LevelDebug - 4
	LevelFatal = slog.LevelError + 4
)

type Opts struct {
	Level     string
	Format    string
	AddSource bool

	// Writer defaults to os.Stderr: stdout may carry markup.
	Writer io.Writer
}

var levels = map[string]slog.Level{
	"trace": LevelTrace,
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

// ParseLevel returns INFO for unknown names.
func ParseLevel(s string) (slog.Level, bool) {
	lvl, ok := levels[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return slog.LevelInfo, false
	}
	return lvl, true
}

func New(opts *Opts) *slog.Logger {
	if opts == nil {
		opts = &Opts{}
	}
	w := opts.Writer
	if w == nil {
		w = os.Stderr
	}
	lvl, _ := ParseLevel(opts.Level)

	replaceAttr := func(_ []string, attr slog.Attr) slog.Attr {
		if opts.AddSource && attr.Key == slog.SourceKey {
			if src, ok := attr.Value.Any().(*slog.Source); ok {
				src.File = filepath.Base(src.File)
				attr.Value = slog.AnyValue(src)
			}
		}
		if attr.Key == slog.LevelKey {
			if recLvl, ok := attr.Value.Any().(slog.Level); ok {
				switch recLvl {
				case LevelTrace:
					return slog.String(slog.LevelKey, "TRACE")
				case LevelFatal:
					return slog.String(slog.LevelKey, "FATAL")
				}
			}
		}
		return attr
	}

	handlerOpts := &slog.HandlerOptions{
		AddSource:   opts.AddSource,
		Level:       lvl,
		ReplaceAttr: replaceAttr,
	}
	var h slog.Handler
	if strings.EqualFold(opts.Format, "json") {
		h = slog.NewJSONHandler(w, handlerOpts)
	} else {
		h = slog.NewTextHandler(w, handlerOpts)
	}
	return slog.New(h.WithAttrs([]slog.Attr{
		slog.Int("pid", os.Getpid()),
	}))
}

// Init builds a logger and makes it the process default.
func Init(opts *Opts) *slog.Logger {
	l := New(opts)
	slog.SetDefault(l)
	return l
}

func Trace(ctx context.Context, l *slog.Logger, msg string, attrs ...slog.Attr) {
	l.LogAttrs(ctx, LevelTrace, msg, attrs...)
}
