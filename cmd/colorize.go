package cmd

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/hashmap-kz/colorclip/config"
	"github.com/hashmap-kz/colorclip/internal/clipboard"
	"github.com/hashmap-kz/colorclip/internal/input"
	"github.com/hashmap-kz/colorclip/internal/isolation"
)

type ColorizeOpts struct {
	Cfg    *config.Config
	Print  bool
	Stdin  io.Reader
	Stdout io.Writer
	Log    *slog.Logger

	// Built from Cfg when nil.
	Clipboard clipboard.Clipboard
	Renderer  isolation.Renderer
	Publish   clipboard.PublishFunc
}

func newRenderer(cfg *config.Config, l *slog.Logger) isolation.Renderer {
	if !cfg.Isolation.Enable {
		return isolation.LocalRenderer{}
	}
	return isolation.NewIsolatedRenderer(&isolation.IsolatedOpts{
		Command:        cfg.Isolation.Command,
		Timeout:        cfg.Isolation.TimeoutParsed,
		MaxOutputBytes: cfg.Isolation.MaxOutputBytes,
	}, l)
}

func RunColorize(ctx context.Context, opts *ColorizeOpts) error {
	cfg := opts.Cfg
	l := opts.Log
	if l == nil {
		l = slog.Default()
	}

	cb := opts.Clipboard
	if cb == nil {
		var err error
		cb, err = clipboard.New(&clipboard.Opts{
			Backend:      cfg.Clipboard.Backend,
			ReadCommand:  cfg.Clipboard.ReadCommand,
			WriteCommand: cfg.Clipboard.WriteCommand,
			Timeout:      cfg.Clipboard.TimeoutParsed,
		})
		if err != nil {
			return err
		}
	}
	renderer := opts.Renderer
	if renderer == nil {
		renderer = newRenderer(cfg, l)
	}
	publish := opts.Publish
	if publish == nil && len(cfg.Clipboard.PublishCommand) > 0 {
		publish = clipboard.CommandPublisher(cfg.Clipboard.PublishCommand, cfg.Clipboard.TimeoutParsed)
	}

	text, err := input.Read(ctx, &input.Opts{
		Source:    cfg.Input.Source,
		Path:      cfg.Input.Path,
		MaxBytes:  cfg.Input.MaxBytes,
		Clipboard: cb,
		Stdin:     opts.Stdin,
	})
	if err != nil {
		return err
	}

	start := time.Now()
	markup, err := renderer.Render(ctx, text, cfg.Color.Scheme)
	if err != nil {
		l.Error("render failed, clipboard left untouched", slog.Any("err", err))
		return err
	}
	l.Info("text colorized",
		slog.String("scheme", cfg.Color.Scheme),
		slog.Bool("isolated", cfg.Isolation.Enable),
		slog.Int("input-bytes", len(text)),
		slog.Int("output-bytes", len(markup)),
		slog.Duration("elapsed", time.Since(start)),
	)

	if opts.Print {
		_, err := io.WriteString(opts.Stdout, markup)
		return err
	}
	return clipboard.NewTransfer(cb, publish, cfg.Clipboard.RestorePrevious, l).Deliver(ctx, markup)
}
