package clipboard

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hashmap-kz/colorclip/internal/opt/shared/x/cmdx"
)

// PublishFunc pushes the current clipboard content somewhere else,
// e.g. into the Qubes global clipboard.
type PublishFunc func(ctx context.Context) error

// CommandPublisher runs argv once and treats a zero exit as success.
func CommandPublisher(argv []string, timeout time.Duration) PublishFunc {
	return func(ctx context.Context) error {
		_, err := cmdx.Run(ctx, &cmdx.Opts{Argv: argv, Timeout: timeout})
		if err != nil {
			return fmt.Errorf("publish: %w", err)
		}
		return nil
	}
}

// Transfer puts markup on the clipboard, optionally publishes it, and optionally
// puts back whatever was there before.
type Transfer struct {
	cb              Clipboard
	publish         PublishFunc
	restorePrevious bool
	l               *slog.Logger
}

func NewTransfer(cb Clipboard, publish PublishFunc, restorePrevious bool, l *slog.Logger) *Transfer {
	if l == nil {
		l = slog.Default()
	}
	return &Transfer{
		cb:              cb,
		publish:         publish,
		restorePrevious: restorePrevious,
		l:               l.With(slog.String("component", "clipboard")),
	}
}

func (t *Transfer) Deliver(ctx context.Context, markup string) error {
	var previous string
	var hasPrevious bool
	if t.restorePrevious {
		text, err := t.cb.ReadText(ctx)
		if err != nil {
			t.l.Warn("cannot read current clipboard, it will not be restored", slog.Any("err", err))
		} else {
			previous, hasPrevious = text, true
		}
	}

	if err := t.cb.WriteText(ctx, markup); err != nil {
		return fmt.Errorf("write clipboard: %w", err)
	}
	t.l.Debug("markup written", slog.Int("bytes", len(markup)))

	var publishErr error
	if t.publish != nil {
		publishErr = t.publish(ctx)
		if publishErr == nil {
			t.l.Debug("clipboard published")
		}
	}

	if hasPrevious {
		if err := t.cb.WriteText(ctx, previous); err != nil {
			t.l.Error("cannot restore previous clipboard", slog.Any("err", err))
			if publishErr == nil {
				return fmt.Errorf("restore clipboard: %w", err)
			}
		} else {
			t.l.Debug("previous clipboard restored")
		}
	}
	return publishErr
}
