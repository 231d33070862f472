package isolation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/hashmap-kz/colorclip/internal/colorize"
	"github.com/hashmap-kz/colorclip/internal/logger"
	"github.com/hashmap-kz/colorclip/internal/opt/shared/x/cmdx"
	"github.com/hashmap-kz/colorclip/internal/opt/shared/x/strx"
)

// Per code point: an opening tag, a closing tag and an escaped character fit in 80 bytes.
const (
	bytesPerRune     = 80
	outputSlack      = 4096
	DefaultMaxInput  = 8 << 20
	stderrLogPreview = 512
)

var (
	ErrRequestTooLarge  = errors.New("request too large")
	ErrMalformedRequest = errors.New("malformed request")
)

// Request is what the privileged side sends on the helper's stdin.
// The helper answers with the bare markup on stdout.
type Request struct {
	Color string `json:"color"`
	Text  string `json:"text"`
}

// ServeHelper is the untrusted side of the bridge: it reads one Request from r and
// writes the rendered markup to w.
func ServeHelper(ctx context.Context, r io.Reader, w io.Writer, maxInput int64) error {
	if maxInput <= 0 {
		maxInput = DefaultMaxInput
	}
	data, err := io.ReadAll(io.LimitReader(r, maxInput+1))
	if err != nil {
		return fmt.Errorf("read request: %w", err)
	}
	if int64(len(data)) > maxInput {
		return fmt.Errorf("%w: more than %d bytes", ErrRequestTooLarge, maxInput)
	}

	// encoding/json would quietly turn invalid bytes into U+FFFD
	if !utf8.Valid(data) {
		return fmt.Errorf("%w: invalid UTF-8", ErrMalformedRequest)
	}

	var req Request
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedRequest, err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: trailing data after request", ErrMalformedRequest)
	}
	logger.Trace(ctx, slog.Default(), "helper request decoded",
		slog.String("color", req.Color),
		slog.Int("text-bytes", len(req.Text)),
	)

	markup, err := colorize.Render(req.Text, req.Color)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err = io.WriteString(w, markup)
	return err
}

// Renderer turns text into markup with the named color scheme.
type Renderer interface {
	Render(ctx context.Context, text, scheme string) (string, error)
}

// LocalRenderer renders in-process, without any isolation.
type LocalRenderer struct{}

var _ Renderer = LocalRenderer{}

func (LocalRenderer) Render(_ context.Context, text, scheme string) (string, error) {
	return colorize.Render(text, scheme)
}

type IsolatedOpts struct {
	// Command spawns the helper, e.g. qvm-run --dispvm --pass-io ... "colorclip render".
	Command []string
	Timeout time.Duration
	// 0 derives the limit from the input length.
	MaxOutputBytes int64
}

// IsolatedRenderer runs the renderer in a helper process and verifies what comes
// back before handing it on.
type IsolatedRenderer struct {
	opts *IsolatedOpts
	l    *slog.Logger
}

var _ Renderer = (*IsolatedRenderer)(nil)

func NewIsolatedRenderer(opts *IsolatedOpts, l *slog.Logger) *IsolatedRenderer {
	if l == nil {
		l = slog.Default()
	}
	return &IsolatedRenderer{
		opts: opts,
		l:    l.With(slog.String("component", "isolated-renderer")),
	}
}

func (r *IsolatedRenderer) outputLimit(text string) int64 {
	if r.opts.MaxOutputBytes > 0 {
		return r.opts.MaxOutputBytes
	}
	return int64(utf8.RuneCountInString(text))*bytesPerRune + outputSlack
}

func (r *IsolatedRenderer) Render(ctx context.Context, text, scheme string) (string, error) {
	// fail fast on a bad scheme without spawning anything
	if _, err := colorize.Lookup(scheme); err != nil {
		return "", err
	}

	req, err := json.Marshal(Request{Color: scheme, Text: text})
	if err != nil {
		return "", err
	}

	start := time.Now()
	r.l.Debug("spawning helper",
		slog.Any("command", r.opts.Command),
		slog.Int("input-bytes", len(text)),
	)
	logger.Trace(ctx, r.l, "helper request",
		slog.Int("request-bytes", len(req)),
		slog.Int64("output-limit", r.outputLimit(text)),
	)

	res, err := cmdx.Run(ctx, &cmdx.Opts{
		Argv:      r.opts.Command,
		Stdin:     bytes.NewReader(req),
		Timeout:   r.opts.Timeout,
		MaxStdout: r.outputLimit(text),
	})
	if res != nil && len(res.Stderr) > 0 {
		r.l.Debug("helper stderr",
			slog.String("stderr", strx.Printable(res.Stderr, stderrLogPreview)),
			slog.Bool("truncated", res.StderrTruncated),
		)
	}
	if err != nil {
		return "", fmt.Errorf("isolated helper: %w", err)
	}

	logger.Trace(ctx, r.l, "helper output received",
		slog.Int("output-bytes", len(res.Stdout)),
		slog.Bool("stdout-truncated", res.StdoutTruncated),
	)
	markup, err := Verify(string(res.Stdout), text)
	if err != nil {
		r.l.Warn("helper output rejected", slog.Any("err", err))
		return "", err
	}
	logger.Trace(ctx, r.l, "helper output accepted")

	r.l.Debug("helper output verified",
		slog.Int("output-bytes", len(markup)),
		slog.Duration("elapsed", time.Since(start)),
	)
	return markup, nil
}
